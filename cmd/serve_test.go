package cmd

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServeCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "serve"}
	addServeFlags(cmd)
	return cmd
}

func TestParseSince(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)

	ms, err := parseSince("", now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), ms)

	ms, err = parseSince("1699999999000", now)
	require.NoError(t, err)
	assert.Equal(t, int64(1699999999000), ms)

	ms, err = parseSince("10m", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-10*time.Minute).UnixMilli(), ms)

	_, err = parseSince("yesterday", now)
	assert.Error(t, err)
}

func TestParseLoggerLevels(t *testing.T) {
	levels := map[string]string{}
	require.NoError(t, parseLoggerLevels(levels, []string{"svc.db=DEBUG", " http = warn "}))
	assert.Equal(t, map[string]string{"svc.db": "DEBUG", "http": "warn"}, levels)

	assert.Error(t, parseLoggerLevels(levels, []string{"noequals"}))
	assert.Error(t, parseLoggerLevels(levels, []string{"=INFO"}))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
	assert.Nil(t, splitList(""))
}

func TestBuildLogConfig_Priority(t *testing.T) {
	t.Setenv("LOGWATCH_LOG_LEVEL", "debug")
	t.Setenv("LOGWATCH_HISTORY_SIZE", "20")
	t.Setenv("LOGWATCH_THRESHOLD", "error")
	t.Setenv("LOGWATCH_LOGGER_LEVELS", "svc=TRACE")

	cmd := newTestServeCmd()
	require.NoError(t, cmd.Flags().Set("threshold", "info"))
	require.NoError(t, cmd.Flags().Set("logger-level", "http=WARN"))

	cfg, err := buildLogConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, 20, cfg.HistorySize)
	assert.Equal(t, "info", cfg.HistoryThreshold)
	assert.Equal(t, "TRACE", cfg.Loggers["svc"])
	assert.Equal(t, "WARN", cfg.Loggers["http"])
	assert.Equal(t, "console", cfg.Mode)
}

func TestBuildObservabilityConfig(t *testing.T) {
	cfg := buildObservabilityConfig(newTestServeCmd())
	assert.False(t, cfg.ShouldEnable())
	assert.False(t, cfg.MetricsEnabled)

	t.Setenv("LOGWATCH_OTEL_EXPORTER", "stdout")
	cfg = buildObservabilityConfig(newTestServeCmd())
	assert.Equal(t, "stdout", cfg.Exporter)
	assert.True(t, cfg.MetricsEnabled)
	assert.True(t, cfg.TracesEnabled)
}

func TestBuildServerConfig(t *testing.T) {
	t.Setenv("LOGWATCH_JWT_SECRET", "configured-secret")
	t.Setenv("LOGWATCH_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := buildServerConfig(newTestServeCmd())
	assert.Equal(t, "configured-secret", cfg.JWTSecret)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestBuildHTTPSConfig_Defaults(t *testing.T) {
	cfg := buildHTTPSConfig(newTestServeCmd())
	assert.Empty(t, cfg.Domain)
	assert.Equal(t, ":443", cfg.Addr)
	assert.Equal(t, ":80", cfg.HTTPAddr)
	assert.Equal(t, "certs", cfg.CertDir)
}
