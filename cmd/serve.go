// cmd/serve.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/markb/logwatch/internal/log"
	"github.com/markb/logwatch/internal/observability"
	"github.com/markb/logwatch/internal/server"
	"github.com/markb/logwatch/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the logwatch server",
	Long:  `Starts the HTTP server exposing the logging admin API under /admin/v1/logging.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		host, _ := cmd.Flags().GetString("host")

		logConfig, err := buildLogConfig(cmd)
		if err != nil {
			return err
		}
		hierarchy, err := log.Init(logConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		defer hierarchy.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		otelConfig := buildObservabilityConfig(cmd)
		tel, cleanup, err := observability.Init(ctx, otelConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer cleanup()

		w := watcher.New(watcher.NewBackend(hierarchy), watcher.WithMetrics(tel.Metrics()))
		if err := w.Register(watcher.ListenerConfig{
			Size:      logConfig.HistorySize,
			Threshold: logConfig.HistoryThreshold,
		}); err != nil {
			return fmt.Errorf("failed to register watcher: %w", err)
		}

		serverConfig := buildServerConfig(cmd)
		serverConfig.Telemetry = tel
		srv := server.New(w, serverConfig)

		// Handle graceful shutdown
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		errCh := make(chan error, 1)
		addr := fmt.Sprintf("%s:%d", host, port)
		httpsConfig := buildHTTPSConfig(cmd)

		go func() {
			if httpsConfig.Domain != "" {
				errCh <- srv.ListenAndServeTLS(httpsConfig)
				return
			}
			errCh <- srv.ListenAndServe(addr)
		}()

		if httpsConfig.Domain != "" {
			fmt.Printf("Starting logwatch on https://%s\n", httpsConfig.Domain)
			fmt.Printf("  Admin API: https://%s/admin/v1/logging\n", httpsConfig.Domain)
		} else {
			fmt.Printf("Starting logwatch on %s\n", addr)
			fmt.Printf("  Admin API: http://%s/admin/v1/logging\n", addr)
		}
		fmt.Printf("  Log Mode: %s\n", logConfig.Mode)
		fmt.Printf("  History: %d events at %s and above\n", logConfig.HistorySize, strings.ToUpper(logConfig.HistoryThreshold))

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-sigCh:
			fmt.Println("\nShutting down...")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	},
}

// buildLogConfig creates a log.Config from environment variables and CLI flags.
// Priority: CLI flags > environment variables > defaults
func buildLogConfig(cmd *cobra.Command) (*log.Config, error) {
	cfg := log.DefaultConfig()

	// Read environment variables first
	if mode := os.Getenv("LOGWATCH_LOG_MODE"); mode != "" {
		cfg.Mode = mode
	}
	if level := os.Getenv("LOGWATCH_LOG_LEVEL"); level != "" {
		cfg.Level = level
	}
	if format := os.Getenv("LOGWATCH_LOG_FORMAT"); format != "" {
		cfg.Format = format
	}
	if path := os.Getenv("LOGWATCH_LOG_FILE"); path != "" {
		cfg.FilePath = path
	}
	if path := os.Getenv("LOGWATCH_LOG_DB"); path != "" {
		cfg.DBPath = path
	}
	if v := os.Getenv("LOGWATCH_LOG_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxSizeMB = n
		}
	}
	if v := os.Getenv("LOGWATCH_LOG_MAX_AGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxAgeDays = n
		}
	}
	if v := os.Getenv("LOGWATCH_LOG_MAX_BACKUPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxBackups = n
		}
	}
	if v := os.Getenv("LOGWATCH_LOG_RETENTION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RetentionDays = n
		}
	}
	if v := os.Getenv("LOGWATCH_LOG_FIELDS"); v != "" {
		cfg.Fields = splitList(v)
	}
	if v := os.Getenv("LOGWATCH_HISTORY_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HistorySize = n
		}
	}
	if v := os.Getenv("LOGWATCH_THRESHOLD"); v != "" {
		cfg.HistoryThreshold = v
	}
	if v := os.Getenv("LOGWATCH_LOGGER_LEVELS"); v != "" {
		if err := parseLoggerLevels(cfg.Loggers, splitList(v)); err != nil {
			return nil, err
		}
	}

	// CLI flags override environment variables
	if v, _ := cmd.Flags().GetString("log-mode"); v != "" {
		cfg.Mode = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Format = v
	}
	if v, _ := cmd.Flags().GetString("log-file"); v != "" {
		cfg.FilePath = v
	}
	if v, _ := cmd.Flags().GetString("log-db"); v != "" {
		cfg.DBPath = v
	}
	if v, _ := cmd.Flags().GetInt("log-max-size"); v > 0 {
		cfg.MaxSizeMB = v
	}
	if v, _ := cmd.Flags().GetInt("log-max-age"); v > 0 {
		cfg.MaxAgeDays = v
	}
	if v, _ := cmd.Flags().GetInt("log-max-backups"); v > 0 {
		cfg.MaxBackups = v
	}
	if v, _ := cmd.Flags().GetInt("log-retention"); v > 0 {
		cfg.RetentionDays = v
	}
	if v, _ := cmd.Flags().GetStringSlice("log-fields"); len(v) > 0 {
		cfg.Fields = v
	}
	if v, _ := cmd.Flags().GetInt("history-size"); v > 0 {
		cfg.HistorySize = v
	}
	if v, _ := cmd.Flags().GetString("threshold"); v != "" {
		cfg.HistoryThreshold = v
	}
	if v, _ := cmd.Flags().GetStringArray("logger-level"); len(v) > 0 {
		if err := parseLoggerLevels(cfg.Loggers, v); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// buildObservabilityConfig creates an observability.Config from environment
// variables and CLI flags.
// Priority: CLI flags > environment variables > defaults
func buildObservabilityConfig(cmd *cobra.Command) *observability.Config {
	cfg := observability.NewConfig()

	if v := os.Getenv("LOGWATCH_OTEL_EXPORTER"); v != "" {
		cfg.Exporter = v
	}
	if v := os.Getenv("LOGWATCH_OTEL_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("LOGWATCH_OTEL_SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}
	if v := os.Getenv("LOGWATCH_OTEL_SAMPLE_RATE"); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.SampleRate = rate
		}
	}

	if v, _ := cmd.Flags().GetString("otel-exporter"); v != "" {
		cfg.Exporter = v
	}
	if v, _ := cmd.Flags().GetString("otel-endpoint"); v != "" {
		cfg.Endpoint = v
	}
	if v, _ := cmd.Flags().GetString("otel-service-name"); v != "" {
		cfg.ServiceName = v
	}
	if cmd.Flags().Changed("otel-sample-rate") {
		cfg.SampleRate, _ = cmd.Flags().GetFloat64("otel-sample-rate")
	}

	// An exporter turns both signals on
	if cfg.ShouldEnable() {
		cfg.MetricsEnabled = true
		cfg.TracesEnabled = true
	}
	return cfg
}

// buildServerConfig creates a server.Config from environment variables and
// CLI flags.
// Priority: CLI flags > environment variables > defaults
func buildServerConfig(cmd *cobra.Command) server.Config {
	cfg := server.DefaultConfig()
	cfg.JWTSecret = jwtSecretFromEnv()

	if v := os.Getenv("LOGWATCH_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	if v, _ := cmd.Flags().GetStringSlice("cors-origin"); len(v) > 0 {
		cfg.CORSOrigins = v
	}
	return cfg
}

// buildHTTPSConfig returns the HTTPS settings. An empty Domain means plain HTTP.
func buildHTTPSConfig(cmd *cobra.Command) server.HTTPSConfig {
	cfg := server.HTTPSConfig{
		Addr:     ":443",
		CertDir:  "certs",
		HTTPAddr: ":80",
	}

	if v := os.Getenv("LOGWATCH_HTTPS_DOMAIN"); v != "" {
		cfg.Domain = v
	}
	if v := os.Getenv("LOGWATCH_CERT_DIR"); v != "" {
		cfg.CertDir = v
	}

	if v, _ := cmd.Flags().GetString("https"); v != "" {
		cfg.Domain = v
	}
	if v, _ := cmd.Flags().GetString("cert-dir"); v != "" {
		cfg.CertDir = v
	}
	if v, _ := cmd.Flags().GetString("https-addr"); v != "" {
		cfg.Addr = v
	}
	if v, _ := cmd.Flags().GetString("http-addr"); v != "" {
		cfg.HTTPAddr = v
	}
	return cfg
}

// parseLoggerLevels adds name=LEVEL pairs to levels.
func parseLoggerLevels(levels map[string]string, pairs []string) error {
	for _, pair := range pairs {
		name, level, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return fmt.Errorf("invalid logger level %q, expected name=LEVEL", pair)
		}
		levels[name] = strings.TrimSpace(level)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServeFlags(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	cmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	cmd.Flags().String("https", "", "Domain to serve over HTTPS with Let's Encrypt")
	cmd.Flags().String("cert-dir", "", "Directory for cached certificates (default: certs)")
	cmd.Flags().String("https-addr", "", "HTTPS listen address (default: :443)")
	cmd.Flags().String("http-addr", "", "HTTP redirect/ACME listen address (default: :80)")
	cmd.Flags().StringSlice("cors-origin", nil, "Allowed CORS origins (default: *)")

	cmd.Flags().String("log-mode", "", "Log output: console, file, or database (default: console)")
	cmd.Flags().String("log-level", "", "Root log level (default: info)")
	cmd.Flags().String("log-format", "", "Log format: text or json (default: text)")
	cmd.Flags().String("log-file", "", "Log file path for file mode")
	cmd.Flags().String("log-db", "", "SQLite path for database mode")
	cmd.Flags().Int("log-max-size", 0, "Rotate the log file at this size in MB")
	cmd.Flags().Int("log-max-age", 0, "Delete rotated log files older than this many days")
	cmd.Flags().Int("log-max-backups", 0, "Keep at most this many rotated log files")
	cmd.Flags().Int("log-retention", 0, "Delete database log rows older than this many days")
	cmd.Flags().StringSlice("log-fields", nil, "Optional database fields: request_id, extra")
	cmd.Flags().StringArray("logger-level", nil, "Initial logger level as name=LEVEL (repeatable)")

	cmd.Flags().Int("history-size", 0, "Number of events kept in history (default: 50)")
	cmd.Flags().String("threshold", "", "Minimum level captured into history (default: warn)")

	cmd.Flags().String("otel-exporter", "", "Telemetry exporter: none, stdout, or otlp (default: none)")
	cmd.Flags().String("otel-endpoint", "", "OTLP gRPC endpoint (default: localhost:4317)")
	cmd.Flags().String("otel-service-name", "", "Service name reported on telemetry")
	cmd.Flags().Float64("otel-sample-rate", 0.1, "Trace sampling rate between 0 and 1")
}
