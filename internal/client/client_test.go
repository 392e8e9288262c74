package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markb/logwatch/internal/auth"
	"github.com/markb/logwatch/internal/log"
	"github.com/markb/logwatch/internal/server"
	"github.com/markb/logwatch/internal/watcher"
)

const testSecret = "client-test-secret-min-32-characters"

type fixture struct {
	h       *log.Hierarchy
	service *Client
	anon    *Client
}

func setup(t *testing.T) *fixture {
	t.Helper()
	h := log.NewHierarchy(log.LevelInfo)
	w := watcher.New(watcher.NewBackend(h), watcher.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, w.Register(watcher.ListenerConfig{Size: 5}))

	cfg := server.DefaultConfig()
	cfg.JWTSecret = testSecret
	ts := httptest.NewServer(server.New(w, cfg).Router())
	t.Cleanup(ts.Close)

	keys := auth.NewService(testSecret)
	anonKey, err := keys.GenerateAPIKey(auth.APIKeyAnon)
	require.NoError(t, err)
	serviceKey, err := keys.GenerateAPIKey(auth.APIKeyServiceRole)
	require.NoError(t, err)

	return &fixture{h: h, service: New(ts.URL+"/", serviceKey), anon: New(ts.URL, anonKey)}
}

func TestClient_Levels(t *testing.T) {
	f := setup(t)
	levels, err := f.anon.Levels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, log.Levels(), levels)
}

func TestClient_SetLevelAndLoggers(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.h.Logger("svc.db").Info("hello")

	info, err := f.service.SetLevel(ctx, "svc", "DEBUG")
	require.NoError(t, err)
	assert.Equal(t, "svc", info.Name)
	require.NotNil(t, info.Level)
	assert.Equal(t, "DEBUG", *info.Level)
	assert.True(t, info.Set)

	loggers, err := f.anon.Loggers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, loggers)
	assert.Equal(t, "root", loggers[0].Name)

	info, err = f.service.SetLevel(ctx, "svc", "")
	require.NoError(t, err)
	require.NotNil(t, info.Level)
	assert.Equal(t, "OFF", *info.Level)
}

func TestClient_Threshold(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	threshold, err := f.anon.Threshold(ctx)
	require.NoError(t, err)
	assert.Equal(t, "WARN", threshold)

	threshold, err = f.service.SetThreshold(ctx, "error")
	require.NoError(t, err)
	assert.Equal(t, "ERROR", threshold)
}

func TestClient_History(t *testing.T) {
	f := setup(t)
	for i := 0; i < 7; i++ {
		f.h.Logger("svc").Warn("slow query")
	}

	resp, err := f.anon.History(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Found)
	assert.True(t, resp.PossiblyIncomplete)
	assert.NotZero(t, resp.Last)
	assert.Equal(t, resp.Last+1, resp.Next)

	next, err := f.anon.History(context.Background(), resp.Next)
	require.NoError(t, err)
	assert.Zero(t, next.Found)
}

func TestClient_Errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.anon.SetThreshold(ctx, "ERROR")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "forbidden", apiErr.Code)

	_, err = f.service.SetLevel(ctx, "svc", "LOUD")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "validation_failed", apiErr.Code)

	_, err = New(f.anon.baseURL, "bogus").Levels(ctx)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}
