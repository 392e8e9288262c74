// internal/log/middleware_test.go
package log

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newConsoleHierarchy(&buf, "text", "info").Logger(HTTPLoggerName)

	// Create a test handler
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Wrap with our middleware
	wrapped := RequestLoggerFor(logger)(testHandler)

	// Make a request
	req := httptest.NewRequest("GET", "/test/path", nil)
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	// Check response
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	// Check log output
	output := buf.String()
	if !strings.Contains(output, "http request") {
		t.Errorf("expected log to contain 'http request', got %q", output)
	}
	if !strings.Contains(output, "GET") {
		t.Errorf("expected log to contain 'GET', got %q", output)
	}
	if !strings.Contains(output, "/test/path") {
		t.Errorf("expected log to contain '/test/path', got %q", output)
	}
	if !strings.Contains(output, "status=200") {
		t.Errorf("expected log to contain 'status=200', got %q", output)
	}
	if !strings.Contains(output, "logger=http") {
		t.Errorf("expected log to contain 'logger=http', got %q", output)
	}
}

func TestRequestLogger_ErrorStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := newConsoleHierarchy(&buf, "text", "info").Logger(HTTPLoggerName)

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	wrapped := RequestLoggerFor(logger)(testHandler)

	req := httptest.NewRequest("GET", "/error", nil)
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)

	output := buf.String()
	if !strings.Contains(output, "level=ERROR") {
		t.Errorf("expected ERROR level for 500 status, got %q", output)
	}
}

func TestRequestLogger_QuietLogger(t *testing.T) {
	var buf bytes.Buffer
	h := newConsoleHierarchy(&buf, "text", "info")
	h.Configure(HTTPLoggerName).SetLevel(LevelWarn)
	h.UpdateLoggers()

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	RequestLoggerFor(h.Logger(HTTPLoggerName))(ok).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if buf.Len() != 0 {
		t.Errorf("expected no output for 200 at WARN, got %q", buf.String())
	}
}

func TestGetRequestID(t *testing.T) {
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := GetRequestID(r.Context())
		if reqID == "" {
			t.Error("expected request ID in context")
		}
		if len(reqID) != 8 {
			t.Errorf("expected 8-char request ID, got %d chars", len(reqID))
		}
	})

	wrapped := RequestLogger(testHandler)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()

	wrapped.ServeHTTP(rec, req)
}
