// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/crypto/acme/autocert"

	"github.com/markb/logwatch/internal/admin"
	"github.com/markb/logwatch/internal/auth"
	"github.com/markb/logwatch/internal/log"
	"github.com/markb/logwatch/internal/observability"
	"github.com/markb/logwatch/internal/watcher"
)

// LoggerName is the logger the server reports lifecycle events on.
const LoggerName = "server"

// Config holds server configuration.
type Config struct {
	JWTSecret   string
	CORSOrigins []string
	// Telemetry instruments requests when non-nil.
	Telemetry *observability.Telemetry
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{CORSOrigins: []string{"*"}}
}

// Server exposes a Watcher over HTTP.
type Server struct {
	router       *chi.Mux
	keys         *auth.Service
	watcher      *watcher.Watcher
	adminHandler *admin.Handler
	telemetry    *observability.Telemetry
	corsOrigins  []string
	logger       *slog.Logger

	// HTTP server for graceful shutdown
	httpServer *http.Server

	// HTTPS fields
	httpsServer  *http.Server
	httpRedirect *http.Server
	autocertMgr  *autocert.Manager
}

// New creates a server for w.
func New(w *watcher.Watcher, cfg Config) *Server {
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	s := &Server{
		router:       chi.NewRouter(),
		keys:         auth.NewService(cfg.JWTSecret),
		watcher:      w,
		adminHandler: admin.NewHandler(w),
		telemetry:    cfg.Telemetry,
		corsOrigins:  cfg.CORSOrigins,
		logger:       log.Named(LoggerName),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// CORS middleware for the browser admin UI
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "PUT", "OPTIONS", "HEAD"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "apikey"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if s.telemetry != nil {
		s.router.Use(observability.HTTPMiddleware(s.telemetry, s.telemetry.Config().ServiceName))
	}
	s.router.Use(log.RequestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.SetHeader("Content-Type", "application/json"))

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/admin/v1/logging", func(r chi.Router) {
		r.Use(s.apiKeyMiddleware)

		r.Get("/levels", s.adminHandler.ListLevels)
		r.Get("/loggers", s.adminHandler.ListLoggers)
		r.Get("/threshold", s.adminHandler.GetThreshold)
		r.Get("/history", s.adminHandler.History)
		r.Get("/stream", s.adminHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(s.requireWrite)
			r.Put("/loggers/{name}", s.adminHandler.SetLoggerLevel)
			r.Put("/threshold", s.adminHandler.SetThreshold)
		})
	})
}

func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]any{
		"status":     "healthy",
		"watcher":    s.watcher.Name(),
		"registered": s.watcher.Registered(),
	})
}

func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("listening", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// ListenAndServeTLS serves HTTPS on cfg.Addr with a Let's Encrypt
// certificate for cfg.Domain. A plain HTTP server on cfg.HTTPAddr answers
// ACME challenges and redirects everything else to HTTPS.
func (s *Server) ListenAndServeTLS(cfg HTTPSConfig) error {
	cfg = cfg.withDefaults()
	if err := ValidateDomain(cfg.Domain); err != nil {
		return err
	}

	s.autocertMgr = NewAutocertManager(cfg.Domain, cfg.CertDir)
	s.httpRedirect = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.autocertMgr.HTTPHandler(HTTPRedirectHandler(cfg.Domain)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpsServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		TLSConfig:         NewTLSConfig(s.autocertMgr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpRedirect.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP redirect server failed", "addr", cfg.HTTPAddr, "error", err)
		}
	}()

	s.logger.Info("listening", "addr", cfg.Addr, "domain", cfg.Domain)
	return s.httpsServer.ListenAndServeTLS("", "")
}

// Shutdown gracefully shuts down the HTTP server(s).
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	// Shutdown HTTPS server if running
	if s.httpsServer != nil {
		if err := s.httpsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTPS server: %w", err))
		}
	}

	// Shutdown HTTP redirect server if running
	if s.httpRedirect != nil {
		if err := s.httpRedirect.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP redirect server: %w", err))
		}
	}

	// Shutdown main HTTP server if running (non-TLS mode)
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP server: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
