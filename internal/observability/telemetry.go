// Package observability wires OpenTelemetry traces and metrics for the
// admin HTTP surface and the capture path.
package observability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"

	"github.com/markb/logwatch/internal/log"
)

// LoggerName is the logger telemetry lifecycle events go to.
const LoggerName = "telemetry"

// shutdownTimeout is the maximum time Cleanup waits for exporters to flush.
const shutdownTimeout = 5 * time.Second

// Telemetry holds OTel providers and configuration. A zero Telemetry hands
// out no-op providers.
type Telemetry struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	metrics        *Metrics
	conn           *grpc.ClientConn

	shutdownOnce sync.Once
	shutdownErr  error
}

// Init initializes OpenTelemetry with the given configuration.
// Returns Telemetry manager, cleanup function, and error.
func Init(ctx context.Context, cfg *Config) (*Telemetry, func(), error) {
	tel := &Telemetry{config: cfg}
	if !cfg.ShouldEnable() {
		return tel, func() {}, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	if err := tel.start(ctx); err != nil {
		tel.Cleanup()
		return nil, nil, err
	}

	log.Named(LoggerName).Info("telemetry enabled",
		"exporter", cfg.Exporter,
		"traces", cfg.TracesEnabled,
		"metrics", cfg.MetricsEnabled,
	)
	return tel, tel.Cleanup, nil
}

func (t *Telemetry) start(ctx context.Context) error {
	cfg := t.config
	res, err := newResource(ctx, cfg)
	if err != nil {
		return err
	}

	if cfg.Exporter == ExporterOTLP && (cfg.TracesEnabled || cfg.MetricsEnabled) {
		if t.conn, err = dialCollector(cfg.Endpoint); err != nil {
			return err
		}
	}

	if cfg.TracesEnabled {
		if t.tracerProvider, err = newTracerProvider(ctx, cfg, res, t.conn); err != nil {
			return err
		}
		otel.SetTracerProvider(t.tracerProvider)
	}

	if cfg.MetricsEnabled {
		if t.meterProvider, err = newMeterProvider(ctx, cfg, res, t.conn); err != nil {
			return err
		}
		otel.SetMeterProvider(t.meterProvider)
		if t.metrics, err = InitMetrics(t.meterProvider); err != nil {
			return err
		}
	}
	return nil
}

// TracerProvider returns the tracer provider (or noop if disabled).
func (t *Telemetry) TracerProvider() trace.TracerProvider {
	if t.tracerProvider != nil {
		return t.tracerProvider
	}
	return tracenoop.NewTracerProvider()
}

// MeterProvider returns the meter provider (or noop if disabled).
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	if t.meterProvider != nil {
		return t.meterProvider
	}
	return metricnoop.NewMeterProvider()
}

// Metrics returns the metric instruments (or nil if disabled).
func (t *Telemetry) Metrics() *Metrics {
	return t.metrics
}

// Config returns the telemetry configuration.
func (t *Telemetry) Config() *Config {
	return t.config
}

// Shutdown flushes and closes all providers. Only the first call does work.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	t.shutdownOnce.Do(func() {
		var errs []error
		if t.tracerProvider != nil {
			if err := t.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider: %w", err))
			}
		}
		if t.meterProvider != nil {
			if err := t.meterProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("meter provider: %w", err))
			}
		}
		if t.conn != nil {
			if err := t.conn.Close(); err != nil {
				errs = append(errs, fmt.Errorf("collector connection: %w", err))
			}
		}
		t.shutdownErr = errors.Join(errs...)
	})
	return t.shutdownErr
}

// Cleanup is a convenience function for defer cleanup.
func (t *Telemetry) Cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := t.Shutdown(ctx); err != nil {
		log.Named(LoggerName).Warn("telemetry shutdown failed", "error", err)
	}
}
