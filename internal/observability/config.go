package observability

import (
	"fmt"
	"io"
)

// Version is reported as the service version on exported telemetry.
const Version = "0.1.0"

// Exporter names accepted in Config.Exporter.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Config holds OpenTelemetry configuration.
type Config struct {
	// Exporter type: "none", "stdout", or "otlp"
	Exporter string

	// OTLP gRPC endpoint (for otlp exporter)
	Endpoint string

	// Service name for telemetry
	ServiceName string

	// Trace sampling rate (0.0 to 1.0)
	SampleRate float64

	MetricsEnabled bool
	TracesEnabled  bool

	// Writer receives stdout exporter output. Nil means os.Stderr.
	Writer io.Writer
}

// NewConfig returns default configuration.
func NewConfig() *Config {
	return &Config{
		Exporter:    ExporterNone,
		Endpoint:    "localhost:4317",
		ServiceName: "logwatch",
		SampleRate:  0.1,
	}
}

// ShouldEnable returns true if OTel should be initialized.
func (c *Config) ShouldEnable() bool {
	return c.Exporter != ExporterNone && c.Exporter != ""
}

// Validate checks the exporter name and sample rate.
func (c *Config) Validate() error {
	switch c.Exporter {
	case ExporterNone, ExporterStdout, ExporterOTLP, "":
	default:
		return fmt.Errorf("unknown exporter: %s", c.Exporter)
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("sample rate %v out of range [0, 1]", c.SampleRate)
	}
	if c.Exporter == ExporterOTLP && c.Endpoint == "" {
		return fmt.Errorf("otlp exporter requires an endpoint")
	}
	return nil
}
