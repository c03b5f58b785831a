// Package telemetry builds the OpenTelemetry meter provider for a session.
//
// Exporters:
//   - none: metrics are not recorded
//   - stdout: JSON metric dumps to a writer (stderr by default) at shutdown
//   - prometheus: text exposition written to a file at shutdown, for the
//     node_exporter textfile collector
//
// smtcache runs one session per process, so nothing is served over HTTP;
// every exporter flushes once when the session ends.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Exporter names.
const (
	ExporterNone       = "none"
	ExporterStdout     = "stdout"
	ExporterPrometheus = "prometheus"
)

var (
	// ErrUnknownExporter is returned for an unsupported exporter name.
	ErrUnknownExporter = errors.New("unknown metrics exporter")

	// ErrMissingMetricsFile is returned when the prometheus exporter has
	// nowhere to write.
	ErrMissingMetricsFile = errors.New("prometheus exporter requires metrics_file")
)

// Config selects and configures the exporter.
type Config struct {
	// Exporter is one of none, stdout, prometheus. Empty means none.
	Exporter string

	// MetricsFile is where the prometheus exporter writes at shutdown.
	MetricsFile string

	// Writer receives stdout exporter output. Default: os.Stderr.
	Writer io.Writer

	// ServiceVersion is attached to the resource.
	ServiceVersion string
}

// ValidateExporter checks if name is a supported exporter.
func ValidateExporter(name string) error {
	switch name {
	case "", ExporterNone, ExporterStdout, ExporterPrometheus:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownExporter, name)
	}
}

// Provider owns the meter provider and its shutdown.
type Provider struct {
	mp       metric.MeterProvider
	enabled  bool
	shutdown []func(context.Context) error
}

// Init builds a Provider for cfg.
func Init(_ context.Context, cfg Config) (*Provider, error) {
	if err := ValidateExporter(cfg.Exporter); err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", "smtcache"),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	switch cfg.Exporter {
	case ExporterStdout:
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		)
		return &Provider{mp: mp, enabled: true, shutdown: []func(context.Context) error{mp.Shutdown}}, nil

	case ExporterPrometheus:
		if cfg.MetricsFile == "" {
			return nil, ErrMissingMetricsFile
		}
		reg := promclient.NewRegistry()
		exp, err := promexporter.New(promexporter.WithRegisterer(reg))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exp),
		)
		// Gather before the reader shuts down.
		writeFile := func(context.Context) error {
			if err := promclient.WriteToTextfile(cfg.MetricsFile, reg); err != nil {
				return fmt.Errorf("write metrics file: %w", err)
			}
			return nil
		}
		return &Provider{mp: mp, enabled: true, shutdown: []func(context.Context) error{writeFile, mp.Shutdown}}, nil

	default:
		return &Provider{mp: noop.NewMeterProvider()}, nil
	}
}

// MeterProvider returns the provider instruments are created on.
func (p *Provider) MeterProvider() metric.MeterProvider {
	return p.mp
}

// Enabled reports whether an exporter other than none is configured.
func (p *Provider) Enabled() bool {
	return p.enabled
}

// Shutdown flushes exporters and releases the provider. Safe to call on
// a none provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.shutdown = nil
	return errors.Join(errs...)
}
