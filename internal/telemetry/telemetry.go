// Package telemetry builds the OpenTelemetry MeterProvider that carries the
// monitor gauge to the configured exporter.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Supported exporters.
const (
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)

// ErrUnknownExporter is returned for an exporter name not listed above.
var ErrUnknownExporter = errors.New("unknown metrics exporter")

// ValidExporter reports whether name selects a supported exporter.
// The empty string means none.
func ValidExporter(name string) bool {
	switch name {
	case ExporterPrometheus, ExporterOTLP, ExporterStdout, ExporterNone, "":
		return true
	}
	return false
}

// Config selects the exporter and describes the service resource.
type Config struct {
	Exporter     string
	ServiceName  string
	Version      string
	OTLPEndpoint string
}

// Option adjusts how exporters are built.
type Option func(*options)

type options struct {
	registerer promclient.Registerer
	writer     io.Writer
}

// WithRegisterer registers the Prometheus exporter's collector with reg
// instead of the global default registerer.
func WithRegisterer(reg promclient.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithWriter directs the stdout exporter to w.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// Provider owns the SDK MeterProvider.
type Provider struct {
	mp      *sdkmetric.MeterProvider
	service string
}

// New builds a MeterProvider for cfg.Exporter. With "none" the provider has
// no reader and observable callbacks are never invoked.
func New(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	o := options{writer: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	service := cfg.ServiceName
	if service == "" {
		service = "heartbeat"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(service),
			semconv.ServiceVersion(cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	reader, err := newReader(ctx, cfg, o)
	if err != nil {
		return nil, err
	}

	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if reader != nil {
		mpOpts = append(mpOpts, sdkmetric.WithReader(reader))
	}
	return &Provider{mp: sdkmetric.NewMeterProvider(mpOpts...), service: service}, nil
}

func newReader(ctx context.Context, cfg Config, o options) (sdkmetric.Reader, error) {
	switch cfg.Exporter {
	case ExporterPrometheus:
		var promOpts []otelprom.Option
		if o.registerer != nil {
			promOpts = append(promOpts, otelprom.WithRegisterer(o.registerer))
		}
		exp, err := otelprom.New(promOpts...)
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		return exp, nil

	case ExporterOTLP:
		var grpcOpts []otlpmetricgrpc.Option
		if cfg.OTLPEndpoint != "" {
			grpcOpts = append(grpcOpts, otlpmetricgrpc.WithEndpointURL(cfg.OTLPEndpoint))
		} else if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" && os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT") == "" {
			return nil, errors.New("otlp endpoint not configured: set metrics.otlp_endpoint or OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		exp, err := otlpmetricgrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	case ExporterStdout:
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(o.writer))
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	case ExporterNone, "":
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, cfg.Exporter)
	}
}

// Meter returns the service meter.
func (p *Provider) Meter() metric.Meter { return p.mp.Meter(p.service) }

// MeterProvider exposes the underlying provider.
func (p *Provider) MeterProvider() *sdkmetric.MeterProvider { return p.mp }

// Shutdown flushes pending exports and releases the readers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if err := p.mp.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown meter provider: %w", err)
	}
	return nil
}
