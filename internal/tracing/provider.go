// Package tracing provides OpenTelemetry initialization and W3C trace context propagation.
package tracing

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/torosent/pacefire/internal/config"
)

const instrumentationName = "pacefire"

// Resource attribute keys describing the load test a span belongs to.
const (
	RunIDKey       = attribute.Key("pacefire.run.id")
	RunTargetKey   = attribute.Key("pacefire.run.target")
	RunRateKey     = attribute.Key("pacefire.run.rate")
	RunArrivalKey  = attribute.Key("pacefire.run.arrival_model")
	RunDurationKey = attribute.Key("pacefire.run.duration_seconds")
)

const otlpEndpointEnv = "OTEL_EXPORTER_OTLP_ENDPOINT"

// Run describes the load test whose requests are traced.
type Run struct {
	ID              string
	Target          string
	Rate            float64
	ArrivalModel    string
	DurationSeconds float64
}

func (r Run) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		RunTargetKey.String(r.Target),
		RunRateKey.Float64(r.Rate),
		RunDurationKey.Float64(r.DurationSeconds),
	}
	if r.ID != "" {
		attrs = append(attrs, RunIDKey.String(r.ID))
	}
	if r.ArrivalModel != "" {
		attrs = append(attrs, RunArrivalKey.String(r.ArrivalModel))
	}
	return attrs
}

// Provider holds the tracer used for request spans.
//
// A Provider is in one of three modes: inactive (no spans, no headers),
// propagate-only (spans are created so a traceparent can be injected but
// nothing is exported) or exporting.
type Provider struct {
	tp        *sdktrace.TracerProvider
	propagate bool
	exporting bool
}

// Init builds a Provider for run. Spans are exported when an OTLP endpoint is
// configured, either in cfg or through OTEL_EXPORTER_OTLP_ENDPOINT.
func Init(ctx context.Context, cfg config.TracingConfig, run Run) (*Provider, error) {
	if cfg.SampleRate < 0 || cfg.SampleRate > 1 {
		return nil, fmt.Errorf("tracing sample_rate must be between 0.0 and 1.0, got %g", cfg.SampleRate)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = os.Getenv(otlpEndpointEnv)
	}
	if endpoint == "" && !cfg.ShouldPropagate() {
		return &Provider{}, nil
	}

	res, err := newResource(ctx, cfg.ServiceName, run)
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(newSampler(cfg.SampleRate))),
	}
	if endpoint != "" {
		exporter, err := newExporter(ctx, cfg.Protocol, endpoint, cfg.Insecure)
		if err != nil {
			return nil, fmt.Errorf("tracing exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{
		tp:        tp,
		propagate: cfg.ShouldPropagate(),
		exporting: endpoint != "",
	}, nil
}

// Active reports whether requests should be wrapped in spans.
func (p *Provider) Active() bool {
	return p != nil && p.tp != nil
}

// Exporting reports whether finished spans leave the process.
func (p *Provider) Exporting() bool {
	return p != nil && p.exporting
}

// Tracer returns the request tracer, or a no-op tracer when inactive.
func (p *Provider) Tracer() trace.Tracer {
	if !p.Active() {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return p.tp.Tracer(instrumentationName)
}

// ShouldPropagate returns whether W3C trace headers should be injected.
func (p *Provider) ShouldPropagate() bool {
	return p.Active() && p.propagate
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Active() {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

func newResource(ctx context.Context, serviceName string, run Run) (*resource.Resource, error) {
	if serviceName == "" {
		serviceName = os.Getenv("OTEL_SERVICE_NAME")
	}
	if serviceName == "" {
		serviceName = instrumentationName
	}
	attrs := append([]attribute.KeyValue{semconv.ServiceName(serviceName)}, run.attributes()...)
	return resource.New(ctx, resource.WithAttributes(attrs...))
}

func newSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.NeverSample()
	case rate >= 1:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

func newExporter(ctx context.Context, protocol, endpoint string, plaintext bool) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(protocol) {
	case "", "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if plaintext {
			opts = append(opts,
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			)
		}
		return otlptracegrpc.New(ctx, opts...)
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if plaintext {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q: use \"grpc\" or \"http\"", protocol)
	}
}
