package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/premium/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	protocolGRPC = "grpc"
	protocolHTTP = "http"

	exporterDialTimeout = 5 * time.Second
)

// Config configures span export.
type Config struct {
	Enabled          bool
	ServiceName      string
	ServiceVersion   string
	Environment      string
	ExporterEndpoint string
	ExporterProtocol string
	SamplingRatio    float64
}

// NewTracerProvider installs the global tracer provider. Spans are always
// stamped with the correlation id of their context; they are only exported
// when cfg.Enabled is set.
func NewTracerProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (*trace.TracerProvider, error) {
	opts, err := providerOptions(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Enabled {
		exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
		if err != nil {
			return nil, err
		}
		opts = append(opts, trace.WithBatcher(exporter))
	}

	tp := trace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	log = log.Named("telemetry")
	if lc != nil {
		lc.Append(fx.Hook{OnStop: func(ctx context.Context) error {
			log.Debug("flushing spans")
			return tp.Shutdown(ctx)
		}})
	}
	log.Info("tracer ready",
		zap.Bool("export", cfg.Enabled),
		zap.String("protocol", normalizeProtocol(cfg.ExporterProtocol)),
		zap.Float64("sampling_ratio", samplingRatio(cfg.SamplingRatio)),
	)
	return tp, nil
}

func providerOptions(cfg Config) ([]trace.TracerProviderOption, error) {
	res, err := resource.New(context.Background(), resource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	))
	if err != nil {
		return nil, err
	}
	return []trace.TracerProviderOption{
		trace.WithResource(res),
		trace.WithSpanProcessor(correlationStamper{}),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(samplingRatio(cfg.SamplingRatio)))),
	}, nil
}

// samplingRatio maps out-of-range ratios to "sample everything".
func samplingRatio(ratio float64) float64 {
	if ratio <= 0 || ratio > 1 {
		return 1
	}
	return ratio
}

func normalizeProtocol(protocol string) string {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc", "grpc/protobuf":
		return protocolGRPC
	case "http", "http/protobuf":
		return protocolHTTP
	default:
		return ""
	}
}

func newExporter(protocol, endpoint string) (trace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), exporterDialTimeout)
	defer cancel()

	switch normalizeProtocol(protocol) {
	case protocolGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))
		}
		return otlptracegrpc.New(ctx, opts...)
	case protocolHTTP:
		opts := []otlptracehttp.Option{otlptracehttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
		}
		return otlptracehttp.New(ctx, opts...)
	}
	return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
}

// correlationStamper copies the context correlation id onto every span.
type correlationStamper struct{}

func (correlationStamper) OnStart(ctx context.Context, s trace.ReadWriteSpan) {
	if cid := correlation.ID(ctx); cid != "" {
		s.SetAttributes(attribute.String("correlation_id", cid))
	}
}

func (correlationStamper) OnEnd(trace.ReadOnlySpan)         {}
func (correlationStamper) Shutdown(context.Context) error   { return nil }
func (correlationStamper) ForceFlush(context.Context) error { return nil }
