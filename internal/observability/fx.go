package observability

import (
	"github.com/smallbiznis/premium/internal/observability/logger"
	"github.com/smallbiznis/premium/internal/observability/metrics"
	"github.com/smallbiznis/premium/pkg/telemetry"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		splitConfig,
		logger.New,
		logger.ProvideGormLogger,
		telemetry.NewTracerProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.Worker,
	),
	// The tracer provider registers itself globally; nothing else asks for it.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

// componentConfigs fans Config out to the logger, tracing and metrics
// constructors.
type componentConfigs struct {
	fx.Out

	Logger  logger.Config
	Tracing telemetry.Config
	Metrics metrics.Config
}

func splitConfig(cfg Config) componentConfigs {
	debug := cfg.Debug()
	return componentConfigs{
		Logger: logger.Config{
			ServiceName:         cfg.ServiceName,
			Environment:         cfg.Environment,
			Version:             cfg.Version,
			Level:               cfg.LogLevel,
			Format:              cfg.LogFormat,
			Output:              cfg.LogOutput,
			Debug:               debug,
			IncludeCaller:       true,
			IncludeStackOnError: debug,
		},
		Tracing: telemetry.Config{
			Enabled:          cfg.OtelEnabled,
			ServiceName:      cfg.ServiceName,
			ServiceVersion:   cfg.Version,
			Environment:      cfg.Environment,
			ExporterEndpoint: cfg.OtelExporterEndpoint,
			ExporterProtocol: cfg.OtelExporterProtocol,
			SamplingRatio:    cfg.OtelSamplingRatio,
		},
		Metrics: metrics.Config{
			Enabled:          cfg.OtelEnabled,
			ExporterEndpoint: cfg.OtelExporterEndpoint,
			ExporterProtocol: cfg.OtelExporterProtocol,
			ServiceName:      cfg.ServiceName,
			Environment:      cfg.Environment,
		},
	}
}
