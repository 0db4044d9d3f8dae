package logger

import (
	"context"
	"fmt"
	"strings"

	obscontext "github.com/smallbiznis/premium/internal/observability/context"
	"github.com/smallbiznis/premium/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configures the zap logger.
type Config struct {
	ServiceName string
	Environment string
	Version     string
	Level       string
	Format      string
	// Output is a zap sink path. Commands print their results on stdout, so
	// logs default to stderr.
	Output string
	Debug  bool

	SamplingInitial     int
	SamplingThereafter  int
	IncludeCaller       bool
	IncludeStackOnError bool
}

// New builds the process logger, installs it as the zap global and flushes
// it when the application stops.
func New(lc fx.Lifecycle, cfg Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.Encoding = normalizeFormat(cfg.Format)
	zapCfg.EncoderConfig.TimeKey = "ts"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.DisableCaller = !cfg.IncludeCaller
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	output := strings.TrimSpace(cfg.Output)
	if output == "" {
		output = "stderr"
	}
	zapCfg.OutputPaths = []string{output}

	level := strings.TrimSpace(cfg.Level)
	if level == "" {
		level = "info"
	}
	if err := zapCfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	if cfg.Debug {
		zapCfg.Sampling = nil
	} else {
		zapCfg.Sampling = &zap.SamplingConfig{
			Initial:    positiveOr(cfg.SamplingInitial, 100),
			Thereafter: positiveOr(cfg.SamplingThereafter, 100),
		}
	}

	options := []zap.Option{}
	if cfg.IncludeStackOnError {
		options = append(options, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger, err := zapCfg.Build(options...)
	if err != nil {
		return nil, err
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "premium"
	}
	logger = logger.With(
		zap.String("service", serviceName),
		zap.String("env", strings.TrimSpace(cfg.Environment)),
		zap.String("version", strings.TrimSpace(cfg.Version)),
	)
	zap.ReplaceGlobals(logger)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				// Sync returns EINVAL on terminals.
				_ = logger.Sync()
				return nil
			},
		})
	}

	return logger, nil
}

func positiveOr(value, def int) int {
	if value > 0 {
		return value
	}
	return def
}

func normalizeFormat(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "console" {
		return "console"
	}
	return "json"
}

// FromContext returns the global logger enriched with the fields on ctx.
func FromContext(ctx context.Context) *zap.Logger {
	return WithContext(ctx, zap.L())
}

// WithContext enriches base with the job, feature, actor, correlation and
// trace fields carried by ctx.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if ctx == nil || base == nil {
		return base
	}

	fields := []zap.Field{}
	if jobID := obscontext.JobIDFromContext(ctx); jobID != "" {
		fields = append(fields,
			zap.String("job_id", jobID),
			zap.String("task", obscontext.TaskNameFromContext(ctx)),
		)
	}
	if feature := obscontext.FeatureFromContext(ctx); feature != "" {
		fields = append(fields, zap.String("feature", feature))
	}
	if actorType, actorID := obscontext.ActorFromContext(ctx); actorID != "" {
		fields = append(fields,
			zap.String("actor_type", actorType),
			zap.String("actor_id", actorID),
		)
	}
	if cid := correlation.ID(ctx); cid != "" {
		fields = append(fields, zap.String("correlation_id", cid))
	}
	fields = append(fields, traceFieldsFromContext(ctx)...)

	return base.With(fields...)
}

func traceFieldsFromContext(ctx context.Context) []zap.Field {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
