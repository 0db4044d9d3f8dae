package observability

import (
	"testing"

	"github.com/smallbiznis/premium/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaultsFromAppConfig(t *testing.T) {
	cfg := LoadConfig(config.Config{AppName: "premium", Environment: "production", AppVersion: "1.2.3", OTLPEndpoint: "collector:4317"})

	assert.Equal(t, "premium", cfg.ServiceName)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "stderr", cfg.LogOutput)
	assert.Equal(t, "collector:4317", cfg.OtelExporterEndpoint)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.False(t, cfg.OtelEnabled)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigReadsEnvironment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_OUTPUT", "stdout")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "HTTP")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.5")

	cfg := LoadConfig(config.Config{})

	assert.Equal(t, "premium", cfg.ServiceName)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "stdout", cfg.LogOutput)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.InDelta(t, 0.5, cfg.OtelSamplingRatio, 1e-9)
	assert.True(t, cfg.Debug())
}

func TestSplitConfigSharesServiceIdentity(t *testing.T) {
	out := splitConfig(Config{
		ServiceName:          "premium",
		Environment:          "staging",
		Version:              "2.0.0",
		LogOutput:            "stderr",
		OtelEnabled:          true,
		OtelExporterEndpoint: "collector:4317",
		OtelExporterProtocol: "grpc",
	})

	assert.Equal(t, "premium", out.Logger.ServiceName)
	assert.Equal(t, "stderr", out.Logger.Output)
	assert.False(t, out.Logger.Debug)
	assert.Equal(t, "2.0.0", out.Tracing.ServiceVersion)
	assert.True(t, out.Tracing.Enabled)
	assert.Equal(t, "collector:4317", out.Metrics.ExporterEndpoint)
	assert.Equal(t, "staging", out.Metrics.Environment)
}
