package telemetry

import (
	"context"
	"testing"

	"github.com/smallbiznis/premium/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func TestSamplingRatio(t *testing.T) {
	assert.Equal(t, 1.0, samplingRatio(0))
	assert.Equal(t, 1.0, samplingRatio(-0.5))
	assert.Equal(t, 1.0, samplingRatio(3))
	assert.Equal(t, 0.25, samplingRatio(0.25))
}

func TestNormalizeProtocol(t *testing.T) {
	assert.Equal(t, protocolGRPC, normalizeProtocol(""))
	assert.Equal(t, protocolGRPC, normalizeProtocol("grpc/protobuf"))
	assert.Equal(t, protocolHTTP, normalizeProtocol(" HTTP "))
	assert.Empty(t, normalizeProtocol("thrift"))

	_, err := newExporter("thrift", "")
	assert.Error(t, err)
}

func TestSpansCarryCorrelationID(t *testing.T) {
	opts, err := providerOptions(Config{ServiceName: "premium", SamplingRatio: 1})
	require.NoError(t, err)

	recorder := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(append(opts, trace.WithSpanProcessor(recorder))...)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx := correlation.With(context.Background(), "cid-1")
	_, span := tp.Tracer("test").Start(ctx, "with-id")
	span.End()
	_, span = tp.Tracer("test").Start(context.Background(), "without-id")
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	assert.Contains(t, ended[0].Attributes(), attribute.String("correlation_id", "cid-1"))
	for _, kv := range ended[1].Attributes() {
		assert.NotEqual(t, attribute.Key("correlation_id"), kv.Key)
	}
}

func TestNewTracerProviderWithoutExport(t *testing.T) {
	tp, err := NewTracerProvider(nil, Config{ServiceName: "premium"}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, tp)
	assert.NoError(t, tp.Shutdown(context.Background()))
}
