package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Reconciliation outcomes per owner.
const (
	ReconcileUpdated = "updated"
	ReconcileSkipped = "skipped"
	ReconcileFailed  = "failed"
)

const exportInterval = 10 * time.Second

// Metrics exposes feature lifecycle instruments. A nil *Metrics records
// nothing.
type Metrics struct {
	assignmentsCreated metric.Int64Counter
	assignmentsRemoved metric.Int64Counter
	reconcileOwners    metric.Int64Counter
	reconcileRuns      metric.Float64Histogram
	eventsPublished    metric.Int64Counter
}

// NewProvider installs the global meter provider: a noop one when export is
// disabled, otherwise a periodic OTLP reader tagged with the service.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(context.Background(), resource.WithAttributes(
		attribute.String("service.name", serviceName(cfg)),
		attribute.String("deployment.environment", cfg.Environment),
	))
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{OnStop: provider.Shutdown})
	}
	if log != nil {
		log.Named("metrics").Info("exporting metrics",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}
	return provider, nil
}

func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(serviceName(cfg))
	m := &Metrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.assignmentsCreated, "premium_feature_assignments_created_total", "Assignments committed."},
		{&m.assignmentsRemoved, "premium_feature_assignments_removed_total", "Assignments removed."},
		{&m.reconcileOwners, "premium_feature_reconcile_owners_total", "Owners visited by default reconciliation, by outcome."},
		{&m.eventsPublished, "premium_feature_events_published_total", "Events written to the outbox."},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	runs, err := meter.Float64Histogram("premium_feature_reconcile_duration_seconds",
		metric.WithDescription("Duration of default reconciliation runs."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	m.reconcileRuns = runs
	return m, nil
}

func serviceName(cfg Config) string {
	if name := strings.TrimSpace(cfg.ServiceName); name != "" {
		return name
	}
	return "premium"
}

// RecordAssignmentCreated counts committed assignments.
func (m *Metrics) RecordAssignmentCreated(ctx context.Context, feature string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("feature", strings.TrimSpace(feature)))
	m.assignmentsCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordAssignmentRemoved counts committed removals.
func (m *Metrics) RecordAssignmentRemoved(ctx context.Context, feature string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("feature", strings.TrimSpace(feature)))
	m.assignmentsRemoved.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReconcileOwner counts one owner visited by a reconciliation run.
func (m *Metrics) RecordReconcileOwner(ctx context.Context, feature, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("feature", strings.TrimSpace(feature)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.reconcileOwners.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReconcileRun observes one finished reconciliation run. outcome is
// ReconcileFailed when any owner failed, ReconcileUpdated otherwise.
func (m *Metrics) RecordReconcileRun(ctx context.Context, feature string, elapsed time.Duration, failed int) {
	if m == nil {
		return
	}
	outcome := ReconcileUpdated
	if failed > 0 {
		outcome = ReconcileFailed
	}
	attrs := FilterAttributes(
		attribute.String("feature", strings.TrimSpace(feature)),
		attribute.String("outcome", outcome),
	)
	m.reconcileRuns.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
}

// RecordEventPublished counts notifications written to the outbox.
func (m *Metrics) RecordEventPublished(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("event_type", strings.TrimSpace(eventType)))
	m.eventsPublished.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"feature":    {},
	"outcome":    {},
	"event_type": {},
	"task":       {},
	"reason":     {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
