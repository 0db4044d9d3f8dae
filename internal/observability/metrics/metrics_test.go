package metrics

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("feature", "storageQuota"),
		attribute.String("owner_id", "456"),
		attribute.String("outcome", ReconcileUpdated),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "feature" && attrs[1].Key != "feature" {
		t.Fatalf("expected feature to be retained")
	}
	if attrs[0].Key != "outcome" && attrs[1].Key != "outcome" {
		t.Fatalf("expected outcome to be retained")
	}
}

func TestRecordReconcileOwner(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(Config{ServiceName: "premium"}, provider)
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	ctx := context.Background()
	m.RecordReconcileOwner(ctx, "storageQuota", ReconcileUpdated)
	m.RecordReconcileOwner(ctx, "storageQuota", ReconcileUpdated)
	m.RecordReconcileOwner(ctx, "storageQuota", ReconcileFailed)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	totals := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, item := range scope.Metrics {
			if item.Name != "premium_feature_reconcile_owners_total" {
				continue
			}
			sum, ok := item.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected data type %T", item.Data)
			}
			for _, point := range sum.DataPoints {
				outcome, _ := point.Attributes.Value("outcome")
				totals[outcome.AsString()] += point.Value
			}
		}
	}

	if totals[ReconcileUpdated] != 2 {
		t.Fatalf("expected 2 updated, got %d", totals[ReconcileUpdated])
	}
	if totals[ReconcileFailed] != 1 {
		t.Fatalf("expected 1 failed, got %d", totals[ReconcileFailed])
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordAssignmentCreated(context.Background(), "adFree")
	m.RecordEventPublished(context.Background(), "featureAssigned")
}

func TestRecordReconcileRun(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(Config{}, provider)
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	ctx := context.Background()
	m.RecordReconcileRun(ctx, "storageQuota", 2*time.Second, 0)
	m.RecordReconcileRun(ctx, "storageQuota", time.Second, 3)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	counts := map[string]uint64{}
	for _, scope := range rm.ScopeMetrics {
		if scope.Scope.Name != "premium" {
			t.Fatalf("expected default meter name, got %q", scope.Scope.Name)
		}
		for _, item := range scope.Metrics {
			if item.Name != "premium_feature_reconcile_duration_seconds" {
				continue
			}
			hist, ok := item.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("unexpected data type %T", item.Data)
			}
			for _, point := range hist.DataPoints {
				outcome, _ := point.Attributes.Value("outcome")
				counts[outcome.AsString()] += point.Count
			}
		}
	}

	if counts[ReconcileUpdated] != 1 || counts[ReconcileFailed] != 1 {
		t.Fatalf("expected one run per outcome, got %v", counts)
	}
}
