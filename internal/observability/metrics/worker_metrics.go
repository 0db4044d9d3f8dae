package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/premium/pkg/db"
	"gorm.io/gorm"
)

const (
	JobResultSucceeded = "succeeded"
	JobResultRetried   = "retried"
	JobResultFailed    = "failed"
)

const (
	JobReasonDeadlineExceeded     = "deadline_exceeded"
	JobReasonDBLockTimeout        = "db_lock_timeout"
	JobReasonSerializationFailure = "serialization_failure"
	JobReasonUniqueViolation      = "unique_violation"
	JobReasonUnknownTask          = "unknown_task"
	JobReasonUnknown              = "unknown"
)

// WorkerMetrics captures task runner health signals.
type WorkerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobResults     *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobErrors      *prometheus.CounterVec
	batchReserved  *prometheus.CounterVec
	ownerProcessed *prometheus.CounterVec
	pollLag        prometheus.Observer
}

var (
	workerMetricsOnce sync.Once
	workerMetrics     *WorkerMetrics
)

// Worker returns the process-wide worker metrics registered on the default
// Prometheus registerer.
func Worker(cfg Config) *WorkerMetrics {
	workerMetricsOnce.Do(func() {
		workerMetrics = newWorkerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return workerMetrics
}

func newWorkerMetrics(registerer prometheus.Registerer, cfg Config) *WorkerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "premium"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "premium_worker_job_runs_total",
		Help:        "Task executions started by task name.",
		ConstLabels: constLabels,
	}, []string{"task"})
	jobResults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "premium_worker_job_results_total",
		Help:        "Task executions by final result of the attempt.",
		ConstLabels: constLabels,
	}, []string{"task", "result"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "premium_worker_job_duration_seconds",
		Help:        "Task execution latency.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600, 1800},
		ConstLabels: constLabels,
	}, []string{"task"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "premium_worker_job_errors_total",
		Help:        "Task errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"task", "reason"})
	batchReserved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "premium_worker_jobs_reserved_total",
		Help:        "Jobs reserved from the queue by backend.",
		ConstLabels: constLabels,
	}, []string{"backend"})
	ownerProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "premium_reconcile_owners_processed_total",
		Help:        "Owners visited by default reconciliation runs.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	pollLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "premium_worker_poll_lag_seconds",
		Help:        "Worker poll loop lag beyond the configured interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		jobRuns,
		jobResults,
		jobDuration,
		jobErrors,
		batchReserved,
		ownerProcessed,
		pollLag,
	)

	return &WorkerMetrics{
		jobRuns:        jobRuns,
		jobResults:     jobResults,
		jobDuration:    jobDuration,
		jobErrors:      jobErrors,
		batchReserved:  batchReserved,
		ownerProcessed: ownerProcessed,
		pollLag:        pollLag,
	}
}

// ObserveJob records one attempt of a task.
func (m *WorkerMetrics) ObserveJob(task, result string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(task).Inc()
	m.jobResults.WithLabelValues(task, result).Inc()
	m.jobDuration.WithLabelValues(task).Observe(duration.Seconds())
	if err != nil {
		m.jobErrors.WithLabelValues(task, ClassifyJobReason(err)).Inc()
	}
}

// IncUnknownTask counts jobs whose name has no registered executor.
func (m *WorkerMetrics) IncUnknownTask(task string) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(task, JobReasonUnknownTask).Inc()
}

// AddReserved counts jobs handed to the worker by a queue backend.
func (m *WorkerMetrics) AddReserved(backend string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.batchReserved.WithLabelValues(backend).Add(float64(count))
}

// IncOwnerProcessed counts one owner visited by a reconciliation run.
func (m *WorkerMetrics) IncOwnerProcessed(outcome string) {
	if m == nil {
		return
	}
	m.ownerProcessed.WithLabelValues(outcome).Inc()
}

// ObservePollLag records lag between the scheduled tick and the actual poll.
func (m *WorkerMetrics) ObservePollLag(lag time.Duration) {
	if m == nil {
		return
	}
	if lag < 0 {
		lag = 0
	}
	m.pollLag.Observe(lag.Seconds())
}

// ClassifyJobReason maps task errors to low-cardinality reasons.
func ClassifyJobReason(err error) string {
	if err == nil {
		return JobReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return JobReasonDeadlineExceeded
	}
	if hasPGCode(err, "55P03") {
		return JobReasonDBLockTimeout
	}
	if errors.Is(err, db.ErrTransactionConflict) || db.IsSerializationFailure(err) {
		return JobReasonSerializationFailure
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || db.IsDuplicateKeyErr(err) {
		return JobReasonUniqueViolation
	}
	return JobReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
