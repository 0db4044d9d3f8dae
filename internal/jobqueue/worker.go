package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	retry "github.com/sethvargo/go-retry"
	"github.com/smallbiznis/premium/internal/clock"
	"github.com/smallbiznis/premium/internal/jobqueue/domain"
	obscontext "github.com/smallbiznis/premium/internal/observability/context"
	"github.com/smallbiznis/premium/internal/observability/logger"
	"github.com/smallbiznis/premium/internal/observability/metrics"
	"github.com/smallbiznis/premium/pkg/telemetry/correlation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const tracerName = "github.com/smallbiznis/premium/internal/jobqueue"

type Params struct {
	fx.In

	Log       *zap.Logger
	Queue     domain.Queue
	Clock     clock.Clock
	Executors []domain.Executor      `group:"jobqueue.executors"`
	Config    Config                 `optional:"true"`
	Metrics   *metrics.WorkerMetrics `optional:"true"`
}

// Worker polls the queue and dispatches jobs to executors by task name.
type Worker struct {
	log       *zap.Logger
	queue     domain.Queue
	clock     clock.Clock
	executors map[string]domain.Executor
	cfg       Config
	metrics   *metrics.WorkerMetrics
	tracer    trace.Tracer
}

func NewWorker(p Params) *Worker {
	executors := make(map[string]domain.Executor, len(p.Executors))
	for _, exec := range p.Executors {
		if exec == nil {
			continue
		}
		executors[exec.Task()] = exec
	}
	return &Worker{
		log:       p.Log.Named("jobqueue.worker"),
		queue:     p.Queue,
		clock:     p.Clock,
		executors: executors,
		cfg:       p.Config.withDefaults(),
		metrics:   p.Metrics,
		tracer:    otel.Tracer(tracerName),
	}
}

// RunForever polls until ctx is cancelled. It returns only after the job in
// flight, if any, has finished and been recorded.
func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	expected := w.clock.Now()
	for {
		w.metrics.ObservePollLag(w.clock.Now().Sub(expected))
		for {
			n, err := w.RunOnce(ctx)
			if err != nil {
				w.log.Warn("job poll failed", zap.Error(err))
				break
			}
			if n < w.cfg.BatchSize || ctx.Err() != nil {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expected = w.clock.Now()
		}
	}
}

// RunOnce runs up to BatchSize due jobs and returns how many it reserved.
// Jobs are leased one at a time so none waits out its lease behind another.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	n := 0
	for n < w.cfg.BatchSize && ctx.Err() == nil {
		jobs, err := w.queue.Reserve(ctx, 1)
		if err != nil {
			return n, err
		}
		if len(jobs) == 0 {
			break
		}
		n++
		w.metrics.AddReserved(w.cfg.Backend, 1)

		job := jobs[0]
		if err := w.process(ctx, job); err != nil {
			fields := []zap.Field{
				zap.String("job_id", job.ID.String()),
				zap.String("task", job.Task),
				zap.Error(err),
			}
			if errors.Is(err, domain.ErrLeaseLost) {
				w.log.Warn("job was handed to another worker", fields...)
				continue
			}
			w.log.Error("job bookkeeping failed", fields...)
		}
	}
	return n, nil
}

func (w *Worker) process(parent context.Context, job domain.Job) error {
	ctx := obscontext.WithJob(parent, job.ID.String(), job.Task)
	ctx, _ = correlation.Continue(ctx, job.CorrelationID)
	ctx, span := w.tracer.Start(ctx, "job "+job.Task, trace.WithAttributes(
		attribute.String("job.id", job.ID.String()),
		attribute.String("job.task", job.Task),
		attribute.Int("job.attempt", job.Attempts),
	))
	defer span.End()

	log := logger.WithContext(ctx, w.log).With(zap.Int("attempt", job.Attempts))
	// Outcomes are recorded even when the worker is shutting down.
	book := context.WithoutCancel(ctx)

	exec, ok := w.executors[job.Task]
	if !ok {
		w.metrics.IncUnknownTask(job.Task)
		err := fmt.Errorf("%w: %s", domain.ErrUnknownTask, job.Task)
		span.SetStatus(codes.Error, err.Error())
		log.Error("no executor for task")
		return w.queue.Fail(book, job, err)
	}

	start := w.clock.Now()
	err := w.execute(ctx, exec, job)
	duration := w.clock.Now().Sub(start)

	if err == nil {
		w.metrics.ObserveJob(job.Task, metrics.JobResultSucceeded, duration, nil)
		log.Debug("job completed", zap.Duration("duration", duration))
		return w.queue.Complete(book, job)
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if IsPermanent(err) || job.Attempts >= w.cfg.MaxAttempts {
		w.metrics.ObserveJob(job.Task, metrics.JobResultFailed, duration, err)
		log.Error("job failed", zap.Bool("permanent", IsPermanent(err)), zap.Error(err))
		return w.queue.Fail(book, job, err)
	}

	delay := w.backoff(job.Attempts)
	w.metrics.ObserveJob(job.Task, metrics.JobResultRetried, duration, err)
	log.Warn("job will be retried", zap.Duration("delay", delay), zap.Error(err))
	return w.queue.Retry(book, job, w.clock.Now().Add(delay), err)
}

func (w *Worker) execute(ctx context.Context, exec domain.Executor, job domain.Job) (err error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	stop := w.heartbeat(ctx, cancel, job)
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			err = Permanent(fmt.Errorf("executor panic: %v", r))
		}
	}()
	return exec.Execute(ctx, job.Payload)
}

// heartbeat renews job's lease every Heartbeat until the returned stop func
// is called. If another worker has taken the job over, cancel aborts the
// local run.
func (w *Worker) heartbeat(ctx context.Context, cancel context.CancelFunc, job domain.Job) (stop func()) {
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(w.cfg.Heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			err := w.queue.Extend(ctx, job, w.clock.Now().Add(w.cfg.Lease))
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrLeaseLost), errors.Is(err, domain.ErrJobNotFound):
				logger.WithContext(ctx, w.log).Warn("lease lost, abandoning job", zap.Error(err))
				cancel()
				return
			case ctx.Err() == nil:
				logger.WithContext(ctx, w.log).Warn("lease renewal failed", zap.Error(err))
			}
		}
	}()
	return func() {
		close(done)
		<-exited
	}
}

// backoff returns the delay before the next attempt after attempt failures.
func (w *Worker) backoff(attempt int) time.Duration {
	b := retry.WithCappedDuration(w.cfg.MaxBackoff, retry.NewExponential(w.cfg.BaseBackoff))
	delay := w.cfg.BaseBackoff
	for i := 0; i < attempt; i++ {
		next, stop := b.Next()
		if stop {
			break
		}
		delay = next
	}
	return delay
}

// Executors lists the registered task names.
func (w *Worker) Executors() []string {
	names := make([]string, 0, len(w.executors))
	for name := range w.executors {
		names = append(names, name)
	}
	return names
}
