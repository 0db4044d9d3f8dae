package job

import (
	"context"
	"fmt"
	"strconv"
	"time"

	accountdomain "github.com/smallbiznis/premium/internal/account/domain"
	"github.com/smallbiznis/premium/internal/feature/domain"
	"github.com/smallbiznis/premium/internal/jobqueue"
	"github.com/smallbiznis/premium/internal/jobqueue/queue"
	obscontext "github.com/smallbiznis/premium/internal/observability/context"
	"github.com/smallbiznis/premium/internal/observability/logger"
	"github.com/smallbiznis/premium/internal/observability/metrics"
	"github.com/smallbiznis/premium/internal/reference"
	dbpkg "github.com/smallbiznis/premium/pkg/db"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReconcileDefaults brings every candidate owner of a feature in line with a
// changed default. Each owner is handled in its own transaction; a failing
// owner is logged and skipped, and the run reports the combined error after
// announcing the change so the queue retries it.
type ReconcileDefaults struct {
	deps
}

func NewReconcileDefaults(p Params) *ReconcileDefaults {
	return &ReconcileDefaults{deps: newDeps(p, "feature.job.reconcile")}
}

func (j *ReconcileDefaults) Task() string { return domain.TaskReconcileDefaults }

// Summary counts the owners visited by one run.
type Summary struct {
	Updated int
	Skipped int
	Failed  int
}

func (j *ReconcileDefaults) Execute(ctx context.Context, payload []byte) error {
	var p domain.ReconcilePayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	def, err := j.manager.Definition(p.Feature)
	if err != nil {
		return classify(err)
	}
	strategy, err := j.manager.Strategy(p.Feature)
	if err != nil {
		return classify(err)
	}

	return queue.WithLock(ctx, j.locker, "feature.reconcile:"+p.Feature, reconcileLockTTL, func(ctx context.Context) error {
		_, err := j.Run(ctx, def, strategy, p)
		return err
	})
}

// Run visits every owner of every candidate kind of def.
func (j *ReconcileDefaults) Run(ctx context.Context, def domain.Definition, strategy domain.Strategy, p domain.ReconcilePayload) (Summary, error) {
	ctx = obscontext.WithFeature(ctx, def.Name)
	ctx = obscontext.WithActor(ctx, accountdomain.KindUser, strconv.FormatInt(p.UserID, 10))
	log := logger.WithContext(ctx, j.log)
	started := time.Now()
	oldRating := strategy.CalculateRating(p.OldConfig)

	var (
		summary Summary
		errs    error
	)
	for _, kind := range def.Candidates {
		err := j.resolver.Each(ctx, j.db, kind, j.batchSize, func(owner reference.Referenceable) error {
			if err := ctx.Err(); err != nil {
				return err
			}

			updated, err := j.reconcileOwner(ctx, def.Name, strategy, p.OldConfig, oldRating, owner)
			switch {
			case err != nil:
				summary.Failed++
				j.record(ctx, def.Name, metrics.ReconcileFailed)
				log.Warn("owner reconciliation failed", zap.String("owner", owner.Reference().String()), zap.Error(err))
				errs = multierr.Append(errs, err)
			case updated:
				summary.Updated++
				j.record(ctx, def.Name, metrics.ReconcileUpdated)
			default:
				summary.Skipped++
				j.record(ctx, def.Name, metrics.ReconcileSkipped)
			}
			return nil
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("enumerate %s: %w", kind, err))
			if ctx.Err() != nil {
				return summary, errs
			}
		}
	}

	err := j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return j.bus.Publish(ctx, tx, domain.EventFeatureDefaultConfigUpdated, domain.DefaultsUpdatedEvent{
			Feature: def.Name,
			UserID:  p.UserID,
			Updated: summary.Updated,
			Failed:  summary.Failed,
		})
	})
	errs = multierr.Append(errs, err)

	j.metrics.RecordReconcileRun(ctx, def.Name, time.Since(started), summary.Failed)
	log.Info("default reconciliation finished",
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	if errs != nil {
		return summary, classifyBatch(errs)
	}
	return summary, nil
}

func (j *ReconcileDefaults) reconcileOwner(ctx context.Context, feature string, strategy domain.Strategy, oldConfig domain.Params, oldRating int, owner reference.Referenceable) (bool, error) {
	updated := false
	err := dbpkg.Serializable(ctx, j.db, func(tx *gorm.DB) error {
		m := j.manager.WithTx(tx)

		newDefault, err := m.DefaultConfig(ctx, feature)
		if err != nil {
			return err
		}
		assignment, err := m.AssignmentFor(ctx, owner, feature)
		if err != nil {
			return err
		}

		verdict := domain.Decide(oldConfig, newDefault, oldRating, strategy.CalculateRating(newDefault), assignment)
		if verdict == domain.NoUpdate {
			return nil
		}
		updated = true
		return m.UpdateOwner(ctx, feature, owner)
	})
	if err != nil {
		return false, err
	}
	return updated, nil
}

func (j *ReconcileDefaults) record(ctx context.Context, feature, outcome string) {
	j.metrics.RecordReconcileOwner(ctx, feature, outcome)
	j.workerMetrics.IncOwnerProcessed(outcome)
}

// classifyBatch keeps a run retryable as long as one owner failed for a
// reason a retry could fix.
func classifyBatch(err error) error {
	for _, e := range multierr.Errors(err) {
		if !jobqueue.IsPermanent(classify(e)) {
			return err
		}
	}
	return jobqueue.Permanent(err)
}
