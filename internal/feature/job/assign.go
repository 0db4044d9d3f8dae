package job

import (
	"context"

	"github.com/smallbiznis/premium/internal/feature/domain"
	obscontext "github.com/smallbiznis/premium/internal/observability/context"
	"github.com/smallbiznis/premium/internal/observability/logger"
	dbpkg "github.com/smallbiznis/premium/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Assign grants a feature to an owner and materializes the result in one
// serializable transaction.
type Assign struct {
	deps
}

func NewAssign(p Params) *Assign {
	return &Assign{deps: newDeps(p, "feature.job.assign")}
}

func (j *Assign) Task() string { return domain.TaskAssign }

func (j *Assign) Execute(ctx context.Context, payload []byte) error {
	var p domain.AssignPayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	ctx = obscontext.WithFeature(ctx, p.Feature)
	if !j.manager.FeatureExists(p.Feature) {
		return classify(domain.ErrUnknownFeature)
	}

	var assignment *domain.Assignment
	err := dbpkg.Serializable(ctx, j.db, func(tx *gorm.DB) error {
		owner, err := j.resolver.Load(ctx, tx, p.Owner)
		if err != nil {
			return err
		}
		source, err := j.resolver.Load(ctx, tx, p.Source)
		if err != nil {
			return err
		}

		m := j.manager.WithTx(tx)
		assignment, err = m.Assign(ctx, p.Feature, owner, p.Params, source)
		if err != nil {
			return err
		}
		if err := m.UpdateOwner(ctx, p.Feature, owner); err != nil {
			return err
		}
		return j.bus.Publish(ctx, tx, domain.EventFeatureAssigned, domain.AssignedEvent{Assignment: assignment})
	})
	if err != nil {
		return classify(err)
	}

	j.metrics.RecordAssignmentCreated(ctx, p.Feature)
	logger.WithContext(ctx, j.log).Info("feature assigned",
		zap.String("owner", p.Owner.String()),
		zap.String("assignment_id", assignment.ID.String()),
		zap.Int("rating", assignment.Rating),
	)
	return nil
}
