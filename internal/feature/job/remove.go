package job

import (
	"context"
	"strconv"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/premium/internal/account/domain"
	"github.com/smallbiznis/premium/internal/feature/domain"
	obscontext "github.com/smallbiznis/premium/internal/observability/context"
	"github.com/smallbiznis/premium/internal/observability/logger"
	dbpkg "github.com/smallbiznis/premium/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Remove deletes one assignment and re-materializes its owner. A missing
// assignment is treated as already removed.
type Remove struct {
	deps
}

func NewRemove(p Params) *Remove {
	return &Remove{deps: newDeps(p, "feature.job.remove")}
}

func (j *Remove) Task() string { return domain.TaskRemove }

func (j *Remove) Execute(ctx context.Context, payload []byte) error {
	var p domain.RemovePayload
	if err := decode(payload, &p); err != nil {
		return err
	}
	ctx = obscontext.WithActor(ctx, accountdomain.KindUser, strconv.FormatInt(p.UserID, 10))
	log := logger.WithContext(ctx, j.log)

	var removed *domain.Assignment
	err := dbpkg.Serializable(ctx, j.db, func(tx *gorm.DB) error {
		assignment, err := j.repo.FindByID(ctx, tx, snowflake.ID(p.AssignmentID))
		if err != nil || assignment == nil {
			return err
		}

		ownerRef, err := assignment.OwnerRef()
		if err != nil {
			return err
		}
		sourceRef, err := assignment.SourceRef()
		if err != nil {
			return err
		}
		owner, err := j.resolver.Load(ctx, tx, ownerRef)
		if err != nil {
			return err
		}

		if err := j.repo.Delete(ctx, tx, assignment.ID); err != nil {
			return err
		}
		if err := j.manager.WithTx(tx).UpdateOwner(ctx, assignment.Feature, owner); err != nil {
			return err
		}

		removed = assignment
		return j.bus.Publish(ctx, tx, domain.EventFeatureRemoved, domain.RemovedEvent{
			Owner:   ownerRef,
			Feature: assignment.Feature,
			Params:  assignment.Parameters(),
			Source:  sourceRef,
			UserID:  p.UserID,
		})
	})
	if err != nil {
		return classify(err)
	}

	if removed == nil {
		log.Debug("assignment already gone", zap.Int64("assignment_id", p.AssignmentID))
		return nil
	}
	j.metrics.RecordAssignmentRemoved(ctx, removed.Feature)
	log.Info("feature removed",
		zap.String("feature", removed.Feature),
		zap.String("assignment_id", removed.ID.String()),
	)
	return nil
}
