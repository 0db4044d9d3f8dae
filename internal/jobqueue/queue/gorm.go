package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/premium/internal/clock"
	"github.com/smallbiznis/premium/internal/jobqueue/domain"
	dbpkg "github.com/smallbiznis/premium/pkg/db"
	"github.com/smallbiznis/premium/pkg/telemetry/correlation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormQueue keeps jobs in the premium_jobs table.
type GormQueue struct {
	db    *gorm.DB
	genID *snowflake.Node
	clock clock.Clock
	lease time.Duration
}

func NewGormQueue(db *gorm.DB, genID *snowflake.Node, clk clock.Clock, lease time.Duration) *GormQueue {
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	return &GormQueue{db: db, genID: genID, clock: clk, lease: lease}
}

func (q *GormQueue) Push(ctx context.Context, task string, payload any) (snowflake.ID, error) {
	job, err := newJob(ctx, q.genID, q.clock.Now(), task, payload)
	if err != nil {
		return 0, err
	}
	if err := q.db.WithContext(ctx).Create(&job).Error; err != nil {
		return 0, err
	}
	return job.ID, nil
}

// Reserve leases up to limit jobs that are due, including running jobs whose
// lease has expired.
func (q *GormQueue) Reserve(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		return nil, nil
	}

	now := q.clock.Now()
	leasedUntil := now.Add(q.lease)

	var jobs []domain.Job
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stmt := tx.
			Where("(status = ? AND available_at <= ?) OR (status = ? AND leased_until <= ?)",
				domain.JobStatusPending, now, domain.JobStatusRunning, now).
			Order("available_at ASC").
			Order("id ASC").
			Limit(limit)
		if tx.Dialector.Name() != dbpkg.TypeSQLite {
			stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := stmt.Find(&jobs).Error; err != nil {
			return err
		}
		if len(jobs) == 0 {
			return nil
		}

		ids := make([]snowflake.ID, 0, len(jobs))
		for i := range jobs {
			ids = append(ids, jobs[i].ID)
			jobs[i].Status = domain.JobStatusRunning
			jobs[i].Attempts++
			jobs[i].LeasedUntil = &leasedUntil
			jobs[i].UpdatedAt = now
		}
		return tx.Model(&domain.Job{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"status":       domain.JobStatusRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"leased_until": leasedUntil,
				"updated_at":   now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// Extend pushes the lease of a running reservation out to until.
func (q *GormQueue) Extend(ctx context.Context, job domain.Job, until time.Time) error {
	return q.update(ctx, job, map[string]any{
		"leased_until": until,
		"updated_at":   q.clock.Now(),
	})
}

func (q *GormQueue) Complete(ctx context.Context, job domain.Job) error {
	return q.update(ctx, job, map[string]any{
		"status":       domain.JobStatusDone,
		"leased_until": nil,
		"last_error":   "",
		"updated_at":   q.clock.Now(),
	})
}

func (q *GormQueue) Retry(ctx context.Context, job domain.Job, at time.Time, cause error) error {
	return q.update(ctx, job, map[string]any{
		"status":       domain.JobStatusPending,
		"available_at": at,
		"leased_until": nil,
		"last_error":   errorText(cause),
		"updated_at":   q.clock.Now(),
	})
}

func (q *GormQueue) Fail(ctx context.Context, job domain.Job, cause error) error {
	return q.update(ctx, job, map[string]any{
		"status":       domain.JobStatusFailed,
		"leased_until": nil,
		"last_error":   errorText(cause),
		"updated_at":   q.clock.Now(),
	})
}

// Find returns a job by id, or nil when it does not exist.
func (q *GormQueue) Find(ctx context.Context, id snowflake.ID) (*domain.Job, error) {
	var jobs []domain.Job
	if err := q.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&jobs).Error; err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return &jobs[0], nil
}

// update writes values only while job's reservation is still current.
func (q *GormQueue) update(ctx context.Context, job domain.Job, values map[string]any) error {
	res := q.db.WithContext(ctx).Model(&domain.Job{}).
		Where("id = ? AND status = ? AND attempts = ?", job.ID, domain.JobStatusRunning, job.Attempts).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	current, err := q.Find(ctx, job.ID)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, job.ID)
	}
	return fmt.Errorf("%w: %s", domain.ErrLeaseLost, job.ID)
}

func newJob(ctx context.Context, genID *snowflake.Node, now time.Time, task string, payload any) (domain.Job, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return domain.Job{}, domain.ErrInvalidTask
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return domain.Job{}, fmt.Errorf("%w: %v", domain.ErrInvalidTask, err)
	}
	return domain.Job{
		ID:            genID.Generate(),
		Task:          task,
		Payload:       datatypes.JSON(raw),
		Status:        domain.JobStatusPending,
		AvailableAt:   now,
		CorrelationID: correlation.ID(ctx),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

const maxErrorText = 2000

// errorText bounds a failure message without splitting a UTF-8 sequence.
func errorText(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) <= maxErrorText {
		return msg
	}
	cut := maxErrorText
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}
