package event

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/premium/internal/clock"
	"github.com/smallbiznis/premium/internal/observability/metrics"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Record is an event persisted in the outbox table for downstream
// consumers.
type Record struct {
	ID        snowflake.ID   `gorm:"primaryKey"`
	EventType string         `gorm:"type:varchar(128);not null;index"`
	Payload   datatypes.JSON `gorm:"not null"`
	Published bool           `gorm:"not null;default:false;index"`
	CreatedAt time.Time      `gorm:"not null"`
}

func (Record) TableName() string { return "premium_feature_events" }

type OutboxParams struct {
	fx.In

	GenID   *snowflake.Node
	Clock   clock.Clock
	Metrics *metrics.Metrics `optional:"true"`
}

type Outbox struct {
	genID   *snowflake.Node
	clock   clock.Clock
	metrics *metrics.Metrics
}

func NewOutbox(p OutboxParams) *Outbox {
	return &Outbox{genID: p.GenID, clock: p.Clock, metrics: p.Metrics}
}

// Handle writes e to the outbox using the publisher's transaction, so a
// rollback discards the record together with the change it describes.
func (o *Outbox) Handle(ctx context.Context, tx *gorm.DB, e Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}

	record := Record{
		ID:        o.genID.Generate(),
		EventType: e.Name,
		Payload:   datatypes.JSON(payload),
		CreatedAt: o.clock.Now(),
	}
	if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
		return err
	}
	o.metrics.RecordEventPublished(ctx, e.Name)
	return nil
}

// Subscription registers the outbox for every event.
func (o *Outbox) Subscription() Subscription {
	return Subscription{Name: Wildcard, Listener: o.Handle}
}
