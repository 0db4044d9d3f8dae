package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/premium/internal/reference"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OwnerLimit is the materialized numeric entitlement of one owner for one
// feature.
type OwnerLimit struct {
	OwnerType        string    `gorm:"type:varchar(64);primaryKey"`
	OwnerIdentifiers string    `gorm:"type:varchar(255);primaryKey"`
	Feature          string    `gorm:"type:varchar(191);primaryKey"`
	Value            int       `gorm:"not null"`
	Active           bool      `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

func (OwnerLimit) TableName() string { return "premium_owner_limits" }

// upsertLimit writes the owner's limit row. Re-running it with the same
// arguments leaves the same row behind.
func upsertLimit(ctx context.Context, tx *gorm.DB, feature string, owner any, value int, active bool, now time.Time) error {
	entity, ok := owner.(reference.Referenceable)
	if !ok || entity == nil {
		return fmt.Errorf("%w: %T", reference.ErrNotReferenceable, owner)
	}
	ref := entity.Reference()
	identifiers, err := ref.CanonicalIdentifiers()
	if err != nil {
		return err
	}

	row := OwnerLimit{
		OwnerType:        ref.Type,
		OwnerIdentifiers: identifiers,
		Feature:          feature,
		Value:            value,
		Active:           active,
		UpdatedAt:        now,
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "owner_type"},
			{Name: "owner_identifiers"},
			{Name: "feature"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"value", "active", "updated_at"}),
	}).Create(&row).Error
}

// LimitFor reads the materialized limit of owner for feature, or nil.
func LimitFor(ctx context.Context, db *gorm.DB, feature string, owner reference.Ref) (*OwnerLimit, error) {
	identifiers, err := owner.CanonicalIdentifiers()
	if err != nil {
		return nil, err
	}
	var rows []OwnerLimit
	err = db.WithContext(ctx).
		Where("owner_type = ? AND owner_identifiers = ? AND feature = ?", owner.Type, identifiers, feature).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
