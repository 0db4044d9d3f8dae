package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/premium/internal/reference"
	"gorm.io/datatypes"
)

// Assignment is an owner-specific override of a feature's parameters.
// Rows are created and deleted, never updated.
type Assignment struct {
	ID                snowflake.ID      `gorm:"primaryKey"`
	Feature           string            `gorm:"type:varchar(191);not null;index"`
	OwnerType         string            `gorm:"type:varchar(64);not null;index:idx_premium_features_owner,priority:1"`
	OwnerIdentifiers  string            `gorm:"type:varchar(255);not null;index:idx_premium_features_owner,priority:2"`
	SourceType        string            `gorm:"type:varchar(64);not null;index:idx_premium_features_source,priority:1"`
	SourceIdentifiers string            `gorm:"type:varchar(255);not null;index:idx_premium_features_source,priority:2"`
	Params            datatypes.JSONMap `gorm:"not null"`
	Rating            int               `gorm:"not null;default:0"`
	CreatedAt         time.Time         `gorm:"not null"`
}

func (Assignment) TableName() string { return "premium_features" }

// Parameters returns a copy of the stored parameters.
func (a *Assignment) Parameters() Params {
	return Params(a.Params).Clone()
}

func (a *Assignment) OwnerRef() (reference.Ref, error) {
	return reference.ParseRef(a.OwnerType, a.OwnerIdentifiers)
}

func (a *Assignment) SourceRef() (reference.Ref, error) {
	return reference.ParseRef(a.SourceType, a.SourceIdentifiers)
}

// Definition registers one named feature.
type Definition struct {
	Name       string
	Strategy   string
	Candidates []string
	Options    map[string]any
}

// IsCandidate reports whether any kind in lineage is listed as a candidate.
func (d Definition) IsCandidate(lineage []string) bool {
	for _, kind := range lineage {
		for _, candidate := range d.Candidates {
			if kind == candidate {
				return true
			}
		}
	}
	return false
}
