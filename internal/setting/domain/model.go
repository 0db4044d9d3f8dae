package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Setting is a named JSON document in the key/value settings table.
type Setting struct {
	ID        snowflake.ID   `gorm:"primaryKey"`
	Name      string         `gorm:"type:text;not null;uniqueIndex"`
	Value     datatypes.JSON `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (Setting) TableName() string { return "settings" }

type Repository interface {
	// Get returns the stored value of name, or nil when it was never set.
	Get(ctx context.Context, db *gorm.DB, name string) (datatypes.JSON, error)
	// Set inserts or replaces the value of name.
	Set(ctx context.Context, db *gorm.DB, name string, value datatypes.JSON) error
}
