package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/premium/internal/reference"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, assignment *Assignment) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Assignment, error)
	// FindTopForOwner returns the highest-rated assignment of feature held
	// by owner, or nil.
	FindTopForOwner(ctx context.Context, db *gorm.DB, owner reference.Ref, feature string) (*Assignment, error)
	// ListByOwner returns the owner's assignments, optionally restricted to
	// one feature, highest rating first.
	ListByOwner(ctx context.Context, db *gorm.DB, owner reference.Ref, feature string) ([]Assignment, error)
}
