package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/premium/internal/feature/domain"
	"github.com/smallbiznis/premium/internal/reference"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, assignment *domain.Assignment) error {
	return db.WithContext(ctx).Create(assignment).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM premium_features WHERE id = ?`,
		id,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Assignment, error) {
	var items []domain.Assignment
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) FindTopForOwner(ctx context.Context, db *gorm.DB, owner reference.Ref, feature string) (*domain.Assignment, error) {
	identifiers, err := owner.CanonicalIdentifiers()
	if err != nil {
		return nil, err
	}

	var items []domain.Assignment
	err = db.WithContext(ctx).
		Where("owner_type = ? AND owner_identifiers = ? AND feature = ?", owner.Type, identifiers, feature).
		Order("rating DESC").
		Order("id ASC").
		Limit(1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) ListByOwner(ctx context.Context, db *gorm.DB, owner reference.Ref, feature string) ([]domain.Assignment, error) {
	identifiers, err := owner.CanonicalIdentifiers()
	if err != nil {
		return nil, err
	}

	stmt := db.WithContext(ctx).
		Where("owner_type = ? AND owner_identifiers = ?", owner.Type, identifiers)
	if feature != "" {
		stmt = stmt.Where("feature = ?", feature)
	}

	var items []domain.Assignment
	if err := stmt.Order("rating DESC").Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
