package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/premium/internal/clock"
	"github.com/smallbiznis/premium/internal/setting/domain"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	GenID *snowflake.Node
	Clock clock.Clock
}

type repo struct {
	genID *snowflake.Node
	clock clock.Clock
}

func Provide(p Params) domain.Repository {
	return &repo{genID: p.GenID, clock: p.Clock}
}

func (r *repo) Get(ctx context.Context, db *gorm.DB, name string) (datatypes.JSON, error) {
	var row domain.Setting
	err := db.WithContext(ctx).
		Where("name = ?", name).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return row.Value, nil
}

func (r *repo) Set(ctx context.Context, db *gorm.DB, name string, value datatypes.JSON) error {
	row := domain.Setting{
		ID:        r.genID.Generate(),
		Name:      name,
		Value:     value,
		UpdatedAt: r.now(),
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}

func (r *repo) now() time.Time {
	if r.clock == nil {
		return time.Now().UTC()
	}
	return r.clock.Now()
}
