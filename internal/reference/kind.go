package reference

import (
	"context"

	"github.com/smallbiznis/premium/pkg/db/option"
	"github.com/smallbiznis/premium/pkg/repository"
	"gorm.io/gorm"
)

// NewKind builds a Kind for a gorm model keyed by a snowflake id. T must be
// the model struct and *T must implement Referenceable.
func NewKind[T any, PT interface {
	*T
	Referenceable
}](name, parent string) Kind {
	return Kind{
		Name:   name,
		Parent: parent,
		Load: func(ctx context.Context, db *gorm.DB, ref Ref) (Referenceable, error) {
			id, err := ref.ID()
			if err != nil {
				return nil, err
			}
			found, err := repository.NewReader[T](db).FindOne(ctx, nil, option.WithWhere("id = ?", id))
			if err != nil || found == nil {
				return nil, err
			}
			return PT(found), nil
		},
		Each: func(ctx context.Context, db *gorm.DB, batchSize int, fn func(Referenceable) error) error {
			return repository.NewReader[T](db).FindInBatches(ctx, nil, batchSize, func(batch []*T) error {
				for _, item := range batch {
					if err := fn(PT(item)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}
