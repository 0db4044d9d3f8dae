package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/premium/pkg/db/option"
	"gorm.io/gorm"
)

const defaultBatchSize = 100

// Reader is a generic read-only view over a single gorm model.
type Reader[T any] interface {
	// FindOne returns the first match, or nil when nothing matches.
	FindOne(ctx context.Context, filter *T, opts ...option.QueryOption) (*T, error)
	// FindInBatches walks every match in primary key order. A batch is fully
	// read before fn runs, so fn may issue its own statements.
	FindInBatches(ctx context.Context, filter *T, size int, fn func(batch []*T) error) error
}

type reader[T any] struct {
	db *gorm.DB
}

// NewReader binds a Reader to db, which may be a transaction.
func NewReader[T any](db *gorm.DB) Reader[T] {
	return reader[T]{db: db}
}

func (r reader[T]) FindOne(ctx context.Context, filter *T, opts ...option.QueryOption) (*T, error) {
	var out T
	if err := r.query(ctx, filter, opts).First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (r reader[T]) FindInBatches(ctx context.Context, filter *T, size int, fn func(batch []*T) error) error {
	if size <= 0 {
		size = defaultBatchSize
	}
	var batch []*T
	return r.query(ctx, filter, nil).FindInBatches(&batch, size, func(*gorm.DB, int) error {
		return fn(batch)
	}).Error
}

func (r reader[T]) query(ctx context.Context, filter *T, opts []option.QueryOption) *gorm.DB {
	q := r.db.WithContext(ctx)
	if filter != nil {
		q = q.Where(filter)
	}
	for _, opt := range opts {
		q = opt.Apply(q)
	}
	return q
}
