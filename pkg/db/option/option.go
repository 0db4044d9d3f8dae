package option

import "gorm.io/gorm"

// QueryOption mutates a query before it is executed.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type queryFunc func(db *gorm.DB) *gorm.DB

func (f queryFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

func WithWhere(query string, args ...any) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}
