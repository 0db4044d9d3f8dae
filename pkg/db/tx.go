package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrTransactionConflict is returned when a serializable transaction was
// aborted by the database because of a concurrent writer.
var ErrTransactionConflict = errors.New("transaction_conflict")

// Serializable runs fn inside a transaction at SERIALIZABLE isolation. The
// transaction is rolled back when fn returns an error. Aborts caused by
// concurrent writers are reported as ErrTransactionConflict.
//
// SQLite transactions are always serializable, so no isolation level is
// requested from that driver.
func Serializable(ctx context.Context, conn *gorm.DB, fn func(tx *gorm.DB) error) error {
	var opts []*sql.TxOptions
	if conn.Dialector == nil || conn.Dialector.Name() != TypeSQLite {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelSerializable})
	}

	err := conn.WithContext(ctx).Transaction(fn, opts...)
	if err != nil && !errors.Is(err, ErrTransactionConflict) && IsSerializationFailure(err) {
		return fmt.Errorf("%w: %w", ErrTransactionConflict, err)
	}
	return err
}
