package db

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	if hasPGCode(err, "23505") {
		return true
	}
	if hasMySQLCode(err, 1062) {
		return true
	}

	// SQLite (error code 2067)
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return true
	}

	return false
}

// IsSerializationFailure reports whether err means the transaction lost a
// concurrency conflict and may succeed when retried from the start.
func IsSerializationFailure(err error) bool {
	if err == nil {
		return false
	}

	// 40001 serialization_failure, 40P01 deadlock_detected, 55P03 lock_not_available
	if hasPGCode(err, "40001") || hasPGCode(err, "40P01") || hasPGCode(err, "55P03") {
		return true
	}

	// 1213 deadlock found, 1205 lock wait timeout
	if hasMySQLCode(err, 1213) || hasMySQLCode(err, 1205) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "SQLITE_BUSY")
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func hasMySQLCode(err error, code uint16) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == code
	}
	return false
}
