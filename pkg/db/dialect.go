package db

import (
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	TypePostgres = "postgres"
	TypeMySQL    = "mysql"
	TypeSQLite   = "sqlite"
)

func Dialect(cfg Config) (gorm.Dialector, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	switch cfg.Driver() {
	case TypeMySQL:
		return mysql.Open(dsn), nil
	case TypePostgres:
		return postgres.Open(dsn), nil
	default:
		return sqlite.Open(dsn), nil
	}
}
