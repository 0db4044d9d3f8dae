package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Config holds connection and pool settings. Durations are in seconds and
// zero leaves the driver default in place.
type Config struct {
	Type            string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	Path            string
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

const defaultSQLitePath = "premium.db"

// Driver returns the normalized database type.
func (c Config) Driver() string {
	return strings.ToLower(strings.TrimSpace(c.Type))
}

// DSN renders the driver specific connection string.
func (c Config) DSN() (string, error) {
	switch c.Driver() {
	case TypePostgres:
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			c.Host, c.User, c.Password, c.Name, c.Port, sslMode), nil
	case TypeMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User, c.Password, c.Host, c.Port, c.Name), nil
	case TypeSQLite:
		if path := strings.TrimSpace(c.Path); path != "" {
			return path, nil
		}
		return defaultSQLitePath, nil
	default:
		return "", fmt.Errorf("unsupported database type %q", c.Type)
	}
}

func (c Config) applyPool(sqlDB *sql.DB) {
	if c.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(c.MaxIdleConn)
	}
	if c.MaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(c.MaxOpenConn)
	}
	if c.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(c.ConnMaxLifetime) * time.Second)
	}
	if c.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(c.ConnMaxIdleTime) * time.Second)
	}
}
