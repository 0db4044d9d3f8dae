package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/smallbiznis/premium/pkg/db"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(provideDatabase),
	fx.Provide(provideInstrumentation),
	fx.Provide(LoadFeatureRegistry),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	NodeID      int64

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBTracing         bool
	DBMetrics         bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Queue QueueConfig

	FeaturesFile       string
	ReconcileBatchSize int
}

// QueueConfig configures the task queue backend and the worker loop.
type QueueConfig struct {
	Backend      string
	BatchSize    int
	PollInterval time.Duration
	Lease        time.Duration
	Heartbeat    time.Duration
	MaxAttempts  int
	JobTimeout   time.Duration
}

const (
	QueueBackendDatabase = "database"
	QueueBackendRedis    = "redis"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "premium"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		NodeID:            int64(getenvInt("SNOWFLAKE_NODE_ID", 1)),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "premium"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "premium.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBTracing:         getenvBool("DATABASE_TRACING", true),
		DBMetrics:         getenvBool("DATABASE_METRICS", false),
		RedisAddr:         strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		RedisDB:           getenvInt("REDIS_DB", 0),
		Queue: QueueConfig{
			Backend:      normalizeQueueBackend(getenv("QUEUE_BACKEND", QueueBackendDatabase)),
			BatchSize:    getenvInt("WORKER_BATCH_SIZE", 10),
			PollInterval: getenvDuration("WORKER_POLL_INTERVAL", 2*time.Second),
			Lease:        getenvDuration("WORKER_LEASE", 5*time.Minute),
			Heartbeat:    getenvDuration("WORKER_HEARTBEAT", 0),
			MaxAttempts:  getenvInt("WORKER_MAX_ATTEMPTS", 10),
			JobTimeout:   getenvDuration("WORKER_JOB_TIMEOUT", 30*time.Minute),
		},
		FeaturesFile:       strings.TrimSpace(getenv("FEATURES_FILE", "")),
		ReconcileBatchSize: getenvInt("RECONCILE_BATCH_SIZE", 200),
	}

	return cfg
}

// Database returns the connection settings consumed by pkg/db.
func (c Config) Database() db.Config {
	return db.Config{
		Type:            c.DBType,
		Host:            c.DBHost,
		Port:            c.DBPort,
		Name:            c.DBName,
		User:            c.DBUser,
		Password:        c.DBPassword,
		SSLMode:         c.DBSSLMode,
		Path:            c.DBPath,
		MaxIdleConn:     c.DBMaxIdleConn,
		MaxOpenConn:     c.DBMaxOpenConn,
		ConnMaxLifetime: c.DBConnMaxLifetime,
		ConnMaxIdleTime: c.DBConnMaxIdleTime,
	}
}

func provideDatabase(cfg Config) db.Config {
	return cfg.Database()
}

func provideInstrumentation(cfg Config) db.Instrumentation {
	return db.Instrumentation{Tracing: cfg.DBTracing, Metrics: cfg.DBMetrics}
}

func normalizeQueueBackend(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case QueueBackendRedis:
		return QueueBackendRedis
	case QueueBackendDatabase, "db", "":
		return QueueBackendDatabase
	default:
		log.Printf("[config] unknown QUEUE_BACKEND %q, using %s", raw, QueueBackendDatabase)
		return QueueBackendDatabase
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, value, def)
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %s", key, value, def)
		return def
	}
	return parsed
}
