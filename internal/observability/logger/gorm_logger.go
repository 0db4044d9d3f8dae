package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	dbpkg "github.com/smallbiznis/premium/pkg/db"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// GormLoggerConfig configures the GORM zap logger.
type GormLoggerConfig struct {
	Level         gormlogger.LogLevel
	SlowThreshold time.Duration
	// QuietTables are left out of statement tracing. Errors and slow
	// statements on them are still logged.
	QuietTables []string
}

func DefaultGormLoggerConfig() GormLoggerConfig {
	return GormLoggerConfig{
		Level:         gormlogger.Warn,
		SlowThreshold: 200 * time.Millisecond,
		QuietTables:   []string{"premium_jobs"},
	}
}

// GormLogger routes gorm output through zap with the request fields of the
// statement's context.
type GormLogger struct {
	log           *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
	quietTables   []string
}

func NewGormLogger(cfg GormLoggerConfig, log *zap.Logger) *GormLogger {
	if log == nil {
		log = zap.NewNop()
	}
	quiet := make([]string, 0, len(cfg.QuietTables))
	for _, table := range cfg.QuietTables {
		if table = strings.ToLower(strings.TrimSpace(table)); table != "" {
			quiet = append(quiet, table)
		}
	}
	return &GormLogger{
		log:           log.Named("gorm"),
		level:         cfg.Level,
		slowThreshold: cfg.SlowThreshold,
		quietTables:   quiet,
	}
}

// ProvideGormLogger traces every statement in debug deployments and only
// slow or failed ones otherwise.
func ProvideGormLogger(cfg Config, log *zap.Logger) gormlogger.Interface {
	gormCfg := DefaultGormLoggerConfig()
	if cfg.Debug {
		gormCfg.Level = gormlogger.Info
	}
	return NewGormLogger(gormCfg, log)
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		WithContext(ctx, l.log).Sugar().Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		WithContext(ctx, l.log).Sugar().Warnf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		WithContext(ctx, l.log).Sugar().Errorf(msg, data...)
	}
}

// Trace logs one statement. Missing rows and serialization conflicts are
// logged below error level.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && errors.Is(err, gormlogger.ErrRecordNotFound):
		if l.level >= gormlogger.Info {
			l.logQuery(ctx, fc, elapsed, nil, zapcore.DebugLevel)
		}
	case err != nil && dbpkg.IsSerializationFailure(err):
		if l.level >= gormlogger.Warn {
			l.logQuery(ctx, fc, elapsed, err, zapcore.WarnLevel)
		}
	case err != nil:
		if l.level >= gormlogger.Error {
			l.logQuery(ctx, fc, elapsed, err, zapcore.ErrorLevel)
		}
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		if l.level >= gormlogger.Warn {
			l.logQuery(ctx, fc, elapsed, nil, zapcore.WarnLevel)
		}
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		if l.quiet(sql) {
			return
		}
		l.logQuery(ctx, func() (string, int64) { return sql, rows }, elapsed, nil, zapcore.DebugLevel)
	}
}

// ParamsFilter drops bound values from logged statements.
func (l *GormLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *GormLogger) quiet(sql string) bool {
	lowered := strings.ToLower(sql)
	for _, table := range l.quietTables {
		if strings.Contains(lowered, table) {
			return true
		}
	}
	return false
}

func (l *GormLogger) logQuery(ctx context.Context, fc func() (string, int64), elapsed time.Duration, err error, level zapcore.Level) {
	sql, rows := fc()
	fields := []zap.Field{
		zap.String("sql", strings.TrimSpace(sql)),
		zap.String("operation", operationFromSQL(sql)),
		zap.Duration("elapsed", elapsed),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows", rows))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if ce := WithContext(ctx, l.log).Check(level, "sql"); ce != nil {
		ce.Write(fields...)
	}
}

func operationFromSQL(sql string) string {
	for _, token := range strings.Fields(strings.ToUpper(sql)) {
		token = strings.Trim(token, "();")
		switch token {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			return token
		}
	}
	return "UNKNOWN"
}

var _ gormlogger.Interface = (*GormLogger)(nil)
