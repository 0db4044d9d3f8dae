package db

import (
	"context"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	gormprometheus "gorm.io/plugin/prometheus"
)

var Module = fx.Module("db",
	fx.Provide(NewDB),
)

// Instrumentation toggles the gorm tracing and pool metrics plugins.
type Instrumentation struct {
	Tracing bool
	Metrics bool
}

type Params struct {
	fx.In

	Lifecycle       fx.Lifecycle
	Config          Config
	Log             *zap.Logger
	GormLogger      gormlogger.Interface `optional:"true"`
	Instrumentation Instrumentation      `optional:"true"`
}

func NewDB(p Params) (*gorm.DB, error) {
	dialector, err := Dialect(p.Config)
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{}
	if p.GormLogger != nil {
		gormCfg.Logger = p.GormLogger
	}

	conn, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, err
	}

	if p.Instrumentation.Tracing {
		if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(p.Config.Name))); err != nil {
			return nil, err
		}
	}
	if p.Instrumentation.Metrics {
		if err := conn.Use(gormprometheus.New(gormprometheus.Config{
			DBName:          p.Config.Name,
			RefreshInterval: 15,
		})); err != nil {
			return nil, err
		}
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	p.Config.applyPool(sqlDB)

	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				p.Log.Info("closing database connections")
				return sqlDB.Close()
			},
		})
	}

	p.Log.Info("database connected",
		zap.String("type", p.Config.Type),
		zap.String("name", p.Config.Name),
	)
	return conn, nil
}
