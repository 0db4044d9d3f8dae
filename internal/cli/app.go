package cli

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/premium/internal/account"
	"github.com/smallbiznis/premium/internal/clock"
	"github.com/smallbiznis/premium/internal/config"
	"github.com/smallbiznis/premium/internal/event"
	"github.com/smallbiznis/premium/internal/feature"
	"github.com/smallbiznis/premium/internal/jobqueue"
	"github.com/smallbiznis/premium/internal/migration"
	"github.com/smallbiznis/premium/internal/observability"
	"github.com/smallbiznis/premium/internal/reference"
	"github.com/smallbiznis/premium/internal/setting"
	"github.com/smallbiznis/premium/pkg/db"
	"go.uber.org/fx"
)

const stopTimeout = 30 * time.Second

// modules assembles the application graph shared by every command.
func modules(opts *RootOptions) fx.Option {
	return fx.Options(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(newSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domains
		reference.Module,
		account.Module,
		setting.Module,
		event.Module,
		jobqueue.Module,
		feature.Module,

		fx.Decorate(func(cfg config.Config) config.Config {
			if opts.FeaturesFile != "" {
				cfg.FeaturesFile = opts.FeaturesFile
			}
			return cfg
		}),
	)
}

func newSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}

// startApp starts a short-lived application and fills targets from its
// graph. The returned stop func must be called once the command is done.
func startApp(ctx context.Context, opts *RootOptions, targets ...any) (func(), error) {
	app := fx.New(
		modules(opts),
		fx.NopLogger,
		fx.Populate(targets...),
	)
	if err := app.Err(); err != nil {
		return nil, err
	}
	if err := app.Start(ctx); err != nil {
		return nil, err
	}
	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = app.Stop(stopCtx)
	}, nil
}
