package cli

import (
	"context"

	"github.com/smallbiznis/premium/internal/jobqueue"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func NewWorkerCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the task worker until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				modules(opts),
				jobqueue.RunModule,
				fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
					return &fxevent.ZapLogger{Logger: log.Named("fx")}
				}),
			)
			if err := app.Err(); err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := app.Start(ctx); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
			case <-app.Wait():
			}

			stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			return app.Stop(stopCtx)
		},
	}
}
