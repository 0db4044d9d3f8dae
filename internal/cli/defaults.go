package cli

import (
	"fmt"
	"io"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/premium/internal/feature/domain"
	"github.com/spf13/cobra"
)

func NewDefaultsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "defaults",
		Short: "Inspect or change feature defaults",
	}
	cmd.AddCommand(newDefaultsGetCommand(opts))
	cmd.AddCommand(newDefaultsSetCommand(opts))
	return cmd
}

func newDefaultsGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <feature>",
		Short: "Print the default configuration of a feature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var manager domain.Manager
			stop, err := startApp(cmd.Context(), opts, &manager)
			if err != nil {
				return err
			}
			defer stop()

			cfg, err := manager.DefaultConfig(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return newPrinter(opts, cmd.OutOrStdout()).print(cfg, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, compactJSON(cfg))
				return err
			})
		},
	}
}

func newDefaultsSetCommand(opts *RootOptions) *cobra.Command {
	var (
		params map[string]string
		userID int64
	)
	cmd := &cobra.Command{
		Use:   "set <feature>",
		Short: "Change the default configuration and reconcile every candidate owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc domain.Service
			stop, err := startApp(cmd.Context(), opts, &svc)
			if err != nil {
				return err
			}
			defer stop()

			resp, err := svc.SetDefaults(cmd.Context(), domain.SetDefaultsRequest{
				Feature: args[0],
				Config:  parseParams(params),
				UserID:  snowflake.ID(userID),
			})
			if err != nil {
				return err
			}
			return newPrinter(opts, cmd.OutOrStdout()).print(resp, func(w io.Writer) error {
				if !resp.Changed {
					_, err := fmt.Fprintf(w, "%s: unchanged %s\n", resp.Feature, compactJSON(resp.NewConfig))
					return err
				}
				_, err := fmt.Fprintf(w, "%s: %s -> %s (reconciliation queued)\n",
					resp.Feature, compactJSON(resp.OldConfig), compactJSON(resp.NewConfig))
				return err
			})
		},
	}
	cmd.Flags().StringToStringVar(&params, "param", nil, "parameter as name=value, repeatable (use active=true|false for the flag)")
	cmd.Flags().Int64Var(&userID, "user-id", 0, "id of the operator making the change")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}
