package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds the global flags shared by every command.
type RootOptions struct {
	Format       string
	FeaturesFile string
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand builds the premium operator CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "premium",
		Short:         "Premium feature resolution and reconciliation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.FeaturesFile, "features", "", "feature registry file (overrides FEATURES_FILE)")

	cmd.AddCommand(NewWorkerCommand(opts))
	cmd.AddCommand(NewFeaturesCommand(opts))
	cmd.AddCommand(NewDefaultsCommand(opts))
	cmd.AddCommand(NewAssignCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))

	return cmd
}
