package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/smallbiznis/premium/internal/feature/domain"
	"github.com/spf13/cobra"
)

func NewFeaturesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "features",
		Short: "List registered features with their defaults and parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc domain.Service
			stop, err := startApp(cmd.Context(), opts, &svc)
			if err != nil {
				return err
			}
			defer stop()

			features, err := svc.ListFeatures(cmd.Context())
			if err != nil {
				return err
			}
			return newPrinter(opts, cmd.OutOrStdout()).print(features, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "FEATURE\tSTRATEGY\tCANDIDATES\tDEFAULTS")
				for _, f := range features {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Name, f.Strategy, strings.Join(f.Candidates, ","), compactJSON(f.Defaults))
				}
				return tw.Flush()
			})
		},
	}
}
