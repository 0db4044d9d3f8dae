package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/smallbiznis/premium/internal/feature/domain"
	"github.com/smallbiznis/premium/internal/reference"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// Resolution is the effective configuration of a feature for one owner.
type Resolution struct {
	Feature      string        `json:"feature"`
	Owner        string        `json:"owner,omitempty"`
	Active       bool          `json:"active"`
	Params       domain.Params `json:"params"`
	AssignmentID string        `json:"assignment_id,omitempty"`
}

func NewResolveCommand(opts *RootOptions) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "resolve <feature>",
		Short: "Print the effective configuration of a feature, optionally for an owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ref *reference.Ref
			if owner != "" {
				parsed, err := parseRef(owner)
				if err != nil {
					return fmt.Errorf("--owner: %w", err)
				}
				ref = &parsed
			}

			var (
				conn     *gorm.DB
				resolver *reference.Resolver
				manager  domain.Manager
			)
			stop, err := startApp(cmd.Context(), opts, &conn, &resolver, &manager)
			if err != nil {
				return err
			}
			defer stop()

			res, err := resolve(cmd.Context(), conn, resolver, manager, args[0], ref)
			if err != nil {
				return err
			}
			return newPrinter(opts, cmd.OutOrStdout()).print(res, func(w io.Writer) error {
				target := "defaults"
				if res.Owner != "" {
					target = res.Owner
				}
				_, err := fmt.Fprintf(w, "%s for %s: active=%t %s\n", res.Feature, target, res.Active, compactJSON(res.Params))
				return err
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner reference, kind:id")
	return cmd
}

func resolve(ctx context.Context, conn *gorm.DB, resolver *reference.Resolver, manager domain.Manager, feature string, ref *reference.Ref) (*Resolution, error) {
	res := &Resolution{Feature: feature}

	var entity any
	if ref != nil {
		loaded, err := resolver.Load(ctx, conn, *ref)
		if err != nil {
			return nil, err
		}
		entity = loaded
		res.Owner = ref.String()

		assignment, err := manager.AssignmentFor(ctx, loaded, feature)
		if err != nil {
			return nil, err
		}
		if assignment != nil {
			res.AssignmentID = assignment.ID.String()
		}
	}

	params, err := manager.Parameters(ctx, feature, entity)
	if err != nil {
		return nil, err
	}
	res.Params = params
	res.Active = params.Active()
	return res, nil
}
