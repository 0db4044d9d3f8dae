package cli

import (
	"fmt"
	"io"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/premium/internal/feature/domain"
	"github.com/spf13/cobra"
)

func NewAssignCommand(opts *RootOptions) *cobra.Command {
	var (
		owner  string
		source string
		params map[string]string
	)
	cmd := &cobra.Command{
		Use:   "assign <feature>",
		Short: "Queue a feature assignment for an owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerRef, err := parseRef(owner)
			if err != nil {
				return fmt.Errorf("--owner: %w", err)
			}
			sourceRef := ownerRef
			if source != "" {
				if sourceRef, err = parseRef(source); err != nil {
					return fmt.Errorf("--source: %w", err)
				}
			}

			var svc domain.Service
			stop, err := startApp(cmd.Context(), opts, &svc)
			if err != nil {
				return err
			}
			defer stop()

			req := domain.AssignRequest{
				Feature: args[0],
				Owner:   ownerRef,
				Source:  sourceRef,
				Params:  parseParams(params),
			}
			if err := svc.RequestAssign(cmd.Context(), req); err != nil {
				return err
			}
			return newPrinter(opts, cmd.OutOrStdout()).print(req, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "queued %s for %s\n", req.Feature, req.Owner)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner reference, kind:id")
	cmd.Flags().StringVar(&source, "source", "", "source reference, kind:id (defaults to the owner)")
	cmd.Flags().StringToStringVar(&params, "param", nil, "parameter as name=value, repeatable")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func NewRemoveCommand(opts *RootOptions) *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "remove <assignment-id>",
		Short: "Queue the removal of an assignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var svc domain.Service
			stop, err := startApp(cmd.Context(), opts, &svc)
			if err != nil {
				return err
			}
			defer stop()

			req := domain.RemoveRequest{AssignmentID: id, UserID: snowflake.ID(userID)}
			if err := svc.RequestRemove(cmd.Context(), req); err != nil {
				return err
			}
			return newPrinter(opts, cmd.OutOrStdout()).print(req, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "queued removal of %s\n", id)
				return err
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "id of the operator removing the assignment")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}
