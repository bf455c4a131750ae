package cmd

import (
	"context"
	"fmt"

	"github.com/bnema/penphinmind/internal/domain"
	"github.com/spf13/cobra"
)

func newConnectCmd(app *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "connect [mind]",
		Short: "Open a mind's link and report its connection state",
		Long:  "connect dials the active mind, the given one, or every mind with --all, retrying with backoff, and reports the resulting state.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			if all {
				if len(args) > 0 {
					return fmt.Errorf("--all does not take a mind")
				}
				var connectErr error
				err := runWithSpinner(cmd.Context(), cmd.ErrOrStderr(), "Connecting to every mind...", func(ctx context.Context) error {
					_, connectErr = svc.ConnectAll(ctx)
					return nil
				})
				if err != nil {
					return err
				}
				if err := writeStatus(cmd, app, svc.Status()); err != nil {
					return err
				}
				return connectErr
			}

			target := svc.ActiveMind()
			if len(args) == 1 {
				target = domain.MindID(args[0])
			}

			var state domain.ConnectionState
			label := fmt.Sprintf("Connecting to %s...", target)
			err = runWithSpinner(cmd.Context(), cmd.ErrOrStderr(), label, func(ctx context.Context) error {
				var connectErr error
				state, connectErr = svc.Connect(ctx, target)
				return connectErr
			})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s after %d %s\n", target, state.Status, state.RetryCount, pluralize(state.RetryCount, "retry", "retries"))
			return err
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Connect every configured mind concurrently")

	return cmd
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
