package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/bnema/penphinmind/internal/application"
	"github.com/bnema/penphinmind/internal/domain"
	"github.com/spf13/cobra"
)

func newAuthCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage per-mind auth tokens",
	}

	cmd.AddCommand(newAuthSetCmd(app), newAuthRemoveCmd(app))

	return cmd
}

func newAuthSetCmd(app *app) *cobra.Command {
	var token string
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "set <mind>",
		Short: "Store the token sent with every request to a mind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromStdin {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read token from stdin: %w", err)
				}
				token = strings.TrimSpace(string(raw))
			}
			if token == "" {
				return fmt.Errorf("a token is required: pass --token or --token-stdin")
			}

			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			mind := domain.MindID(args[0])
			if err := svc.SetToken(cmd.Context(), application.SetTokenCommand{MindID: mind, Token: token}); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "token stored for %s\n", mind)
			return err
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Token value")
	cmd.Flags().BoolVar(&fromStdin, "token-stdin", false, "Read the token from stdin")
	cmd.MarkFlagsMutuallyExclusive("token", "token-stdin")

	return cmd
}

func newAuthRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <mind>",
		Short: "Delete a mind's stored token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			mind := domain.MindID(args[0])
			if err := svc.RemoveToken(cmd.Context(), application.RemoveTokenCommand{MindID: mind}); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "token removed for %s\n", mind)
			return err
		},
	}
}
