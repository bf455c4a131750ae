package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/bnema/penphinmind/internal/application"
	"github.com/bnema/penphinmind/internal/domain"
	"github.com/spf13/cobra"
)

func newAskCmd(app *app) *cobra.Command {
	var mind string

	cmd := &cobra.Command{
		Use:   "ask [--mind <id>] <text...>",
		Short: "Send one prompt and stream the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			stream := svc.SubmitTurn(cmd.Context(), strings.Join(args, " "), domain.MindID(mind))
			_, err = printTurn(cmd.OutOrStdout(), stream)
			return err
		},
	}

	cmd.Flags().StringVarP(&mind, "mind", "m", "", "Mind to ask instead of the active one")

	return cmd
}

// printTurn writes tokens as they arrive and ends the line once the turn is
// over. The returned error is the turn's ErrorEvent, if any.
func printTurn(out io.Writer, stream *application.TurnStream) (domain.EndOfTurn, error) {
	wrote := false
	for event := range stream.Events() {
		switch e := event.(type) {
		case domain.TokenEvent:
			if _, err := io.WriteString(out, e.Text); err != nil {
				return domain.EndOfTurn{}, err
			}
			wrote = true
		case domain.EndOfTurn:
			if _, err := fmt.Fprintln(out); err != nil {
				return e, err
			}
			return e, nil
		case domain.ErrorEvent:
			if wrote {
				_, _ = fmt.Fprintln(out)
			}
			return domain.EndOfTurn{}, e
		}
	}

	return domain.EndOfTurn{}, nil
}
