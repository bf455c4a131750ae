package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bnema/penphinmind/internal/application"
	"github.com/bnema/penphinmind/internal/domain"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

const chatHelp = `/switch <mind>  make another mind active
/minds          list minds
/help           show this help
/quit           leave the chat`

func newChatCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive conversation with the active mind",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			return runChat(cmd.Context(), svc, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

// runChat reads one prompt per line until EOF, /quit or ctx is done. A failed
// turn is reported and the loop keeps going.
func runChat(ctx context.Context, svc *application.Service, in io.Reader, out, errOut io.Writer) error {
	scanner := bufio.NewScanner(in)
	_, _ = fmt.Fprintln(out, noticeStyle.Render("type /help for commands"))

	for {
		active := svc.ActiveMind()
		if _, err := fmt.Fprint(out, promptStyle.Render(string(active)+" > ")); err != nil {
			return err
		}
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/help":
			_, _ = fmt.Fprintln(out, chatHelp)
			continue
		case line == "/minds":
			for _, id := range svc.ListMinds() {
				marker := " "
				if id == active {
					marker = "*"
				}
				_, _ = fmt.Fprintf(out, "%s %s\n", marker, id)
			}
			continue
		case strings.HasPrefix(line, "/switch"):
			target := strings.TrimSpace(strings.TrimPrefix(line, "/switch"))
			if target == "" {
				_, _ = fmt.Fprintln(errOut, errorStyle.Render("usage: /switch <mind>"))
				continue
			}
			if _, err := svc.SwitchMind(ctx, domain.MindID(target)); err != nil {
				_, _ = fmt.Fprintln(errOut, errorStyle.Render(err.Error()))
				continue
			}
			_, _ = fmt.Fprintln(out, noticeStyle.Render("now talking to "+target))
			continue
		case strings.HasPrefix(line, "/"):
			_, _ = fmt.Fprintln(errOut, errorStyle.Render("unknown command "+line))
			continue
		}

		_, err := printTurn(out, svc.SubmitTurn(ctx, line, ""))
		if err == nil {
			continue
		}

		var event domain.ErrorEvent
		if errors.As(err, &event) && event.Kind == domain.ErrorKindCanceled && ctx.Err() != nil {
			return ctx.Err()
		}
		_, _ = fmt.Fprintln(errOut, errorStyle.Render(err.Error()))
	}
}
