package cmd

import (
	"context"
	"fmt"
	"time"

	statusadapter "github.com/bnema/penphinmind/internal/adapters/render/status"
	"github.com/bnema/penphinmind/internal/application"
	"github.com/bnema/penphinmind/internal/domain"
	"github.com/spf13/cobra"
)

type statusView struct {
	Mind       mindView `json:"mind"`
	State      string   `json:"state"`
	RetryCount int      `json:"retry_count"`
	Connected  string   `json:"connected_at,omitempty"`
	LastError  string   `json:"last_error,omitempty"`
}

type switchView struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
	At   string `json:"at"`
}

func newStatusCmd(app *app) *cobra.Command {
	var asJSON bool
	var probe bool
	var history bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show every mind with its connection state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			if probe {
				err := runWithSpinner(cmd.Context(), cmd.ErrOrStderr(), "Probing minds...", func(ctx context.Context) error {
					_, _ = svc.ConnectAll(ctx)
					return nil
				})
				if err != nil {
					return err
				}
			}

			statuses := svc.Status()
			if asJSON {
				return writeJSON(cmd, statusViews(statuses))
			}

			if err := writeStatus(cmd, app, statuses); err != nil {
				return err
			}
			if history {
				return writeHistory(cmd, app)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON output")
	cmd.Flags().BoolVar(&probe, "probe", false, "Connect every mind before reporting")
	cmd.Flags().BoolVar(&history, "history", false, "Also list recent mind switches")

	return cmd
}

func writeStatus(cmd *cobra.Command, app *app, statuses []application.MindStatus) error {
	rendered, err := app.statusRenderer(statuses, statusadapter.RenderOptions{
		Now:         app.now(),
		MaxAttempts: connectionPolicy(app.cfg).MaxAttempts,
	})
	if err != nil {
		return fmt.Errorf("render status: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func writeHistory(cmd *cobra.Command, app *app) error {
	if app.state == nil {
		return nil
	}

	records, err := app.state.History(cmd.Context())
	if err != nil {
		return fmt.Errorf("load switch history: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		_, err = fmt.Fprintln(out, mutedStyle.Render("no switches recorded"))
		return err
	}

	if _, err := fmt.Fprintln(out, "recent switches:"); err != nil {
		return err
	}
	for _, record := range historyViews(records) {
		from := record.From
		if from == "" {
			from = "-"
		}
		if _, err := fmt.Fprintf(out, "  %s  %s -> %s\n", record.At, from, record.To); err != nil {
			return err
		}
	}
	return nil
}

func statusViews(statuses []application.MindStatus) []statusView {
	views := make([]statusView, 0, len(statuses))
	for _, status := range statuses {
		view := statusView{
			Mind:       newMindView(status.Profile, activeOf(status), defaultOf(status)),
			State:      string(status.State.Status),
			RetryCount: status.State.RetryCount,
		}
		if !status.State.ConnectedAt.IsZero() {
			view.Connected = status.State.ConnectedAt.UTC().Format(time.RFC3339)
		}
		if status.State.LastError != nil {
			view.LastError = status.State.LastError.Error()
		}
		views = append(views, view)
	}
	return views
}

func historyViews(records []domain.ActiveMindRecord) []switchView {
	views := make([]switchView, 0, len(records))
	for _, record := range records {
		views = append(views, switchView{
			From: string(record.PreviousID),
			To:   string(record.MindID),
			At:   record.SwitchedAt.Local().Format(time.DateTime),
		})
	}
	return views
}

func activeOf(status application.MindStatus) domain.MindID {
	if status.Active {
		return status.Profile.ID
	}
	return ""
}

func defaultOf(status application.MindStatus) domain.MindID {
	if status.Default {
		return status.Profile.ID
	}
	return ""
}
