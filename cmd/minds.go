package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bnema/penphinmind/internal/domain"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	activeMarkerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	mindIDStyle       = lipgloss.NewStyle().Bold(true)
	mutedStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type mindView struct {
	ID          domain.MindID `json:"id"`
	Name        string        `json:"name"`
	DeviceID    string        `json:"device_id,omitempty"`
	Endpoint    string        `json:"endpoint"`
	Codec       string        `json:"codec"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
	Persona     string        `json:"persona"`
	SecretKey   string        `json:"secret_key"`
	Active      bool          `json:"active"`
	Default     bool          `json:"default"`
}

func newMindView(profile domain.MindProfile, active, defaultID domain.MindID) mindView {
	return mindView{
		ID:          profile.ID,
		Name:        profile.DisplayName,
		DeviceID:    profile.DeviceID,
		Endpoint:    profile.Endpoint.String(),
		Codec:       string(profile.Endpoint.Codec),
		Model:       profile.Model,
		Temperature: profile.Temperature,
		MaxTokens:   profile.MaxTokens,
		Stream:      profile.Streaming,
		Persona:     profile.Persona(),
		SecretKey:   profile.SecretKey(),
		Active:      profile.ID == active,
		Default:     profile.ID == defaultID,
	}
}

func newMindsCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "minds",
		Short: "List configured minds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			views := make([]mindView, 0, len(svc.ListMinds()))
			defaultID := svc.DefaultMind()
			for _, profile := range svc.Minds() {
				views = append(views, newMindView(profile, svc.ActiveMind(), defaultID))
			}

			if asJSON {
				return writeJSON(cmd, views)
			}

			out := cmd.OutOrStdout()
			for _, view := range views {
				marker := " "
				if view.Active {
					marker = activeMarkerStyle.Render("*")
				}
				line := fmt.Sprintf("%s %s  %s  %s", marker, mindIDStyle.Render(string(view.ID)), view.Name, mutedStyle.Render(view.Endpoint))
				if view.Default {
					line += mutedStyle.Render("  (default)")
				}
				if _, err := fmt.Fprintln(out, line); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON output")
	cmd.AddCommand(newMindsShowCmd(app))

	return cmd
}

func newMindsShowCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <mind>",
		Short: "Show one mind's profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			profile, err := svc.Mind(domain.MindID(args[0]))
			if err != nil {
				return err
			}
			view := newMindView(profile, svc.ActiveMind(), svc.DefaultMind())
			if asJSON {
				return writeJSON(cmd, view)
			}

			rows := [][2]string{
				{"id", string(view.ID)},
				{"name", view.Name},
				{"device", view.DeviceID},
				{"endpoint", view.Endpoint},
				{"codec", view.Codec},
				{"model", view.Model},
				{"temperature", fmt.Sprintf("%.2f", view.Temperature)},
				{"max tokens", fmt.Sprintf("%d", view.MaxTokens)},
				{"stream", fmt.Sprintf("%t", view.Stream)},
				{"persona", view.Persona},
				{"token key", view.SecretKey},
				{"active", fmt.Sprintf("%t", view.Active)},
			}

			var b strings.Builder
			for _, row := range rows {
				if row[1] == "" {
					continue
				}
				fmt.Fprintf(&b, "%-12s %s\n", mutedStyle.Render(row[0]), row[1])
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), b.String())
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON output")

	return cmd
}

func newSwitchCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <mind>",
		Short: "Make a mind the target of new turns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.Service(cmd.Context())
			if err != nil {
				return err
			}

			target := domain.MindID(args[0])
			previous, err := svc.SwitchMind(cmd.Context(), target)
			if err != nil {
				return err
			}

			if previous == target {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "active mind: %s (unchanged)\n", target)
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "active mind: %s (was %s)\n", target, previous)
			return err
		},
	}
}

func writeJSON(cmd *cobra.Command, value any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
