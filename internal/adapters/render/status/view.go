package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/penphinmind/internal/application"
	"github.com/bnema/penphinmind/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	Now time.Time
	// MaxAttempts sizes the retry bar; zero hides it.
	MaxAttempts int
}

func renderView(statuses []application.MindStatus, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("PenphinMind"),
		s.header.Render(headerLine(statuses)),
	}

	if len(statuses) == 0 {
		lines = append(lines, s.empty.Render("No minds configured."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, status := range statuses {
		lines = append(lines, s.section.Render(renderMind(status, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func headerLine(statuses []application.MindStatus) string {
	connected := 0
	active := "none"
	for _, status := range statuses {
		if status.State.Healthy() {
			connected++
		}
		if status.Active {
			active = string(status.Profile.ID)
		}
	}

	return fmt.Sprintf("minds: %d  connected: %d  active: %s", len(statuses), connected, active)
}

func renderMind(status application.MindStatus, opts RenderOptions, s styles) string {
	title := lipgloss.JoinHorizontal(
		lipgloss.Top,
		statusMarker(status.State.Status, s),
		" ",
		s.mind.Render(fmt.Sprintf("%s (%s)", status.Profile.DisplayName, status.Profile.ID)),
		badges(status, s),
	)

	parts := []string{
		title,
		s.detail.Render("  " + profileLine(status.Profile)),
		"  " + stateLine(status.State, opts, s),
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func badges(status application.MindStatus, s styles) string {
	var out string
	if status.Active {
		out += " " + s.badge.Render("[active]")
	}
	if status.Default {
		out += " " + s.badge.Render("[default]")
	}
	return out
}

func statusMarker(status domain.ConnectionStatus, s styles) string {
	switch status {
	case domain.StatusConnected:
		return s.connected.Render("●")
	case domain.StatusConnecting:
		return s.connecting.Render("◐")
	case domain.StatusFailed:
		return s.failed.Render("✗")
	default:
		return s.idle.Render("○")
	}
}

func profileLine(profile domain.MindProfile) string {
	mode := "stream"
	if !profile.Streaming {
		mode = "whole"
	}

	return strings.Join([]string{
		profile.Endpoint.String(),
		string(profile.Endpoint.Codec),
		profile.Model,
		fmt.Sprintf("temp %.2f", profile.Temperature),
		fmt.Sprintf("max %d", profile.MaxTokens),
		mode,
	}, "  ")
}

func stateLine(state domain.ConnectionState, opts RenderOptions, s styles) string {
	switch state.Status {
	case domain.StatusConnected:
		line := s.connected.Render("connected")
		if !state.ConnectedAt.IsZero() {
			line += s.detail.Render(" " + formatSince(state.ConnectedAt, opts.Now))
		}
		if state.RetryCount > 0 {
			line += s.detail.Render(fmt.Sprintf(" after %s", plural(state.RetryCount, "retry", "retries")))
		}
		return line
	case domain.StatusConnecting:
		return lipgloss.JoinHorizontal(lipgloss.Top, s.connecting.Render("connecting"), retryBar(state.RetryCount, opts.MaxAttempts, s))
	case domain.StatusFailed:
		line := lipgloss.JoinHorizontal(lipgloss.Top, s.failed.Render("failed"), retryBar(state.RetryCount, opts.MaxAttempts, s))
		if state.LastError != nil {
			line += " " + s.warning.Render(state.LastError.Error())
		}
		return line
	default:
		return s.idle.Render("disconnected")
	}
}

func retryBar(attempts, maxAttempts int, s styles) string {
	if maxAttempts <= 0 {
		return ""
	}

	used := attempts
	if used < 0 {
		used = 0
	}
	if used > maxAttempts {
		used = maxAttempts
	}

	return " " + lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", used)),
		s.barEmpty.Render(strings.Repeat("-", maxAttempts-used)),
		s.barBracket.Render("]"),
	)
}

func formatSince(at, now time.Time) string {
	if now.IsZero() {
		return "since " + at.Format(time.RFC3339)
	}
	if !at.Before(now) {
		return "just now"
	}

	elapsed := now.Sub(at)
	switch {
	case elapsed < time.Minute:
		return plural(int(math.Max(1, math.Floor(elapsed.Seconds()))), "second", "seconds") + " ago"
	case elapsed < time.Hour:
		return plural(int(math.Floor(elapsed.Minutes())), "minute", "minutes") + " ago"
	case elapsed < 24*time.Hour:
		return plural(int(math.Floor(elapsed.Hours())), "hour", "hours") + " ago"
	default:
		return "since " + at.Format("15:04 on 02 Jan")
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
