package toml

import (
	"fmt"
	"time"
)

const stateFileVersion = 1

// stateSchema is the on-disk layout of state.toml.
type stateSchema struct {
	Version      int            `toml:"version"`
	ActiveMind   string         `toml:"active_mind,omitempty"`
	PreviousMind string         `toml:"previous_mind,omitempty"`
	SwitchedAt   string         `toml:"switched_at,omitempty"`
	History      []switchSchema `toml:"history,omitempty"`
}

type switchSchema struct {
	From string `toml:"from,omitempty"`
	To   string `toml:"to"`
	At   string `toml:"at"`
}

func (s *stateSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = stateFileVersion
	}
}

func (s stateSchema) validateVersion() error {
	if s.Version != 0 && s.Version != stateFileVersion {
		return fmt.Errorf("unsupported state file version %d", s.Version)
	}
	return nil
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.UTC().Format(time.RFC3339)
}
