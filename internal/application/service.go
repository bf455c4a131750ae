package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/penphinmind/internal/domain"
	"github.com/bnema/penphinmind/internal/ports"
)

var ErrEmptyToken = errors.New("token is empty")

// Service is the caller-facing API of the mind session core.
type Service struct {
	registry     *Registry
	connections  *ConnectionManager
	orchestrator *Orchestrator
	switcher     *Switcher
	secrets      ports.SecretStore
}

func NewService(registry *Registry, connections *ConnectionManager, orchestrator *Orchestrator, switcher *Switcher, secrets ports.SecretStore) *Service {
	return &Service{
		registry:     registry,
		connections:  connections,
		orchestrator: orchestrator,
		switcher:     switcher,
		secrets:      secrets,
	}
}

// SubmitTurn sends text to mindOverride, or to the active mind when the
// override is empty. The target is fixed before this call returns.
func (s *Service) SubmitTurn(ctx context.Context, text string, mindOverride domain.MindID) *TurnStream {
	target := mindOverride
	if target == "" {
		target = s.switcher.Active()
	}

	return s.orchestrator.Submit(ctx, TurnRequest{Text: text, MindID: target})
}

func (s *Service) SwitchMind(ctx context.Context, id domain.MindID) (domain.MindID, error) {
	return s.switcher.SwitchTo(ctx, id)
}

func (s *Service) ListMinds() []domain.MindID {
	return s.registry.IDs()
}

func (s *Service) Minds() []domain.MindProfile {
	return s.registry.Profiles()
}

func (s *Service) Mind(id domain.MindID) (domain.MindProfile, error) {
	return s.registry.Get(id)
}

func (s *Service) DefaultMind() domain.MindID {
	return s.registry.DefaultID()
}

func (s *Service) ActiveMind() domain.MindID {
	return s.switcher.Active()
}

func (s *Service) Status() []MindStatus {
	active := s.switcher.Active()
	states := s.connections.States()

	statuses := make([]MindStatus, 0, len(states))
	for _, state := range states {
		profile, err := s.registry.Get(state.MindID)
		if err != nil {
			continue
		}
		statuses = append(statuses, MindStatus{
			Profile: profile,
			State:   state,
			Active:  state.MindID == active,
			Default: state.MindID == s.registry.DefaultID(),
		})
	}

	return statuses
}

// Connect opens the mind's connection ahead of its first turn.
func (s *Service) Connect(ctx context.Context, id domain.MindID) (domain.ConnectionState, error) {
	if _, err := s.connections.Acquire(ctx, id); err != nil {
		state, stateErr := s.connections.State(id)
		if stateErr != nil {
			return domain.ConnectionState{}, err
		}
		return state, err
	}

	return s.connections.State(id)
}

func (s *Service) ConnectAll(ctx context.Context) ([]MindStatus, error) {
	err := s.connections.PrewarmAll(ctx)
	return s.Status(), err
}

// Disconnect closes the mind's connection, waiting for a running turn unless
// force is set.
func (s *Service) Disconnect(ctx context.Context, id domain.MindID, force bool) error {
	if force {
		return s.connections.ForceDisconnect(id)
	}
	return s.connections.Release(ctx, id)
}

func (s *Service) SetToken(ctx context.Context, cmd SetTokenCommand) error {
	profile, err := s.registry.Get(cmd.MindID)
	if err != nil {
		return err
	}
	token := strings.TrimSpace(cmd.Token)
	if token == "" {
		return ErrEmptyToken
	}
	if s.secrets == nil {
		return errors.New("no secret store configured")
	}

	if err := s.secrets.Put(ctx, profile.SecretKey(), token); err != nil {
		return fmt.Errorf("store token for mind %q: %w", cmd.MindID, err)
	}

	return nil
}

func (s *Service) RemoveToken(ctx context.Context, cmd RemoveTokenCommand) error {
	profile, err := s.registry.Get(cmd.MindID)
	if err != nil {
		return err
	}
	if s.secrets == nil {
		return errors.New("no secret store configured")
	}

	if err := s.secrets.Delete(ctx, profile.SecretKey()); err != nil {
		return fmt.Errorf("delete token for mind %q: %w", cmd.MindID, err)
	}

	return nil
}

// Close tears down every connection.
func (s *Service) Close() error {
	return s.connections.Close()
}
