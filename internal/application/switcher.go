package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/bnema/penphinmind/internal/domain"
	"github.com/bnema/penphinmind/internal/ports"
	"go.uber.org/zap"
)

// Switcher holds the active mind pointer. Turns read it once at submission,
// so a switch never affects a turn already in flight.
type Switcher struct {
	registry    *Registry
	connections *ConnectionManager
	store       ports.ActiveMindStore
	logger      *zap.Logger
	clock       ports.Clock

	mu     sync.RWMutex
	active domain.MindID
}

type SwitcherOption func(*Switcher)

func WithActiveMindStore(store ports.ActiveMindStore) SwitcherOption {
	return func(s *Switcher) {
		s.store = store
	}
}

func WithSwitcherLogger(logger *zap.Logger) SwitcherOption {
	return func(s *Switcher) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithSwitcherClock(clock ports.Clock) SwitcherOption {
	return func(s *Switcher) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewSwitcher starts on the persisted mind when it is still configured, and
// on the registry default otherwise.
func NewSwitcher(ctx context.Context, registry *Registry, connections *ConnectionManager, opts ...SwitcherOption) *Switcher {
	s := &Switcher{
		registry:    registry,
		connections: connections,
		logger:      zap.NewNop(),
		clock:       ports.SystemClock{},
		active:      registry.DefaultID(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		return s
	}
	record, err := s.store.Load(ctx)
	switch {
	case err != nil:
		s.logger.Warn("could not load active mind, using default", zap.Error(err))
	case record.MindID == "":
	case !registry.Has(record.MindID):
		s.logger.Warn("persisted mind is no longer configured, using default",
			zap.String("mind", string(record.MindID)),
			zap.String("default", string(registry.DefaultID())))
	default:
		s.active = record.MindID
	}

	return s
}

func (s *Switcher) Active() domain.MindID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SwitchTo makes id the active mind and returns the previous one. The
// previous mind's connection stays open. An unknown id leaves the pointer
// untouched.
func (s *Switcher) SwitchTo(ctx context.Context, id domain.MindID) (domain.MindID, error) {
	if !s.registry.Has(id) {
		return s.Active(), &domain.NotFoundError{MindID: id}
	}

	s.mu.Lock()
	previous := s.active
	s.active = id
	s.mu.Unlock()

	s.logger.Info("active mind switched", zap.String("from", string(previous)), zap.String("to", string(id)))

	if s.connections != nil {
		s.connections.Prewarm(id)
	}

	if s.store != nil {
		record := domain.ActiveMindRecord{MindID: id, PreviousID: previous, SwitchedAt: s.clock.Now()}
		if err := s.store.Save(ctx, record); err != nil {
			return previous, fmt.Errorf("persist active mind: %w", err)
		}
	}

	return previous, nil
}
