package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/penphinmind/internal/domain"
	"github.com/bnema/penphinmind/internal/ports"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type sleepFunc func(ctx context.Context, d time.Duration) error

var errManagerClosed = &domain.TransportError{Kind: domain.TransportClosed, Err: errors.New("connection manager closed")}

// ConnectionManager owns at most one transport per mind. Connection attempts
// for one mind are collapsed into a single in-flight dial; different minds
// never wait on each other.
type ConnectionManager struct {
	registry *Registry
	dialer   ports.Dialer
	policy   ConnectionPolicy
	logger   *zap.Logger
	clock    ports.Clock
	sleep    sleepFunc

	group singleflight.Group

	baseCtx  context.Context
	cancel   context.CancelFunc
	prewarms sync.WaitGroup

	mu      sync.Mutex
	entries map[domain.MindID]*mindEntry
}

type mindEntry struct {
	id   domain.MindID
	slot chan struct{}

	mu        sync.Mutex
	transport ports.Transport
	state     domain.ConnectionState
}

type ConnectionManagerOption func(*ConnectionManager)

func WithConnectionLogger(logger *zap.Logger) ConnectionManagerOption {
	return func(m *ConnectionManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithConnectionClock(clock ports.Clock) ConnectionManagerOption {
	return func(m *ConnectionManager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

func withSleep(sleep sleepFunc) ConnectionManagerOption {
	return func(m *ConnectionManager) {
		m.sleep = sleep
	}
}

func NewConnectionManager(registry *Registry, dialer ports.Dialer, policy ConnectionPolicy, opts ...ConnectionManagerOption) *ConnectionManager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &ConnectionManager{
		registry: registry,
		dialer:   dialer,
		policy:   policy.normalized(),
		logger:   zap.NewNop(),
		clock:    ports.SystemClock{},
		sleep:    sleepContext,
		baseCtx:  ctx,
		cancel:   cancel,
		entries:  map[domain.MindID]*mindEntry{},
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *ConnectionManager) entry(id domain.MindID) *mindEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		e = &mindEntry{
			id:    id,
			slot:  make(chan struct{}, 1),
			state: domain.ConnectionState{MindID: id, Status: domain.StatusDisconnected, UpdatedAt: m.clock.Now()},
		}
		m.entries[id] = e
	}
	return e
}

// Acquire returns the mind's connected transport, dialing it if needed.
// Callers arriving while a dial is in flight wait for that same attempt.
func (m *ConnectionManager) Acquire(ctx context.Context, id domain.MindID) (ports.Transport, error) {
	if _, err := m.registry.Get(id); err != nil {
		return nil, err
	}

	if m.baseCtx.Err() != nil {
		return nil, errManagerClosed
	}

	e := m.entry(id)
	if t := e.healthy(); t != nil {
		return t, nil
	}

	result := m.group.DoChan(string(id), func() (any, error) {
		return m.connect(e)
	})

	select {
	case res := <-result:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(ports.Transport), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *ConnectionManager) connect(e *mindEntry) (ports.Transport, error) {
	if t := e.healthy(); t != nil {
		return t, nil
	}

	profile, err := m.registry.Get(e.id)
	if err != nil {
		return nil, err
	}

	e.setState(m.clock.Now(), func(s *domain.ConnectionState) {
		s.Status = domain.StatusConnecting
		s.RetryCount = 0
	})

	var lastErr error
	for attempt := 1; attempt <= m.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := m.policy.Backoff(attempt - 1)
			m.logger.Debug("waiting before reconnect",
				zap.String("mind", string(e.id)),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay))
			if err := m.sleep(m.baseCtx, delay); err != nil {
				lastErr = err
				break
			}
		}

		transport, err := m.dialer.Dial(m.baseCtx, profile.Endpoint)
		if err == nil && m.baseCtx.Err() != nil {
			_ = transport.Close()
			err = errManagerClosed
		}
		if err == nil {
			now := m.clock.Now()
			e.mu.Lock()
			if e.transport != nil {
				_ = e.transport.Close()
			}
			e.transport = transport
			e.state.Status = domain.StatusConnected
			e.state.LastError = nil
			e.state.RetryCount = attempt - 1
			e.state.ConnectedAt = now
			e.state.UpdatedAt = now
			e.mu.Unlock()

			m.logger.Info("mind connected",
				zap.String("mind", string(e.id)),
				zap.String("endpoint", profile.Endpoint.String()),
				zap.Int("attempt", attempt))
			return transport, nil
		}

		lastErr = err
		e.setState(m.clock.Now(), func(s *domain.ConnectionState) {
			s.RetryCount = attempt
			s.LastError = err
		})
		m.logger.Warn("mind connection attempt failed",
			zap.String("mind", string(e.id)),
			zap.String("endpoint", profile.Endpoint.String()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", m.policy.MaxAttempts),
			zap.Error(err))

		if m.baseCtx.Err() != nil {
			break
		}
	}

	surfaced := exhaustedError(e.id, profile.Endpoint, lastErr, e.retryCount())
	e.setState(m.clock.Now(), func(s *domain.ConnectionState) {
		s.Status = domain.StatusFailed
		s.LastError = surfaced
	})

	return nil, surfaced
}

func exhaustedError(id domain.MindID, endpoint domain.Endpoint, cause error, attempts int) error {
	var transportErr *domain.TransportError
	if errors.As(cause, &transportErr) {
		return &domain.TransportError{
			Kind:     transportErr.Kind,
			MindID:   id,
			Endpoint: endpoint.String(),
			Attempts: attempts,
			Err:      transportErr.Err,
		}
	}

	kind := domain.TransportUnreachable
	if errors.Is(cause, context.Canceled) {
		kind = domain.TransportClosed
	}
	return &domain.TransportError{Kind: kind, MindID: id, Endpoint: endpoint.String(), Attempts: attempts, Err: cause}
}

// Lease reserves the mind's single turn slot, waiting for a running turn to
// finish, and returns a handle bound to the current transport.
func (m *ConnectionManager) Lease(ctx context.Context, id domain.MindID) (*Lease, error) {
	if _, err := m.registry.Get(id); err != nil {
		return nil, err
	}

	e := m.entry(id)
	select {
	case e.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return m.leaseWithSlot(ctx, e)
}

// TryLease is Lease without waiting: it fails with domain.ErrMindBusy when a
// turn is already running on the mind.
func (m *ConnectionManager) TryLease(ctx context.Context, id domain.MindID) (*Lease, error) {
	if _, err := m.registry.Get(id); err != nil {
		return nil, err
	}

	e := m.entry(id)
	select {
	case e.slot <- struct{}{}:
	default:
		return nil, fmt.Errorf("mind %q: %w", id, domain.ErrMindBusy)
	}

	return m.leaseWithSlot(ctx, e)
}

func (m *ConnectionManager) leaseWithSlot(ctx context.Context, e *mindEntry) (*Lease, error) {
	transport, err := m.Acquire(ctx, e.id)
	if err != nil {
		<-e.slot
		return nil, err
	}

	return &Lease{manager: m, entry: e, transport: transport}, nil
}

// MarkFailed drops the transport if it is still the mind's current one.
func (m *ConnectionManager) markFailed(e *mindEntry, transport ports.Transport, cause error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.transport != transport {
		return
	}
	_ = e.transport.Close()
	e.transport = nil
	e.state.Status = domain.StatusFailed
	e.state.LastError = cause
	e.state.UpdatedAt = m.clock.Now()

	m.logger.Warn("mind marked failed", zap.String("mind", string(e.id)), zap.Error(cause))
}

// Release waits for the running turn, if any, then closes the mind's idle
// connection.
func (m *ConnectionManager) Release(ctx context.Context, id domain.MindID) error {
	if _, err := m.registry.Get(id); err != nil {
		return err
	}

	e := m.entry(id)
	select {
	case e.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.slot }()

	m.disconnect(e)
	return nil
}

// ForceDisconnect closes the mind's transport immediately; a running turn
// observes a closed transport.
func (m *ConnectionManager) ForceDisconnect(id domain.MindID) error {
	if _, err := m.registry.Get(id); err != nil {
		return err
	}

	m.disconnect(m.entry(id))
	return nil
}

func (m *ConnectionManager) disconnect(e *mindEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.transport != nil {
		_ = e.transport.Close()
		e.transport = nil
		m.logger.Info("mind disconnected", zap.String("mind", string(e.id)))
	}
	e.state.Status = domain.StatusDisconnected
	e.state.LastError = nil
	e.state.RetryCount = 0
	e.state.UpdatedAt = m.clock.Now()
}

func (m *ConnectionManager) State(id domain.MindID) (domain.ConnectionState, error) {
	if _, err := m.registry.Get(id); err != nil {
		return domain.ConnectionState{}, err
	}

	return m.entry(id).snapshot(), nil
}

// States reports every configured mind in registry order.
func (m *ConnectionManager) States() []domain.ConnectionState {
	ids := m.registry.IDs()
	states := make([]domain.ConnectionState, 0, len(ids))
	for _, id := range ids {
		states = append(states, m.entry(id).snapshot())
	}
	return states
}

// Prewarm starts connecting the mind in the background.
func (m *ConnectionManager) Prewarm(id domain.MindID) {
	// Close cancels under mu, so Add never races its Wait.
	m.mu.Lock()
	if m.baseCtx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.prewarms.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.prewarms.Done()
		if _, err := m.Acquire(m.baseCtx, id); err != nil && m.baseCtx.Err() == nil {
			m.logger.Warn("prewarm failed", zap.String("mind", string(id)), zap.Error(err))
		}
	}()
}

// PrewarmAll connects every configured mind concurrently and reports all
// failures together.
func (m *ConnectionManager) PrewarmAll(ctx context.Context) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)

	for _, id := range m.registry.IDs() {
		g.Go(func() error {
			if _, err := m.Acquire(ctx, id); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

// Close cancels in-flight dials and closes every transport.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	m.cancel()
	m.mu.Unlock()
	m.prewarms.Wait()

	m.mu.Lock()
	entries := make([]*mindEntry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	for _, e := range entries {
		// Do joins a dial still in flight and returns once it has given up.
		_, _, _ = m.group.Do(string(e.id), func() (any, error) { return nil, nil })
		m.disconnect(e)
	}
	return nil
}

func (e *mindEntry) healthy() ports.Transport {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.transport != nil && e.state.Status == domain.StatusConnected {
		return e.transport
	}
	return nil
}

func (e *mindEntry) snapshot() domain.ConnectionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *mindEntry) retryCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.RetryCount
}

func (e *mindEntry) setState(now time.Time, update func(s *domain.ConnectionState)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	update(&e.state)
	e.state.UpdatedAt = now
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Lease is one turn's exclusive use of a mind's transport.
type Lease struct {
	manager   *ConnectionManager
	entry     *mindEntry
	transport ports.Transport

	releaseOnce sync.Once
}

func (l *Lease) MindID() domain.MindID {
	return l.entry.id
}

func (l *Lease) Send(ctx context.Context, frame []byte) error {
	return l.transport.Send(ctx, frame)
}

func (l *Lease) Receive(ctx context.Context) ([]byte, error) {
	return l.transport.Receive(ctx)
}

func (l *Lease) Received() uint64 {
	return l.transport.Received()
}

// Fail marks the mind Failed and closes the leased transport so the next
// acquire reconnects.
func (l *Lease) Fail(cause error) {
	l.manager.markFailed(l.entry, l.transport, cause)
}

// Reconnect swaps a failed transport for a fresh one while keeping the slot.
func (l *Lease) Reconnect(ctx context.Context, cause error) error {
	l.Fail(cause)

	transport, err := l.manager.Acquire(ctx, l.entry.id)
	if err != nil {
		return err
	}
	l.transport = transport
	return nil
}

func (l *Lease) Release() {
	l.releaseOnce.Do(func() {
		<-l.entry.slot
	})
}
