package application

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bnema/penphinmind/internal/domain"
	"github.com/bnema/penphinmind/internal/ports"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// CodecLookup returns the payload codec for a mind's configured codec kind.
type CodecLookup func(kind domain.CodecKind) (ports.Codec, error)

type TurnRequest struct {
	Text string
	// MindID targets a specific mind; empty means the caller already resolved
	// the active mind.
	MindID domain.MindID
}

var errTurnTimeout = errors.New("turn timed out")

// Orchestrator routes conversation turns to minds and turns their response
// frames into event sequences.
type Orchestrator struct {
	registry    *Registry
	connections *ConnectionManager
	codecs      CodecLookup
	secrets     ports.SecretStore
	policy      SessionPolicy
	logger      *zap.Logger
	clock       ports.Clock
	sessionID   string

	turnSeq atomic.Uint64
}

type OrchestratorOption func(*Orchestrator)

func WithSecretStore(secrets ports.SecretStore) OrchestratorOption {
	return func(o *Orchestrator) {
		o.secrets = secrets
	}
}

func WithSessionPolicy(policy SessionPolicy) OrchestratorOption {
	return func(o *Orchestrator) {
		o.policy = policy
	}
}

func WithOrchestratorLogger(logger *zap.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithOrchestratorClock(clock ports.Clock) OrchestratorOption {
	return func(o *Orchestrator) {
		if clock != nil {
			o.clock = clock
		}
	}
}

func NewOrchestrator(registry *Registry, connections *ConnectionManager, codecs CodecLookup, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		registry:    registry,
		connections: connections,
		codecs:      codecs,
		policy:      DefaultSessionPolicy(),
		logger:      zap.NewNop(),
		clock:       ports.SystemClock{},
		sessionID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(zap.String("session", o.sessionID))

	return o
}

func (o *Orchestrator) SessionID() string {
	return o.sessionID
}

// Submit captures the target mind and allocates the turn. Nothing is sent
// until the returned stream is iterated.
func (o *Orchestrator) Submit(ctx context.Context, req TurnRequest) *TurnStream {
	turn := domain.ConversationTurn{
		ID:        domain.TurnID(o.turnSeq.Add(1)),
		RequestID: ulid.Make().String(),
		MindID:    req.MindID,
		UserText:  req.Text,
		StartedAt: o.clock.Now(),
	}
	stream := &TurnStream{orchestrator: o, ctx: ctx, turn: turn}

	profile, err := o.registry.Get(req.MindID)
	if err != nil {
		stream.err = err
		return stream
	}
	if strings.TrimSpace(req.Text) == "" {
		stream.err = &domain.ConfigError{MindID: req.MindID, Field: "prompt", Err: errors.New("is empty")}
		return stream
	}

	stream.profile = profile
	stream.turn.Persona = profile.Persona()
	stream.turn.Params = profile.Params()
	stream.turn.Streaming = profile.Streaming
	return stream
}

// TurnStream is the single-use event sequence of one turn.
type TurnStream struct {
	orchestrator *Orchestrator
	ctx          context.Context
	turn         domain.ConversationTurn
	profile      domain.MindProfile
	err          error

	once sync.Once
}

func (s *TurnStream) Turn() domain.ConversationTurn {
	return s.turn
}

// Events yields the turn's tokens followed by exactly one terminal event.
// Stopping early cancels the turn and frees the mind for the next one.
func (s *TurnStream) Events() iter.Seq[domain.Event] {
	return func(yield func(domain.Event) bool) {
		started := false
		s.once.Do(func() { started = true })
		if !started {
			yield(s.errorEvent(domain.ErrorKindCanceled, errors.New("turn stream already consumed")))
			return
		}

		s.run(yield)
	}
}

// Collect drains the stream into the final text.
func (s *TurnStream) Collect() (string, error) {
	var builder strings.Builder
	for event := range s.Events() {
		switch e := event.(type) {
		case domain.TokenEvent:
			builder.WriteString(e.Text)
		case domain.EndOfTurn:
			if e.Text != "" {
				return e.Text, nil
			}
			return builder.String(), nil
		case domain.ErrorEvent:
			return builder.String(), e
		}
	}
	return builder.String(), nil
}

func (s *TurnStream) run(yield func(domain.Event) bool) {
	o := s.orchestrator
	if s.err != nil {
		yield(s.errorEvent(kindOf(s.err), s.err))
		return
	}

	logger := o.logger.With(
		zap.String("mind", string(s.turn.MindID)),
		zap.Uint64("turn", uint64(s.turn.ID)),
		zap.String("request_id", s.turn.RequestID))

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if o.policy.TurnTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeoutCause(ctx, o.policy.TurnTimeout, errTurnTimeout)
		defer cancelTimeout()
	}

	codec, err := o.codecs(s.profile.Endpoint.Codec)
	if err != nil {
		yield(s.errorEvent(domain.ErrorKindRegistry, &domain.ConfigError{MindID: s.turn.MindID, Field: "connection.codec", Err: err}))
		return
	}

	token, err := s.authToken(ctx)
	if err != nil {
		yield(s.errorEvent(domain.ErrorKindRegistry, err))
		return
	}

	payload, err := codec.EncodeRequest(domain.Request{
		RequestID:   s.turn.RequestID,
		DeviceID:    s.profile.DeviceID,
		Model:       s.turn.Params.Model,
		Persona:     s.turn.Persona,
		Prompt:      s.turn.UserText,
		Temperature: s.turn.Params.Temperature,
		MaxTokens:   s.turn.Params.MaxTokens,
		Stream:      s.turn.Streaming,
		AuthToken:   token,
	})
	if err != nil {
		yield(s.errorEvent(domain.ErrorKindProtocol, &domain.ProtocolError{MindID: s.turn.MindID, Reason: "encode request", Err: err}))
		return
	}

	lease, err := o.connections.Lease(ctx, s.turn.MindID)
	if err != nil {
		yield(s.errorEvent(s.classifyContext(ctx, err), s.contextError(ctx, err)))
		return
	}
	defer lease.Release()

	if err := s.send(ctx, lease, payload, logger); err != nil {
		yield(s.errorEvent(s.classifyContext(ctx, err), s.contextError(ctx, err)))
		return
	}
	sentAt := o.clock.Now()
	receivedAtSend := lease.Received()
	logger.Debug("turn sent", zap.Bool("stream", s.turn.Streaming))

	var (
		text   strings.Builder
		tokens int
	)
	for {
		raw, err := lease.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil && errors.Is(context.Cause(ctx), errTurnTimeout) {
				s.handleTimeout(lease, sentAt, receivedAtSend, logger)
				yield(s.errorEvent(domain.ErrorKindTransport, &domain.TransportError{
					Kind:     domain.TransportTimeout,
					MindID:   s.turn.MindID,
					Endpoint: s.profile.Endpoint.String(),
					Err:      errTurnTimeout,
				}))
				return
			}
			if s.ctx.Err() != nil {
				yield(s.errorEvent(domain.ErrorKindCanceled, s.ctx.Err()))
				return
			}

			lease.Fail(err)
			logger.Warn("link failed mid-turn", zap.Int("tokens", tokens), zap.Error(err))
			yield(s.errorEvent(kindOf(err), withMind(err, s.turn.MindID)))
			return
		}

		resp, err := codec.DecodeResponse(raw)
		if err != nil {
			lease.Fail(err)
			logger.Warn("malformed frame, dropping connection", zap.Error(err))
			yield(s.errorEvent(domain.ErrorKindProtocol, withMind(err, s.turn.MindID)))
			return
		}
		if resp.RequestID != s.turn.RequestID {
			logger.Debug("skipping stale frame", zap.String("frame_request_id", resp.RequestID), zap.String("type", string(resp.Type)))
			continue
		}

		switch resp.Type {
		case domain.ResponseDelta:
			if resp.Text == "" {
				continue
			}
			text.WriteString(resp.Text)
			tokens++
			if !yield(domain.TokenEvent{Text: resp.Text}) {
				return
			}
		case domain.ResponseResult:
			if tokens == 0 && resp.Text != "" {
				text.WriteString(resp.Text)
				tokens++
				if !yield(domain.TokenEvent{Text: resp.Text}) {
					return
				}
			}
			s.end(yield, resultText(resp.Text, text.String()), tokens, sentAt, logger)
			return
		case domain.ResponseEnd:
			s.end(yield, text.String(), tokens, sentAt, logger)
			return
		case domain.ResponseError:
			genErr := &domain.GenerationError{MindID: s.turn.MindID, Code: resp.ErrorCode, Message: resp.ErrorMessage}
			logger.Info("mind reported generation error", zap.String("code", resp.ErrorCode))
			yield(s.errorEvent(domain.ErrorKindGeneration, genErr))
			return
		}
	}
}

func (s *TurnStream) send(ctx context.Context, lease *Lease, payload []byte, logger *zap.Logger) error {
	err := lease.Send(ctx, payload)
	if err == nil || ctx.Err() != nil {
		return err
	}

	logger.Warn("send failed, reconnecting once", zap.Error(err))
	if err := lease.Reconnect(ctx, err); err != nil {
		return err
	}
	if err := lease.Send(ctx, payload); err != nil {
		lease.Fail(err)
		return withMind(err, s.turn.MindID)
	}
	return nil
}

// handleTimeout closes the link only when it went silent for the whole stall
// window; a slow but chatty backend keeps its connection.
func (s *TurnStream) handleTimeout(lease *Lease, sentAt time.Time, receivedAtSend uint64, logger *zap.Logger) {
	o := s.orchestrator
	silent := lease.Received() == receivedAtSend
	elapsed := o.clock.Now().Sub(sentAt)
	if silent && o.policy.StallTimeout > 0 && elapsed >= o.policy.StallTimeout {
		lease.Fail(&domain.TransportError{Kind: domain.TransportTimeout, MindID: s.turn.MindID, Err: errTurnTimeout})
		logger.Warn("link stalled, connection dropped", zap.Duration("elapsed", elapsed))
		return
	}
	logger.Info("turn timed out on a live link", zap.Duration("elapsed", elapsed), zap.Bool("silent", silent))
}

func (s *TurnStream) end(yield func(domain.Event) bool, text string, tokens int, sentAt time.Time, logger *zap.Logger) {
	logger.Debug("turn complete",
		zap.Int("tokens", tokens),
		zap.Duration("latency", s.orchestrator.clock.Now().Sub(sentAt)))
	yield(domain.EndOfTurn{TurnID: s.turn.ID, MindID: s.turn.MindID, Text: text, Tokens: tokens})
}

func (s *TurnStream) authToken(ctx context.Context) (string, error) {
	if s.orchestrator.secrets == nil {
		if s.profile.TokenRequired() {
			return "", &domain.ConfigError{MindID: s.turn.MindID, Field: "auth.secret_ref", Err: domain.ErrSecretNotFound}
		}
		return "", nil
	}

	token, err := s.orchestrator.secrets.Get(ctx, s.profile.SecretKey())
	if err != nil {
		if !s.profile.TokenRequired() && errors.Is(err, domain.ErrSecretNotFound) {
			return "", nil
		}
		return "", &domain.ConfigError{MindID: s.turn.MindID, Field: "auth.secret_ref", Err: err}
	}
	return strings.TrimSpace(token), nil
}

func (s *TurnStream) classifyContext(ctx context.Context, err error) domain.ErrorKind {
	if ctx.Err() != nil && errors.Is(context.Cause(ctx), errTurnTimeout) {
		return domain.ErrorKindTransport
	}
	if s.ctx.Err() != nil {
		return domain.ErrorKindCanceled
	}
	return kindOf(err)
}

func (s *TurnStream) contextError(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(context.Cause(ctx), errTurnTimeout) {
		return &domain.TransportError{Kind: domain.TransportTimeout, MindID: s.turn.MindID, Endpoint: s.profile.Endpoint.String(), Err: errTurnTimeout}
	}
	return err
}

func (s *TurnStream) errorEvent(kind domain.ErrorKind, err error) domain.ErrorEvent {
	return domain.ErrorEvent{
		Kind:    kind,
		Message: err.Error(),
		MindID:  s.turn.MindID,
		TurnID:  s.turn.ID,
		Err:     err,
	}
}

func kindOf(err error) domain.ErrorKind {
	switch {
	case errors.Is(err, domain.ErrMindNotFound), errors.Is(err, domain.ErrConfig):
		return domain.ErrorKindRegistry
	case errors.Is(err, domain.ErrProtocol):
		return domain.ErrorKindProtocol
	case errors.Is(err, domain.ErrGeneration):
		return domain.ErrorKindGeneration
	case errors.Is(err, context.Canceled):
		return domain.ErrorKindCanceled
	default:
		return domain.ErrorKindTransport
	}
}

// withMind stamps the mind id onto transport and protocol errors raised below
// the application layer.
func withMind(err error, id domain.MindID) error {
	var transportErr *domain.TransportError
	if errors.As(err, &transportErr) && transportErr.MindID == "" {
		copied := *transportErr
		copied.MindID = id
		return &copied
	}
	var protocolErr *domain.ProtocolError
	if errors.As(err, &protocolErr) && protocolErr.MindID == "" {
		copied := *protocolErr
		copied.MindID = id
		return &copied
	}
	if transportErr == nil && protocolErr == nil {
		return fmt.Errorf("mind %q: %w", id, err)
	}
	return err
}

func resultText(result, streamed string) string {
	if result != "" {
		return result
	}
	return streamed
}
