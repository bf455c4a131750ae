// Package mindsim is a stand-in mind backend. It speaks the framed wire
// protocol over TCP, websocket or any byte stream and answers each request
// with the persona-prefixed echo of its prompt.
package mindsim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bnema/penphinmind/internal/adapters/transport"
	"github.com/bnema/penphinmind/internal/adapters/wire"
	"github.com/bnema/penphinmind/internal/domain"
	"github.com/bnema/penphinmind/internal/ports"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	ErrCodeUnauthorized  = "unauthorized"
	ErrCodeUnknownModel  = "model_not_found"
	ErrCodeInvalidParams = "invalid_params"
)

type Server struct {
	codec      ports.Codec
	logger     *zap.Logger
	tokenDelay time.Duration
	authToken  string
	models     []string

	upgrader websocket.Upgrader

	wg    sync.WaitGroup
	mu    sync.Mutex
	conns map[io.Closer]struct{}
}

type Option func(*Server)

func WithCodec(codec ports.Codec) Option {
	return func(s *Server) {
		if codec != nil {
			s.codec = codec
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTokenDelay spaces streamed deltas to mimic generation speed.
func WithTokenDelay(d time.Duration) Option {
	return func(s *Server) {
		s.tokenDelay = d
	}
}

// WithAuthToken rejects requests that do not carry token.
func WithAuthToken(token string) Option {
	return func(s *Server) {
		s.authToken = token
	}
}

// WithModels restricts the accepted model names.
func WithModels(models ...string) Option {
	return func(s *Server) {
		s.models = models
	}
}

func New(opts ...Option) *Server {
	s := &Server{
		codec:  wire.JSONCodec{},
		logger: zap.NewNop(),
		conns:  map[io.Closer]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Serve accepts connections until ctx is done, then closes every open
// connection and waits for their handlers.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	s.logger.Info("simulated mind listening", zap.String("addr", ln.Addr().String()), zap.String("codec", string(s.codec.Kind())))

	var acceptErr error
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				acceptErr = fmt.Errorf("accept: %w", err)
			}
			break
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ServeConn(ctx, conn)
		}()
	}

	s.closeAll()
	s.wg.Wait()
	return acceptErr
}

// WebSocketHandler upgrades each request and serves it like a stream
// connection.
func (s *Server) WebSocketHandler(ctx context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Debug("websocket upgrade failed", zap.Error(err))
			return
		}

		connCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(r.Context(), cancel)
		defer stop()

		s.ServeConn(connCtx, transport.NewWebSocketStream(conn))
	})
}

// ServeConn answers requests on one stream until the peer hangs up or ctx
// is done.
func (s *Server) ServeConn(ctx context.Context, conn io.ReadWriteCloser) {
	if !s.track(conn) {
		_ = conn.Close()
		return
	}
	defer s.untrack(conn)

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		payload, err := transport.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("read frame", zap.Error(err))
			}
			return
		}

		req, err := s.codec.DecodeRequest(payload)
		if err != nil {
			s.logger.Warn("dropping malformed request", zap.Error(err))
			return
		}

		if err := s.answer(ctx, conn, req); err != nil {
			if ctx.Err() == nil {
				s.logger.Debug("write response", zap.String("request_id", req.RequestID), zap.Error(err))
			}
			return
		}
	}
}

func (s *Server) answer(ctx context.Context, w io.Writer, req domain.Request) error {
	logger := s.logger.With(zap.String("request_id", req.RequestID), zap.String("model", req.Model))

	if code, message := s.reject(req); code != "" {
		logger.Info("rejecting request", zap.String("code", code))
		return s.write(w, domain.Response{RequestID: req.RequestID, Type: domain.ResponseError, ErrorCode: code, ErrorMessage: message})
	}

	words := Reply(req)
	if !req.Stream {
		return s.write(w, domain.Response{RequestID: req.RequestID, Type: domain.ResponseResult, Text: strings.Join(words, " ")})
	}

	for i, word := range words {
		if i > 0 {
			word = " " + word
			if err := sleepContext(ctx, s.tokenDelay); err != nil {
				return err
			}
		}
		if err := s.write(w, domain.Response{RequestID: req.RequestID, Type: domain.ResponseDelta, Text: word}); err != nil {
			return err
		}
	}
	logger.Debug("streamed reply", zap.Int("tokens", len(words)))

	return s.write(w, domain.Response{RequestID: req.RequestID, Type: domain.ResponseEnd})
}

func (s *Server) reject(req domain.Request) (string, string) {
	if s.authToken != "" && req.AuthToken != s.authToken {
		return ErrCodeUnauthorized, "missing or invalid auth token"
	}
	if len(s.models) > 0 && !slices.Contains(s.models, req.Model) {
		return ErrCodeUnknownModel, fmt.Sprintf("model %q is not loaded", req.Model)
	}
	if req.MaxTokens <= 0 {
		return ErrCodeInvalidParams, "max_tokens must be positive"
	}
	return "", ""
}

func (s *Server) write(w io.Writer, resp domain.Response) error {
	payload, err := s.codec.EncodeResponse(resp)
	if err != nil {
		return err
	}
	return transport.WriteFrame(w, payload)
}

// Reply is the simulated generation: the persona followed by the prompt,
// split into words and cut at max_tokens.
func Reply(req domain.Request) []string {
	words := append(strings.Fields(req.Persona), strings.Fields(req.Prompt)...)
	if req.MaxTokens > 0 && len(words) > req.MaxTokens {
		words = words[:req.MaxTokens]
	}
	return words
}

func (s *Server) track(conn io.Closer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn io.Closer) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	_ = conn.Close()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
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
