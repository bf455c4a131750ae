package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/bnema/penphinmind/internal/domain"
	"github.com/bnema/penphinmind/internal/ports"
	"github.com/gorilla/websocket"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

const DefaultConnectTimeout = 5 * time.Second

type serialOpenFunc func(path string, mode *serial.Mode) (serial.Port, error)

type Dialer struct {
	connectTimeout time.Duration
	logger         *zap.Logger
	netDialer      *net.Dialer
	wsDialer       *websocket.Dialer
	openSerial     serialOpenFunc
}

var _ ports.Dialer = (*Dialer)(nil)

type DialerOption func(*Dialer)

func WithConnectTimeout(timeout time.Duration) DialerOption {
	return func(d *Dialer) {
		if timeout > 0 {
			d.connectTimeout = timeout
		}
	}
}

func WithLogger(logger *zap.Logger) DialerOption {
	return func(d *Dialer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func NewDialer(opts ...DialerOption) *Dialer {
	d := &Dialer{
		connectTimeout: DefaultConnectTimeout,
		logger:         zap.NewNop(),
		netDialer:      &net.Dialer{KeepAlive: 30 * time.Second},
		openSerial:     serial.Open,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.wsDialer = &websocket.Dialer{HandshakeTimeout: d.connectTimeout}

	return d
}

func (d *Dialer) Dial(ctx context.Context, endpoint domain.Endpoint) (ports.Transport, error) {
	ctx, cancel := context.WithTimeout(ctx, d.connectTimeout)
	defer cancel()

	started := time.Now()
	var (
		transport ports.Transport
		err       error
	)
	switch endpoint.Kind {
	case domain.TransportTCP:
		transport, err = d.dialTCP(ctx, endpoint)
	case domain.TransportSerial:
		transport, err = d.dialSerial(ctx, endpoint)
	case domain.TransportWebSocket:
		transport, err = d.dialWebSocket(ctx, endpoint)
	default:
		return nil, &domain.TransportError{
			Kind:     domain.TransportUnreachable,
			Endpoint: endpoint.String(),
			Err:      fmt.Errorf("unsupported connection type %q", endpoint.Kind),
		}
	}
	if err != nil {
		d.logger.Debug("dial failed",
			zap.String("endpoint", endpoint.String()),
			zap.Duration("elapsed", time.Since(started)),
			zap.Error(err))
		return nil, err
	}

	d.logger.Debug("dial succeeded",
		zap.String("endpoint", endpoint.String()),
		zap.Duration("elapsed", time.Since(started)))
	return transport, nil
}

func (d *Dialer) dialTCP(ctx context.Context, endpoint domain.Endpoint) (ports.Transport, error) {
	conn, err := d.netDialer.DialContext(ctx, "tcp", endpoint.Address)
	if err != nil {
		return nil, classifyDialError(ctx, err, endpoint)
	}

	return NewStreamTransport(conn, endpoint.String()), nil
}

func (d *Dialer) dialSerial(ctx context.Context, endpoint domain.Endpoint) (ports.Transport, error) {
	type result struct {
		port serial.Port
		err  error
	}

	opened := make(chan result, 1)
	go func() {
		port, err := d.openSerial(endpoint.Address, &serial.Mode{BaudRate: endpoint.Baud})
		opened <- result{port: port, err: err}
	}()

	select {
	case res := <-opened:
		if res.err != nil {
			return nil, classifySerialError(res.err, endpoint)
		}
		// Drop bytes the device emitted before we attached so the first
		// frame header lines up.
		_ = res.port.ResetInputBuffer()
		return NewStreamTransport(res.port, endpoint.String()), nil
	case <-ctx.Done():
		go func() {
			if res := <-opened; res.err == nil {
				_ = res.port.Close()
			}
		}()
		return nil, classifyDialError(ctx, ctx.Err(), endpoint)
	}
}

func (d *Dialer) dialWebSocket(ctx context.Context, endpoint domain.Endpoint) (ports.Transport, error) {
	conn, _, err := d.wsDialer.DialContext(ctx, endpoint.Address, nil)
	if err != nil {
		if errors.Is(err, websocket.ErrBadHandshake) {
			return nil, &domain.TransportError{Kind: domain.TransportRefused, Endpoint: endpoint.String(), Err: err}
		}
		return nil, classifyDialError(ctx, err, endpoint)
	}

	return NewStreamTransport(NewWebSocketStream(conn), endpoint.String()), nil
}

func classifyDialError(ctx context.Context, err error, endpoint domain.Endpoint) error {
	kind := domain.TransportUnreachable

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = domain.TransportTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = domain.TransportTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		kind = domain.TransportRefused
	}

	return &domain.TransportError{Kind: kind, Endpoint: endpoint.String(), Err: err}
}

func classifySerialError(err error, endpoint domain.Endpoint) error {
	kind := domain.TransportUnreachable

	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortBusy, serial.PermissionDenied:
			kind = domain.TransportRefused
		}
	}

	return &domain.TransportError{Kind: kind, Endpoint: endpoint.String(), Err: err}
}
