package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bnema/penphinmind/internal/domain"
	"github.com/bnema/penphinmind/internal/ports"
)

const inboundQueueSize = 64

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// StreamTransport frames an arbitrary byte stream. A single reader goroutine
// owns the read side, so abandoning Receive never leaves a half-read frame.
type StreamTransport struct {
	stream   io.ReadWriteCloser
	endpoint string

	writeMu sync.Mutex

	frames   chan []byte
	done     chan struct{}
	readErr  error
	errMu    sync.Mutex
	received atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

var _ ports.Transport = (*StreamTransport)(nil)

func NewStreamTransport(stream io.ReadWriteCloser, endpoint string) *StreamTransport {
	t := &StreamTransport{
		stream:   stream,
		endpoint: endpoint,
		frames:   make(chan []byte, inboundQueueSize),
		done:     make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *StreamTransport) readLoop() {
	defer close(t.frames)

	reader := bufio.NewReader(t.stream)
	for {
		frame, err := ReadFrame(reader)
		if err != nil {
			t.setReadErr(err)
			return
		}
		t.received.Add(1)

		select {
		case t.frames <- frame:
		case <-t.done:
			t.setReadErr(t.closedError(nil))
			return
		}
	}
}

func (t *StreamTransport) setReadErr(err error) {
	t.errMu.Lock()
	defer t.errMu.Unlock()

	select {
	case <-t.done:
		t.readErr = t.closedError(nil)
		return
	default:
	}

	var protocolErr *domain.ProtocolError
	switch {
	case errors.As(err, &protocolErr):
		t.readErr = err
	case errors.Is(err, io.EOF):
		t.readErr = t.closedError(io.EOF)
	default:
		t.readErr = classifyIOError(err, t.endpoint)
	}
}

func (t *StreamTransport) err() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()

	if t.readErr == nil {
		return t.closedError(nil)
	}
	return t.readErr
}

func (t *StreamTransport) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case <-t.done:
		return t.closedError(nil)
	default:
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if deadliner, ok := t.stream.(writeDeadliner); ok {
		if deadline, hasDeadline := ctx.Deadline(); hasDeadline {
			_ = deadliner.SetWriteDeadline(deadline)
			defer func() { _ = deadliner.SetWriteDeadline(time.Time{}) }()
		}
	}

	if err := WriteFrame(t.stream, frame); err != nil {
		var protocolErr *domain.ProtocolError
		if errors.As(err, &protocolErr) {
			return err
		}
		return classifyIOError(err, t.endpoint)
	}

	return nil
}

func (t *StreamTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case frame, ok := <-t.frames:
		if !ok {
			return nil, t.err()
		}
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
		return nil, t.closedError(nil)
	}
}

func (t *StreamTransport) Received() uint64 {
	return t.received.Load()
}

func (t *StreamTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		t.closeErr = t.stream.Close()
	})
	return t.closeErr
}

func (t *StreamTransport) closedError(cause error) error {
	return &domain.TransportError{Kind: domain.TransportClosed, Endpoint: t.endpoint, Err: cause}
}

func classifyIOError(err error, endpoint string) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() || errors.Is(err, os.ErrDeadlineExceeded) {
		return &domain.TransportError{Kind: domain.TransportTimeout, Endpoint: endpoint, Err: err}
	}
	return &domain.TransportError{Kind: domain.TransportClosed, Endpoint: endpoint, Err: err}
}
