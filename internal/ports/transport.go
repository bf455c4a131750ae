package ports

import (
	"context"

	"github.com/bnema/penphinmind/internal/domain"
)

// Transport is a framed duplex link to one mind. Implementations must allow
// Receive to be abandoned through ctx without losing stream alignment.
type Transport interface {
	Send(ctx context.Context, frame []byte) error
	Receive(ctx context.Context) ([]byte, error)
	// Received counts frames read off the link, including ones nobody consumed yet.
	Received() uint64
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, endpoint domain.Endpoint) (Transport, error)
}

type DialerFunc func(ctx context.Context, endpoint domain.Endpoint) (Transport, error)

func (f DialerFunc) Dial(ctx context.Context, endpoint domain.Endpoint) (Transport, error) {
	return f(ctx, endpoint)
}
