package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/bnema/penphinmind/internal/domain"
)

const (
	frameHeaderSize = 4
	MaxFrameSize    = 1 << 20
)

// WriteFrame writes payload behind a 4-byte big-endian length prefix. Header
// and payload go out in a single Write so message-oriented streams (websocket)
// carry exactly one frame per message.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return &domain.ProtocolError{Reason: fmt.Sprintf("frame of %d bytes exceeds limit of %d", len(payload), MaxFrameSize)}
	}

	buf := make([]byte, frameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[frameHeaderSize:], payload)

	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one length-prefixed frame. A clean io.EOF is returned only
// when the stream ends exactly on a frame boundary.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &domain.ProtocolError{Reason: "truncated frame header", Err: err}
		}
		return nil, err
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return nil, &domain.ProtocolError{Reason: fmt.Sprintf("frame of %d bytes exceeds limit of %d", size, MaxFrameSize)}
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &domain.ProtocolError{Reason: "truncated frame payload", Err: io.ErrUnexpectedEOF}
		}
		return nil, err
	}

	return payload, nil
}
