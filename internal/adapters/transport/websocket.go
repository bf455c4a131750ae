package transport

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsCloseGrace = time.Second

// webSocketStream flattens binary messages into a byte stream so the shared
// length-prefixed framing applies unchanged.
type webSocketStream struct {
	conn    *websocket.Conn
	current io.Reader

	writeMu sync.Mutex
}

// NewWebSocketStream wraps an established websocket connection, client or
// server side, as a frame-carrying byte stream.
func NewWebSocketStream(conn *websocket.Conn) io.ReadWriteCloser {
	return &webSocketStream{conn: conn}
}

func (s *webSocketStream) Read(p []byte) (int, error) {
	for {
		if s.current == nil {
			messageType, reader, err := s.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			if messageType != websocket.BinaryMessage {
				continue
			}
			s.current = reader
		}

		n, err := s.current.Read(p)
		if errors.Is(err, io.EOF) {
			s.current = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (s *webSocketStream) Write(p []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *webSocketStream) SetWriteDeadline(t time.Time) error {
	return s.conn.SetWriteDeadline(t)
}

func (s *webSocketStream) Close() error {
	s.writeMu.Lock()
	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsCloseGrace),
	)
	s.writeMu.Unlock()

	return s.conn.Close()
}
