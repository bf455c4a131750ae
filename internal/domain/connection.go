package domain

import "time"

type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusFailed       ConnectionStatus = "failed"
)

// ConnectionState is a point-in-time snapshot; the transport handle itself
// never leaves the connection manager.
type ConnectionState struct {
	MindID      MindID
	Status      ConnectionStatus
	LastError   error
	RetryCount  int
	ConnectedAt time.Time
	UpdatedAt   time.Time
}

func (s ConnectionState) Healthy() bool {
	return s.Status == StatusConnected
}
