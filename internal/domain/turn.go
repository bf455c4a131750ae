package domain

import "time"

type TurnID uint64

type ConversationTurn struct {
	ID        TurnID
	RequestID string
	MindID    MindID
	UserText  string
	Persona   string
	Params    GenerationParams
	Streaming bool
	StartedAt time.Time
}

type ErrorKind string

const (
	ErrorKindRegistry   ErrorKind = "registry"
	ErrorKindTransport  ErrorKind = "transport"
	ErrorKindProtocol   ErrorKind = "protocol"
	ErrorKindGeneration ErrorKind = "generation"
	ErrorKindCanceled   ErrorKind = "canceled"
)

// Event is one element of a turn's response sequence. EndOfTurn and
// ErrorEvent are terminal.
type Event interface {
	isEvent()
	Terminal() bool
}

type TokenEvent struct {
	Text string
}

func (TokenEvent) isEvent()       {}
func (TokenEvent) Terminal() bool { return false }

type EndOfTurn struct {
	TurnID TurnID
	MindID MindID
	Text   string
	Tokens int
}

func (EndOfTurn) isEvent()       {}
func (EndOfTurn) Terminal() bool { return true }

type ErrorEvent struct {
	Kind    ErrorKind
	Message string
	MindID  MindID
	TurnID  TurnID
	Err     error
}

func (ErrorEvent) isEvent()       {}
func (ErrorEvent) Terminal() bool { return true }

func (e ErrorEvent) Error() string {
	return e.Message
}

func (e ErrorEvent) Unwrap() error {
	return e.Err
}
