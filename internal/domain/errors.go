package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConfig         = errors.New("invalid mind configuration")
	ErrMindNotFound   = errors.New("mind not found")
	ErrTransport      = errors.New("transport failure")
	ErrProtocol       = errors.New("protocol violation")
	ErrGeneration     = errors.New("generation failed")
	ErrMindBusy       = errors.New("mind is busy with another turn")
	ErrSecretNotFound = errors.New("secret not found")
)

type ConfigError struct {
	MindID MindID
	Field  string
	Err    error
}

func (e *ConfigError) Error() string {
	switch {
	case e.MindID != "" && e.Field != "":
		return fmt.Sprintf("config: mind %q: %s: %v", e.MindID, e.Field, e.Err)
	case e.MindID != "":
		return fmt.Sprintf("config: mind %q: %v", e.MindID, e.Err)
	case e.Field != "":
		return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
	default:
		return fmt.Sprintf("config: %v", e.Err)
	}
}

func (e *ConfigError) Unwrap() []error { return []error{ErrConfig, e.Err} }

type NotFoundError struct {
	MindID MindID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("mind %q is not configured", e.MindID)
}

func (e *NotFoundError) Unwrap() error { return ErrMindNotFound }

type TransportErrorKind string

const (
	TransportUnreachable TransportErrorKind = "unreachable"
	TransportTimeout     TransportErrorKind = "timeout"
	TransportRefused     TransportErrorKind = "refused"
	TransportClosed      TransportErrorKind = "closed"
)

type TransportError struct {
	Kind     TransportErrorKind
	MindID   MindID
	Endpoint string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("transport %s", e.Kind)
	if e.MindID != "" {
		msg += fmt.Sprintf(" (mind %q", e.MindID)
		if e.Endpoint != "" {
			msg += " at " + e.Endpoint
		}
		msg += ")"
	} else if e.Endpoint != "" {
		msg += " (" + e.Endpoint + ")"
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Err}
}

type ProtocolError struct {
	MindID MindID
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	msg := "protocol: " + e.Reason
	if e.MindID != "" {
		msg = fmt.Sprintf("protocol (mind %q): %s", e.MindID, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProtocol}
	}
	return []error{ErrProtocol, e.Err}
}

type GenerationError struct {
	MindID  MindID
	Code    string
	Message string
}

func (e *GenerationError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("mind %q: %s", e.MindID, e.Message)
	}
	return fmt.Sprintf("mind %q: %s: %s", e.MindID, e.Code, e.Message)
}

func (e *GenerationError) Unwrap() error { return ErrGeneration }
