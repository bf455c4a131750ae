package wire

import (
	"fmt"
	"strings"

	"github.com/bnema/penphinmind/internal/domain"
)

const requestType = "request"

type requestSchema struct {
	Type        string  `json:"type" msgpack:"type"`
	RequestID   string  `json:"request_id" msgpack:"request_id"`
	DeviceID    string  `json:"device_id,omitempty" msgpack:"device_id,omitempty"`
	Model       string  `json:"model" msgpack:"model"`
	Persona     string  `json:"persona" msgpack:"persona"`
	Prompt      string  `json:"prompt" msgpack:"prompt"`
	Temperature float64 `json:"temperature" msgpack:"temperature"`
	MaxTokens   int     `json:"max_tokens" msgpack:"max_tokens"`
	Stream      bool    `json:"stream" msgpack:"stream"`
	Auth        string  `json:"auth,omitempty" msgpack:"auth,omitempty"`
}

type responseSchema struct {
	RequestID string       `json:"request_id" msgpack:"request_id"`
	Type      string       `json:"type" msgpack:"type"`
	Text      string       `json:"text,omitempty" msgpack:"text,omitempty"`
	Error     *errorSchema `json:"error,omitempty" msgpack:"error,omitempty"`
}

type errorSchema struct {
	Code    string `json:"code,omitempty" msgpack:"code,omitempty"`
	Message string `json:"message" msgpack:"message"`
}

func toRequestSchema(req domain.Request) requestSchema {
	return requestSchema{
		Type:        requestType,
		RequestID:   req.RequestID,
		DeviceID:    req.DeviceID,
		Model:       req.Model,
		Persona:     req.Persona,
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      req.Stream,
		Auth:        req.AuthToken,
	}
}

func fromRequestSchema(s requestSchema) (domain.Request, error) {
	if s.Type != requestType {
		return domain.Request{}, &domain.ProtocolError{Reason: fmt.Sprintf("unexpected frame type %q", s.Type)}
	}
	if strings.TrimSpace(s.RequestID) == "" {
		return domain.Request{}, &domain.ProtocolError{Reason: "request frame without request_id"}
	}

	return domain.Request{
		RequestID:   s.RequestID,
		DeviceID:    s.DeviceID,
		Model:       s.Model,
		Persona:     s.Persona,
		Prompt:      s.Prompt,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
		Stream:      s.Stream,
		AuthToken:   s.Auth,
	}, nil
}

func toResponseSchema(resp domain.Response) responseSchema {
	encoded := responseSchema{
		RequestID: resp.RequestID,
		Type:      string(resp.Type),
		Text:      resp.Text,
	}
	if resp.Type == domain.ResponseError {
		encoded.Error = &errorSchema{Code: resp.ErrorCode, Message: resp.ErrorMessage}
	}

	return encoded
}

func fromResponseSchema(s responseSchema) (domain.Response, error) {
	responseType := domain.ResponseType(s.Type)
	if !responseType.Valid() {
		return domain.Response{}, &domain.ProtocolError{Reason: fmt.Sprintf("unknown response type %q", s.Type)}
	}
	if strings.TrimSpace(s.RequestID) == "" {
		return domain.Response{}, &domain.ProtocolError{Reason: "response frame without request_id"}
	}

	resp := domain.Response{
		RequestID: s.RequestID,
		Type:      responseType,
		Text:      s.Text,
	}
	if responseType == domain.ResponseError {
		if s.Error == nil {
			return domain.Response{}, &domain.ProtocolError{Reason: "error frame without error body"}
		}
		resp.ErrorCode = s.Error.Code
		resp.ErrorMessage = s.Error.Message
	}

	return resp, nil
}
