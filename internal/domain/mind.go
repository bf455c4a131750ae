package domain

import (
	"fmt"
	"math"
	"strings"
)

type MindID string

type TransportKind string

const (
	TransportTCP       TransportKind = "tcp"
	TransportSerial    TransportKind = "serial"
	TransportWebSocket TransportKind = "ws"
)

func (k TransportKind) Valid() bool {
	switch k {
	case TransportTCP, TransportSerial, TransportWebSocket:
		return true
	default:
		return false
	}
}

type CodecKind string

const (
	CodecJSON    CodecKind = "json"
	CodecMsgpack CodecKind = "msgpack"
)

func (k CodecKind) Valid() bool {
	switch k {
	case CodecJSON, CodecMsgpack:
		return true
	default:
		return false
	}
}

const (
	MinTemperature = 0.0
	MaxTemperature = 2.0

	personaPlaceholder = "{name}"
)

type Endpoint struct {
	Kind    TransportKind
	Address string
	Baud    int
	Codec   CodecKind
}

func (e Endpoint) String() string {
	if e.Kind == TransportSerial {
		return fmt.Sprintf("%s://%s@%d", e.Kind, e.Address, e.Baud)
	}
	if e.Kind == TransportWebSocket {
		return e.Address
	}
	return fmt.Sprintf("%s://%s", e.Kind, e.Address)
}

func (e Endpoint) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("unsupported connection type %q", e.Kind)
	}
	if strings.TrimSpace(e.Address) == "" {
		return fmt.Errorf("%s address is required", e.Kind)
	}
	if e.Kind == TransportSerial && e.Baud <= 0 {
		return fmt.Errorf("serial baud must be positive, got %d", e.Baud)
	}
	if !e.Codec.Valid() {
		return fmt.Errorf("unsupported codec %q", e.Codec)
	}
	return nil
}

type GenerationParams struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

type MindProfile struct {
	ID              MindID
	DisplayName     string
	DeviceID        string
	Endpoint        Endpoint
	Model           string
	Temperature     float64
	MaxTokens       int
	PersonaTemplate string
	Streaming       bool
	SecretRef       string
}

// TemperatureInRange reports whether t lies in [MinTemperature,
// MaxTemperature]. NaN is out of range.
func TemperatureInRange(t float64) bool {
	return !math.IsNaN(t) && t >= MinTemperature && t <= MaxTemperature
}

func (p MindProfile) Validate() error {
	if strings.TrimSpace(string(p.ID)) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(p.DisplayName) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(p.Model) == "" {
		return fmt.Errorf("default model is required")
	}
	if !TemperatureInRange(p.Temperature) {
		return fmt.Errorf("temperature %.2f outside [%.1f, %.1f]", p.Temperature, MinTemperature, MaxTemperature)
	}
	if p.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", p.MaxTokens)
	}
	if strings.TrimSpace(p.PersonaTemplate) == "" {
		return fmt.Errorf("persona is required")
	}
	if err := p.Endpoint.Validate(); err != nil {
		return err
	}

	return nil
}

// Persona resolves every {name} placeholder in the template to the display name.
func (p MindProfile) Persona() string {
	return strings.ReplaceAll(p.PersonaTemplate, personaPlaceholder, p.DisplayName)
}

// SecretKey is where the mind's auth token lives: the configured secret_ref,
// or penphin/minds/<id>/token.
func (p MindProfile) SecretKey() string {
	if ref := strings.TrimSpace(p.SecretRef); ref != "" {
		return ref
	}
	return "penphin/minds/" + string(p.ID) + "/token"
}

// TokenRequired reports whether a missing token fails the turn.
func (p MindProfile) TokenRequired() bool {
	return strings.TrimSpace(p.SecretRef) != ""
}

func (p MindProfile) Params() GenerationParams {
	return GenerationParams{
		Model:       p.Model,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}
}

// MindsConfig is the typed form of the minds configuration file before validation.
type MindsConfig struct {
	DefaultMind MindID
	Minds       map[MindID]MindProfile
}
