// Package mindfile decodes the minds configuration file into the typed
// domain model. TOML, YAML and JSON are accepted; unknown keys are rejected.
package mindfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bnema/penphinmind/internal/domain"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const defaultStreaming = true

// Load reads the base file followed by optional overlays. An overlay replaces
// whole minds by key and may override the default mind.
func Load(path string, overlays ...string) (domain.MindsConfig, error) {
	base, err := readFile(path)
	if err != nil {
		return domain.MindsConfig{}, err
	}

	for _, overlayPath := range overlays {
		if strings.TrimSpace(overlayPath) == "" {
			continue
		}
		overlay, err := readFile(overlayPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return domain.MindsConfig{}, err
		}
		base = merge(base, overlay)
	}

	return toConfig(base)
}

// Parse decodes raw bytes in the given format ("toml", "yaml" or "json").
func Parse(data []byte, format string) (domain.MindsConfig, error) {
	file, err := decode(data, format)
	if err != nil {
		return domain.MindsConfig{}, err
	}
	return toConfig(file)
}

func readFile(path string) (fileSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{}, &domain.ConfigError{Field: "minds file", Err: fmt.Errorf("%s: %w", path, err)}
		}
		return fileSchema{}, &domain.ConfigError{Field: "minds file", Err: fmt.Errorf("read %s: %w", path, err)}
	}

	return decode(data, formatFromPath(path))
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return "toml"
	}
}

func decode(data []byte, format string) (fileSchema, error) {
	var (
		file fileSchema
		err  error
	)

	switch format {
	case "toml":
		err = toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(&file)
	case "yaml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&file)
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&file)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return fileSchema{}, &domain.ConfigError{Field: "minds file", Err: fmt.Errorf("decode %s: %w", format, err)}
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, &domain.ConfigError{Field: "version", Err: err}
	}

	return file, nil
}

func merge(base, overlay fileSchema) fileSchema {
	merged := fileSchema{
		Version:     base.Version,
		DefaultMind: base.DefaultMind,
		Minds:       make(map[string]mindSchema, len(base.Minds)+len(overlay.Minds)),
	}
	for id, mind := range base.Minds {
		merged.Minds[id] = mind
	}
	for id, mind := range overlay.Minds {
		merged.Minds[id] = mind
	}
	if strings.TrimSpace(overlay.DefaultMind) != "" {
		merged.DefaultMind = overlay.DefaultMind
	}

	return merged
}

func toConfig(file fileSchema) (domain.MindsConfig, error) {
	if strings.TrimSpace(file.DefaultMind) == "" {
		return domain.MindsConfig{}, &domain.ConfigError{Field: "default_mind", Err: errors.New("is required")}
	}
	if len(file.Minds) == 0 {
		return domain.MindsConfig{}, &domain.ConfigError{Field: "minds", Err: errors.New("at least one mind is required")}
	}

	cfg := domain.MindsConfig{
		DefaultMind: domain.MindID(strings.TrimSpace(file.DefaultMind)),
		Minds:       make(map[domain.MindID]domain.MindProfile, len(file.Minds)),
	}
	for key, mind := range file.Minds {
		id := domain.MindID(strings.TrimSpace(key))
		profile, err := toProfile(id, mind)
		if err != nil {
			return domain.MindsConfig{}, err
		}
		if _, exists := cfg.Minds[id]; exists {
			return domain.MindsConfig{}, &domain.ConfigError{MindID: id, Err: errors.New("declared more than once")}
		}
		cfg.Minds[id] = profile
	}

	return cfg, nil
}

func toProfile(id domain.MindID, mind mindSchema) (domain.MindProfile, error) {
	missing := func(field string) error {
		return &domain.ConfigError{MindID: id, Field: field, Err: errors.New("is required")}
	}

	if strings.TrimSpace(mind.Name) == "" {
		return domain.MindProfile{}, missing("name")
	}
	if strings.TrimSpace(mind.LLM.DefaultModel) == "" {
		return domain.MindProfile{}, missing("llm.default_model")
	}
	if mind.LLM.Temperature == nil {
		return domain.MindProfile{}, missing("llm.temperature")
	}
	if !domain.TemperatureInRange(*mind.LLM.Temperature) {
		return domain.MindProfile{}, &domain.ConfigError{MindID: id, Field: "llm.temperature", Err: fmt.Errorf("%v outside [%.1f, %.1f]", *mind.LLM.Temperature, domain.MinTemperature, domain.MaxTemperature)}
	}
	if mind.LLM.MaxTokens == nil {
		return domain.MindProfile{}, missing("llm.max_tokens")
	}
	if strings.TrimSpace(mind.LLM.Persona) == "" {
		return domain.MindProfile{}, missing("llm.persona")
	}

	endpoint, err := toEndpoint(id, mind.Connection)
	if err != nil {
		return domain.MindProfile{}, err
	}

	streaming := defaultStreaming
	if mind.LLM.Stream != nil {
		streaming = *mind.LLM.Stream
	}

	return domain.MindProfile{
		ID:              id,
		DisplayName:     strings.TrimSpace(mind.Name),
		DeviceID:        strings.TrimSpace(mind.DeviceID),
		Endpoint:        endpoint,
		Model:           strings.TrimSpace(mind.LLM.DefaultModel),
		Temperature:     *mind.LLM.Temperature,
		MaxTokens:       *mind.LLM.MaxTokens,
		PersonaTemplate: mind.LLM.Persona,
		Streaming:       streaming,
		SecretRef:       strings.TrimSpace(mind.Auth.SecretRef),
	}, nil
}

func toEndpoint(id domain.MindID, conn connectionSchema) (domain.Endpoint, error) {
	fail := func(field string, err error) error {
		return &domain.ConfigError{MindID: id, Field: "connection." + field, Err: err}
	}

	codec := domain.CodecKind(strings.ToLower(strings.TrimSpace(conn.Codec)))
	if codec == "" {
		codec = domain.CodecJSON
	}
	if !codec.Valid() {
		return domain.Endpoint{}, fail("codec", fmt.Errorf("unsupported codec %q", conn.Codec))
	}

	kind := domain.TransportKind(strings.ToLower(strings.TrimSpace(conn.Type)))
	switch kind {
	case domain.TransportTCP:
		if strings.TrimSpace(conn.IP) == "" {
			return domain.Endpoint{}, fail("ip", errors.New("is required for tcp"))
		}
		if conn.Port <= 0 || conn.Port > 65535 {
			return domain.Endpoint{}, fail("port", fmt.Errorf("%d is not a valid tcp port", conn.Port))
		}
		return domain.Endpoint{
			Kind:    kind,
			Address: net.JoinHostPort(strings.TrimSpace(conn.IP), strconv.Itoa(conn.Port)),
			Codec:   codec,
		}, nil
	case domain.TransportSerial:
		if strings.TrimSpace(conn.Path) == "" {
			return domain.Endpoint{}, fail("path", errors.New("is required for serial"))
		}
		if conn.Baud <= 0 {
			return domain.Endpoint{}, fail("baud", fmt.Errorf("%d is not a valid baud rate", conn.Baud))
		}
		return domain.Endpoint{Kind: kind, Address: strings.TrimSpace(conn.Path), Baud: conn.Baud, Codec: codec}, nil
	case domain.TransportWebSocket:
		url := strings.TrimSpace(conn.URL)
		if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
			return domain.Endpoint{}, fail("url", fmt.Errorf("%q must start with ws:// or wss://", conn.URL))
		}
		return domain.Endpoint{Kind: kind, Address: url, Codec: codec}, nil
	case "":
		return domain.Endpoint{}, fail("type", errors.New("is required"))
	default:
		return domain.Endpoint{}, fail("type", fmt.Errorf("unsupported connection type %q", conn.Type))
	}
}
