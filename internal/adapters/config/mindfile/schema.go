package mindfile

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version     int                   `toml:"version" yaml:"version" json:"version"`
	DefaultMind string                `toml:"default_mind" yaml:"default_mind" json:"default_mind"`
	Minds       map[string]mindSchema `toml:"minds" yaml:"minds" json:"minds"`
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported minds schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type mindSchema struct {
	Name       string           `toml:"name" yaml:"name" json:"name"`
	DeviceID   string           `toml:"device_id" yaml:"device_id" json:"device_id"`
	Connection connectionSchema `toml:"connection" yaml:"connection" json:"connection"`
	LLM        llmSchema        `toml:"llm" yaml:"llm" json:"llm"`
	Auth       authSchema       `toml:"auth" yaml:"auth" json:"auth"`
}

type connectionSchema struct {
	Type  string `toml:"type" yaml:"type" json:"type"`
	IP    string `toml:"ip" yaml:"ip" json:"ip"`
	Port  int    `toml:"port" yaml:"port" json:"port"`
	Path  string `toml:"path" yaml:"path" json:"path"`
	Baud  int    `toml:"baud" yaml:"baud" json:"baud"`
	URL   string `toml:"url" yaml:"url" json:"url"`
	Codec string `toml:"codec" yaml:"codec" json:"codec"`
}

type llmSchema struct {
	DefaultModel string   `toml:"default_model" yaml:"default_model" json:"default_model"`
	Temperature  *float64 `toml:"temperature" yaml:"temperature" json:"temperature"`
	MaxTokens    *int     `toml:"max_tokens" yaml:"max_tokens" json:"max_tokens"`
	Persona      string   `toml:"persona" yaml:"persona" json:"persona"`
	Stream       *bool    `toml:"stream" yaml:"stream" json:"stream"`
}

type authSchema struct {
	SecretRef string `toml:"secret_ref" yaml:"secret_ref" json:"secret_ref"`
}
