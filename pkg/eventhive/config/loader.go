package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FromFile loads configuration from a file, auto-detecting format by extension.
// Supported extensions: .yaml, .yml, .json
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// FromYAML parses YAML data into a Config.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON parses JSON data into a Config.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}

// Environment variables read by Load.
const (
	EnvOpenAIKey = "OPENAI_API_KEY"
	EnvConfig    = "SKULL_CONFIG"
)

// Load builds Settings from the defaults, the file at path (if any) and the
// environment, then validates them. An empty path falls back to $SKULL_CONFIG;
// if that is unset too, only defaults and environment apply.
func Load(path string) (Settings, error) {
	s := Default()

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		cfg, err := FromFile(path)
		if err != nil {
			return Settings{}, err
		}
		s.Apply(cfg)
	}

	if key := os.Getenv(EnvOpenAIKey); key != "" {
		s.OpenAI.APIKey = key
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
