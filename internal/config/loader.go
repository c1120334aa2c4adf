package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"aidispatch/internal/backend"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr        string   `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel    string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`

	PreferredBackend string   `json:"preferred_backend" yaml:"preferred_backend" toml:"preferred_backend"`
	FallbackEnabled  *bool    `json:"fallback_enabled" yaml:"fallback_enabled" toml:"fallback_enabled"`
	FallbackOrder    []string `json:"fallback_order" yaml:"fallback_order" toml:"fallback_order"`

	Subprocess Subprocess `json:"subprocess" yaml:"subprocess" toml:"subprocess"`
	Remote     Remote     `json:"remote" yaml:"remote" toml:"remote"`
}

// Subprocess configures the local embedding worker.
type Subprocess struct {
	Command          string   `json:"command" yaml:"command" toml:"command"`
	Script           string   `json:"script" yaml:"script" toml:"script"`
	Args             []string `json:"args" yaml:"args" toml:"args"`
	Model            string   `json:"model" yaml:"model" toml:"model"`
	CacheDir         string   `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`
	StartupTimeoutMS int      `json:"startup_timeout_ms" yaml:"startup_timeout_ms" toml:"startup_timeout_ms"`
	RequestTimeoutMS int      `json:"request_timeout_ms" yaml:"request_timeout_ms" toml:"request_timeout_ms"`
}

// Remote configures the HTTP inference server backend.
type Remote struct {
	BaseURL        string `json:"base_url" yaml:"base_url" toml:"base_url"`
	ChatModel      string `json:"chat_model" yaml:"chat_model" toml:"chat_model"`
	EmbedModel     string `json:"embed_model" yaml:"embed_model" toml:"embed_model"`
	VisionModel    string `json:"vision_model" yaml:"vision_model" toml:"vision_model"`
	ProbeTimeoutMS int    `json:"probe_timeout_ms" yaml:"probe_timeout_ms" toml:"probe_timeout_ms"`
	CurlPath       string `json:"curl_path" yaml:"curl_path" toml:"curl_path"`
}

var knownBackends = []backend.Identity{backend.SubprocessEmbed, backend.HTTPRemote}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects backend identities this build does not know.
func (c Config) Validate() error {
	if c.PreferredBackend != "" && !slices.Contains(knownBackends, backend.Identity(c.PreferredBackend)) {
		return fmt.Errorf("preferred_backend: unknown backend %q", c.PreferredBackend)
	}
	for _, id := range c.FallbackOrder {
		if !slices.Contains(knownBackends, backend.Identity(id)) {
			return fmt.Errorf("fallback_order: unknown backend %q", id)
		}
	}
	if c.Subprocess.StartupTimeoutMS < 0 || c.Subprocess.RequestTimeoutMS < 0 || c.Remote.ProbeTimeoutMS < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

// WithDefaults fills the service-level fields. Backend fields stay empty so
// each backend applies its own defaults.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.PreferredBackend == "" {
		c.PreferredBackend = string(backend.SubprocessEmbed)
	}
	if c.FallbackEnabled == nil {
		on := true
		c.FallbackEnabled = &on
	}
	if len(c.FallbackOrder) == 0 {
		for _, id := range knownBackends {
			c.FallbackOrder = append(c.FallbackOrder, string(id))
		}
	}
	return c
}
