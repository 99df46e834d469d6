package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Load when a value is left empty.
const (
	DefaultProvider    = "openai"
	DefaultModel       = "gpt-4o-2024-08-06"
	DefaultServerAddr  = ":8080"
	DefaultEntityLimit = 6
	DefaultTemperature = 0.7
	DefaultTimeout     = 90 * time.Second
	DefaultOutputDir   = "out"
)

// Config is the application configuration. Files may be JSON or YAML.
type Config struct {
	LLM        *LLMConfig       `json:"llm,omitempty" yaml:"llm,omitempty"`
	ServerAddr string           `json:"server_addr,omitempty" yaml:"server_addr,omitempty"`
	Prompt     PromptConfig     `json:"prompt" yaml:"prompt"`
	Generation GenerationConfig `json:"generation" yaml:"generation"`
	// OutputDir receives artifacts written by the publisher.
	OutputDir string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
}

// LLMConfig selects and configures the generation capability.
type LLMConfig struct {
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	// APIKey is discouraged; prefer APIKeyEnv so the key stays out of files.
	APIKey    string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

type PromptConfig struct {
	EntityLimit int `json:"entity_limit,omitempty" yaml:"entity_limit,omitempty"`
}

type GenerationConfig struct {
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	// Timeout is a Go duration string such as "90s".
	Timeout              string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	EnforceUniqueWinners bool   `json:"enforce_unique_winners,omitempty" yaml:"enforce_unique_winners,omitempty"`
}

var knownProviders = map[string]bool{"openai": true, "deepseek": true, "gemini": true, "mock": true}

// Load reads the config file at path, if any, then applies environment
// overrides and defaults. A missing file at path is an error; an empty path
// means environment and defaults only.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := decode(path, data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		return dec.Decode(cfg)
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(cfg)
	}
}

// LoadDotEnv loads the given .env files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

func (c *Config) applyEnv() {
	if c.LLM == nil {
		c.LLM = &LLMConfig{}
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		c.ServerAddr = v
	}
}

func (c *Config) applyDefaults() {
	if c.LLM.Provider == "" {
		c.LLM.Provider = DefaultProvider
	}
	if c.LLM.Model == "" && c.LLM.Provider == DefaultProvider {
		c.LLM.Model = DefaultModel
	}
	if c.ServerAddr == "" {
		c.ServerAddr = DefaultServerAddr
	}
	if c.Prompt.EntityLimit == 0 {
		c.Prompt.EntityLimit = DefaultEntityLimit
	}
	if c.Generation.Temperature == nil {
		t := DefaultTemperature
		c.Generation.Temperature = &t
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.LLM == nil {
		return errors.New("llm config missing")
	}
	if !knownProviders[c.LLM.Provider] {
		return fmt.Errorf("llm provider %s not supported", c.LLM.Provider)
	}
	if c.LLM.Model == "" && c.LLM.Provider != "mock" {
		return fmt.Errorf("llm.model is required for provider %s", c.LLM.Provider)
	}
	if c.LLM.Provider == "deepseek" && c.LLM.BaseURL == "" {
		return errors.New("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
	}
	if c.Prompt.EntityLimit < 1 {
		return fmt.Errorf("prompt.entity_limit must be positive, got %d", c.Prompt.EntityLimit)
	}
	if t := c.Generation.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("generation.temperature must be within [0, 2], got %g", *t)
	}
	if _, err := c.Generation.TimeoutDuration(); err != nil {
		return err
	}
	return nil
}

// TimeoutDuration parses Timeout, falling back to DefaultTimeout.
func (g GenerationConfig) TimeoutDuration() (time.Duration, error) {
	if g.Timeout == "" {
		return DefaultTimeout, nil
	}
	d, err := time.ParseDuration(g.Timeout)
	if err != nil {
		return 0, fmt.Errorf("generation.timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("generation.timeout must be positive, got %s", g.Timeout)
	}
	return d, nil
}
