package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"LLM_PROVIDER", "LLM_MODEL", "LLM_BASE_URL", "SERVER_ADDR"} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadJSONAndYAMLAgree(t *testing.T) {
	clearEnv(t)
	jsonPath := writeFile(t, "config.json", `{
  "llm": {"provider": "gemini", "model": "gemini-2.0-flash", "api_key_env": "MY_GEMINI_KEY"},
  "server_addr": ":9090",
  "prompt": {"entity_limit": 4},
  "generation": {"temperature": 0.2, "timeout": "30s", "enforce_unique_winners": true},
  "output_dir": "artifacts"
}`)
	yamlPath := writeFile(t, "config.yaml", `
llm:
  provider: gemini
  model: gemini-2.0-flash
  api_key_env: MY_GEMINI_KEY
server_addr: ":9090"
prompt:
  entity_limit: 4
generation:
  temperature: 0.2
  timeout: 30s
  enforce_unique_winners: true
output_dir: artifacts
`)

	fromJSON, err := Load(jsonPath)
	require.NoError(t, err)
	fromYAML, err := Load(yamlPath)
	require.NoError(t, err)

	if diff := cmp.Diff(fromJSON, fromYAML); diff != "" {
		t.Fatalf("json and yaml configs differ (-json +yaml):\n%s", diff)
	}
	assert.Equal(t, "gemini", fromJSON.LLM.Provider)
	assert.Equal(t, 4, fromJSON.Prompt.EntityLimit)
	assert.InDelta(t, 0.2, *fromJSON.Generation.Temperature, 1e-9)
	d, err := fromJSON.Generation.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)
	assert.True(t, fromJSON.Generation.EnforceUniqueWinners)
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultProvider, cfg.LLM.Provider)
	assert.Equal(t, DefaultModel, cfg.LLM.Model)
	assert.Equal(t, DefaultServerAddr, cfg.ServerAddr)
	assert.Equal(t, DefaultEntityLimit, cfg.Prompt.EntityLimit)
	assert.InDelta(t, DefaultTemperature, *cfg.Generation.Temperature, 1e-9)
	assert.Equal(t, DefaultOutputDir, cfg.OutputDir)
	d, err := cfg.Generation.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, d)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.json", `{"llm": {"provider": "openai", "model": "gpt-4o"}, "server_addr": ":1"}`)
	t.Setenv("LLM_PROVIDER", "deepseek")
	t.Setenv("LLM_MODEL", "deepseek-chat")
	t.Setenv("LLM_BASE_URL", "https://api.deepseek.example/v1")
	t.Setenv("SERVER_ADDR", "127.0.0.1:7000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "deepseek", cfg.LLM.Provider)
	assert.Equal(t, "deepseek-chat", cfg.LLM.Model)
	assert.Equal(t, "https://api.deepseek.example/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.ServerAddr)
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown provider", `{"llm": {"provider": "claude", "model": "x"}}`, "not supported"},
		{"deepseek without base url", `{"llm": {"provider": "deepseek", "model": "deepseek-chat"}}`, "base_url"},
		{"gemini without model", `{"llm": {"provider": "gemini"}}`, "llm.model is required"},
		{"negative entity limit", `{"prompt": {"entity_limit": -1}}`, "entity_limit"},
		{"temperature out of range", `{"generation": {"temperature": 3}}`, "temperature"},
		{"bad timeout", `{"generation": {"timeout": "soon"}}`, "generation.timeout"},
		{"unknown key", `{"app_secret": "x"}`, "unknown field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.json", tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMockNeedsNoModel(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeFile(t, "config.yml", "llm:\n  provider: mock\n"))
	require.NoError(t, err)
	assert.Empty(t, cfg.LLM.Model)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadDotEnvKeepsExisting(t *testing.T) {
	path := writeFile(t, ".env", "DOTENV_FRESH=from-file\nDOTENV_SET=from-file\n")
	t.Setenv("DOTENV_SET", "from-env")
	t.Setenv("DOTENV_FRESH", "")
	require.NoError(t, os.Unsetenv("DOTENV_FRESH"))

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("DOTENV_FRESH"))
	assert.Equal(t, "from-env", os.Getenv("DOTENV_SET"))
}
