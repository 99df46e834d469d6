package generator

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// DefaultTemperature favours faithfulness to the supplied data over variety.
const DefaultTemperature = 0.7

// Request is one structured-output call.
type Request struct {
	System      string
	Prompt      string
	SchemaName  string
	Schema      map[string]any
	Temperature float64
	// Subject is the context the prompt was rendered from, limited to the
	// eligible casinos. Adapters for hosted models ignore it.
	Subject GenerationContext
}

// Response carries the raw JSON document produced by the model.
type Response struct {
	Raw []byte
	// TotalTokens is zero when the provider reports no usage.
	TotalTokens int64
	Model       string
}

// LLMClient abstracts the generation capability so it can be swapped or mocked.
// Implementations make exactly one attempt per call.
type LLMClient interface {
	Complete(ctx context.Context, req Request) (Response, error)
	// Provider names the backend, e.g. "openai".
	Provider() string
}

// LLMSettings is the provider configuration shared by the adapters.
type LLMSettings struct {
	Provider string
	Model    string
	// APIKey takes precedence over APIKeyEnv.
	APIKey    string
	APIKeyEnv string
	BaseURL   string
}

// DefaultAPIKeyEnv returns the conventional credential variable for provider.
func DefaultAPIKeyEnv(provider string) string {
	switch provider {
	case "gemini":
		return "GEMINI_API_KEY"
	case "deepseek":
		return "DEEPSEEK_API_KEY"
	case "mock":
		return ""
	default:
		return "OPENAI_API_KEY"
	}
}

// CredentialEnv is the variable the key is read from.
func (s LLMSettings) CredentialEnv() string {
	if s.APIKeyEnv != "" {
		return s.APIKeyEnv
	}
	return DefaultAPIKeyEnv(s.Provider)
}

// ResolveAPIKey reads the credential at call time so a key exported after
// start-up is picked up. It returns a ConfigurationError when none is set.
func (s LLMSettings) ResolveAPIKey() (string, error) {
	if s.APIKey != "" {
		return s.APIKey, nil
	}
	env := s.CredentialEnv()
	if env == "" {
		return "", nil
	}
	if key := strings.TrimSpace(os.Getenv(env)); key != "" {
		return key, nil
	}
	return "", &ConfigurationError{Setting: env}
}

// NewLLM builds the adapter for s.Provider.
func NewLLM(s LLMSettings) (LLMClient, error) {
	switch s.Provider {
	case "openai", "":
		return NewOpenAILLMFromConfig(&s)
	case "deepseek":
		// OpenAI-compatible endpoint
		if s.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return NewOpenAILLMFromConfig(&s)
	case "gemini":
		return NewGeminiLLMFromConfig(&s)
	case "mock":
		return NewScoreboardLLM(nil), nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", s.Provider)
	}
}
