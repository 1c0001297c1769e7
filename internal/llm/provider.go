package llm

import (
	"fmt"

	"github.com/Harshitk-cp/kindred/internal/domain"
)

// Provider constants
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderCerebras  = "cerebras"
	ProviderOllama    = "ollama"
	ProviderMock      = "mock"
)

// Config selects and configures an oracle backend. Model may be empty, in
// which case each provider uses its default.
type Config struct {
	Provider  string
	APIKey    string
	Model     string
	OllamaURL string
}

// NewClient creates an oracle based on the provider name.
// Returns an error if the provider is unknown or the API key is empty (except for ollama and mock).
func NewClient(cfg Config) (domain.Oracle, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI provider")
		}
		return NewOpenAIClient(cfg.APIKey, cfg.Model), nil

	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for Anthropic provider")
		}
		return NewAnthropicClient(cfg.APIKey, cfg.Model), nil

	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return NewGeminiClient(cfg.APIKey, cfg.Model), nil

	case ProviderCerebras:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("CEREBRAS_API_KEY is required for Cerebras provider")
		}
		return NewCerebrasClient(cfg.APIKey, cfg.Model), nil

	case ProviderOllama:
		return NewOllamaClient(cfg.OllamaURL, cfg.Model), nil

	case ProviderMock:
		return NewMockClient(), nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (valid options: openai, anthropic, gemini, cerebras, ollama, mock)", cfg.Provider)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
