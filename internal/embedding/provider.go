package embedding

import (
	"fmt"

	"github.com/Harshitk-cp/kindred/internal/domain"
)

// Provider constants
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
	// ProviderNone disables associative recall.
	ProviderNone = "none"
)

// NewClient creates an embedding client based on the provider name. For
// ProviderNone it returns a nil client and no error.
// Returns an error if the provider is unknown or the API key is empty (except for ollama and mock).
func NewClient(provider, apiKey, ollamaURL string) (domain.EmbeddingClient, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI embedding provider")
		}
		return NewOpenAIClient(apiKey), nil

	case ProviderOllama:
		return NewOllamaClient(ollamaURL, ""), nil

	case ProviderMock:
		return NewMockClient(), nil

	case ProviderNone, "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (valid options: openai, ollama, mock, none)", provider)
	}
}
