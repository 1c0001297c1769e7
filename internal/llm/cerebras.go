package llm

import (
	"context"
	"net/http"

	"github.com/Harshitk-cp/kindred/internal/domain"
)

const (
	cerebrasAPIURL = "https://api.cerebras.ai/v1/chat/completions"
	cerebrasModel  = "llama-3.3-70b"
)

// CerebrasClient talks to Cerebras through its OpenAI-compatible endpoint.
type CerebrasClient struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
}

func NewCerebrasClient(apiKey, model string) *CerebrasClient {
	return &CerebrasClient{
		apiKey:     apiKey,
		model:      orDefault(model, cerebrasModel),
		url:        cerebrasAPIURL,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

func (c *CerebrasClient) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	return completeChat(ctx, c.httpClient, c.url, c.apiKey, "cerebras", newChatRequest(c.model, prompt, opts))
}
