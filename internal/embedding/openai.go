package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"
	openAIModel   = "text-embedding-3-small"

	// maxInputRunes keeps long diary entries well under the model's token
	// window.
	maxInputRunes = 8000
)

// ErrEmptyInput is returned when there is nothing left to embed after
// normalization.
var ErrEmptyInput = errors.New("embedding input is empty")

// OpenAIClient embeds memories through the OpenAI embeddings endpoint.
type OpenAIClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:  apiKey,
		baseURL: openAIBaseURL,
		model:   openAIModel,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type openAIEmbedRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	EncodingFormat string `json:"encoding_format"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// normalizeInput flattens whitespace (memories are stored as
// "User: ...\nAI: ..." exchanges) and caps the length.
func normalizeInput(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if r := []rune(text); len(r) > maxInputRunes {
		text = string(r[:maxInputRunes])
	}
	return text
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	input := normalizeInput(text)
	if input == "" {
		return nil, ErrEmptyInput
	}

	body, err := json.Marshal(openAIEmbedRequest{Model: c.model, Input: input, EncodingFormat: "float"})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}

	var out openAIEmbedResponse
	decodeErr := json.Unmarshal(raw, &out)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && out.Error != nil {
			return nil, fmt.Errorf("embedding API returned status %d: %s", resp.StatusCode, out.Error.Message)
		}
		return nil, fmt.Errorf("embedding API returned status %d: %s", resp.StatusCode, string(raw))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("unmarshal embedding response: %w", decodeErr)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("embedding API error: %s", out.Error.Message)
	}

	for _, d := range out.Data {
		if d.Index == 0 && len(d.Embedding) > 0 {
			return d.Embedding, nil
		}
	}
	return nil, errors.New("embedding API returned no vector")
}
