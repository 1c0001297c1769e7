package llm

import (
	"context"
	"sync"

	"github.com/Harshitk-cp/kindred/internal/domain"
)

// MockCall records one Generate invocation.
type MockCall struct {
	Prompt string
	Opts   domain.GenerateOptions
}

// MockClient is a configurable oracle for testing.
// Queued Responses are returned in order; once they run out DefaultResponse
// is returned. Respond, when set, takes precedence over both.
type MockClient struct {
	mu sync.Mutex

	Responses       []string
	DefaultResponse string
	Err             error
	Respond         func(prompt string, opts domain.GenerateOptions) (string, error)

	// Call tracking for assertions
	Calls []MockCall
}

func NewMockClient() *MockClient {
	return &MockClient{
		DefaultResponse: `{"reply":"Mock reply","ai_emotion":"neutral","ai_tone":"warm","stage_action":"mock","neuro_deltas":{}}`,
	}
}

func (c *MockClient) Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Calls = append(c.Calls, MockCall{Prompt: prompt, Opts: opts})
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.Respond != nil {
		return c.Respond(prompt, opts)
	}
	if c.Err != nil {
		return "", c.Err
	}
	if len(c.Responses) > 0 {
		r := c.Responses[0]
		c.Responses = c.Responses[1:]
		return r, nil
	}
	return c.DefaultResponse, nil
}

// CallCount is safe to use while other goroutines generate.
func (c *MockClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}

// LastCall returns the most recent call, if any.
func (c *MockClient) LastCall() (MockCall, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Calls) == 0 {
		return MockCall{}, false
	}
	return c.Calls[len(c.Calls)-1], true
}
