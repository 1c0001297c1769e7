package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
)

// MockDimensions is the vector size produced by MockClient.
const MockDimensions = 64

// MockClient is a deterministic embedder for tests: each lower-cased word is
// hashed into one dimension and the result is L2-normalized, so texts that
// share words have positive cosine similarity.
type MockClient struct {
	mu    sync.Mutex
	Err   error
	Calls []string
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (c *MockClient) Embed(ctx context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	c.Calls = append(c.Calls, text)
	err := c.Err
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	vec := make([]float32, MockDimensions)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,!?;:\"'")
		if w == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%MockDimensions]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec, nil
}
