package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestNewClient(t *testing.T) {
	c, err := NewClient(ProviderNone, "", "")
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = NewClient(ProviderOpenAI, "", "")
	assert.ErrorContains(t, err, "OPENAI_API_KEY")

	_, err = NewClient("word2vec", "", "")
	assert.ErrorContains(t, err, "unknown embedding provider")

	c, err = NewClient(ProviderOllama, "", "")
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, c)
}

func TestMockEmbed(t *testing.T) {
	m := NewMockClient()
	ctx := context.Background()

	a, err := m.Embed(ctx, "We went to the beach")
	require.NoError(t, err)
	b, _ := m.Embed(ctx, "the beach was windy")
	c, _ := m.Embed(ctx, "quantum chromodynamics")

	assert.Len(t, a, MockDimensions)
	assert.InDelta(t, 1.0, dot(a, a), 1e-5)
	assert.Greater(t, dot(a, b), dot(a, c))

	again, _ := m.Embed(ctx, "we went to the BEACH!")
	assert.Equal(t, a, again)
	assert.Len(t, m.Calls, 4)

	empty, err := m.Embed(ctx, "   ")
	require.NoError(t, err)
	assert.Equal(t, float32(0), dot(empty, empty))
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		assert.Equal(t, ollamaModel, req.Model)
		assert.Equal(t, "hello", req.Prompt)
		_, _ = w.Write([]byte(`{"embedding":[0.1,0.2,0.3]}`))
	}))
	defer srv.Close()

	vec, err := NewOllamaClient(srv.URL, "").Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestOpenAIEmbedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("k")
	c.baseURL = srv.URL
	_, err := c.Embed(context.Background(), "x")
	assert.ErrorContains(t, err, "401")
	assert.ErrorContains(t, err, "bad key")

	_, err = c.Embed(context.Background(), " \n\t ")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestOpenAIEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		var req openAIEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "User: hi AI: hello", req.Input)
		assert.Equal(t, openAIModel, req.Model)
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.5,0.5]}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("k")
	c.baseURL = srv.URL
	vec, err := c.Embed(context.Background(), "User: hi\nAI:   hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, vec)
}

func TestNormalizeInput(t *testing.T) {
	long := strings.Repeat("a", maxInputRunes+50)
	assert.Len(t, []rune(normalizeInput(long)), maxInputRunes)
	assert.Equal(t, "a b", normalizeInput("  a\n\n b "))
}
