package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, ":8080", cfg.ServerAddr())
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, "data/kindred.db", cfg.SQLitePath)
	assert.Equal(t, "ollama", cfg.LLMProvider)
	assert.Equal(t, "http://localhost:11434", cfg.OllamaURL)
	assert.Equal(t, "none", cfg.EmbeddingProvider)
	assert.Equal(t, "TeenAI", cfg.PersonaName)
	assert.Equal(t, 2000, cfg.HistoryLimit)
	assert.Equal(t, 30, cfg.ChurnEvery)
	assert.False(t, cfg.RoutineFastMode)
	assert.Equal(t, time.Minute, cfg.RoutineInterval)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.InDelta(t, 1.0, cfg.SpawnProbability, 1e-9)
	assert.Equal(t, 3*time.Minute, cfg.ProactiveMin)
	assert.Equal(t, 8*time.Minute, cfg.ProactiveMax)
	assert.InDelta(t, 0.05, cfg.MoodNoise, 1e-9)
	assert.InDelta(t, 100.0, cfg.RateLimitRPS, 1e-9)
	assert.Equal(t, 20, cfg.RateLimitBurst)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.LLMAPIKey())
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_DRIVER", " Memory ")
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("OPENAI_API_KEY", "sk-oai")
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	t.Setenv("ROUTINE_FAST_MODE", "true")
	t.Setenv("ROUTINE_INTERVAL", "2s")
	t.Setenv("EVENT_SPAWN_PROBABILITY", "0.25")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, "sk-ant", cfg.LLMAPIKey())
	assert.Equal(t, "sk-oai", cfg.EmbeddingAPIKey())
	assert.True(t, cfg.RoutineFastMode)
	assert.Equal(t, 2*time.Second, cfg.RoutineInterval)
	assert.InDelta(t, 0.25, cfg.SpawnProbability, 1e-9)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad int", map[string]string{"SERVER_PORT": "eighty"}, "parse env"},
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo"}, "unknown STORE_DRIVER"},
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres"}, "DATABASE_URL is required"},
		{"probability", map[string]string{"EVENT_SPAWN_PROBABILITY": "1.5"}, "EVENT_SPAWN_PROBABILITY"},
		{"proactive window", map[string]string{"PROACTIVE_MIN": "10m", "PROACTIVE_MAX": "5m"}, "PROACTIVE_MAX"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Parse()
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoad_EnvFileAndSecret(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("PERSONA_NAME=Mia\nHISTORY_LIMIT=50\n"), 0o600))
	require.NoError(t, os.WriteFile(envFile+".secret", []byte("OPENAI_API_KEY=sk-secret\n"), 0o600))

	t.Setenv("KINDRED_ENV", envFile)
	// Registered with t.Setenv so the values godotenv sets are restored.
	t.Setenv("PERSONA_NAME", "")
	t.Setenv("HISTORY_LIMIT", "")
	t.Setenv("OPENAI_API_KEY", "")
	os.Unsetenv("PERSONA_NAME")
	os.Unsetenv("HISTORY_LIMIT")
	os.Unsetenv("OPENAI_API_KEY")

	require.NoError(t, Load())
	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "Mia", cfg.PersonaName)
	assert.Equal(t, 50, cfg.HistoryLimit)
	assert.Equal(t, "sk-secret", cfg.OpenAIAPIKey)
}
