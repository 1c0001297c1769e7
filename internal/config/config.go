package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the full server configuration. Every field comes from a flat
// env var; see Load for how env files are picked up.
type Config struct {
	ServerPort int `env:"SERVER_PORT" envDefault:"8080"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"data/kindred.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	LLMProvider     string  `env:"LLM_PROVIDER" envDefault:"ollama"`
	LLMModel        string  `env:"LLM_MODEL"`
	OllamaURL       string  `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	OpenAIAPIKey    string  `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string  `env:"ANTHROPIC_API_KEY"`
	GeminiAPIKey    string  `env:"GEMINI_API_KEY"`
	CerebrasAPIKey  string  `env:"CEREBRAS_API_KEY"`
	LLMRateLimitRPS float64 `env:"LLM_RATE_LIMIT_RPS" envDefault:"0"`
	LLMRateBurst    int     `env:"LLM_RATE_LIMIT_BURST" envDefault:"1"`

	EmbeddingProvider string `env:"EMBEDDING_PROVIDER" envDefault:"none"`

	PersonaName  string `env:"PERSONA_NAME" envDefault:"TeenAI"`
	HistoryLimit int    `env:"HISTORY_LIMIT" envDefault:"2000"`
	ChurnEvery   int    `env:"CHURN_EVERY" envDefault:"30"`

	RoutineFastMode  bool          `env:"ROUTINE_FAST_MODE" envDefault:"false"`
	RoutineInterval  time.Duration `env:"ROUTINE_INTERVAL" envDefault:"60s"`
	SweepInterval    time.Duration `env:"EVENT_SWEEP_INTERVAL" envDefault:"60s"`
	SpawnProbability float64       `env:"EVENT_SPAWN_PROBABILITY" envDefault:"1.0"`
	ProactiveMin     time.Duration `env:"PROACTIVE_MIN" envDefault:"3m"`
	ProactiveMax     time.Duration `env:"PROACTIVE_MAX" envDefault:"8m"`
	MoodNoise        float64       `env:"MOOD_NOISE" envDefault:"0.05"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"100"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the .env file specified by KINDRED_ENV (or .env by default),
// then loads the corresponding .secret file if it exists. Variables already
// set in the process environment win.
func Load() error {
	envFile := os.Getenv("KINDRED_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Both files are optional.
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

// Parse fills a Config from the environment and validates it.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	cfg.EmbeddingProvider = strings.ToLower(strings.TrimSpace(cfg.EmbeddingProvider))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (valid options: sqlite, postgres, memory)", c.StoreDriver)
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT out of range: %d", c.ServerPort)
	}
	if c.SpawnProbability < 0 || c.SpawnProbability > 1 {
		return fmt.Errorf("EVENT_SPAWN_PROBABILITY must be within [0, 1], got %v", c.SpawnProbability)
	}
	if c.ProactiveMax < c.ProactiveMin {
		return fmt.Errorf("PROACTIVE_MAX (%s) is below PROACTIVE_MIN (%s)", c.ProactiveMax, c.ProactiveMin)
	}
	return nil
}

func (c Config) ServerAddr() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

// LLMAPIKey returns the API key for the configured LLM provider.
func (c Config) LLMAPIKey() string {
	switch c.LLMProvider {
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	case "cerebras":
		return c.CerebrasAPIKey
	case "ollama", "mock":
		return ""
	default:
		return c.OpenAIAPIKey
	}
}

// EmbeddingAPIKey returns the API key for the configured embedding provider.
func (c Config) EmbeddingAPIKey() string {
	if c.EmbeddingProvider == "openai" {
		return c.OpenAIAPIKey
	}
	return ""
}
