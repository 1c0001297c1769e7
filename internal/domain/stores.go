package domain

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Snapshot keys. Each key holds one full JSON document that is rewritten on
// every mutation.
const (
	KeyAffect           = "affect"
	KeyNeeds            = "needs"
	KeyRelationship     = "relationship"
	KeyHistory          = "history"
	KeyHeart            = "heart"
	KeyLifeEvents       = "life_events"
	KeyBehaviorAnalysis = "latest_behavior_analysis"
	KeyGiftLocks        = "gift_locks"
)

// SnapshotStore is durable key-value persistence for whole JSON documents.
// Load returns store.ErrNotFound when the key has never been saved.
type SnapshotStore interface {
	Load(ctx context.Context, key string, v any) error
	Save(ctx context.Context, key string, v any) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// GenerateOptions tunes a single oracle call.
type GenerateOptions struct {
	JSON        bool
	Temperature float64
	MaxTokens   int
}

// Oracle is the external text-generation backend. Output is free text with
// no guarantee of well-formed JSON even when JSON is requested.
type Oracle interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorRecord is one entry of the associative memory.
type VectorRecord struct {
	ID        ulid.ULID         `json:"id"`
	Text      string            `json:"text"`
	Embedding []float32         `json:"-"`
	Meta      map[string]string `json:"meta,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type VectorWithScore struct {
	VectorRecord
	Score float32 `json:"score"`
}

type VectorStore interface {
	Insert(ctx context.Context, r *VectorRecord) error
	Search(ctx context.Context, embedding []float32, k int) ([]VectorWithScore, error)
	// DeleteMatching removes records whose text contains substr, case-insensitively.
	DeleteMatching(ctx context.Context, substr string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// Publisher delivers notifications best-effort. It must never block.
type Publisher interface {
	Publish(n Notification)
}

// RandSource is the randomness used by mood noise, dream sampling, event
// selection and feed posts. *math/rand/v2.Rand satisfies it.
type RandSource interface {
	Float64() float64
	IntN(n int) int
}
