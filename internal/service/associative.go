package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/kindred/internal/domain"
)

const DefaultAssociativeTopK = 5

// AssociativeMemory is embedding-backed recall over diary entries and chat
// turns. With no embedder configured every operation is a no-op.
type AssociativeMemory struct {
	embedder domain.EmbeddingClient
	vectors  domain.VectorStore
	ids      *domain.IDGenerator
	logger   *zap.Logger
}

func NewAssociativeMemory(embedder domain.EmbeddingClient, vectors domain.VectorStore, logger *zap.Logger) *AssociativeMemory {
	return &AssociativeMemory{
		embedder: embedder,
		vectors:  vectors,
		ids:      domain.NewIDGenerator(time.Now),
		logger:   logger,
	}
}

func (m *AssociativeMemory) Enabled() bool {
	return m != nil && m.embedder != nil && m.vectors != nil
}

// Add embeds text and stores it. Blank text is ignored.
func (m *AssociativeMemory) Add(ctx context.Context, text string, meta map[string]string) (ulid.ULID, error) {
	if !m.Enabled() || strings.TrimSpace(text) == "" {
		return ulid.ULID{}, nil
	}
	emb, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return ulid.ULID{}, fmt.Errorf("embed memory: %w", err)
	}
	rec := &domain.VectorRecord{
		ID:        m.ids.New(),
		Text:      text,
		Embedding: emb,
		Meta:      meta,
	}
	if err := m.vectors.Insert(ctx, rec); err != nil {
		return ulid.ULID{}, fmt.Errorf("store memory: %w", err)
	}
	return rec.ID, nil
}

// Search returns the k entries most similar to query, best first.
func (m *AssociativeMemory) Search(ctx context.Context, query string, k int) ([]domain.VectorWithScore, error) {
	if !m.Enabled() || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if k <= 0 {
		k = DefaultAssociativeTopK
	}
	emb, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := m.vectors.Search(ctx, emb, k)
	if err != nil {
		return nil, fmt.Errorf("search memory: %w", err)
	}
	return hits, nil
}

// Forget removes entries whose text contains substr, ignoring case.
func (m *AssociativeMemory) Forget(ctx context.Context, substr string) (int64, error) {
	if !m.Enabled() {
		return 0, nil
	}
	n, err := m.vectors.DeleteMatching(ctx, substr)
	if err != nil {
		return 0, fmt.Errorf("forget memory: %w", err)
	}
	if n > 0 {
		m.logger.Info("associative memories forgotten", zap.Int64("count", n))
	}
	return n, nil
}

func (m *AssociativeMemory) Clear(ctx context.Context) (int64, error) {
	if !m.Enabled() {
		return 0, nil
	}
	n, err := m.vectors.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear memory: %w", err)
	}
	m.logger.Info("associative memory cleared", zap.Int64("count", n))
	return n, nil
}
