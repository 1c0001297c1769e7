package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Harshitk-cp/kindred/internal/domain"
)

// MemoryStore is a process-local snapshot store. Values are kept in their
// encoded JSON form so callers observe the same copy semantics as the
// durable stores.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte

	// SaveErr, when set, is returned by every Save.
	SaveErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, key string, v any) error {
	s.mu.RLock()
	b, ok := s.docs[key]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *MemoryStore) Save(_ context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.docs[key] = b
	return nil
}

func (s *MemoryStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.docs))
	for k := range s.docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Ping(context.Context) error { return nil }

// Raw returns the stored JSON for key.
func (s *MemoryStore) Raw(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.docs[key]
	return b, ok
}

// MemoryVectorStore is the process-local associative memory.
type MemoryVectorStore struct {
	mu      sync.RWMutex
	records []domain.VectorRecord
}

func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{}
}

func (s *MemoryVectorStore) Insert(_ context.Context, r *domain.VectorRecord) error {
	if r.ID.IsZero() {
		return fmt.Errorf("insert vector: missing id")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *r)
	return nil
}

func (s *MemoryVectorStore) Search(_ context.Context, embedding []float32, k int) ([]domain.VectorWithScore, error) {
	if k <= 0 {
		k = 5
	}
	s.mu.RLock()
	results := make([]domain.VectorWithScore, 0, len(s.records))
	for _, r := range s.records {
		results = append(results, domain.VectorWithScore{VectorRecord: r, Score: Cosine(embedding, r.Embedding)})
	}
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *MemoryVectorStore) DeleteMatching(_ context.Context, substr string) (int64, error) {
	needle := strings.ToLower(strings.TrimSpace(substr))
	if needle == "" {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	var n int64
	for _, r := range s.records {
		if strings.Contains(strings.ToLower(r.Text), needle) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return n, nil
}

func (s *MemoryVectorStore) DeleteAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.records))
	s.records = nil
	return n, nil
}
