package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/kindred/internal/domain"
	"github.com/Harshitk-cp/kindred/internal/store"
)

const (
	DefaultMaxDreams       = 3
	DefaultTraumaThreshold = 0.7
)

// HeartStore owns the companion's long-term memory document and writes the
// whole document back after every mutation.
type HeartStore struct {
	mu      sync.Mutex
	heart   *domain.Heart
	persona string

	store  domain.SnapshotStore
	rnd    domain.RandSource
	ids    *domain.IDGenerator
	logger *zap.Logger
	now    func() time.Time
}

func NewHeartStore(s domain.SnapshotStore, persona string, rnd domain.RandSource, logger *zap.Logger) *HeartStore {
	h := &HeartStore{
		heart:   domain.NewHeart(persona),
		persona: persona,
		store:   s,
		rnd:     rnd,
		logger:  logger,
		now:     time.Now,
	}
	h.ids = domain.NewIDGenerator(func() time.Time { return h.now() })
	return h
}

// Restore loads the persisted document. A missing document keeps the
// defaults.
func (h *HeartStore) Restore(ctx context.Context) error {
	var doc domain.Heart
	if err := h.store.Load(ctx, domain.KeyHeart, &doc); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("restore heart: %w", err)
	}
	doc.Normalize(h.persona)

	h.mu.Lock()
	h.heart = &doc
	h.mu.Unlock()
	return nil
}

// persist must be called with h.mu held.
func (h *HeartStore) persist(ctx context.Context) error {
	if err := h.store.Save(ctx, domain.KeyHeart, h.heart); err != nil {
		return fmt.Errorf("save heart: %w", err)
	}
	return nil
}

// AddEpisodic stores a memory. ID and timestamp are filled when missing. The
// in-memory document keeps the entry even when the write fails.
func (h *HeartStore) AddEpisodic(ctx context.Context, e domain.EpisodicMemory) (domain.EpisodicMemory, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e.ID.IsZero() {
		e.ID = h.ids.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = h.now()
	}
	stored := h.heart.AddEpisodic(e)
	return stored, h.persist(ctx)
}

func (h *HeartStore) AddSemantic(ctx context.Context, f domain.SemanticFact) (domain.SemanticFact, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if f.ID.IsZero() {
		f.ID = h.ids.New()
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = h.now()
	}
	if f.Confidence == 0 {
		f.Confidence = domain.DefaultSemanticConfidence
	}
	stored, added := h.heart.AddSemantic(f)
	if !added {
		h.logger.Debug("semantic fact merged", zap.Stringer("id", stored.ID), zap.Float64("confidence", stored.Confidence))
	}
	return stored, h.persist(ctx)
}

func (h *HeartStore) RecordEmotionEvent(ctx context.Context, ev domain.EmotionEvent) (domain.EmotionEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = h.now()
	}
	stored := h.heart.RecordEmotionEvent(ev)
	return stored, h.persist(ctx)
}

func (h *HeartStore) LogPrompt(ctx context.Context, prompt string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.heart.LogPrompt(prompt, h.now())
	return h.persist(ctx)
}

func (h *HeartStore) Recall(query string, topK int) []domain.RecallResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.heart.Recall(query, topK)
}

// Churn runs one dream/trauma/prune pass and persists once on completion.
// maxDreams or threshold <= 0 take the defaults.
func (h *HeartStore) Churn(ctx context.Context, maxDreams int, threshold float64) (domain.ChurnResult, error) {
	if maxDreams <= 0 {
		maxDreams = DefaultMaxDreams
	}
	if threshold <= 0 {
		threshold = DefaultTraumaThreshold
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	res, ran := h.heart.Churn(maxDreams, threshold, h.rnd, h.now(), h.ids.New)
	if !ran {
		h.logger.Debug("churn skipped, no episodic memory")
		return res, nil
	}
	h.logger.Info("churn completed",
		zap.Int("dreams", res.DreamsCreated),
		zap.Int("traumas_detected", res.TraumasDetected),
		zap.Int("traumas_added", res.TraumasAdded),
		zap.Int("facts_pruned", res.FactsPruned))
	return res, h.persist(ctx)
}

// AddHeart credits points and returns the new total. Non-positive points
// change nothing.
func (h *HeartStore) AddHeart(ctx context.Context, points int, reason string) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if points <= 0 {
		return h.heart.Hearts.Total, nil
	}
	total := h.heart.Hearts.AddHeart(points, reason, h.now())
	return total, h.persist(ctx)
}

// SpendHearts deducts points. The ledger is untouched when the request is
// rejected.
func (h *HeartStore) SpendHearts(ctx context.Context, points int, reason string) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if points <= 0 {
		return h.heart.Hearts.Total, ErrInvalidPoints
	}
	if !h.heart.Hearts.Spend(points, reason, h.now()) {
		return h.heart.Hearts.Total, ErrInsufficientHearts
	}
	return h.heart.Hearts.Total, h.persist(ctx)
}

func (h *HeartStore) Hearts() domain.HeartLedger {
	h.mu.Lock()
	defer h.mu.Unlock()
	l := h.heart.Hearts
	l.History = append([]domain.HeartEntry(nil), l.History...)
	return l
}

func (h *HeartStore) Snapshot() domain.HeartSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.heart.Snapshot()
}

// EmotionLevels returns a copy of the running per-label emotion levels.
func (h *HeartStore) EmotionLevels() map[string]float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]float64, len(h.heart.Emotions.CurrentState))
	for k, v := range h.heart.Emotions.CurrentState {
		out[k] = v
	}
	return out
}

// Document returns a deep copy of the whole heart, for export tooling.
func (h *HeartStore) Document() (domain.Heart, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, err := json.Marshal(h.heart)
	if err != nil {
		return domain.Heart{}, fmt.Errorf("encode heart: %w", err)
	}
	var doc domain.Heart
	if err := json.Unmarshal(b, &doc); err != nil {
		return domain.Heart{}, fmt.Errorf("decode heart: %w", err)
	}
	return doc, nil
}
