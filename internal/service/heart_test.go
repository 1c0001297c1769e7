package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/kindred/internal/domain"
	"github.com/Harshitk-cp/kindred/internal/store"
)

func newTestHeartStore(s domain.SnapshotStore) *HeartStore {
	h := NewHeartStore(s, "Mia", &seqRand{}, zap.NewNop())
	h.now = func() time.Time { return fixedNow }
	return h
}

func TestHeartStore_AddEpisodicPersists(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	h := newTestHeartStore(ms)

	e, err := h.AddEpisodic(ctx, domain.EpisodicMemory{User: "hi", Content: "User: hi\nAI: hey", Importance: 0.6, Tags: []string{"chat"}})
	require.NoError(t, err)
	assert.False(t, e.ID.IsZero())
	assert.Equal(t, fixedNow, e.Timestamp)

	restored := newTestHeartStore(ms)
	require.NoError(t, restored.Restore(ctx))
	assert.Equal(t, 1, restored.Snapshot().Counts.Episodic)

	hits := restored.Recall("hey", 5)
	require.NotEmpty(t, hits)
	assert.Equal(t, e.ID, hits[0].ID)
}

func TestHeartStore_RestoreMissingKeepsDefaults(t *testing.T) {
	h := newTestHeartStore(store.NewMemoryStore())
	require.NoError(t, h.Restore(context.Background()))
	assert.Equal(t, "Mia", h.Snapshot().Identity.Name)
	assert.Equal(t, 0, h.Hearts().Total)
}

func TestHeartStore_Hearts(t *testing.T) {
	ctx := context.Background()
	h := newTestHeartStore(store.NewMemoryStore())

	total, err := h.AddHeart(ctx, 5, "chatted")
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	total, err = h.AddHeart(ctx, 0, "nothing")
	require.NoError(t, err)
	assert.Equal(t, 5, total)

	_, err = h.SpendHearts(ctx, 6, "too much")
	assert.ErrorIs(t, err, ErrInsufficientHearts)
	assert.Equal(t, 5, h.Hearts().Total)

	_, err = h.SpendHearts(ctx, -1, "negative")
	assert.ErrorIs(t, err, ErrInvalidPoints)

	total, err = h.SpendHearts(ctx, 3, "gift")
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	ledger := h.Hearts()
	require.Len(t, ledger.History, 2)
	assert.Equal(t, -3, ledger.History[1].Points)
}

func TestHeartStore_SaveErrorIsReturned(t *testing.T) {
	ms := store.NewMemoryStore()
	ms.SaveErr = errors.New("disk full")
	h := newTestHeartStore(ms)

	total, err := h.AddHeart(context.Background(), 2, "chatted")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save heart")
	assert.Equal(t, 2, total, "in-memory state still changes")
}

func TestHeartStore_AddSemanticDefaultsConfidence(t *testing.T) {
	h := newTestHeartStore(store.NewMemoryStore())
	f, err := h.AddSemantic(context.Background(), domain.SemanticFact{Fact: "User likes tea", Source: "chat"})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, f.Confidence, 1e-9)
	assert.False(t, f.ID.IsZero())
}

func TestHeartStore_Churn(t *testing.T) {
	ctx := context.Background()
	h := newTestHeartStore(store.NewMemoryStore())

	res, err := h.Churn(ctx, DefaultMaxDreams, DefaultTraumaThreshold)
	require.NoError(t, err)
	assert.Equal(t, domain.ChurnResult{}, res)

	_, err = h.AddEpisodic(ctx, domain.EpisodicMemory{User: "x", Content: "a terrible fight", Emotion: "sad", Importance: 0.9})
	require.NoError(t, err)

	res, err = h.Churn(ctx, 1, DefaultTraumaThreshold)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DreamsCreated)
	assert.Equal(t, 1, res.TraumasAdded)
	assert.Equal(t, 1, h.Snapshot().Counts.Traumas)
}
