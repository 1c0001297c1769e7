package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Harshitk-cp/kindred/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_LoadMissing(t *testing.T) {
	s := newTestStore(t)
	var v domain.NeedsVector
	err := s.Load(context.Background(), domain.KeyNeeds, &v)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_SaveLoadOverwrite(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Save(ctx, domain.KeyNeeds, domain.NeedsVector{Social: 0.1, Learning: 0.2, Rest: 0.3}))
	require.NoError(t, s.Save(ctx, domain.KeyNeeds, domain.NeedsVector{Social: 0.9, Learning: 0.8, Rest: 0.7}))
	require.NoError(t, s.Save(ctx, domain.KeyAffect, domain.NewAffectVector().Snapshot()))

	var got domain.NeedsVector
	require.NoError(t, s.Load(ctx, domain.KeyNeeds, &got))
	assert.Equal(t, domain.NeedsVector{Social: 0.9, Learning: 0.8, Rest: 0.7}, got)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{domain.KeyAffect, domain.KeyNeeds}, keys)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kindred.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, domain.KeyRelationship, domain.RelationshipState{Score: 42, Chemistry: 7}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	var rel domain.RelationshipState
	require.NoError(t, s.Load(ctx, domain.KeyRelationship, &rel))
	assert.Equal(t, 42.0, rel.Score)
	assert.Equal(t, 7.0, rel.Chemistry)
}

func TestSQLiteVectorStore(t *testing.T) {
	ctx := context.Background()
	vs := newTestStore(t).Vectors()
	runVectorStoreTests(t, ctx, vs)
}

func TestMemoryVectorStore(t *testing.T) {
	runVectorStoreTests(t, context.Background(), NewMemoryVectorStore())
}

func runVectorStoreTests(t *testing.T, ctx context.Context, vs domain.VectorStore) {
	t.Helper()
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	ids := domain.NewIDGenerator(func() time.Time { return base })
	a, b, c := ids.New(), ids.New(), ids.New()
	records := []domain.VectorRecord{
		{ID: a, Text: "We went to the Beach", Embedding: []float32{1, 0, 0}, Meta: map[string]string{"kind": "diary"}, CreatedAt: base},
		{ID: b, Text: "quantum homework", Embedding: []float32{0, 1, 0}, CreatedAt: base},
		{ID: c, Text: "beach bonfire", Embedding: []float32{0.9, 0.1, 0}, CreatedAt: base},
	}
	for i := range records {
		require.NoError(t, vs.Insert(ctx, &records[i]))
	}

	err := vs.Insert(ctx, &domain.VectorRecord{Text: "no id"})
	assert.Error(t, err)

	hits, err := vs.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, a, hits[0].ID)
	assert.Equal(t, c, hits[1].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-4)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
	assert.Equal(t, "diary", hits[0].Meta["kind"])

	n, err := vs.DeleteMatching(ctx, "  ")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = vs.DeleteMatching(ctx, "BEACH")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	hits, err = vs.Search(ctx, []float32{1, 0, 0}, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, b, hits[0].ID)

	n, err = vs.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-6)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, 0.0, Cosine(nil, []float32{1}), 1e-6)
}
