package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Harshitk-cp/kindred/internal/domain"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var h domain.History
	assert.ErrorIs(t, s.Load(ctx, domain.KeyHistory, &h), ErrNotFound)

	orig := domain.NewHistory(3)
	orig.Push("hi", "hello")
	require.NoError(t, s.Save(ctx, domain.KeyHistory, orig))

	// later mutation of the caller's value must not leak into the store
	orig.Push("again", "yes")

	require.NoError(t, s.Load(ctx, domain.KeyHistory, &h))
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, 3, h.Limit)

	raw, ok := s.Raw(domain.KeyHistory)
	require.True(t, ok)
	assert.Contains(t, string(raw), `"hello"`)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{domain.KeyHistory}, keys)
}

func TestMemoryStore_SaveErr(t *testing.T) {
	s := NewMemoryStore()
	s.SaveErr = errors.New("disk full")
	err := s.Save(context.Background(), "k", 1)
	assert.EqualError(t, err, "disk full")
	_, ok := s.Raw("k")
	assert.False(t, ok)
}
