package domain

import (
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDGenerator(t *testing.T) {
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	g := NewIDGenerator(func() time.Time { return at })

	a, b := g.New(), g.New()
	assert.Equal(t, -1, a.Compare(b), "same millisecond ids stay ordered")
	assert.Equal(t, at, a.Timestamp())

	parsed, err := ulid.Parse(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)
}

func TestIDGeneratorConcurrent(t *testing.T) {
	g := NewIDGenerator(nil)
	var (
		mu   sync.Mutex
		seen = map[ulid.ULID]bool{}
		wg   sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := g.New()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 800)
}
