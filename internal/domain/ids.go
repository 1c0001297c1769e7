package domain

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// IDGenerator mints memory record ids. ULIDs sort by creation time, so
// records listed by id come out in the order they were made.
type IDGenerator struct {
	entropy *ulid.LockedMonotonicReader
	now     func() time.Time
}

func NewIDGenerator(now func() time.Time) *IDGenerator {
	if now == nil {
		now = time.Now
	}
	return &IDGenerator{
		entropy: &ulid.LockedMonotonicReader{MonotonicReader: ulid.Monotonic(rand.Reader, 0)},
		now:     now,
	}
}

func (g *IDGenerator) New() ulid.ULID {
	return ulid.MustNew(ulid.Timestamp(g.now()), g.entropy)
}
