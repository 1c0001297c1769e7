package domain

import "sync"

// LockedRand serializes access to a RandSource shared by several
// components. *math/rand/v2.Rand is not safe for concurrent use.
type LockedRand struct {
	mu  sync.Mutex
	src RandSource
}

// NewLockedRand wraps src. A source that is already locked is returned as is
// and a nil source stays nil.
func NewLockedRand(src RandSource) RandSource {
	if src == nil {
		return nil
	}
	if l, ok := src.(*LockedRand); ok {
		return l
	}
	return &LockedRand{src: src}
}

func (r *LockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Float64()
}

func (r *LockedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.IntN(n)
}
