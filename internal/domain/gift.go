package domain

import "time"

// GiftLockDuration is how long a gift stays unavailable after being sent.
const GiftLockDuration = 24 * time.Hour

type Gift struct {
	ID          string              `json:"id" yaml:"id"`
	Name        string              `json:"name" yaml:"name"`
	Icon        string              `json:"icon" yaml:"icon"`
	Cost        int                 `json:"cost" yaml:"cost"`
	Description string              `json:"description,omitempty" yaml:"description"`
	Effects     map[Channel]float64 `json:"effects,omitempty" yaml:"effects"`
}

// GiftLocks maps gift id to the time the gift unlocks again.
type GiftLocks map[string]time.Time

func (l GiftLocks) Locked(id string, now time.Time) bool {
	until, ok := l[id]
	return ok && now.Before(until)
}

// Prune drops expired locks.
func (l GiftLocks) Prune(now time.Time) {
	for id, until := range l {
		if !now.Before(until) {
			delete(l, id)
		}
	}
}
