package service

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/kindred/internal/domain"
)

// RoutineClock maps time to the companion's daily schedule. In synced mode
// it follows the wall clock; in accelerated mode every tick moves to the next
// slot regardless of the time.
type RoutineClock struct {
	mu       sync.Mutex
	schedule []domain.RoutineSlot
	mode     domain.RoutineMode
	logger   *zap.Logger

	current string
	lastHM  domain.ClockTime
	ticked  bool
	index   int
}

func NewRoutineClock(schedule []domain.RoutineSlot, mode domain.RoutineMode, logger *zap.Logger) *RoutineClock {
	if mode == "" {
		mode = domain.RoutineSynced
	}
	return &RoutineClock{schedule: schedule, mode: mode, logger: logger}
}

// Tick reports the activity for now. changed is true only when the activity
// differs from the previously reported one.
func (c *RoutineClock) Tick(now time.Time) (activity string, hm domain.ClockTime, changed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == domain.RoutineAccelerated {
		return c.tickAccelerated()
	}
	return c.tickSynced(now)
}

func (c *RoutineClock) tickSynced(now time.Time) (string, domain.ClockTime, bool) {
	hm := domain.ClockTimeOf(now)
	if c.ticked && hm == c.lastHM {
		return c.current, hm, false
	}
	c.ticked = true
	c.lastHM = hm

	if hm == 0 {
		if c.current != "" {
			c.logger.Info("midnight, routine reset")
		}
		c.current = ""
		return "", hm, false
	}

	activity := domain.ActivityAt(c.schedule, hm)
	if activity == "" || activity == c.current {
		return activity, hm, false
	}
	c.current = activity
	c.logger.Info("routine activity changed", zap.String("time", hm.String()), zap.String("activity", activity))
	return activity, hm, true
}

func (c *RoutineClock) tickAccelerated() (string, domain.ClockTime, bool) {
	if c.index >= len(c.schedule) {
		c.index = 0
		c.current = ""
		c.logger.Info("accelerated routine finished the day, restarting")
		return "", 0, false
	}
	slot := c.schedule[c.index]
	c.index++
	c.lastHM = slot.Time
	if slot.Activity == c.current {
		return slot.Activity, slot.Time, false
	}
	c.current = slot.Activity
	c.logger.Info("routine activity changed",
		zap.String("time", slot.Time.String()),
		zap.String("activity", slot.Activity),
		zap.String("mode", string(c.mode)))
	return slot.Activity, slot.Time, true
}

func (c *RoutineClock) CurrentActivity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *RoutineClock) Mode() domain.RoutineMode {
	return c.mode
}

func (c *RoutineClock) Schedule() []domain.RoutineSlot {
	return append([]domain.RoutineSlot(nil), c.schedule...)
}
