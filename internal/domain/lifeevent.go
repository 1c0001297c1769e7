package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type GoalType string

const (
	GoalChat           GoalType = "chat"
	GoalLikePost       GoalType = "like_post"
	GoalComment        GoalType = "comment"
	GoalHeartCollect   GoalType = "heart_collect"
	GoalGift           GoalType = "gift"
	GoalScore          GoalType = "score"
	GoalSupportReplies GoalType = "support_replies"
)

type EventStatus string

const (
	EventActive    EventStatus = "active"
	EventCompleted EventStatus = "completed"
)

// DefaultEventDuration applies when a definition carries no duration.
const DefaultEventDuration = 60 * time.Second

// ClockTime is a time of day in minutes after midnight.
type ClockTime int

// ParseClockTime parses "HH:MM".
func ParseClockTime(s string) (ClockTime, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return ClockTime(h*60 + m), nil
}

func ClockTimeOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*60 + t.Minute())
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(b []byte) error {
	v, err := ParseClockTime(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// TimeWindow is an inclusive time-of-day range. A window whose start is
// after its end wraps past midnight.
type TimeWindow struct {
	Start ClockTime `json:"start" yaml:"start"`
	End   ClockTime `json:"end" yaml:"end"`
}

func (w TimeWindow) Contains(c ClockTime) bool {
	if w.Start <= w.End {
		return c >= w.Start && c <= w.End
	}
	return c >= w.Start || c <= w.End
}

type Goal struct {
	Type   GoalType `json:"type" yaml:"type"`
	Amount int      `json:"amount" yaml:"amount"`
}

// Reward is granted once when a quest goal completes. Channel deltas are
// added to the affect vector as-is and clamped there.
type Reward struct {
	Channels map[Channel]float64 `json:"channels,omitempty" yaml:"channels"`
	Hearts   int                 `json:"hearts,omitempty" yaml:"hearts"`
}

// LifeEventDefinition is a static catalog entry.
type LifeEventDefinition struct {
	Name         string              `json:"name" yaml:"-"`
	Duration     time.Duration       `json:"duration" yaml:"duration"`
	Window       *TimeWindow         `json:"time,omitempty" yaml:"time"`
	TriggerStage Stage               `json:"trigger_stage,omitempty" yaml:"trigger_stage"`
	Description  string              `json:"description" yaml:"description"`
	OverrideTone string              `json:"override_tone,omitempty" yaml:"override_tone"`
	Effects      map[Channel]float64 `json:"effects,omitempty" yaml:"effects"`
	Goal         *Goal               `json:"goal,omitempty" yaml:"goal"`
	Reward       Reward              `json:"reward" yaml:"reward"`
	Timeout      time.Duration       `json:"timeout,omitempty" yaml:"timeout"`
}

// HumanizeEventName turns "spilled_coffee_thesis" into "Spilled Coffee Thesis".
func HumanizeEventName(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// SynthesizeDefinition builds the definition used for catalog names that
// have none: a humanized description, the default duration and nothing else.
func SynthesizeDefinition(name string) LifeEventDefinition {
	return LifeEventDefinition{
		Name:        name,
		Duration:    DefaultEventDuration,
		Description: HumanizeEventName(name) + ".",
	}
}

// ActiveLifeEvent is a spawned instance of a definition.
type ActiveLifeEvent struct {
	ID uuid.UUID `json:"id"`
	LifeEventDefinition
	StartedAt      time.Time   `json:"started_at"`
	ExpiresAt      time.Time   `json:"expires_at"`
	Status         EventStatus `json:"status"`
	Progress       int         `json:"progress"`
	AlreadyPosted  bool        `json:"already_posted"`
	AlreadyQuested bool        `json:"already_quested"`
	Rewarded       bool        `json:"rewarded"`
}

func (e *ActiveLifeEvent) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Advance increments goal progress by one and reports whether this call
// completed the goal. Completed events and events without a goal are left
// alone.
func (e *ActiveLifeEvent) Advance() bool {
	return e.SetProgress(e.Progress + 1)
}

// SetProgress sets goal progress to p and reports whether this call
// completed the goal.
func (e *ActiveLifeEvent) SetProgress(p int) bool {
	if e.Goal == nil || e.Status == EventCompleted {
		return false
	}
	if p < 0 {
		p = 0
	}
	e.Progress = p
	if e.Progress >= e.Goal.Amount {
		e.Status = EventCompleted
		return true
	}
	return false
}

// SchedulerPosition is where the scheduler is in its path/stage walk.
type SchedulerPosition struct {
	PathIndex  int             `json:"path_index"`
	StageIndex int             `json:"stage_index"`
	Used       map[string]bool `json:"used"`
	Exhausted  bool            `json:"exhausted"`
}

// LifeEventState is the persisted scheduler document.
type LifeEventState struct {
	Position SchedulerPosition  `json:"position"`
	Active   []*ActiveLifeEvent `json:"active"`
}

// QuestProgress is broadcast on every goal increment and on completion.
type QuestProgress struct {
	EventID   uuid.UUID   `json:"event_id"`
	Event     string      `json:"event"`
	Title     string      `json:"title"`
	Goal      Goal        `json:"goal"`
	Progress  int         `json:"progress"`
	Status    EventStatus `json:"status"`
	Completed bool        `json:"completed"`
	Reward    *Reward     `json:"reward,omitempty"`
}
