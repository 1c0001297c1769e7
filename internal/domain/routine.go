package domain

type RoutineMode string

const (
	RoutineSynced      RoutineMode = "synced"
	RoutineAccelerated RoutineMode = "accelerated"
)

// RoutineSlot starts an activity at a time of day. A schedule is ordered by
// start time.
type RoutineSlot struct {
	Time     ClockTime `json:"time" yaml:"time"`
	Activity string    `json:"activity" yaml:"activity"`
}

// ActivityAt returns the activity of the latest slot starting at or before c,
// or "" before the first slot.
func ActivityAt(schedule []RoutineSlot, c ClockTime) string {
	activity := ""
	for _, slot := range schedule {
		if slot.Time > c {
			break
		}
		activity = slot.Activity
	}
	return activity
}
