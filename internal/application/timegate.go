package application

import "time"

// Dwell windows for the autonomous participant transitions.
const (
	DefaultOverdueWindow = 60 * time.Second
	DefaultAbsentWindow  = 60 * time.Second
)

// TimeGate answers time predicates against one instant captured at the start
// of a job run, so every record in the run is judged against the same "now".
type TimeGate struct {
	now time.Time
}

// NewTimeGate captures now in UTC at the store's microsecond precision.
func NewTimeGate(now time.Time) TimeGate {
	return TimeGate{now: now.UTC().Truncate(time.Microsecond)}
}

func (g TimeGate) Now() time.Time {
	return g.now
}

// IsDue reports whether t is strictly before now. A zero t is never due.
func (g TimeGate) IsDue(t time.Time) bool {
	return !t.IsZero() && t.Before(g.now)
}

// StalenessThreshold returns now - window.
func (g TimeGate) StalenessThreshold(window time.Duration) time.Time {
	return g.now.Add(-window)
}

// HasDwelt reports whether t is strictly before now - window.
func (g TimeGate) HasDwelt(t time.Time, window time.Duration) bool {
	return !t.IsZero() && t.Before(g.StalenessThreshold(window))
}
