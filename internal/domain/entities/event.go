package entities

import "time"

// EventStatus is the lifecycle status of a shared event record.
type EventStatus string

const (
	EventSoon   EventStatus = "soon"
	EventActive EventStatus = "active"
	EventEnded  EventStatus = "ended"
)

var eventRanks = map[EventStatus]int{
	EventSoon:   1,
	EventActive: 2,
	EventEnded:  3,
}

// Rank returns the position of s in soon → active → ended, or 0 when s is unknown.
func (s EventStatus) Rank() int {
	return eventRanks[s]
}

// Valid reports whether s is a known event status.
func (s EventStatus) Valid() bool {
	return s.Rank() > 0
}

// CanAdvanceTo reports whether moving from s to next keeps the status monotonic.
func (s EventStatus) CanAdvanceTo(next EventStatus) bool {
	return s.Valid() && next.Valid() && next.Rank() >= s.Rank()
}

// Event is the shared record visible to every participant.
type Event struct {
	ID        string
	Status    EventStatus
	StartTime time.Time
	EndTime   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
