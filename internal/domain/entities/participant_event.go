package entities

import "time"

// ParticipantStatus is the lifecycle status of a per-participant event record.
type ParticipantStatus string

const (
	ParticipantAwaiting ParticipantStatus = "awaiting"
	ParticipantActive   ParticipantStatus = "active"
	ParticipantEnded    ParticipantStatus = "ended"
	ParticipantOverdue  ParticipantStatus = "overdue"
	ParticipantAbsent   ParticipantStatus = "absent"
)

var participantRanks = map[ParticipantStatus]int{
	ParticipantAwaiting: 1,
	ParticipantActive:   2,
	ParticipantEnded:    3,
	ParticipantOverdue:  4,
	ParticipantAbsent:   5,
}

// Rank returns the position of s in awaiting → active → ended → overdue → absent,
// or 0 when s is unknown.
func (s ParticipantStatus) Rank() int {
	return participantRanks[s]
}

func (s ParticipantStatus) Valid() bool {
	return s.Rank() > 0
}

func (s ParticipantStatus) CanAdvanceTo(next ParticipantStatus) bool {
	return s.Valid() && next.Valid() && next.Rank() >= s.Rank()
}

// ParticipantEvent is one participant's copy of an event. EventID is both the
// record identifier inside the user's collection and the parent Event.ID.
type ParticipantEvent struct {
	UserID      string
	EventID     string
	Status      ParticipantStatus
	EndedTime   time.Time // zero until the record reaches ended
	OverdueTime time.Time // zero until the record reaches overdue
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
