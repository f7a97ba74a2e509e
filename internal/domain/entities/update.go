package entities

import (
	"fmt"
	"time"
)

// Collection names a logical record collection in the store.
type Collection string

const (
	CollectionEvents            Collection = "events"
	CollectionParticipantEvents Collection = "participant_events"
)

// RecordRef addresses one record. UserID is only set for participant events.
type RecordRef struct {
	Collection Collection
	ID         string
	UserID     string
}

func (r RecordRef) String() string {
	if r.Collection == CollectionParticipantEvents {
		return fmt.Sprintf("%s/%s/%s", r.Collection, r.UserID, r.ID)
	}
	return fmt.Sprintf("%s/%s", r.Collection, r.ID)
}

// EventRef returns the reference of the shared event with the given id.
func EventRef(id string) RecordRef {
	return RecordRef{Collection: CollectionEvents, ID: id}
}

// ParticipantEventRef returns the reference of one participant's event record.
func ParticipantEventRef(userID, eventID string) RecordRef {
	return RecordRef{Collection: CollectionParticipantEvents, ID: eventID, UserID: userID}
}

// Delta holds the fields rewritten by a transition. Zero times are left untouched.
type Delta struct {
	Status      string
	EndedTime   time.Time
	OverdueTime time.Time
}

// Merge returns d with the non-empty fields of extra applied on top.
func (d Delta) Merge(extra Delta) Delta {
	if extra.Status != "" {
		d.Status = extra.Status
	}
	if !extra.EndedTime.IsZero() {
		d.EndedTime = extra.EndedTime
	}
	if !extra.OverdueTime.IsZero() {
		d.OverdueTime = extra.OverdueTime
	}
	return d
}

// Update is one record rewrite inside a commit group. The store applies it only
// while the record still has status From.
type Update struct {
	Ref   RecordRef
	From  string
	Delta Delta
}
