package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventStatus_CanAdvanceTo(t *testing.T) {
	assert.True(t, EventSoon.CanAdvanceTo(EventActive))
	assert.True(t, EventActive.CanAdvanceTo(EventEnded))
	assert.True(t, EventActive.CanAdvanceTo(EventActive), "re-setting the same status is allowed")
	assert.False(t, EventEnded.CanAdvanceTo(EventActive))
	assert.False(t, EventStatus("draft").CanAdvanceTo(EventActive))
}

func TestParticipantStatus_Order(t *testing.T) {
	order := []ParticipantStatus{
		ParticipantAwaiting, ParticipantActive, ParticipantEnded, ParticipantOverdue, ParticipantAbsent,
	}
	for i := 1; i < len(order); i++ {
		assert.Less(t, order[i-1].Rank(), order[i].Rank())
		assert.True(t, order[i-1].CanAdvanceTo(order[i]))
		assert.False(t, order[i].CanAdvanceTo(order[i-1]))
	}
	assert.False(t, ParticipantStatus("checked_in").Valid())
}

func TestDelta_Merge(t *testing.T) {
	at := time.Date(2026, 5, 10, 18, 0, 0, 0, time.UTC)
	d := Delta{Status: "ended"}.Merge(Delta{EndedTime: at})

	assert.Equal(t, Delta{Status: "ended", EndedTime: at}, d)
	assert.Equal(t, d, d.Merge(Delta{}))
}

func TestRecordRef_String(t *testing.T) {
	assert.Equal(t, "events/e1", EventRef("e1").String())
	assert.Equal(t, "participant_events/u1/e1", ParticipantEventRef("u1", "e1").String())
}
