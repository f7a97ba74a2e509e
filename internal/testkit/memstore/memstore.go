// Package memstore is an in-memory output.Store for tests, with hooks to make
// queries or individual commit groups fail.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"reconciler/internal/domain"
	"reconciler/internal/domain/entities"
	"reconciler/internal/ports/output"
)

var _ output.Store = (*Store)(nil)

type participantKey struct {
	userID  string
	eventID string
}

// Store keeps events and participant events in maps guarded by one mutex.
// A commit group is validated and applied under the lock, so it is atomic.
type Store struct {
	mu           sync.Mutex
	events       map[string]entities.Event
	participants map[participantKey]entities.ParticipantEvent

	commits      []int
	commitCalls  int
	failCommits  map[int]error
	queryErr     error
	eventIDErrs  map[string]error
	beforeCommit func(call int)
}

func New() *Store {
	return &Store{
		events:       make(map[string]entities.Event),
		participants: make(map[participantKey]entities.ParticipantEvent),
		failCommits:  make(map[int]error),
		eventIDErrs:  make(map[string]error),
	}
}

// PutEvent inserts or replaces an event.
func (s *Store) PutEvent(e entities.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e
}

// PutParticipantEvent inserts or replaces a participant event.
func (s *Store) PutParticipantEvent(p entities.ParticipantEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[participantKey{p.UserID, p.EventID}] = p
}

func (s *Store) Event(id string) (entities.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	return e, ok
}

func (s *Store) ParticipantEvent(userID, eventID string) (entities.ParticipantEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[participantKey{userID, eventID}]
	return p, ok
}

// Events returns every event sorted by id.
func (s *Store) Events() []entities.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ParticipantEvents returns every participant event sorted by (event id, user id).
func (s *Store) ParticipantEvents() []entities.ParticipantEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.ParticipantEvent, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, p)
	}
	sortParticipants(out)
	return out
}

// CountParticipantStatus counts participant rows in status.
func (s *Store) CountParticipantStatus(status entities.ParticipantStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.participants {
		if p.Status == status {
			n++
		}
	}
	return n
}

// FailCommit makes the call-th CommitGroup call (1-based) fail with err
// without applying anything.
func (s *Store) FailCommit(call int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCommits[call] = err
}

// FailQueries makes every query fail with err. A nil err clears it.
func (s *Store) FailQueries(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryErr = err
}

// FailEventID makes FindByEventIDAndStatus fail with err for eventID.
func (s *Store) FailEventID(eventID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventIDErrs[eventID] = err
}

// BeforeCommit registers fn to run, outside the lock, before each CommitGroup call.
func (s *Store) BeforeCommit(fn func(call int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeCommit = fn
}

// Commits returns the size of every group that committed, in order.
func (s *Store) Commits() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.commits...)
}

// CommitCalls returns how many times CommitGroup was called, failed calls included.
func (s *Store) CommitCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitCalls
}

func (s *Store) FindDueEvents(ctx context.Context, status entities.EventStatus, field output.EventTimeField, before time.Time) ([]entities.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var out []entities.Event
	for _, e := range s.events {
		if e.Status != status {
			continue
		}
		var t time.Time
		switch field {
		case output.EventStartTime:
			t = e.StartTime
		case output.EventEndTime:
			t = e.EndTime
		default:
			return nil, fmt.Errorf("unknown event field %q", field)
		}
		if !t.IsZero() && t.Before(before) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindStaleParticipantEvents(ctx context.Context, status entities.ParticipantStatus, field output.ParticipantTimeField, before time.Time) ([]entities.ParticipantEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	var out []entities.ParticipantEvent
	for _, p := range s.participants {
		if p.Status != status {
			continue
		}
		var t time.Time
		switch field {
		case output.ParticipantEndedTime:
			t = p.EndedTime
		case output.ParticipantOverdueTime:
			t = p.OverdueTime
		default:
			return nil, fmt.Errorf("unknown participant field %q", field)
		}
		if !t.IsZero() && t.Before(before) {
			out = append(out, p)
		}
	}
	sortParticipants(out)
	return out, nil
}

func (s *Store) FindByEventIDAndStatus(ctx context.Context, eventID string, status entities.ParticipantStatus) ([]entities.ParticipantEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	if err := s.eventIDErrs[eventID]; err != nil {
		return nil, err
	}
	var out []entities.ParticipantEvent
	for _, p := range s.participants {
		if p.EventID == eventID && p.Status == status {
			out = append(out, p)
		}
	}
	sortParticipants(out)
	return out, nil
}

func (s *Store) CommitGroup(ctx context.Context, updates []entities.Update) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.commitCalls++
	call := s.commitCalls
	hook := s.beforeCommit
	s.mu.Unlock()
	if hook != nil {
		hook(call)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failCommits[call]; err != nil {
		return 0, err
	}
	for _, u := range updates {
		switch u.Ref.Collection {
		case entities.CollectionEvents, entities.CollectionParticipantEvents:
		default:
			return 0, fmt.Errorf("%w: %q", domain.ErrUnknownCollection, u.Ref.Collection)
		}
	}

	applied := 0
	for _, u := range updates {
		if s.apply(u) {
			applied++
		}
	}
	s.commits = append(s.commits, len(updates))
	return applied, nil
}

func (s *Store) apply(u entities.Update) bool {
	now := time.Now().UTC()
	switch u.Ref.Collection {
	case entities.CollectionEvents:
		e, ok := s.events[u.Ref.ID]
		if !ok || string(e.Status) != u.From {
			return false
		}
		if u.Delta.Status != "" {
			next := entities.EventStatus(u.Delta.Status)
			if !e.Status.CanAdvanceTo(next) {
				return false
			}
			e.Status = next
		}
		e.UpdatedAt = now
		s.events[u.Ref.ID] = e
		return true
	default:
		key := participantKey{u.Ref.UserID, u.Ref.ID}
		p, ok := s.participants[key]
		if !ok || string(p.Status) != u.From {
			return false
		}
		if u.Delta.Status != "" {
			next := entities.ParticipantStatus(u.Delta.Status)
			if !p.Status.CanAdvanceTo(next) {
				return false
			}
			p.Status = next
		}
		if !u.Delta.EndedTime.IsZero() {
			p.EndedTime = u.Delta.EndedTime
		}
		if !u.Delta.OverdueTime.IsZero() {
			p.OverdueTime = u.Delta.OverdueTime
		}
		p.UpdatedAt = now
		s.participants[key] = p
		return true
	}
}

func sortParticipants(ps []entities.ParticipantEvent) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].EventID != ps[j].EventID {
			return ps[i].EventID < ps[j].EventID
		}
		return ps[i].UserID < ps[j].UserID
	})
}
