package domain

import (
	"errors"
	"fmt"
)

// Domain errors.
var (
	ErrStoreNotConfigured = errors.New("store non configuré")
	ErrInvalidChunkSize   = errors.New("taille de lot invalide")
	ErrUnknownCollection  = errors.New("collection inconnue")
	ErrUnknownJob         = errors.New("tâche inconnue")
	ErrRecordNotFound     = errors.New("enregistrement introuvable")
	ErrInvalidTransition  = errors.New("transition de statut invalide")
)

// Error codes returned by Code.
const (
	CodeQueryFailed       = "query_failed"
	CodeChunkCommitFailed = "chunk_commit_failed"
	CodePropagationFailed = "propagation_failed"
	CodeUnknown           = "unknown"
)

// QueryError reports a failed predicate query. It is fatal for the job run.
type QueryError struct {
	Job string
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: query %s: %v", e.Job, e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// ChunkCommitError reports the first commit group that failed. Chunks before
// Chunk are committed; Chunk and every chunk after it were not applied.
type ChunkCommitError struct {
	Chunk     int // zero-based index of the failed group
	Chunks    int
	Committed int // updates in the groups that committed
	Pending   int // updates left unapplied, including the failed group
	Err       error
}

func (e *ChunkCommitError) Error() string {
	return fmt.Sprintf("commit chunk %d/%d (%d committed, %d pending): %v",
		e.Chunk+1, e.Chunks, e.Committed, e.Pending, e.Err)
}

func (e *ChunkCommitError) Unwrap() error { return e.Err }

// PropagationError reports a propagation failure for a single event id.
type PropagationError struct {
	EventID string
	From    string
	To      string
	Err     error
}

func (e *PropagationError) Error() string {
	return fmt.Sprintf("propagate event %s %s→%s: %v", e.EventID, e.From, e.To, e.Err)
}

func (e *PropagationError) Unwrap() error { return e.Err }

// Code returns a stable code for err, suitable for log attributes and metric
// labels. A propagation failure takes precedence over the query or commit
// error it wraps.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var qe *QueryError
	var ce *ChunkCommitError
	var pe *PropagationError
	switch {
	case errors.As(err, &pe):
		return CodePropagationFailed
	case errors.As(err, &qe):
		return CodeQueryFailed
	case errors.As(err, &ce):
		return CodeChunkCommitFailed
	default:
		return CodeUnknown
	}
}
