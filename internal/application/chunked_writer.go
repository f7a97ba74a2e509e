package application

import (
	"context"
	"fmt"

	"reconciler/internal/domain"
	"reconciler/internal/domain/entities"
	"reconciler/internal/ports/output"
)

const (
	// DefaultChunkSize stays under the store's hard cap of MaxChunkSize operations per atomic write.
	DefaultChunkSize = 400
	MaxChunkSize     = 500
)

// WriteResult counts what a ChunkedWriter managed to commit.
type WriteResult struct {
	Chunks    int // groups committed
	Committed int // updates contained in committed groups
	Applied   int // records the store actually rewrote
}

// ChunkedWriter commits updates in consecutive groups of at most size
// operations. Groups commit one after another; a group is only sent once the
// previous one has returned.
type ChunkedWriter struct {
	store    output.BatchWriter
	size     int
	recorder Recorder
}

func NewChunkedWriter(store output.BatchWriter, size int, recorder Recorder) (*ChunkedWriter, error) {
	if store == nil {
		return nil, domain.ErrStoreNotConfigured
	}
	if size <= 0 || size > MaxChunkSize {
		return nil, fmt.Errorf("%w: %d (1..%d)", domain.ErrInvalidChunkSize, size, MaxChunkSize)
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &ChunkedWriter{store: store, size: size, recorder: recorder}, nil
}

// Apply commits updates chunk by chunk. On the first failing chunk it stops
// and returns a *domain.ChunkCommitError; earlier chunks stay committed and
// the remaining records are left for the next run's query to pick up.
func (w *ChunkedWriter) Apply(ctx context.Context, updates []entities.Update) (WriteResult, error) {
	var res WriteResult
	chunks := SplitChunks(updates, w.size)
	for i, chunk := range chunks {
		applied, err := w.store.CommitGroup(ctx, chunk)
		if err != nil {
			w.recorder.ChunkCommit(false)
			return res, &domain.ChunkCommitError{
				Chunk:     i,
				Chunks:    len(chunks),
				Committed: res.Committed,
				Pending:   len(updates) - res.Committed,
				Err:       err,
			}
		}
		w.recorder.ChunkCommit(true)
		res.Chunks++
		res.Committed += len(chunk)
		res.Applied += applied
	}
	return res, nil
}

// SplitChunks splits updates into consecutive slices of at most size elements.
// The returned slices share updates' backing array.
func SplitChunks(updates []entities.Update, size int) [][]entities.Update {
	if len(updates) == 0 || size <= 0 {
		return nil
	}
	chunks := make([][]entities.Update, 0, (len(updates)+size-1)/size)
	for start := 0; start < len(updates); start += size {
		end := min(start+size, len(updates))
		chunks = append(chunks, updates[start:end:end])
	}
	return chunks
}
