package application

import (
	"time"

	"reconciler/internal/domain/entities"
)

// Job run outcomes reported to a Recorder.
const (
	OutcomeSuccess = "success"
	OutcomeNoop    = "noop"
	OutcomeFailure = "failure"
)

// Recorder receives job measurements. The metrics package implements it with Prometheus.
type Recorder interface {
	JobRun(job, outcome string, elapsed time.Duration)
	Transitioned(job string, collection entities.Collection, n int)
	ChunkCommit(ok bool)
}

// NopRecorder discards every measurement.
type NopRecorder struct{}

func (NopRecorder) JobRun(string, string, time.Duration)         {}
func (NopRecorder) Transitioned(string, entities.Collection, int) {}
func (NopRecorder) ChunkCommit(bool)                              {}
