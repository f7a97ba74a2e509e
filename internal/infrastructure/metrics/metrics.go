// Package metrics exports job outcomes as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reconciler/internal/application"
	"reconciler/internal/domain/entities"
)

const namespace = "reconciler"

var _ application.Recorder = (*Metrics)(nil)

// Metrics implements application.Recorder.
type Metrics struct {
	jobRuns      *prometheus.CounterVec
	transitioned *prometheus.CounterVec
	chunkCommits *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
}

// New registers the reconciler metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		jobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Job runs by outcome",
		}, []string{"job", "outcome"}),
		transitioned: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_transitioned_total",
			Help:      "Records rewritten to a new status",
		}, []string{"job", "collection"}),
		chunkCommits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_commits_total",
			Help:      "Commit groups sent to the store by outcome",
		}, []string{"outcome"}),
		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of job runs",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"job"}),
	}
}

func (m *Metrics) JobRun(job, outcome string, elapsed time.Duration) {
	m.jobRuns.WithLabelValues(job, outcome).Inc()
	m.jobDuration.WithLabelValues(job).Observe(elapsed.Seconds())
}

func (m *Metrics) Transitioned(job string, collection entities.Collection, n int) {
	if n <= 0 {
		return
	}
	m.transitioned.WithLabelValues(job, string(collection)).Add(float64(n))
}

func (m *Metrics) ChunkCommit(ok bool) {
	outcome := application.OutcomeSuccess
	if !ok {
		outcome = application.OutcomeFailure
	}
	m.chunkCommits.WithLabelValues(outcome).Inc()
}

// Server exposes /metrics and /healthz over HTTP.
type Server struct {
	server *http.Server
}

// NewServer serves the metrics gathered by g on addr.
func NewServer(addr string, g prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{server: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Handler returns the HTTP handler serving /metrics and /healthz.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Serve() error {
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
