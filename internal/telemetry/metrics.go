package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsStarted      = prometheus.NewCounter(prometheus.CounterOpts{Name: "mathanim_jobs_started_total", Help: "Prompt-to-video jobs started"})
	JobsSucceeded    = prometheus.NewCounter(prometheus.CounterOpts{Name: "mathanim_jobs_succeeded_total", Help: "Jobs that produced a video"})
	JobsFailed       = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "mathanim_jobs_failed_total", Help: "Jobs that ended in a terminal error"}, []string{"reason"})
	RenderAttempts   = prometheus.NewCounter(prometheus.CounterOpts{Name: "mathanim_render_attempts_total", Help: "Renderer invocations"})
	RenderFailures   = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "mathanim_render_failures_total", Help: "Failed renders by failure kind"}, []string{"kind"})
	RepairCalls      = prometheus.NewCounter(prometheus.CounterOpts{Name: "mathanim_repairs_total", Help: "Repair generator calls"})
	RateLimitRejects = prometheus.NewCounter(prometheus.CounterOpts{Name: "mathanim_rate_limit_rejects_total", Help: "Requests rejected by rate limiter"})
	JobsInFlight     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "mathanim_jobs_inflight", Help: "Jobs currently running"})
	RenderDuration   = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "mathanim_render_duration_seconds",
		Help:    "Wall-clock time of a single render attempt",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
	GenerateDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mathanim_generate_duration_seconds",
		Help:    "LLM generation latency by stage",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 9),
	}, []string{"stage"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsStarted,
			JobsSucceeded,
			JobsFailed,
			RenderAttempts,
			RenderFailures,
			RepairCalls,
			RateLimitRejects,
			JobsInFlight,
			RenderDuration,
			GenerateDuration,
		)
	})
	return promhttp.Handler()
}
