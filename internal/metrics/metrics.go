package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hotelsync"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Status server requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	syncPasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_passes_total",
			Help:      "Sync passes by result (completed, pending, unreachable, error, skipped).",
		},
		[]string{"result"},
	)

	syncAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_attempts_total",
			Help:      "Mutation attempts by kind, request type and outcome.",
		},
		[]string{"kind", "request_type", "outcome"},
	)

	pendingMutations = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_mutations",
			Help:      "Mutations waiting for remote confirmation, per kind.",
		},
		[]string{"kind"},
	)

	orphanedArtifacts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphaned_artifacts_total",
			Help:      "Artifacts left behind by fallback submissions.",
		},
	)

	passDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_pass_duration_seconds",
			Help:      "Wall time of a sync pass.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, syncPasses, syncAttempts, pendingMutations, orphanedArtifacts, passDuration)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncPass(result string) {
	syncPasses.WithLabelValues(result).Inc()
}

func IncAttempt(kind, requestType, outcome string) {
	syncAttempts.WithLabelValues(kind, requestType, outcome).Inc()
}

func SetPending(kind string, n int) {
	pendingMutations.WithLabelValues(kind).Set(float64(n))
}

func AddOrphaned(n int) {
	orphanedArtifacts.Add(float64(n))
}

func ObservePass(d time.Duration) {
	passDuration.Observe(d.Seconds())
}
