package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Write-pipeline metrics.
var (
	writesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codesystem_writes_total",
			Help: "CodeSystem write passes by outcome.",
		},
		[]string{"outcome"},
	)

	writeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codesystem_write_duration_seconds",
			Help:    "End-to-end write pass latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	conceptsInserted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "concepts_inserted_total",
			Help: "Concept rows persisted by the batch engine.",
		},
	)
)

// Init registers the pipeline metrics in the default registry.
func Init() {
	prometheus.MustRegister(writesTotal, writeDuration, conceptsInserted)
}

// ObserveWrite records one finished write pass.
func ObserveWrite(outcome string, d time.Duration) {
	writesTotal.WithLabelValues(outcome).Inc()
	writeDuration.Observe(d.Seconds())
}

// AddConceptsInserted bumps the inserted-concept counter.
func AddConceptsInserted(n int) {
	conceptsInserted.Add(float64(n))
}
