// Package metrics holds the Prometheus collectors shared by handlers and services.
package metrics

import (
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tubepulse_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds, by endpoint and method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tubepulse_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		},
	)

	JobTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubepulse_job_transitions_total",
			Help: "Applied job status transitions, by target status.",
		},
		[]string{"to"},
	)

	RecordsNormalized = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubepulse_records_normalized_total",
			Help: "Provider records seen by the normalizer, by kind and result (kept, skipped).",
		},
		[]string{"kind", "result"},
	)

	UpstreamAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tubepulse_upstream_attempts_total",
			Help: "Outbound provider HTTP attempts, by outcome.",
		},
		[]string{"outcome"},
	)

	AnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tubepulse_analysis_duration_seconds",
			Help:    "Duration of comment sentiment analysis runs.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tubepulse_cache_hits_total",
			Help: "Total Redis cache hits.",
		},
	)

	CacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tubepulse_cache_misses_total",
			Help: "Total Redis cache misses.",
		},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Pool gauges are
// only registered when a database pool is in use. Safe to call more than once.
func Register(pool *pgxpool.Pool) {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestDuration,
			RequestsInFlight,
			JobTransitions,
			RecordsNormalized,
			UpstreamAttempts,
			AnalysisDuration,
			CacheHits,
			CacheMisses,
		)

		if pool == nil {
			return
		}
		prometheus.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "tubepulse_db_connection_pool_active",
					Help: "Number of active database connections.",
				},
				func() float64 { return float64(pool.Stat().AcquiredConns()) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "tubepulse_db_connection_pool_idle",
					Help: "Number of idle database connections.",
				},
				func() float64 { return float64(pool.Stat().IdleConns()) },
			),
		)
	})
}
