// v1
// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// The collectors below are built on github.com/prometheus/client_golang
// and cover the ingest/scoring/ticket/broadcast pipeline end to end:
// counters for accepted and rejected readings, a histogram for scoring
// latency, gauges and counters for ticket lifecycle transitions, and
// per-topic counters for dropped broadcast events and cache hits.
var (
	readingsIngestedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stve_readings_ingested_total",
		Help: "Readings successfully ingested, by resulting trust status.",
	}, []string{"status"})

	readingsRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stve_readings_rejected_total",
		Help: "Readings rejected before scoring, by reason.",
	}, []string{"reason"})

	scoringDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "stve_scoring_duration_seconds",
		Help:    "Wall-clock time spent inside the Scorer per reading.",
		Buckets: prometheus.DefBuckets,
	})

	ticketsOpenedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stve_tickets_opened_total",
		Help: "Maintenance tickets opened by the ticket manager.",
	})

	ticketsResolvedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stve_tickets_resolved_total",
		Help: "Maintenance tickets resolved.",
	})

	ticketsOpenGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stve_tickets_open",
		Help: "Maintenance tickets currently Open or InProgress.",
	})

	broadcastDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stve_broadcast_events_dropped_total",
		Help: "Events discarded from a subscriber's buffer under backpressure, by topic.",
	}, []string{"topic"})

	cacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stve_aggregation_cache_hits_total",
		Help: "Aggregation cache lookups served from cache.",
	})

	cacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stve_aggregation_cache_misses_total",
		Help: "Aggregation cache lookups that recomputed their value.",
	})

	breakerOpenTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stve_circuit_breaker_opened_total",
		Help: "Times an outbound circuit breaker tripped open, by breaker name.",
	}, []string{"breaker"})
)

// Registry wraps a prometheus.Registry pre-populated with every collector
// above, so app.Application only needs to hold one value and hand its
// Handler to the HTTP router.
type Registry struct {
	reg *prometheus.Registry
}

// New constructs a Registry with all STVE collectors registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		readingsIngestedTotal,
		readingsRejectedTotal,
		scoringDuration,
		ticketsOpenedTotal,
		ticketsResolvedTotal,
		ticketsOpenGauge,
		broadcastDroppedTotal,
		cacheHitsTotal,
		cacheMissesTotal,
		breakerOpenTotal,
	)
	return &Registry{reg: reg}
}

// Handler returns the http.Handler to mount at GET /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// IncReadingIngested records one successfully ingested reading, tagged
// with the TrustResult status it resolved to.
func IncReadingIngested(status string) {
	readingsIngestedTotal.WithLabelValues(status).Inc()
}

// IncReadingRejected records one reading rejected before scoring
// (unknown sensor, invalid/non-numeric probe value, duplicate).
func IncReadingRejected(reason string) {
	readingsRejectedTotal.WithLabelValues(reason).Inc()
}

// ObserveScoringDuration records how long one Scorer.Score call took.
func ObserveScoringDuration(d time.Duration) {
	scoringDuration.Observe(d.Seconds())
}

// IncTicketOpened records one newly opened maintenance ticket.
func IncTicketOpened() {
	ticketsOpenedTotal.Inc()
	ticketsOpenGauge.Inc()
}

// IncTicketResolved records one resolved maintenance ticket.
func IncTicketResolved() {
	ticketsResolvedTotal.Inc()
	ticketsOpenGauge.Dec()
}

// IncBroadcastDropped records one discarded event for topic under
// subscriber backpressure.
func IncBroadcastDropped(topic string) {
	broadcastDroppedTotal.WithLabelValues(topic).Inc()
}

func IncCacheHit()  { cacheHitsTotal.Inc() }
func IncCacheMiss() { cacheMissesTotal.Inc() }

// CacheObserver adapts this package's counters to aggregation.Observer,
// so an *Aggregator can be constructed with aggregation.New(store,
// ttl, metrics.CacheObserver{}) without aggregation importing metrics.
type CacheObserver struct{}

func (CacheObserver) CacheHit()  { IncCacheHit() }
func (CacheObserver) CacheMiss() { IncCacheMiss() }

// IncBreakerOpened records one circuit breaker tripping open, tagged by
// name (e.g. "summary-endpoint").
func IncBreakerOpened(name string) {
	breakerOpenTotal.WithLabelValues(name).Inc()
}
