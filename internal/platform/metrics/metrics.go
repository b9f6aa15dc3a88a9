package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	VotersRegistered   prometheus.Counter
	ElectionsCreated   prometheus.Counter
	VotesCast          prometheus.Counter
	DuplicateVotes     prometheus.Counter
	CascadeDeletes     *prometheus.CounterVec
	AuditEventsQueued  prometheus.Counter
	AuditEventsDropped prometheus.Counter
	RequestLatency     *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics on a fresh registry-backed
// set. Use NewWithRegisterer in tests to avoid duplicate registration.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates metrics against the given registerer.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		VotersRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "ballotbox_voters_registered_total",
			Help: "Total number of voters registered",
		}),
		ElectionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "ballotbox_elections_created_total",
			Help: "Total number of elections created",
		}),
		VotesCast: factory.NewCounter(prometheus.CounterOpts{
			Name: "ballotbox_votes_cast_total",
			Help: "Total number of ballots accepted",
		}),
		DuplicateVotes: factory.NewCounter(prometheus.CounterOpts{
			Name: "ballotbox_duplicate_votes_rejected_total",
			Help: "Total number of cast attempts rejected as duplicates",
		}),
		CascadeDeletes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ballotbox_cascade_deletes_total",
			Help: "Total number of cascading admin deletions by entity type",
		}, []string{"entity"}),
		AuditEventsQueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "ballotbox_audit_events_queued_total",
			Help: "Total number of audit events accepted into the queue",
		}),
		AuditEventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "ballotbox_audit_events_dropped_total",
			Help: "Total number of audit events dropped because the queue was full",
		}),
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ballotbox_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
}

// ObserveRequest records one HTTP request observation.
func (m *Metrics) ObserveRequest(route, method, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestLatency.WithLabelValues(route, method, status).Observe(elapsed.Seconds())
}
