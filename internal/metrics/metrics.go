// Package metrics exposes Prometheus counters for searches, results and
// subscriptions. Recording is fire-and-forget: nothing here can block or
// fail the operation being instrumented.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "terminbot"

var (
	searchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of availability lookups executed.",
		},
		[]string{"department", "termin"},
	)

	resultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_total",
			Help:      "Total number of locations reported with open slots.",
		},
		[]string{"department", "place", "termin"},
	)

	emptyResultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_results_total",
			Help:      "Total number of lookups that found nothing anywhere.",
		},
		[]string{"department", "termin"},
	)

	earliestFreeDays = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "earliest_free_days",
			Help:      "Days from today until the earliest reported open slot.",
			Buckets:   []float64{0, 1, 2, 3, 5, 7, 14, 21, 30, 60, 90},
		},
		[]string{"department"},
	)

	subscriptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_created_total",
			Help:      "Total number of subscriptions created.",
		},
		[]string{"department", "termin"},
	)

	activeSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_subscriptions",
			Help:      "Number of currently active subscriptions.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		searchesTotal,
		resultsTotal,
		emptyResultsTotal,
		earliestFreeDays,
		subscriptionsTotal,
		activeSubscriptions,
	)
}

// Sink implements the scheduler's MetricsSink on the Prometheus registry.
type Sink struct{}

func NewSink() *Sink { return &Sink{} }

func (*Sink) RecordSearch(departmentID, appointmentType string) {
	searchesTotal.WithLabelValues(departmentID, appointmentType).Inc()
}

func (*Sink) RecordResult(departmentID, locationCaption, appointmentType string, daysUntil, slots int) {
	resultsTotal.WithLabelValues(departmentID, locationCaption, appointmentType).Inc()
	earliestFreeDays.WithLabelValues(departmentID).Observe(float64(daysUntil))
}

func (*Sink) RecordEmptyResult(departmentID, appointmentType string) {
	emptyResultsTotal.WithLabelValues(departmentID, appointmentType).Inc()
}

func (*Sink) RecordSubscription(departmentID, appointmentType string, interval time.Duration) {
	subscriptionsTotal.WithLabelValues(departmentID, appointmentType).Inc()
}

func (*Sink) SetActiveSubscriptions(n int) {
	activeSubscriptions.Set(float64(n))
}
