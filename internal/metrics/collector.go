package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for duplicate detection and
// location acquisition.
type Collector struct {
	checksTotal      *prometheus.CounterVec
	checksThrottled  *prometheus.CounterVec
	duplicatesFound  *prometheus.CounterVec
	storeFailures    prometheus.Counter
	fixFailures      *prometheus.CounterVec
	droppedFixes     prometheus.Counter
	submissions      *prometheus.CounterVec
	checkDuration    prometheus.Histogram
	activeSessions   prometheus.Gauge
}

// NewCollector creates and registers all duplicate-detection metrics.
func NewCollector() *Collector {
	return &Collector{
		checksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dedup_checks_total",
				Help: "Total number of duplicate checks executed against the store",
			},
			[]string{"consumer"},
		),
		checksThrottled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dedup_checks_throttled_total",
				Help: "Duplicate checks skipped by throttling",
			},
			[]string{"reason"},
		),
		duplicatesFound: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dedup_duplicates_total",
				Help: "Duplicate verdicts by kind",
			},
			[]string{"kind"},
		),
		storeFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dedup_store_failures_total",
				Help: "Store read failures absorbed by fail-open duplicate checks",
			},
		),
		fixFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "location_fix_failures_total",
				Help: "Location fix failures by reason",
			},
			[]string{"reason"},
		),
		droppedFixes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "location_fixes_dropped_total",
				Help: "Malformed device fixes dropped before use",
			},
		),
		submissions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registrations_submitted_total",
				Help: "Submission attempts by outcome",
			},
			[]string{"outcome"},
		),
		checkDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dedup_check_duration_seconds",
				Help:    "Latency of duplicate checks against the store",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
		),
		activeSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "form_sessions_active",
				Help: "Number of live registration form sessions",
			},
		),
	}
}

// IncChecks counts an executed duplicate check for the given consumer.
func (c *Collector) IncChecks(consumer string) {
	if c == nil {
		return
	}
	c.checksTotal.WithLabelValues(consumer).Inc()
}

// IncThrottled counts a check skipped by throttling.
func (c *Collector) IncThrottled(reason string) {
	if c == nil {
		return
	}
	c.checksThrottled.WithLabelValues(reason).Inc()
}

// IncDuplicate counts a duplicate verdict of the given kind.
func (c *Collector) IncDuplicate(kind string) {
	if c == nil {
		return
	}
	c.duplicatesFound.WithLabelValues(kind).Inc()
}

// IncStoreFailure counts a store read failure absorbed by a check.
func (c *Collector) IncStoreFailure() {
	if c == nil {
		return
	}
	c.storeFailures.Inc()
}

// IncFixFailure counts a location fix failure by reason.
func (c *Collector) IncFixFailure(reason string) {
	if c == nil {
		return
	}
	c.fixFailures.WithLabelValues(reason).Inc()
}

// IncDroppedFix counts a malformed device fix.
func (c *Collector) IncDroppedFix() {
	if c == nil {
		return
	}
	c.droppedFixes.Inc()
}

// IncSubmission counts a submission attempt by outcome.
func (c *Collector) IncSubmission(outcome string) {
	if c == nil {
		return
	}
	c.submissions.WithLabelValues(outcome).Inc()
}

// ObserveCheckDuration records the latency of one store check.
func (c *Collector) ObserveCheckDuration(seconds float64) {
	if c == nil {
		return
	}
	c.checkDuration.Observe(seconds)
}

// SetActiveSessions sets the live session gauge.
func (c *Collector) SetActiveSessions(n int) {
	if c == nil {
		return
	}
	c.activeSessions.Set(float64(n))
}
