package observability

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LifecycleMetrics records what the transaction lifecycle client observes:
// precheck verdicts, final statuses, latency, polling effort and fee quotes.
type LifecycleMetrics struct {
	prechecks     *prometheus.CounterVec
	outcomes      *prometheus.CounterVec
	submitLatency *prometheus.HistogramVec
	pollAttempts  *prometheus.HistogramVec
	retries       *prometheus.CounterVec
	feeQuotes     *prometheus.HistogramVec
}

var (
	lifecycleMetricsOnce sync.Once
	lifecycleRegistry    *LifecycleMetrics
)

// Lifecycle returns the lazily-initialised metrics registered on the default
// Prometheus registerer.
func Lifecycle() *LifecycleMetrics {
	lifecycleMetricsOnce.Do(func() {
		lifecycleRegistry = NewLifecycleMetrics(prometheus.DefaultRegisterer)
	})
	return lifecycleRegistry
}

// NewLifecycleMetrics builds the collectors and registers them on reg. A nil
// registerer leaves them unregistered.
func NewLifecycleMetrics(reg prometheus.Registerer) *LifecycleMetrics {
	m := &LifecycleMetrics{
		prechecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "client",
			Name:      "prechecks_total",
			Help:      "Precheck verdicts segmented by transaction kind and status.",
		}, []string{"kind", "status"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "client",
			Name:      "outcomes_total",
			Help:      "Resolved transaction outcomes segmented by kind, poll state and receipt status.",
		}, []string{"kind", "state", "status"}),
		submitLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledger",
			Subsystem: "client",
			Name:      "submit_duration_seconds",
			Help:      "Latency of the submit call up to the precheck verdict.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		pollAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledger",
			Subsystem: "client",
			Name:      "poll_attempts",
			Help:      "Receipt fetches needed before polling concluded.",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 40, 60},
		}, []string{"kind"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Subsystem: "client",
			Name:      "resubmissions_total",
			Help:      "Resubmissions with a fresh transaction id segmented by kind and reason.",
		}, []string{"kind", "reason"}),
		feeQuotes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledger",
			Subsystem: "client",
			Name:      "fee_quote",
			Help:      "Fees quoted by nodes, in the smallest ledger unit.",
			Buckets:   prometheus.ExponentialBuckets(1_000, 4, 10),
		}, []string{"source"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.prechecks,
			m.outcomes,
			m.submitLatency,
			m.pollAttempts,
			m.retries,
			m.feeQuotes,
		)
	}
	return m
}

func label(value string) string {
	normalized := strings.TrimSpace(value)
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

// ObservePrecheck records a precheck verdict and the submit latency.
func (m *LifecycleMetrics) ObservePrecheck(kind, status string, latency time.Duration) {
	if m == nil {
		return
	}
	m.prechecks.WithLabelValues(label(kind), label(status)).Inc()
	if latency > 0 {
		m.submitLatency.WithLabelValues(label(kind)).Observe(latency.Seconds())
	}
}

// ObserveOutcome records how polling concluded.
func (m *LifecycleMetrics) ObserveOutcome(kind, state, status string, attempts int) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(label(kind), label(state), label(status)).Inc()
	if attempts > 0 {
		m.pollAttempts.WithLabelValues(label(kind)).Observe(float64(attempts))
	}
}

// ObserveResubmission records a resubmission and why it happened.
func (m *LifecycleMetrics) ObserveResubmission(kind, reason string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(label(kind), label(reason)).Inc()
}

// ObserveFeeQuote records a fee figure reported by a node.
func (m *LifecycleMetrics) ObserveFeeQuote(source string, fee uint64) {
	if m == nil {
		return
	}
	m.feeQuotes.WithLabelValues(label(source)).Observe(float64(fee))
}

// FormatAttempts renders an attempt count for log attributes.
func FormatAttempts(attempts, limit int) string {
	return strconv.Itoa(attempts) + "/" + strconv.Itoa(limit)
}
