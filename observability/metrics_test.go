package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestLifecycleMetricsCollect(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLifecycleMetrics(reg)

	m.ObservePrecheck("cryptoTransfer", "OK", 20*time.Millisecond)
	m.ObservePrecheck("cryptoTransfer", "BUSY", 0)
	m.ObservePrecheck("", "OK", 0)
	m.ObserveOutcome("cryptoTransfer", "success", "SUCCESS", 2)
	m.ObserveResubmission("cryptoTransfer", "BUSY")
	m.ObserveFeeQuote("cryptoGetInfo", 25_000)

	require.Equal(t, 1.0, testutil.ToFloat64(m.prechecks.WithLabelValues("cryptoTransfer", "OK")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.prechecks.WithLabelValues("unknown", "OK")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("cryptoTransfer", "success", "SUCCESS")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.retries.WithLabelValues("cryptoTransfer", "BUSY")))
	require.Equal(t, 3, testutil.CollectAndCount(m.prechecks))

	count, err := testutil.GatherAndCount(reg, "ledger_client_submit_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestNilLifecycleMetricsAreNoops(t *testing.T) {
	var m *LifecycleMetrics
	m.ObservePrecheck("k", "OK", time.Second)
	m.ObserveOutcome("k", "success", "SUCCESS", 1)
	m.ObserveResubmission("k", "BUSY")
	m.ObserveFeeQuote("k", 1)
	require.Equal(t, "3/5", FormatAttempts(3, 5))
}
