package confirm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ledgerclient/ledger"
	"ledgerclient/submit"
)

type script struct {
	calls     int
	responses []func() (*ledger.Response, error)
}

func (s *script) fetch(context.Context) (*ledger.Response, error) {
	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i]()
}

func receipt(status ledger.Status) func() (*ledger.Response, error) {
	return func() (*ledger.Response, error) {
		return &ledger.Response{Receipt: &ledger.Receipt{Status: status}}, nil
	}
}

func precheck(status ledger.Status) func() (*ledger.Response, error) {
	return func() (*ledger.Response, error) {
		return &ledger.Response{Header: ledger.ResponseHeader{Precheck: status}}, nil
	}
}

func transportFailure() (*ledger.Response, error) {
	return nil, &submit.TransportError{Op: "query receipt", Err: errors.New("unavailable")}
}

type recordedSleep struct {
	delays []time.Duration
}

func (r *recordedSleep) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func newPoller(t *testing.T, policy Policy) (*Poller, *recordedSleep) {
	t.Helper()
	rec := &recordedSleep{}
	p, err := NewPoller(policy, WithSleep(rec.sleep))
	require.NoError(t, err)
	return p, rec
}

func TestPollStopsOnFirstFinalStatus(t *testing.T) {
	p, rec := newPoller(t, DefaultPolicy())
	s := &script{responses: []func() (*ledger.Response, error){
		receipt(ledger.StatusUnknown), receipt(ledger.StatusUnknown), receipt(ledger.StatusSuccess),
	}}

	out, err := p.Poll(context.Background(), s.fetch)
	require.NoError(t, err)
	require.Equal(t, 3, s.calls)
	require.Equal(t, StateSuccess, out.State)
	require.Equal(t, ledger.StatusSuccess, out.Status)
	require.Equal(t, 3, out.Attempts)
	require.Equal(t, []time.Duration{time.Second, time.Second}, rec.delays)
}

func TestPollTimesOutAfterExactlyMaxAttempts(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxAttempts = 5
	p, rec := newPoller(t, policy)
	s := &script{responses: []func() (*ledger.Response, error){receipt(ledger.StatusUnknown)}}

	out, err := p.Poll(context.Background(), s.fetch)
	require.NoError(t, err)
	require.Equal(t, 5, s.calls)
	require.Equal(t, StateTimedOut, out.State)
	require.Len(t, rec.delays, 4)
}

func TestPollReportsDefiniteFailure(t *testing.T) {
	p, _ := newPoller(t, DefaultPolicy())
	s := &script{responses: []func() (*ledger.Response, error){receipt(ledger.StatusInvalidSignature)}}

	out, err := p.Poll(context.Background(), s.fetch)
	require.NoError(t, err)
	require.Equal(t, StateFailed, out.State)
	require.Equal(t, ledger.StatusInvalidSignature, out.Status)
	require.Equal(t, 1, s.calls)
}

func TestPollTreatsBusyAndTransportAsUnknown(t *testing.T) {
	p, _ := newPoller(t, DefaultPolicy())
	s := &script{responses: []func() (*ledger.Response, error){
		precheck(ledger.StatusBusy), transportFailure, receipt(ledger.StatusSuccess),
	}}

	out, err := p.Poll(context.Background(), s.fetch)
	require.NoError(t, err)
	require.Equal(t, StateSuccess, out.State)
	require.Equal(t, 3, s.calls)
}

func TestPollTransportBudgetExhausted(t *testing.T) {
	policy := DefaultPolicy()
	policy.TransportErrorBudget = 2
	p, _ := newPoller(t, policy)
	s := &script{responses: []func() (*ledger.Response, error){transportFailure}}

	_, err := p.Poll(context.Background(), s.fetch)
	require.True(t, submit.IsTransport(err))
	require.Equal(t, 3, s.calls)
}

func TestPollSurfacesQueryPrecheck(t *testing.T) {
	p, _ := newPoller(t, DefaultPolicy())
	s := &script{responses: []func() (*ledger.Response, error){precheck(ledger.StatusReceiptNotFound)}}

	_, err := p.Poll(context.Background(), s.fetch)
	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	require.Equal(t, ledger.StatusReceiptNotFound, qe.Precheck)
}

func TestPollHonoursCancellation(t *testing.T) {
	policy := DefaultPolicy()
	policy.Interval = time.Hour
	p, err := NewPoller(policy)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	s := &script{responses: []func() (*ledger.Response, error){func() (*ledger.Response, error) {
		cancel()
		return &ledger.Response{Receipt: &ledger.Receipt{Status: ledger.StatusUnknown}}, nil
	}}}

	_, err = p.Poll(ctx, s.fetch)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, s.calls)
}

func TestExponentialDelayIsCapped(t *testing.T) {
	policy := Policy{MaxAttempts: 6, Interval: time.Second, Backoff: Exponential, MaxInterval: 5 * time.Second}
	require.NoError(t, policy.Validate())
	require.Equal(t, time.Second, policy.Delay(1))
	require.Equal(t, 2*time.Second, policy.Delay(2))
	require.Equal(t, 4*time.Second, policy.Delay(3))
	require.Equal(t, 5*time.Second, policy.Delay(4))
	require.Equal(t, 5*time.Second, policy.Delay(10))

	require.Equal(t, 5*time.Second, policy.Delay(60))

	require.Error(t, Policy{}.Validate())
	_, err := NewPoller(Policy{MaxAttempts: 0})
	require.Error(t, err)
}

func TestExponentialWithoutCapIsBounded(t *testing.T) {
	uncapped := Policy{MaxAttempts: 60, Interval: time.Second, Backoff: Exponential}
	require.Error(t, uncapped.Validate())
	_, err := NewPoller(uncapped)
	require.Error(t, err)

	for attempt := 1; attempt <= 200; attempt++ {
		d := uncapped.Delay(attempt)
		require.Positive(t, d)
		require.LessOrEqual(t, d, DefaultMaxInterval)
	}
	require.Equal(t, DefaultMaxInterval, uncapped.Delay(60))

	huge := Policy{MaxAttempts: 3, Interval: time.Hour, Backoff: Exponential, MaxInterval: time.Duration(1<<62 + 1)}
	require.NoError(t, huge.Validate())
	for attempt := 1; attempt <= 100; attempt++ {
		require.Positive(t, huge.Delay(attempt))
	}
}
