// Package confirm polls for the final outcome of a submitted transaction.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ledgerclient/ledger"
	"ledgerclient/submit"
)

// State classifies how polling ended.
type State int

const (
	// StateSuccess means the ledger reported SUCCESS.
	StateSuccess State = iota + 1
	// StateFailed means the ledger reported a definite failure status.
	StateFailed
	// StateTimedOut means every attempt answered UNKNOWN. The transaction
	// may still reach consensus later.
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unset"
	}
}

// Outcome is the result of a completed polling loop.
type Outcome struct {
	State    State
	Status   ledger.Status
	Receipt  *ledger.Receipt
	Attempts int
}

// QueryError reports a receipt query rejected at precheck for a reason other
// than BUSY.
type QueryError struct {
	Precheck ledger.Status
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("confirm: receipt query rejected with %s", e.Precheck)
}

// Fetch retrieves the current receipt answer.
type Fetch func(ctx context.Context) (*ledger.Response, error)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Poller runs bounded polling loops.
type Poller struct {
	policy Policy
	sleep  SleepFunc
	logger *slog.Logger
	tracer trace.Tracer
}

// Option customises a Poller.
type Option func(*Poller)

// WithSleep replaces the wait between attempts.
func WithSleep(fn SleepFunc) Option {
	return func(p *Poller) {
		if fn != nil {
			p.sleep = fn
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(p *Poller) {
		if tracer != nil {
			p.tracer = tracer
		}
	}
}

// NewPoller validates policy and returns a poller.
func NewPoller(policy Policy, opts ...Option) (*Poller, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	p := &Poller{
		policy: policy,
		sleep:  sleepContext,
		logger: slog.Default(),
		tracer: otel.Tracer("ledgerclient/confirm"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Policy returns the policy the poller enforces.
func (p *Poller) Policy() Policy { return p.policy }

// Poll calls fetch until the receipt status leaves UNKNOWN or MaxAttempts
// fetches have been made. BUSY prechecks and transport errors within the
// budget count as UNKNOWN for that attempt.
func (p *Poller) Poll(ctx context.Context, fetch Fetch) (Outcome, error) {
	ctx, span := p.tracer.Start(ctx, "confirm.poll",
		trace.WithAttributes(attribute.Int("poll.max_attempts", p.policy.MaxAttempts)))
	defer span.End()

	out, err := p.poll(ctx, fetch)
	span.SetAttributes(attribute.Int("poll.attempts", out.Attempts), attribute.String("poll.state", out.State.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, err
	}
	span.SetStatus(codes.Ok, out.State.String())
	return out, nil
}

func (p *Poller) poll(ctx context.Context, fetch Fetch) (Outcome, error) {
	var (
		out            Outcome
		transportFails int
	)
	for attempt := 1; attempt <= p.policy.MaxAttempts; attempt++ {
		out.Attempts = attempt
		resp, err := fetch(ctx)
		switch {
		case err != nil && submit.IsTransport(err):
			transportFails++
			if transportFails > p.policy.TransportErrorBudget {
				return out, err
			}
			p.logger.Warn("receipt fetch failed", slog.Int("attempt", attempt), slog.Any("error", err))
		case err != nil:
			return out, err
		case resp.Header.Precheck == ledger.StatusBusy:
			p.logger.Debug("receipt query busy", slog.Int("attempt", attempt))
		case resp.Header.Precheck != ledger.StatusOK:
			return out, &QueryError{Precheck: resp.Header.Precheck}
		case resp.Receipt == nil:
			return out, errors.New("confirm: receipt missing from response")
		case resp.Receipt.Status != ledger.StatusUnknown:
			out.Status = resp.Receipt.Status
			out.Receipt = resp.Receipt
			if out.Status == ledger.StatusSuccess {
				out.State = StateSuccess
			} else {
				out.State = StateFailed
			}
			return out, nil
		}
		if attempt == p.policy.MaxAttempts {
			break
		}
		if err := p.sleep(ctx, p.policy.Delay(attempt)); err != nil {
			return out, err
		}
	}
	out.State = StateTimedOut
	out.Status = ledger.StatusUnknown
	return out, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
