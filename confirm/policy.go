package confirm

import (
	"errors"
	"fmt"
	"time"
)

// Backoff selects how the delay between attempts evolves.
type Backoff int

const (
	// Fixed waits Interval between every attempt.
	Fixed Backoff = iota
	// Exponential doubles the delay after each attempt, capped at MaxInterval.
	Exponential
)

func (b Backoff) String() string {
	switch b {
	case Fixed:
		return "fixed"
	case Exponential:
		return "exponential"
	default:
		return fmt.Sprintf("backoff(%d)", int(b))
	}
}

// ParseBackoff resolves "fixed" or "exponential".
func ParseBackoff(raw string) (Backoff, error) {
	switch raw {
	case "", "fixed":
		return Fixed, nil
	case "exponential":
		return Exponential, nil
	default:
		return Fixed, fmt.Errorf("confirm: unknown backoff %q", raw)
	}
}

// Policy bounds a polling loop.
type Policy struct {
	// MaxAttempts is the exact number of fetches made before giving up.
	MaxAttempts int
	Interval    time.Duration
	Backoff     Backoff
	MaxInterval time.Duration
	// TransportErrorBudget is how many transport failures are treated as an
	// UNKNOWN answer before the failure is surfaced.
	TransportErrorBudget int
}

const (
	DefaultMaxAttempts          = 60
	DefaultInterval             = time.Second
	DefaultMaxInterval          = 16 * time.Second
	DefaultTransportErrorBudget = 10
)

// DefaultPolicy polls once per second for up to a minute.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:          DefaultMaxAttempts,
		Interval:             DefaultInterval,
		Backoff:              Fixed,
		MaxInterval:          DefaultMaxInterval,
		TransportErrorBudget: DefaultTransportErrorBudget,
	}
}

// Validate rejects policies that cannot terminate or never wait.
func (p Policy) Validate() error {
	if p.MaxAttempts <= 0 {
		return errors.New("confirm: max attempts must be positive")
	}
	if p.Interval < 0 {
		return errors.New("confirm: interval must not be negative")
	}
	if p.Backoff == Exponential {
		if p.MaxInterval <= 0 {
			return errors.New("confirm: exponential backoff needs a positive max interval")
		}
		if p.MaxInterval < p.Interval {
			return errors.New("confirm: max interval must be at least interval")
		}
	}
	if p.TransportErrorBudget < 0 {
		return errors.New("confirm: transport error budget must not be negative")
	}
	return nil
}

// Delay returns the wait after the given 1-based attempt. Exponential delays
// never exceed MaxInterval, or DefaultMaxInterval when it is unset.
func (p Policy) Delay(attempt int) time.Duration {
	if p.Backoff != Exponential || attempt <= 1 {
		return p.Interval
	}
	limit := p.MaxInterval
	if limit <= 0 {
		limit = DefaultMaxInterval
	}
	d := p.Interval
	if d >= limit {
		return limit
	}
	for i := 1; i < attempt && d > 0; i++ {
		if d > limit/2 {
			return limit
		}
		d *= 2
	}
	return d
}
