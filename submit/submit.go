// Package submit delivers signed transactions and queries to a single node
// and separates transport failures from ledger verdicts.
package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ledgerclient/ledger"
)

// ErrUnrecognizedStatus is returned when a node answers with a status code
// outside the known enumeration.
var ErrUnrecognizedStatus = errors.New("submit: unrecognized status code")

// Network resolves the service endpoint of a node.
type Network interface {
	Service(node ledger.Node) (ledger.Service, error)
}

// TransportError reports that a call never produced a ledger verdict.
type TransportError struct {
	Node ledger.Node
	Op   string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("submit: %s to node %s: %v", e.Op, e.Node, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is, or wraps, a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Precheck is the node's immediate verdict on a submission.
type Precheck struct {
	Status  ledger.Status
	Cost    uint64
	Latency time.Duration
}

// OK reports whether the node accepted the transaction for consensus.
func (p Precheck) OK() bool { return p.Status == ledger.StatusOK }

// Submitter performs exactly one call per invocation and never retries.
type Submitter struct {
	network Network
	logger  *slog.Logger
	now     func() time.Time
}

// Option customises a Submitter.
type Option func(*Submitter)

// WithLogger sets the logger used for per-call debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Submitter) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used for latency measurement.
func WithClock(now func() time.Time) Option {
	return func(s *Submitter) {
		if now != nil {
			s.now = now
		}
	}
}

func New(network Network, opts ...Option) *Submitter {
	s := &Submitter{network: network, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit sends tx to node. A non-OK precheck is returned as a value; only
// transport failures and unrecognised codes produce errors.
func (s *Submitter) Submit(ctx context.Context, tx *ledger.Transaction, node ledger.Node) (Precheck, error) {
	if tx == nil {
		return Precheck{}, errors.New("submit: nil transaction")
	}
	svc, err := s.service(node, "submit")
	if err != nil {
		return Precheck{}, err
	}
	start := s.now()
	resp, err := svc.SubmitTransaction(ctx, tx)
	latency := s.now().Sub(start)
	if err != nil {
		return Precheck{Latency: latency}, &TransportError{Node: node, Op: "submit", Err: err}
	}
	if resp == nil {
		return Precheck{Latency: latency}, &TransportError{Node: node, Op: "submit", Err: errors.New("empty response")}
	}
	if !resp.Precheck.Known() {
		return Precheck{Latency: latency}, fmt.Errorf("%w: %d from node %s", ErrUnrecognizedStatus, int32(resp.Precheck), node)
	}
	s.logger.Debug("transaction submitted",
		slog.String("tx_id", tx.ID().String()),
		slog.String("node", node.String()),
		slog.String("precheck", resp.Precheck.String()),
		slog.Duration("latency", latency))
	return Precheck{Status: resp.Precheck, Cost: resp.Cost, Latency: latency}, nil
}

// Query sends q to node. The response header precheck is left for the
// caller to interpret.
func (s *Submitter) Query(ctx context.Context, q *ledger.Query, node ledger.Node) (*ledger.Response, error) {
	if q == nil {
		return nil, errors.New("submit: nil query")
	}
	svc, err := s.service(node, "query")
	if err != nil {
		return nil, err
	}
	resp, err := svc.Query(ctx, q)
	if err != nil {
		return nil, &TransportError{Node: node, Op: "query " + q.Kind.String(), Err: err}
	}
	if resp == nil {
		return nil, &TransportError{Node: node, Op: "query " + q.Kind.String(), Err: errors.New("empty response")}
	}
	if !resp.Header.Precheck.Known() {
		return nil, fmt.Errorf("%w: %d from node %s", ErrUnrecognizedStatus, int32(resp.Header.Precheck), node)
	}
	return resp, nil
}

func (s *Submitter) service(node ledger.Node, op string) (ledger.Service, error) {
	if s == nil || s.network == nil {
		return nil, errors.New("submit: network not configured")
	}
	svc, err := s.network.Service(node)
	if err != nil {
		return nil, &TransportError{Node: node, Op: op, Err: err}
	}
	return svc, nil
}
