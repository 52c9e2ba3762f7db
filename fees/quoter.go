// Package fees runs paid queries using the two-phase cost-then-answer
// protocol.
package fees

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"ledgerclient/keys"
	"ledgerclient/ledger"
	"ledgerclient/signing"
	"ledgerclient/submit"
)

// ErrPayerKeyUnknown is returned when the payer has no key bound in the store.
var ErrPayerKeyUnknown = errors.New("fees: payer key not bound")

// Phase names the step of a paid query that was rejected.
type Phase string

const (
	PhaseCost   Phase = "cost"
	PhaseAnswer Phase = "answer"
)

// PrecheckError reports a query rejected by the node's header precheck.
type PrecheckError struct {
	Kind   ledger.QueryKind
	Phase  Phase
	Status ledger.Status
}

func (e *PrecheckError) Error() string {
	return fmt.Sprintf("fees: %s query rejected in %s phase with %s", e.Kind, e.Phase, e.Status)
}

// Quoter executes paid queries.
type Quoter struct {
	submitter *submit.Submitter
	payments  *PaymentBuilder
	engine    *signing.Engine
	store     *keys.Store
	nominal   uint64
	logger    *slog.Logger
	tracer    trace.Tracer
	quotes    metric.Int64Counter
}

// Option customises a Quoter.
type Option func(*Quoter)

// WithNominalPayment sets the amount offered with the cost query.
func WithNominalPayment(amount uint64) Option {
	return func(q *Quoter) { q.nominal = amount }
}

func WithLogger(logger *slog.Logger) Option {
	return func(q *Quoter) {
		if logger != nil {
			q.logger = logger
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(q *Quoter) {
		if tracer != nil {
			q.tracer = tracer
		}
	}
}

// WithMeterProvider records quote counts on provider instead of the global
// one.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(q *Quoter) {
		if provider != nil {
			q.quotes = quoteCounter(provider)
		}
	}
}

// NewQuoter returns a quoter that signs payments with engine using the keys
// bound in store.
func NewQuoter(submitter *submit.Submitter, payments *PaymentBuilder, engine *signing.Engine, store *keys.Store, opts ...Option) *Quoter {
	q := &Quoter{
		submitter: submitter,
		payments:  payments,
		engine:    engine,
		store:     store,
		logger:    slog.Default(),
		tracer:    otel.Tracer("ledgerclient/fees"),
		quotes:    quoteCounter(otel.GetMeterProvider()),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func quoteCounter(provider metric.MeterProvider) metric.Int64Counter {
	counter, err := provider.Meter("ledgerclient/fees").Int64Counter("ledger.fees.quotes")
	if err != nil {
		counter, _ = noop.NewMeterProvider().Meter("ledgerclient/fees").Int64Counter("ledger.fees.quotes")
	}
	return counter
}

// Cost runs the cost phase only and returns the quoted fee.
func (q *Quoter) Cost(ctx context.Context, query *ledger.Query, node ledger.Node, payer ledger.AccountID, cosigners ...keys.Key) (uint64, error) {
	ctx, span := q.tracer.Start(ctx, "fees.cost",
		trace.WithAttributes(attribute.String("query.kind", query.Kind.String())))
	defer span.End()
	cost, err := q.cost(ctx, query, node, payer, cosigners)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	span.SetStatus(codes.Ok, "cost quoted")
	return cost, nil
}

// Execute runs a paid query: a cost query with a nominal payment, then the
// answer query paid with exactly the quoted cost. Free queries are sent
// directly.
func (q *Quoter) Execute(ctx context.Context, query *ledger.Query, node ledger.Node, payer ledger.AccountID, cosigners ...keys.Key) (*ledger.Response, error) {
	if query == nil {
		return nil, errors.New("fees: nil query")
	}
	ctx, span := q.tracer.Start(ctx, "fees.execute",
		trace.WithAttributes(attribute.String("query.kind", query.Kind.String()), attribute.String("node", node.String())))
	defer span.End()

	resp, err := q.execute(ctx, query, node, payer, cosigners)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "answered")
	return resp, nil
}

func (q *Quoter) execute(ctx context.Context, query *ledger.Query, node ledger.Node, payer ledger.AccountID, cosigners []keys.Key) (*ledger.Response, error) {
	if query.Kind.Free() {
		resp, err := q.submitter.Query(ctx, query.WithHeader(ledger.QueryHeader{ResponseType: ledger.AnswerOnly}), node)
		if err != nil {
			return nil, err
		}
		if resp.Header.Precheck != ledger.StatusOK {
			return nil, &PrecheckError{Kind: query.Kind, Phase: PhaseAnswer, Status: resp.Header.Precheck}
		}
		return resp, nil
	}

	cost, err := q.cost(ctx, query, node, payer, cosigners)
	if err != nil {
		return nil, err
	}
	payment, err := q.payment(payer, node, cost, cosigners)
	if err != nil {
		return nil, err
	}
	resp, err := q.submitter.Query(ctx, query.WithHeader(ledger.QueryHeader{Payment: payment, ResponseType: ledger.AnswerOnly}), node)
	if err != nil {
		return nil, err
	}
	if resp.Header.Precheck != ledger.StatusOK {
		return nil, &PrecheckError{Kind: query.Kind, Phase: PhaseAnswer, Status: resp.Header.Precheck}
	}
	return resp, nil
}

func (q *Quoter) cost(ctx context.Context, query *ledger.Query, node ledger.Node, payer ledger.AccountID, cosigners []keys.Key) (uint64, error) {
	payment, err := q.payment(payer, node, q.nominal, cosigners)
	if err != nil {
		return 0, err
	}
	resp, err := q.submitter.Query(ctx, query.WithHeader(ledger.QueryHeader{Payment: payment, ResponseType: ledger.CostAnswer}), node)
	if err != nil {
		return 0, err
	}
	switch resp.Header.Precheck {
	case ledger.StatusOK, ledger.StatusInsufficientTxFee:
	default:
		return 0, &PrecheckError{Kind: query.Kind, Phase: PhaseCost, Status: resp.Header.Precheck}
	}
	cost := resp.Header.Cost
	q.quotes.Add(ctx, 1, metric.WithAttributes(attribute.String("query", query.Kind.String())))
	q.logger.Debug("query cost quoted",
		slog.String("query", query.Kind.String()),
		slog.String("node", node.String()),
		slog.Uint64("cost", cost))
	return cost, nil
}

func (q *Quoter) payment(payer ledger.AccountID, node ledger.Node, amount uint64, cosigners []keys.Key) (*ledger.Transaction, error) {
	payerKey, ok := q.store.KeyFor(payer.Ref())
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPayerKeyUnknown, payer)
	}
	tx, err := q.payments.Build(payer, node, amount)
	if err != nil {
		return nil, err
	}
	if err := q.engine.SignTransaction(tx, append([]keys.Key{payerKey}, cosigners...)...); err != nil {
		return nil, fmt.Errorf("fees: sign payment: %w", err)
	}
	return tx, nil
}
