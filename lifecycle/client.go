// Package lifecycle drives a transaction from construction to its final
// ledger outcome: signing, submission, precheck handling, receipt polling and
// the paid queries that read results back.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"ledgerclient/confirm"
	"ledgerclient/fees"
	"ledgerclient/journal"
	"ledgerclient/keys"
	"ledgerclient/ledger"
	"ledgerclient/observability"
	"ledgerclient/signing"
	"ledgerclient/submit"
	"ledgerclient/txcache"
)

var (
	// ErrConfirmationTimeout means polling gave up while the receipt was still
	// UNKNOWN. The transaction may yet reach consensus.
	ErrConfirmationTimeout = errors.New("lifecycle: confirmation timed out")
	// ErrNoNodes is returned when the client has no node to talk to.
	ErrNoNodes = errors.New("lifecycle: no nodes configured")
	// ErrEntityKeyUnknown is returned when a body references an entity whose
	// key is not bound in the store.
	ErrEntityKeyUnknown = errors.New("lifecycle: entity key not bound")
	// ErrNotDuplicate is returned by ExpectDuplicate when the node did not
	// answer DUPLICATE_TRANSACTION.
	ErrNotDuplicate = errors.New("lifecycle: resubmission was not rejected as duplicate")
	// ErrReceiptExpired is returned when a receipt is requested for a tracked
	// transaction submitted longer ago than the receipt TTL.
	ErrReceiptExpired = errors.New("lifecycle: receipt no longer retained")
)

// PrecheckError reports a submission the node refused to admit. Cost is set
// when the node quoted the fee it requires.
type PrecheckError struct {
	TransactionID ledger.TransactionID
	Status        ledger.Status
	Cost          uint64
}

func (e *PrecheckError) Error() string {
	if e.Cost > 0 {
		return fmt.Sprintf("lifecycle: %s rejected at precheck with %s (required fee %d)", e.TransactionID, e.Status, e.Cost)
	}
	return fmt.Sprintf("lifecycle: %s rejected at precheck with %s", e.TransactionID, e.Status)
}

// ReceiptError reports a definite failure status from the ledger.
type ReceiptError struct {
	TransactionID ledger.TransactionID
	Status        ledger.Status
}

func (e *ReceiptError) Error() string {
	return fmt.Sprintf("lifecycle: %s reached consensus with %s", e.TransactionID, e.Status)
}

// DefaultTransactionFee is the fee offered when a request leaves it unset.
const DefaultTransactionFee = 100_000

// Client orchestrates the transaction lifecycle against a set of nodes.
type Client struct {
	submitter *submit.Submitter
	store     *keys.Store
	nodes     []ledger.Node
	next      atomic.Uint64

	ids     *ledger.IDGenerator
	engine  *signing.Engine
	poller  *confirm.Poller
	quoter  *fees.Quoter
	cache   *txcache.Cache
	journal *journal.Journal
	metrics *observability.LifecycleMetrics
	logger  *slog.Logger
	tracer  trace.Tracer

	policy         confirm.Policy
	sleep          confirm.SleepFunc
	fee            uint64
	queryPayment   uint64
	retryPrechecks map[ledger.Status]bool
	maxRetries     int
	autoFee        bool
	fanout         int
	limiter        *rate.Limiter
	engineOpts     []signing.Option
	ownsCache      bool
}

// Option customises a Client.
type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithMetrics records lifecycle metrics on m.
func WithMetrics(m *observability.LifecycleMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithJournal persists one row per submission attempt.
func WithJournal(j *journal.Journal) Option {
	return func(c *Client) { c.journal = j }
}

// WithPolicy sets the receipt polling policy.
func WithPolicy(p confirm.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithSleep replaces the wait used between polls and precheck retries.
func WithSleep(fn confirm.SleepFunc) Option {
	return func(c *Client) { c.sleep = fn }
}

// WithTransactionFee sets the fee offered by requests that leave it unset.
func WithTransactionFee(fee uint64) Option {
	return func(c *Client) {
		if fee > 0 {
			c.fee = fee
		}
	}
}

// WithQueryPayment sets the nominal payment attached to cost queries.
func WithQueryPayment(amount uint64) Option {
	return func(c *Client) { c.queryPayment = amount }
}

// WithRetryPrechecks resubmits, with a fresh transaction id, submissions
// rejected with one of statuses. OK and DUPLICATE_TRANSACTION are never
// retried.
func WithRetryPrechecks(statuses ...ledger.Status) Option {
	return func(c *Client) {
		for _, st := range statuses {
			if st == ledger.StatusOK || st == ledger.StatusDuplicateTransaction {
				continue
			}
			c.retryPrechecks[st] = true
		}
	}
}

// WithMaxPrecheckRetries bounds resubmissions per request.
func WithMaxPrecheckRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithAutoFee resubmits once at the node's quoted fee after an
// INSUFFICIENT_TX_FEE precheck.
func WithAutoFee(enabled bool) Option {
	return func(c *Client) { c.autoFee = enabled }
}

// WithFanout bounds the number of concurrent submissions in ExecuteAll.
func WithFanout(limit int) Option {
	return func(c *Client) {
		if limit > 0 {
			c.fanout = limit
		}
	}
}

// WithRateLimit throttles submissions made by ExecuteAll.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *Client) {
		if limit > 0 {
			if burst <= 0 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(limit, burst)
		}
	}
}

// WithIDGenerator shares an id generator with other components.
func WithIDGenerator(g *ledger.IDGenerator) Option {
	return func(c *Client) {
		if g != nil {
			c.ids = g
		}
	}
}

// WithCache shares a transaction id cache. The caller keeps ownership.
func WithCache(cache *txcache.Cache) Option {
	return func(c *Client) {
		if cache != nil {
			c.cache = cache
		}
	}
}

// WithSigning configures the default signing engine.
func WithSigning(opts ...signing.Option) Option {
	return func(c *Client) { c.engineOpts = append(c.engineOpts, opts...) }
}

// New returns a client that submits through submitter to nodes and signs
// with the material in store.
func New(submitter *submit.Submitter, store *keys.Store, nodes []ledger.Node, opts ...Option) (*Client, error) {
	if submitter == nil {
		return nil, errors.New("lifecycle: submitter required")
	}
	if store == nil {
		return nil, errors.New("lifecycle: key store required")
	}
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}
	c := &Client{
		submitter:      submitter,
		store:          store,
		nodes:          append([]ledger.Node(nil), nodes...),
		logger:         slog.Default(),
		tracer:         otel.Tracer("ledgerclient/lifecycle"),
		policy:         confirm.DefaultPolicy(),
		fee:            DefaultTransactionFee,
		retryPrechecks: make(map[ledger.Status]bool),
		maxRetries:     3,
		fanout:         8,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.ids == nil {
		c.ids = ledger.NewIDGenerator()
	}
	if c.cache == nil {
		c.cache = txcache.New()
		c.ownsCache = true
	}
	c.engine = signing.NewEngine(store, c.engineOpts...)

	pollerOpts := []confirm.Option{confirm.WithLogger(c.logger), confirm.WithTracer(c.tracer)}
	if c.sleep != nil {
		pollerOpts = append(pollerOpts, confirm.WithSleep(c.sleep))
	} else {
		c.sleep = sleepContext
	}
	poller, err := confirm.NewPoller(c.policy, pollerOpts...)
	if err != nil {
		return nil, err
	}
	c.poller = poller
	c.quoter = fees.NewQuoter(submitter, fees.NewPaymentBuilder(c.ids, fees.DefaultPaymentFee), c.engine, store,
		fees.WithNominalPayment(c.queryPayment),
		fees.WithLogger(c.logger),
		fees.WithTracer(c.tracer))
	return c, nil
}

// Close releases the cache when the client created it.
func (c *Client) Close() {
	if c.ownsCache {
		c.cache.Close()
	}
}

// Nodes returns the nodes the client rotates over.
func (c *Client) Nodes() []ledger.Node {
	return append([]ledger.Node(nil), c.nodes...)
}

// Cache exposes the transaction id cache.
func (c *Client) Cache() *txcache.Cache { return c.cache }

// Store exposes the key store.
func (c *Client) Store() *keys.Store { return c.store }

// pickNode returns requested when set, otherwise the next node in rotation.
func (c *Client) pickNode(requested ledger.Node) ledger.Node {
	if !requested.Account.IsZero() {
		return requested
	}
	i := c.next.Add(1) - 1
	return c.nodes[i%uint64(len(c.nodes))]
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
