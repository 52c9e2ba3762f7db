package lifecycle

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"lukechampine.com/blake3"

	"ledgerclient/confirm"
	"ledgerclient/journal"
	"ledgerclient/keys"
	"ledgerclient/ledger"
	"ledgerclient/signing"
	"ledgerclient/submit"
)

// Request describes one transaction. Body carries the kind-specific payload;
// the header fields are filled in by the client.
type Request struct {
	Payer ledger.AccountID
	// Node pins the submission to one node. Zero rotates over the client's
	// nodes.
	Node ledger.Node
	Body ledger.TransactionBody
	// Fee overrides the client's default transaction fee.
	Fee uint64
	// ValidDuration in seconds; zero uses ledger.DefaultValidDuration.
	ValidDuration  int64
	Memo           string
	GenerateRecord bool
	// Signers are key trees that sign in addition to the derived ones.
	Signers []keys.Key
	// Signing adjusts the engine for this request only.
	Signing []signing.Option
	// FetchRecord reads the record back after success.
	FetchRecord bool
}

// Result describes a transaction that reached consensus successfully.
type Result struct {
	TransactionID ledger.TransactionID
	Kind          ledger.TransactionKind
	Node          ledger.Node
	Precheck      submit.Precheck
	Receipt       *ledger.Receipt
	Record        *ledger.Record
	// Attempts is the number of receipt fetches made.
	Attempts int
	// Resubmissions counts fresh-id retries after a precheck rejection.
	Resubmissions int
	Fee           uint64
}

// pending is a transaction admitted at precheck and awaiting its receipt.
type pending struct {
	flow   uuid.UUID
	req    Request
	tx     *ledger.Transaction
	result *Result
}

// Execute builds, signs and submits the request, then polls for its receipt.
// A precheck rejection returns *PrecheckError, a failed receipt returns
// *ReceiptError and an exhausted poll returns ErrConfirmationTimeout.
// Transport failures surface as *submit.TransportError; the request may
// have reached the node, so callers that retry get a fresh transaction id.
func (c *Client) Execute(ctx context.Context, req Request) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "lifecycle.execute",
		trace.WithAttributes(attribute.String("tx.kind", req.Body.Kind().String())))
	defer span.End()

	p, err := c.admit(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	res, err := c.confirm(ctx, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	span.SetAttributes(attribute.String("tx.id", res.TransactionID.String()))
	span.SetStatus(codes.Ok, res.Receipt.Status.String())
	return res, nil
}

// Prepare returns the signed transaction for req without submitting it.
func (c *Client) Prepare(ctx context.Context, req Request) (*ledger.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.build(req, c.pickNode(req.Node), c.feeFor(req))
}

// SubmitSigned sends an already signed transaction to node once and polls
// for its receipt. The transaction id is never changed.
func (c *Client) SubmitSigned(ctx context.Context, tx *ledger.Transaction, node ledger.Node) (*Result, error) {
	if tx == nil {
		return nil, errors.New("lifecycle: nil transaction")
	}
	p := &pending{
		flow:   uuid.New(),
		req:    Request{Payer: tx.ID().Payer, Node: node},
		tx:     tx,
		result: &Result{TransactionID: tx.ID(), Kind: tx.Body.Kind(), Node: node, Fee: tx.Body.TransactionFee},
	}
	pc, err := c.submitOnce(ctx, p, node)
	if err != nil {
		return nil, err
	}
	if !pc.OK() {
		return nil, &PrecheckError{TransactionID: tx.ID(), Status: pc.Status, Cost: pc.Cost}
	}
	return c.confirm(ctx, p)
}

// ExpectDuplicate resubmits tx to node and succeeds only when the node
// rejects it as DUPLICATE_TRANSACTION.
func (c *Client) ExpectDuplicate(ctx context.Context, tx *ledger.Transaction, node ledger.Node) error {
	if tx == nil {
		return errors.New("lifecycle: nil transaction")
	}
	if prev, ok := c.cache.Get(tx.ID()); ok {
		c.logger.Debug("resubmitting cached transaction",
			slog.String("tx_id", tx.ID().String()),
			slog.String("first_node", prev.Node.String()),
			slog.String("node", node.String()))
	}
	p := &pending{
		flow:   uuid.New(),
		tx:     tx,
		result: &Result{TransactionID: tx.ID(), Kind: tx.Body.Kind(), Node: node},
	}
	pc, err := c.submitOnce(ctx, p, node)
	if err != nil {
		return err
	}
	if pc.Status != ledger.StatusDuplicateTransaction {
		return fmt.Errorf("%w: %s answered %s for %s", ErrNotDuplicate, node, pc.Status, tx.ID())
	}
	return nil
}

func (c *Client) feeFor(req Request) uint64 {
	if req.Fee > 0 {
		return req.Fee
	}
	return c.fee
}

// build mints a fresh id, fills the header and signs with every required
// key tree.
func (c *Client) build(req Request, node ledger.Node, fee uint64) (*ledger.Transaction, error) {
	body := req.Body
	body.TransactionID = c.ids.Next(req.Payer)
	body.NodeAccount = node.Account
	body.TransactionFee = fee
	body.ValidDuration = req.ValidDuration
	if body.ValidDuration == 0 {
		body.ValidDuration = ledger.DefaultValidDuration
	}
	body.Memo = req.Memo
	body.GenerateRecord = req.GenerateRecord

	tx, err := ledger.NewTransaction(body)
	if err != nil {
		return nil, err
	}
	trees, err := RequiredSigners(c.store, &tx.Body)
	if err != nil {
		return nil, err
	}
	trees = append(trees, req.Signers...)
	engine := c.engine
	if len(req.Signing) > 0 {
		engine = engine.With(req.Signing...)
	}
	if err := engine.SignTransaction(tx, trees...); err != nil {
		return nil, fmt.Errorf("lifecycle: sign %s: %w", tx.ID(), err)
	}
	return tx, nil
}

// admit submits req until a node accepts it, resubmitting with fresh ids for
// retryable prechecks and once at the quoted fee when auto-fee is enabled.
func (c *Client) admit(ctx context.Context, req Request) (*pending, error) {
	if req.Payer.IsZero() {
		return nil, errors.New("lifecycle: payer required")
	}
	node := c.pickNode(req.Node)
	fee := c.feeFor(req)
	kind := req.Body.Kind()
	p := &pending{flow: uuid.New(), req: req}
	var (
		retries      int
		feeCorrected bool
	)
	for {
		tx, err := c.build(req, node, fee)
		if err != nil {
			return nil, err
		}
		p.tx = tx
		p.result = &Result{TransactionID: tx.ID(), Kind: kind, Node: node, Fee: fee, Resubmissions: retries}
		if feeCorrected {
			p.result.Resubmissions++
		}

		pc, err := c.submitOnce(ctx, p, node)
		if err != nil {
			return nil, err
		}
		if pc.OK() {
			return p, nil
		}
		switch {
		case c.retryPrechecks[pc.Status] && retries < c.maxRetries:
			retries++
			c.metrics.ObserveResubmission(kind.String(), pc.Status.String())
			c.logger.Info("resubmitting after precheck",
				slog.String("tx_id", tx.ID().String()),
				slog.String("precheck", pc.Status.String()),
				slog.Int("retry", retries))
			if err := c.sleep(ctx, c.policy.Delay(retries)); err != nil {
				return nil, err
			}
		case pc.Status == ledger.StatusInsufficientTxFee && c.autoFee && !feeCorrected && pc.Cost > fee:
			feeCorrected = true
			c.metrics.ObserveFeeQuote("precheck", pc.Cost)
			c.metrics.ObserveResubmission(kind.String(), "fee")
			c.logger.Info("resubmitting with quoted fee",
				slog.String("tx_id", tx.ID().String()),
				slog.Uint64("offered", fee),
				slog.Uint64("quoted", pc.Cost))
			fee = pc.Cost
		default:
			return nil, &PrecheckError{TransactionID: tx.ID(), Status: pc.Status, Cost: pc.Cost}
		}
	}
}

// submitOnce performs one submission and records its precheck.
func (c *Client) submitOnce(ctx context.Context, p *pending, node ledger.Node) (submit.Precheck, error) {
	kind := p.tx.Body.Kind().String()
	pc, err := c.submitter.Submit(ctx, p.tx, node)
	p.result.Precheck = pc
	if err != nil {
		c.metrics.ObservePrecheck(kind, "TRANSPORT_ERROR", pc.Latency)
		c.record(ctx, p, "error", err)
		return pc, err
	}
	c.metrics.ObservePrecheck(kind, pc.Status.String(), pc.Latency)
	if !pc.OK() {
		c.record(ctx, p, "rejected", nil)
		return pc, nil
	}
	if prev, dup := c.cache.Put(p.tx.ID(), node); dup {
		c.logger.Warn("transaction id admitted twice",
			slog.String("tx_id", p.tx.ID().String()),
			slog.String("first_node", prev.Node.String()),
			slog.String("node", node.String()))
	}
	return pc, nil
}

// confirm polls for the receipt of an admitted transaction.
func (c *Client) confirm(ctx context.Context, p *pending) (*Result, error) {
	id := p.tx.ID()
	node := p.result.Node
	fetch := func(ctx context.Context) (*ledger.Response, error) {
		return c.submitter.Query(ctx, ledger.ReceiptQuery(id), node)
	}
	out, err := c.poller.Poll(ctx, fetch)
	p.result.Attempts = out.Attempts
	kind := p.tx.Body.Kind().String()
	if err != nil {
		c.metrics.ObserveOutcome(kind, "error", "", out.Attempts)
		c.record(ctx, p, "error", err)
		return nil, err
	}
	c.metrics.ObserveOutcome(kind, out.State.String(), out.Status.String(), out.Attempts)
	switch out.State {
	case confirm.StateTimedOut:
		c.record(ctx, p, out.State.String(), nil)
		return nil, fmt.Errorf("%w: %s after %d attempts", ErrConfirmationTimeout, id, out.Attempts)
	case confirm.StateFailed:
		p.result.Receipt = out.Receipt
		c.record(ctx, p, out.State.String(), nil)
		return nil, &ReceiptError{TransactionID: id, Status: out.Status}
	}

	p.result.Receipt = out.Receipt
	if err := bindCreated(c.store, &p.tx.Body, out.Receipt); err != nil {
		c.record(ctx, p, "error", err)
		return nil, fmt.Errorf("lifecycle: bind keys for %s: %w", id, err)
	}
	if p.req.FetchRecord {
		rec, err := c.Record(ctx, id, node, p.tx.ID().Payer)
		if err != nil {
			c.record(ctx, p, out.State.String(), err)
			return p.result, err
		}
		p.result.Record = rec
	}
	c.record(ctx, p, out.State.String(), nil)
	c.logger.Debug("transaction confirmed",
		slog.String("tx_id", id.String()),
		slog.String("status", out.Status.String()),
		slog.Int("attempts", out.Attempts))
	return p.result, nil
}

// record writes the journal row for the current attempt of p.
func (c *Client) record(ctx context.Context, p *pending, state string, cause error) {
	if c.journal == nil {
		return
	}
	row := &journal.Submission{
		FlowID:        p.flow,
		TransactionID: p.tx.ID().String(),
		Kind:          p.tx.Body.Kind().String(),
		BodyHash:      bodyHash(p.tx.BodyBytes),
		Node:          p.result.Node.String(),
		Precheck:      p.result.Precheck.Status.String(),
		State:         state,
		Attempts:      p.result.Attempts,
		Fee:           p.tx.Body.TransactionFee,
		LatencyMillis: p.result.Precheck.Latency.Milliseconds(),
	}
	if p.result.Receipt != nil {
		row.Status = p.result.Receipt.Status.String()
	}
	if cause != nil {
		row.Error = truncate(cause.Error(), 512)
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.journal.Record(writeCtx, row); err != nil {
		c.logger.Warn("journal write failed", slog.String("tx_id", row.TransactionID), slog.Any("error", err))
	}
}

// bodyHash fingerprints the signed bytes so resubmissions of one body can be
// grouped across flows.
func bodyHash(body []byte) string {
	sum := blake3.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
