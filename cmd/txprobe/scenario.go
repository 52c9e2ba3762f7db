package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ledgerclient/crypto"
	"ledgerclient/keys"
	"ledgerclient/ledger"
	"ledgerclient/lifecycle"
	"ledgerclient/observability"
	"ledgerclient/signing"
)

// Step is one line of the probe report.
type Step struct {
	Name          string        `json:"name"`
	TransactionID string        `json:"transactionId,omitempty"`
	Outcome       string        `json:"outcome"`
	Attempts      int           `json:"attempts,omitempty"`
	Elapsed       time.Duration `json:"elapsedNanos"`
}

// Report summarises a probe run.
type Report struct {
	Payer     string `json:"payer"`
	Account   string `json:"account"`
	Balance   uint64 `json:"balance"`
	Steps     []Step `json:"steps"`
	Batch     int    `json:"batch"`
	BatchFail int    `json:"batchFailures"`
}

// probe runs the threshold account scenario against a live client.
type probe struct {
	client *lifecycle.Client
	store  *keys.Store
	payer  ledger.AccountID
	logger *slog.Logger
	policy int
	batch  int
	report Report
}

func (p *probe) step(name string, started time.Time, res *lifecycle.Result, outcome string) {
	s := Step{Name: name, Outcome: outcome, Elapsed: time.Since(started)}
	if res != nil {
		s.TransactionID = res.TransactionID.String()
		s.Attempts = res.Attempts
	}
	p.report.Steps = append(p.report.Steps, s)
	p.logger.Info("probe step",
		slog.String("step", name),
		slog.String("outcome", outcome),
		slog.String("tx_id", s.TransactionID),
		slog.String("attempts", observability.FormatAttempts(s.Attempts, p.policy)))
}

func transfer(from, to ledger.AccountID, amount int64) ledger.TransactionBody {
	return ledger.TransactionBody{CryptoTransfer: &ledger.CryptoTransfer{Transfers: []ledger.AccountAmount{
		{Account: from, Amount: -amount},
		{Account: to, Amount: amount},
	}}}
}

// Run creates a 2-of-3 threshold account, shows that two signatures move
// funds while one does not, replays a signed transaction to a second node,
// reads the account back and finishes with a concurrent batch.
func (p *probe) Run(ctx context.Context) (*Report, error) {
	p.report = Report{Payer: p.payer.String()}

	members := make([]keys.Key, 0, 3)
	for _, t := range []crypto.KeyType{crypto.KeyTypeEd25519, crypto.KeyTypeSecp256k1, crypto.KeyTypeEd25519} {
		leaf, err := p.store.Generate(t)
		if err != nil {
			return nil, fmt.Errorf("generate member key: %w", err)
		}
		members = append(members, leaf)
	}
	threshold := keys.NewThreshold(2, members...)

	started := time.Now()
	created, err := p.client.Execute(ctx, lifecycle.Request{
		Payer: p.payer,
		Body:  ledger.TransactionBody{CryptoCreate: &ledger.CryptoCreate{Key: threshold, InitialBalance: 50_000_000}},
		Memo:  "txprobe threshold account",
	})
	if err != nil {
		return nil, fmt.Errorf("create threshold account: %w", err)
	}
	if created.Receipt.AccountID == nil {
		return nil, errors.New("create threshold account: receipt carries no account id")
	}
	account := *created.Receipt.AccountID
	p.report.Account = account.String()
	p.step("create-threshold-account", started, created, created.Receipt.Status.String())

	started = time.Now()
	res, err := p.client.Execute(ctx, lifecycle.Request{
		Payer:   p.payer,
		Body:    transfer(account, p.payer, 1_000),
		Signing: []signing.Option{signing.WithOmit(members[2].(keys.Single))},
	})
	if err != nil {
		return nil, fmt.Errorf("two-of-three transfer: %w", err)
	}
	p.step("two-of-three-transfer", started, res, res.Receipt.Status.String())

	started = time.Now()
	_, err = p.client.Execute(ctx, lifecycle.Request{
		Payer:   p.payer,
		Body:    transfer(account, p.payer, 1_000),
		Signing: []signing.Option{signing.WithOmit(members[1].(keys.Single), members[2].(keys.Single))},
	})
	var receiptErr *lifecycle.ReceiptError
	switch {
	case errors.As(err, &receiptErr) && receiptErr.Status == ledger.StatusInvalidSignature:
		p.step("one-of-three-transfer", started, nil, "rejected "+receiptErr.Status.String())
	case err == nil:
		return nil, errors.New("one-of-three transfer: accepted with a single signature")
	default:
		return nil, fmt.Errorf("one-of-three transfer: %w", err)
	}

	if err := p.duplicate(ctx, account); err != nil {
		return nil, err
	}

	balance, err := p.client.AccountBalance(ctx, account, p.payer)
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	p.report.Balance = balance
	info, err := p.client.AccountInfo(ctx, account, p.payer)
	if err != nil {
		return nil, fmt.Errorf("read account info: %w", err)
	}
	if !keys.Equal(info.Key, threshold) {
		return nil, errors.New("account info: key differs from the threshold that created it")
	}

	if err := p.fanout(ctx, account); err != nil {
		return nil, err
	}
	return &p.report, nil
}

// duplicate submits one signed transfer and replays the same bytes to
// another node, which must answer DUPLICATE_TRANSACTION.
func (p *probe) duplicate(ctx context.Context, account ledger.AccountID) error {
	nodes := p.client.Nodes()
	if len(nodes) < 2 {
		p.logger.Warn("duplicate step skipped; needs two nodes")
		return nil
	}
	started := time.Now()
	tx, err := p.client.Prepare(ctx, lifecycle.Request{Payer: p.payer, Node: nodes[0], Body: transfer(p.payer, account, 10)})
	if err != nil {
		return fmt.Errorf("prepare duplicate probe: %w", err)
	}
	res, err := p.client.SubmitSigned(ctx, tx, nodes[0])
	if err != nil {
		return fmt.Errorf("submit duplicate probe: %w", err)
	}
	if err := p.client.ExpectDuplicate(ctx, tx, nodes[1]); err != nil {
		return fmt.Errorf("replay to %s: %w", nodes[1].Account, err)
	}
	p.step("duplicate-across-nodes", started, res, ledger.StatusDuplicateTransaction.String())
	return nil
}

func (p *probe) fanout(ctx context.Context, account ledger.AccountID) error {
	if p.batch <= 0 {
		return nil
	}
	reqs := make([]lifecycle.Request, p.batch)
	for i := range reqs {
		reqs[i] = lifecycle.Request{Payer: p.payer, Body: transfer(p.payer, account, int64(i+1))}
	}
	started := time.Now()
	results, err := p.client.ExecuteAll(ctx, reqs)
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	p.report.Batch = len(results)
	for _, r := range results {
		if r.Err != nil {
			p.report.BatchFail++
			p.logger.Warn("batch transfer failed", slog.Any("error", r.Err))
		}
	}
	p.step("batch-transfers", started, nil, fmt.Sprintf("%d/%d succeeded", p.report.Batch-p.report.BatchFail, p.report.Batch))
	return nil
}
