package lifecycle

import (
	"context"
	"errors"

	"ledgerclient/fees"
	"ledgerclient/keys"
	"ledgerclient/ledger"
)

// QueryOption adjusts a single query.
type QueryOption func(*queryConfig)

type queryConfig struct {
	node      ledger.Node
	cosigners []keys.Key
}

// OnNode sends the query to node instead of the next node in rotation.
func OnNode(node ledger.Node) QueryOption {
	return func(q *queryConfig) { q.node = node }
}

// CoSignedBy adds key trees that sign the query payment with the payer.
func CoSignedBy(trees ...keys.Key) QueryOption {
	return func(q *queryConfig) { q.cosigners = append(q.cosigners, trees...) }
}

func (c *Client) query(ctx context.Context, q *ledger.Query, payer ledger.AccountID, opts []QueryOption) (*ledger.Response, error) {
	var cfg queryConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	node := c.pickNode(cfg.node)
	resp, err := c.quoter.Execute(ctx, q, node, payer, cfg.cosigners...)
	if err != nil {
		return nil, err
	}
	if !q.Kind.Free() {
		c.metrics.ObserveFeeQuote(q.Kind.String(), resp.Header.Cost)
	}
	return resp, nil
}

// Receipt fetches the current receipt of id from node. Receipts are free. A
// tracked transaction older than the receipt TTL fails fast with
// ErrReceiptExpired.
func (c *Client) Receipt(ctx context.Context, id ledger.TransactionID, node ledger.Node) (*ledger.Receipt, error) {
	if _, tracked := c.cache.Get(id); tracked && !c.cache.ReceiptExpected(id) {
		return nil, ErrReceiptExpired
	}
	resp, err := c.query(ctx, ledger.ReceiptQuery(id), ledger.AccountID{}, []QueryOption{OnNode(node)})
	if err != nil {
		return nil, err
	}
	if resp.Receipt == nil {
		return nil, errors.New("lifecycle: receipt missing from response")
	}
	return resp.Receipt, nil
}

// Record fetches the record of id from node, paid by payer.
func (c *Client) Record(ctx context.Context, id ledger.TransactionID, node ledger.Node, payer ledger.AccountID) (*ledger.Record, error) {
	resp, err := c.query(ctx, ledger.RecordQuery(id), payer, []QueryOption{OnNode(node)})
	if err != nil {
		return nil, err
	}
	if resp.Record == nil {
		return nil, errors.New("lifecycle: record missing from response")
	}
	return resp.Record, nil
}

func (c *Client) AccountInfo(ctx context.Context, account, payer ledger.AccountID, opts ...QueryOption) (*ledger.AccountInfo, error) {
	resp, err := c.query(ctx, ledger.AccountInfoQuery(account), payer, opts)
	if err != nil {
		return nil, err
	}
	if resp.AccountInfo == nil {
		return nil, errors.New("lifecycle: account info missing from response")
	}
	return resp.AccountInfo, nil
}

func (c *Client) AccountBalance(ctx context.Context, account, payer ledger.AccountID, opts ...QueryOption) (uint64, error) {
	resp, err := c.query(ctx, ledger.AccountBalanceQuery(account), payer, opts)
	if err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

// AccountRecords returns the records the ledger still holds for transactions
// paid by account.
func (c *Client) AccountRecords(ctx context.Context, account, payer ledger.AccountID, opts ...QueryOption) ([]ledger.Record, error) {
	resp, err := c.query(ctx, ledger.AccountRecordsQuery(account), payer, opts)
	if err != nil {
		return nil, err
	}
	return resp.Records, nil
}

func (c *Client) FileContents(ctx context.Context, file ledger.FileID, payer ledger.AccountID, opts ...QueryOption) ([]byte, error) {
	resp, err := c.query(ctx, ledger.FileContentsQuery(file), payer, opts)
	if err != nil {
		return nil, err
	}
	return resp.FileContents, nil
}

func (c *Client) FileInfo(ctx context.Context, file ledger.FileID, payer ledger.AccountID, opts ...QueryOption) (*ledger.FileInfo, error) {
	resp, err := c.query(ctx, ledger.FileInfoQuery(file), payer, opts)
	if err != nil {
		return nil, err
	}
	if resp.FileInfo == nil {
		return nil, errors.New("lifecycle: file info missing from response")
	}
	return resp.FileInfo, nil
}

func (c *Client) ContractInfo(ctx context.Context, contract ledger.ContractID, payer ledger.AccountID, opts ...QueryOption) (*ledger.ContractInfo, error) {
	resp, err := c.query(ctx, ledger.ContractInfoQuery(contract), payer, opts)
	if err != nil {
		return nil, err
	}
	if resp.ContractInfo == nil {
		return nil, errors.New("lifecycle: contract info missing from response")
	}
	return resp.ContractInfo, nil
}

func (c *Client) ContractBytecode(ctx context.Context, contract ledger.ContractID, payer ledger.AccountID, opts ...QueryOption) ([]byte, error) {
	resp, err := c.query(ctx, ledger.ContractBytecodeQuery(contract), payer, opts)
	if err != nil {
		return nil, err
	}
	return resp.Bytecode, nil
}

// ContractCallLocal runs a read-only call on one node without reaching
// consensus.
func (c *Client) ContractCallLocal(ctx context.Context, contract ledger.ContractID, call ledger.ContractCallLocal, payer ledger.AccountID, opts ...QueryOption) (*ledger.ContractFunctionResult, error) {
	resp, err := c.query(ctx, ledger.ContractCallLocalQuery(contract, call), payer, opts)
	if err != nil {
		return nil, err
	}
	if resp.CallResult == nil {
		return nil, errors.New("lifecycle: call result missing from response")
	}
	return resp.CallResult, nil
}

// QueryCost quotes a query without running it.
func (c *Client) QueryCost(ctx context.Context, q *ledger.Query, payer ledger.AccountID, opts ...QueryOption) (uint64, error) {
	var cfg queryConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	cost, err := c.quoter.Cost(ctx, q, c.pickNode(cfg.node), payer, cfg.cosigners...)
	if err != nil {
		return 0, err
	}
	c.metrics.ObserveFeeQuote(q.Kind.String(), cost)
	return cost, nil
}

// IsQueryRejected reports whether err is a query refused at precheck and
// returns its status.
func IsQueryRejected(err error) (ledger.Status, bool) {
	var pe *fees.PrecheckError
	if errors.As(err, &pe) {
		return pe.Status, true
	}
	return 0, false
}
