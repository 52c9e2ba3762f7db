// Package ledgertest provides an in-memory ledger network for exercising the
// client end to end. Nodes share one state, verify signatures against the
// key trees they hold, charge fees, reject duplicate transaction ids and can
// be told to answer UNKNOWN, BUSY or fail at the transport level.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"ledgerclient/keys"
	"ledgerclient/ledger"
	"ledgerclient/signing"
)

// ErrUnavailable is the transport failure injected by FailNext.
var ErrUnavailable = errors.New("ledgertest: node unavailable")

const (
	// DefaultTransactionFee is the fee charged per transaction.
	DefaultTransactionFee = 50_000
	// DefaultQueryFee is the cost quoted for paid queries.
	DefaultQueryFee = 10_000
	// MaxValidDuration is the longest validity window accepted, in seconds.
	MaxValidDuration = 180

	firstEntityNum = 1001
	genesisNum     = 2
	firstNodeNum   = 3
)

type account struct {
	key                 keys.Key
	balance             uint64
	deleted             bool
	receiverSigRequired bool
	autoRenew           int64
	expiration          ledger.Timestamp
	records             []ledger.Record
}

type file struct {
	keys       keys.KeyList
	contents   []byte
	expiration ledger.Timestamp
	deleted    bool
}

type contract struct {
	adminKey   keys.Key
	bytecode   []byte
	memo       string
	balance    uint64
	autoRenew  int64
	expiration ledger.Timestamp
	deleted    bool
}

type txState struct {
	receipt ledger.Receipt
	record  ledger.Record
	pending int
}

// Network is a set of nodes over one shared ledger state.
type Network struct {
	mu        sync.Mutex
	nodes     []ledger.Node
	accounts  map[ledger.AccountID]*account
	files     map[ledger.FileID]*file
	contracts map[ledger.ContractID]*contract
	txs       map[ledger.TransactionID]*txState
	payments  map[ledger.TransactionID]struct{}
	nextNum   int64

	txFee        uint64
	queryFee     uint64
	pendingPolls int
	now          func() time.Time

	busySubmits  int
	busyReceipts int
	failures     map[ledger.AccountID]int
	submissions  map[ledger.AccountID]int
}

// Option configures a Network.
type Option func(*Network)

// WithNodes sets the number of nodes.
func WithNodes(n int) Option {
	return func(net *Network) {
		if n > 0 {
			net.nodes = makeNodes(n)
		}
	}
}

func WithTransactionFee(fee uint64) Option {
	return func(net *Network) { net.txFee = fee }
}

func WithQueryFee(fee uint64) Option {
	return func(net *Network) { net.queryFee = fee }
}

// WithPendingPolls makes every receipt answer UNKNOWN for the first n
// receipt queries after submission.
func WithPendingPolls(n int) Option {
	return func(net *Network) { net.pendingPolls = n }
}

func WithClock(now func() time.Time) Option {
	return func(net *Network) {
		if now != nil {
			net.now = now
		}
	}
}

// New returns a network of three nodes unless configured otherwise. The
// genesis account 0.0.2 exists with no key until Genesis is called.
func New(opts ...Option) *Network {
	net := &Network{
		nodes:       makeNodes(3),
		accounts:    make(map[ledger.AccountID]*account),
		files:       make(map[ledger.FileID]*file),
		contracts:   make(map[ledger.ContractID]*contract),
		txs:         make(map[ledger.TransactionID]*txState),
		payments:    make(map[ledger.TransactionID]struct{}),
		failures:    make(map[ledger.AccountID]int),
		submissions: make(map[ledger.AccountID]int),
		nextNum:     firstEntityNum,
		txFee:       DefaultTransactionFee,
		queryFee:    DefaultQueryFee,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(net)
	}
	net.accounts[ledger.AccountID{Num: genesisNum}] = &account{}
	for _, node := range net.nodes {
		net.accounts[node.Account] = &account{}
	}
	return net
}

func makeNodes(n int) []ledger.Node {
	out := make([]ledger.Node, n)
	for i := range out {
		acct := ledger.AccountID{Num: int64(firstNodeNum + i)}
		out[i] = ledger.Node{Account: acct, Address: "mem://" + acct.String()}
	}
	return out
}

// Nodes returns the network's nodes.
func (n *Network) Nodes() []ledger.Node {
	return append([]ledger.Node(nil), n.nodes...)
}

// Service implements submit.Network.
func (n *Network) Service(node ledger.Node) (ledger.Service, error) {
	for _, known := range n.nodes {
		if known.Account == node.Account {
			return &nodeService{net: n, node: known}, nil
		}
	}
	return nil, fmt.Errorf("ledgertest: unknown node %s", node)
}

// Genesis assigns key and balance to the privileged genesis account.
func (n *Network) Genesis(key keys.Key, balance uint64) ledger.AccountID {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := ledger.AccountID{Num: genesisNum}
	n.accounts[id] = &account{key: key, balance: balance}
	return id
}

// Fund creates an account directly in state.
func (n *Network) Fund(key keys.Key, balance uint64) ledger.AccountID {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := ledger.AccountID{Num: n.allocate()}
	n.accounts[id] = &account{key: key, balance: balance}
	return id
}

// Balance returns the balance of an account.
func (n *Network) Balance(id ledger.AccountID) (uint64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	acct, ok := n.accounts[id]
	if !ok {
		return 0, false
	}
	return acct.balance, true
}

// AccountKey returns the key currently guarding an account.
func (n *Network) AccountKey(id ledger.AccountID) (keys.Key, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	acct, ok := n.accounts[id]
	if !ok {
		return nil, false
	}
	return acct.key, true
}

// BusyNext makes the next count submissions answer BUSY at precheck.
func (n *Network) BusyNext(count int) {
	n.mu.Lock()
	n.busySubmits += count
	n.mu.Unlock()
}

// BusyReceipts makes the next count receipt queries answer BUSY.
func (n *Network) BusyReceipts(count int) {
	n.mu.Lock()
	n.busyReceipts += count
	n.mu.Unlock()
}

// FailNext makes the next count calls to node fail with ErrUnavailable.
func (n *Network) FailNext(node ledger.Node, count int) {
	n.mu.Lock()
	n.failures[node.Account] += count
	n.mu.Unlock()
}

// Submissions returns how many transactions node has been sent.
func (n *Network) Submissions(node ledger.Node) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.submissions[node.Account]
}

func (n *Network) allocate() int64 {
	num := n.nextNum
	n.nextNum++
	return num
}

func (n *Network) injectedFailure(node ledger.Node) error {
	if n.failures[node.Account] > 0 {
		n.failures[node.Account]--
		return ErrUnavailable
	}
	return nil
}

type nodeService struct {
	net  *Network
	node ledger.Node
}

func (s *nodeService) SubmitTransaction(ctx context.Context, tx *ledger.Transaction) (*ledger.TransactionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := s.net
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.injectedFailure(s.node); err != nil {
		return nil, err
	}
	n.submissions[s.node.Account]++
	status, cost := n.precheck(s.node, tx)
	if status != ledger.StatusOK {
		return &ledger.TransactionResponse{Precheck: status, Cost: cost}, nil
	}
	n.accept(s.node, tx)
	return &ledger.TransactionResponse{Precheck: ledger.StatusOK}, nil
}

func (n *Network) precheck(node ledger.Node, tx *ledger.Transaction) (ledger.Status, uint64) {
	if tx == nil || tx.CheckBody() != nil || tx.Body.Kind() == ledger.KindUnknown {
		return ledger.StatusInvalidTransactionBody, 0
	}
	body := &tx.Body
	// Ids are ledger-wide, so a copy sent to any node is a duplicate.
	if _, seen := n.txs[body.TransactionID]; seen {
		return ledger.StatusDuplicateTransaction, 0
	}
	if body.NodeAccount != node.Account {
		return ledger.StatusInvalidNodeAccount, 0
	}
	if status := n.checkWindow(body); status != ledger.StatusOK {
		return status, 0
	}
	payer, ok := n.accounts[body.TransactionID.Payer]
	if !ok || payer.key == nil {
		return ledger.StatusPayerAccountNotFound, 0
	}
	if payer.deleted {
		return ledger.StatusAccountDeleted, 0
	}
	if n.busySubmits > 0 {
		n.busySubmits--
		return ledger.StatusBusy, 0
	}
	if !signing.Verify(payer.key, tx.BodyBytes, tx.SigMap) {
		return ledger.StatusInvalidSignature, 0
	}
	if body.TransactionFee < n.txFee {
		return ledger.StatusInsufficientTxFee, n.txFee
	}
	if payer.balance < n.txFee {
		return ledger.StatusInsufficientPayerBalance, 0
	}
	return ledger.StatusOK, 0
}

func (n *Network) checkWindow(body *ledger.TransactionBody) ledger.Status {
	if body.ValidDuration <= 0 || body.ValidDuration > MaxValidDuration {
		return ledger.StatusInvalidTransactionDuration
	}
	now := n.now()
	start := body.TransactionID.ValidStart.Time()
	if start.After(now) {
		return ledger.StatusInvalidTransactionStart
	}
	if now.After(start.Add(time.Duration(body.ValidDuration) * time.Second)) {
		return ledger.StatusTransactionExpired
	}
	return ledger.StatusOK
}

func (n *Network) accept(node ledger.Node, tx *ledger.Transaction) {
	body := &tx.Body
	payerID := body.TransactionID.Payer
	payer := n.accounts[payerID]
	payer.balance -= n.txFee
	n.accounts[node.Account].balance += n.txFee

	receipt := n.apply(body, tx.BodyBytes, tx.SigMap)
	transfers := []ledger.AccountAmount{
		{Account: payerID, Amount: -int64(n.txFee)},
		{Account: node.Account, Amount: int64(n.txFee)},
	}
	if receipt.Status == ledger.StatusSuccess && body.CryptoTransfer != nil {
		transfers = append(transfers, body.CryptoTransfer.Transfers...)
	}
	record := ledger.Record{
		Receipt:            receipt,
		TransactionHash:    gethcrypto.Keccak256(tx.BodyBytes),
		ConsensusTimestamp: ledger.TimestampOf(n.now()),
		TransactionID:      body.TransactionID,
		Memo:               body.Memo,
		TransactionFee:     n.txFee,
		Transfers:          transfers,
	}
	if body.ContractCall != nil && receipt.Status == ledger.StatusSuccess {
		record.CallResult = callResult(body.ContractCall.Contract, body.ContractCall.Gas, body.ContractCall.FunctionParameters)
	}
	payer.records = append(payer.records, record)
	n.txs[body.TransactionID] = &txState{receipt: receipt, record: record, pending: n.pendingPolls}
}

func callResult(id ledger.ContractID, gas int64, params []byte) *ledger.ContractFunctionResult {
	used := uint64(21_000)
	if uint64(gas) < used {
		used = uint64(gas)
	}
	return &ledger.ContractFunctionResult{
		Contract: id,
		Result:   gethcrypto.Keccak256(params),
		GasUsed:  used,
	}
}
