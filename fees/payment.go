package fees

import (
	"errors"

	"ledgerclient/ledger"
)

// DefaultPaymentFee is the transaction fee offered on query payments.
const DefaultPaymentFee = 100_000

// PaymentBuilder constructs query payments: a transfer from the payer to the
// node's account. Every payment carries a freshly minted transaction id.
type PaymentBuilder struct {
	ids           *ledger.IDGenerator
	fee           uint64
	validDuration int64
}

// NewPaymentBuilder returns a builder minting ids from ids.
func NewPaymentBuilder(ids *ledger.IDGenerator, fee uint64) *PaymentBuilder {
	if fee == 0 {
		fee = DefaultPaymentFee
	}
	return &PaymentBuilder{ids: ids, fee: fee, validDuration: ledger.DefaultValidDuration}
}

// Build returns an unsigned payment of amount from payer to node.
func (b *PaymentBuilder) Build(payer ledger.AccountID, node ledger.Node, amount uint64) (*ledger.Transaction, error) {
	if b == nil || b.ids == nil {
		return nil, errors.New("fees: payment builder not configured")
	}
	return ledger.NewTransaction(ledger.TransactionBody{
		TransactionID:  b.ids.Next(payer),
		NodeAccount:    node.Account,
		TransactionFee: b.fee,
		ValidDuration:  b.validDuration,
		Memo:           "query payment",
		CryptoTransfer: &ledger.CryptoTransfer{Transfers: []ledger.AccountAmount{
			{Account: payer, Amount: -int64(amount)},
			{Account: node.Account, Amount: int64(amount)},
		}},
	})
}
