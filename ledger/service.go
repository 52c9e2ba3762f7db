package ledger

import "context"

// Service is the request/response surface of a single ledger node.
// SubmitTransaction returns the precheck verdict; a non-nil error means the
// call itself failed and no verdict exists.
type Service interface {
	SubmitTransaction(ctx context.Context, tx *Transaction) (*TransactionResponse, error)
	Query(ctx context.Context, q *Query) (*Response, error)
}
