// Package ledger is the gRPC transport for ledger nodes. Client implements
// ledger.Service over a connection; RegisterService exposes any
// ledger.Service to remote clients.
package ledger

import (
	"context"

	"google.golang.org/grpc"

	"ledgerclient/ledger"
	"ledgerclient/sdk/internal/dial"
)

// Client talks to one ledger node.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to target. Without options the connection uses TLS against
// the system roots.
func Dial(ctx context.Context, target string, opts ...dial.Option) (*Client, error) {
	dialOpts, err := dial.Resolve(opts...)
	if err != nil {
		return nil, err
	}
	dialOpts = append(dialOpts, grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)))
	conn, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// New wraps an existing connection. Calls are sent with the JSON codec.
func New(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Conn exposes the underlying connection.
func (c *Client) Conn() *grpc.ClientConn {
	if c == nil {
		return nil
	}
	return c.conn
}

// SubmitTransaction sends tx to the RPC matching its body kind.
func (c *Client) SubmitTransaction(ctx context.Context, tx *ledger.Transaction) (*ledger.TransactionResponse, error) {
	if c == nil || c.conn == nil {
		return nil, grpc.ErrClientConnClosing
	}
	r, err := transactionRoute(&tx.Body)
	if err != nil {
		return nil, err
	}
	resp := new(ledger.TransactionResponse)
	if err := c.conn.Invoke(ctx, r.fullMethod(), tx, resp, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return resp, nil
}

// Query sends q to the RPC matching its kind.
func (c *Client) Query(ctx context.Context, q *ledger.Query) (*ledger.Response, error) {
	if c == nil || c.conn == nil {
		return nil, grpc.ErrClientConnClosing
	}
	r, err := queryRoute(q.Kind)
	if err != nil {
		return nil, err
	}
	resp := new(ledger.Response)
	if err := c.conn.Invoke(ctx, r.fullMethod(), q, resp, grpc.CallContentSubtype(CodecName)); err != nil {
		return nil, err
	}
	return resp, nil
}

var _ ledger.Service = (*Client)(nil)
