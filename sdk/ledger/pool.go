package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"ledgerclient/ledger"
	"ledgerclient/sdk/internal/dial"
)

// Pool keeps one connection per node, dialled on first use.
type Pool struct {
	opts []dial.Option

	mu      sync.Mutex
	clients map[ledger.AccountID]*Client
	closed  bool
}

// NewPool returns a pool dialling nodes with opts.
func NewPool(opts ...dial.Option) *Pool {
	return &Pool{opts: opts, clients: make(map[ledger.AccountID]*Client)}
}

// Service returns the client for node, dialling it if needed.
func (p *Pool) Service(node ledger.Node) (ledger.Service, error) {
	if strings.TrimSpace(node.Address) == "" {
		return nil, fmt.Errorf("sdk/ledger: node %s has no address", node.Account)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.New("sdk/ledger: pool closed")
	}
	if c, ok := p.clients[node.Account]; ok {
		return c, nil
	}
	c, err := Dial(context.Background(), node.Address, p.opts...)
	if err != nil {
		return nil, fmt.Errorf("sdk/ledger: dial %s: %w", node, err)
	}
	p.clients[node.Account] = c
	return c, nil
}

// Close closes every connection. The pool cannot be reused.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	var errs []error
	for id, c := range p.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(p.clients, id)
	}
	return errors.Join(errs...)
}
