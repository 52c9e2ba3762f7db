// Package txcache remembers recently submitted transaction ids so callers can
// tell whether a receipt or record is still retrievable and detect
// resubmissions.
package txcache

import (
	"context"
	"sync"
	"time"

	cacheimpl "github.com/Code-Hex/go-generics-cache"

	"ledgerclient/ledger"
)

const (
	// DefaultReceiptTTL is how long the ledger keeps receipts.
	DefaultReceiptTTL = 180 * time.Second
	// DefaultRecordTTL is how long the ledger keeps records.
	DefaultRecordTTL = time.Hour
)

// Entry is one remembered submission.
type Entry struct {
	ID          ledger.TransactionID
	Node        ledger.Node
	SubmittedAt time.Time
}

// Cache maps transaction ids to the node they were submitted to.
type Cache struct {
	mu         sync.Mutex
	entries    *cacheimpl.Cache[ledger.TransactionID, Entry]
	cancel     context.CancelFunc
	receiptTTL time.Duration
	recordTTL  time.Duration
	now        func() time.Time
}

// Option customises a Cache.
type Option func(*Cache)

func WithReceiptTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.receiptTTL = d
		}
	}
}

func WithRecordTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.recordTTL = d
		}
	}
}

// WithClock sets the clock entry ages are measured against.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New returns an empty cache. Entries are evicted once older than the
// record TTL.
func New(opts ...Option) *Cache {
	c := &Cache{receiptTTL: DefaultReceiptTTL, recordTTL: DefaultRecordTTL, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	if c.recordTTL < c.receiptTTL {
		c.recordTTL = c.receiptTTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.entries = cacheimpl.NewContext[ledger.TransactionID, Entry](ctx,
		cacheimpl.WithJanitorInterval[ledger.TransactionID, Entry](c.recordTTL))
	return c
}

// Close stops background eviction.
func (c *Cache) Close() {
	if c == nil || c.cancel == nil {
		return
	}
	c.cancel()
}

// Put remembers id as submitted to node. When id is already present and
// younger than the record TTL the existing entry is returned with duplicate
// set and the cache is left unchanged.
func (c *Cache) Put(id ledger.TransactionID, node ledger.Node) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if prev, ok := c.entries.Get(id); ok && now.Sub(prev.SubmittedAt) < c.recordTTL {
		return prev, true
	}
	c.entries.Set(id, Entry{ID: id, Node: node, SubmittedAt: now}, cacheimpl.WithExpiration(c.recordTTL))
	return Entry{}, false
}

// Get returns the entry for id while it is younger than the record TTL.
func (c *Cache) Get(id ledger.TransactionID) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries.Get(id)
	if !ok || c.now().Sub(entry.SubmittedAt) >= c.recordTTL {
		return Entry{}, false
	}
	return entry, true
}

// ReceiptExpected reports whether the ledger should still hold a receipt.
func (c *Cache) ReceiptExpected(id ledger.TransactionID) bool {
	entry, ok := c.Get(id)
	return ok && c.now().Sub(entry.SubmittedAt) < c.receiptTTL
}

// RecordExpected reports whether the ledger should still hold a record.
func (c *Cache) RecordExpected(id ledger.TransactionID) bool {
	_, ok := c.Get(id)
	return ok
}

// Len returns the number of live entries, including ones past their record
// TTL that have not been evicted yet.
func (c *Cache) Len() int {
	return c.entries.Len()
}
