package ledger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// TransactionID identifies one submission attempt: the paying account and
// the instant the transaction becomes valid. Unique per payer per instant.
type TransactionID struct {
	Payer      AccountID `json:"accountID"`
	ValidStart Timestamp `json:"transactionValidStart"`
}

// String renders the id as payer@seconds.nanos.
func (id TransactionID) String() string {
	return id.Payer.String() + "@" + id.ValidStart.String()
}

// IsZero reports whether the id is unset.
func (id TransactionID) IsZero() bool { return id == TransactionID{} }

// ParseTransactionID parses the String form.
func ParseTransactionID(raw string) (TransactionID, error) {
	payerPart, stampPart, ok := strings.Cut(strings.TrimSpace(raw), "@")
	if !ok {
		return TransactionID{}, fmt.Errorf("ledger: invalid transaction id %q", raw)
	}
	payer, err := ParseAccountID(payerPart)
	if err != nil {
		return TransactionID{}, err
	}
	secPart, nanoPart, ok := strings.Cut(stampPart, ".")
	if !ok {
		return TransactionID{}, fmt.Errorf("ledger: invalid transaction id %q", raw)
	}
	secs, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return TransactionID{}, fmt.Errorf("ledger: invalid valid-start seconds: %w", err)
	}
	nanos, err := strconv.ParseInt(nanoPart, 10, 32)
	if err != nil || nanos < 0 || nanos >= int64(time.Second) {
		return TransactionID{}, errors.New("ledger: invalid valid-start nanos")
	}
	return TransactionID{Payer: payer, ValidStart: Timestamp{Seconds: secs, Nanos: int32(nanos)}}, nil
}

// DefaultWindBack offsets valid-start into the past so that modest clock skew
// between client and node does not yield INVALID_TRANSACTION_START.
const DefaultWindBack = 2 * time.Second

// IDGenerator mints TransactionIDs whose valid-start instants strictly
// increase, so no two ids from one generator share an instant.
type IDGenerator struct {
	mu       sync.Mutex
	last     time.Time
	windBack time.Duration
	now      func() time.Time
}

// IDOption customises an IDGenerator.
type IDOption func(*IDGenerator)

// WithWindBack sets how far valid-start is moved into the past.
func WithWindBack(d time.Duration) IDOption {
	return func(g *IDGenerator) { g.windBack = d }
}

// WithIDClock sets the clock used to derive valid-start.
func WithIDClock(now func() time.Time) IDOption {
	return func(g *IDGenerator) { g.now = now }
}

func NewIDGenerator(opts ...IDOption) *IDGenerator {
	g := &IDGenerator{windBack: DefaultWindBack, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// Next returns a fresh id for payer.
func (g *IDGenerator) Next(payer AccountID) TransactionID {
	g.mu.Lock()
	defer g.mu.Unlock()
	start := g.now().Add(-g.windBack)
	if !start.After(g.last) {
		start = g.last.Add(time.Nanosecond)
	}
	g.last = start
	return TransactionID{Payer: payer, ValidStart: TimestampOf(start)}
}
