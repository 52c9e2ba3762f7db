package txcache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ledgerclient/ledger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func txID(n int32) ledger.TransactionID {
	return ledger.TransactionID{Payer: ledger.AccountID{Num: 2}, ValidStart: ledger.Timestamp{Seconds: 100, Nanos: n}}
}

func TestPutDetectsDuplicates(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := New(WithClock(clock.Now))
	defer c.Close()

	nodeA := ledger.Node{Account: ledger.AccountID{Num: 3}}
	nodeB := ledger.Node{Account: ledger.AccountID{Num: 4}}

	_, dup := c.Put(txID(1), nodeA)
	require.False(t, dup)
	prev, dup := c.Put(txID(1), nodeB)
	require.True(t, dup)
	require.Equal(t, nodeA, prev.Node)

	entry, ok := c.Get(txID(1))
	require.True(t, ok)
	require.Equal(t, nodeA, entry.Node)

	_, dup = c.Put(txID(2), nodeB)
	require.False(t, dup)
	require.Equal(t, 2, c.Len())
}

func TestReceiptAndRecordWindows(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := New(WithClock(clock.Now), WithReceiptTTL(3*time.Minute), WithRecordTTL(time.Hour))
	defer c.Close()

	c.Put(txID(1), ledger.Node{Account: ledger.AccountID{Num: 3}})
	require.True(t, c.ReceiptExpected(txID(1)))
	require.True(t, c.RecordExpected(txID(1)))

	clock.Advance(3 * time.Minute)
	require.False(t, c.ReceiptExpected(txID(1)))
	require.True(t, c.RecordExpected(txID(1)))

	clock.Advance(time.Hour)
	require.False(t, c.RecordExpected(txID(1)))
	_, dup := c.Put(txID(1), ledger.Node{Account: ledger.AccountID{Num: 3}})
	require.False(t, dup)

	require.False(t, c.ReceiptExpected(txID(9)))
}

func TestConcurrentPutReportsOneWinner(t *testing.T) {
	c := New()
	defer c.Close()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, dup := c.Put(txID(7), ledger.Node{}); !dup {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}
