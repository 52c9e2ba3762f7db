package lifecycle

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"ledgerclient/keys"
	"ledgerclient/ledger"
	"ledgerclient/ledger/ledgertest"
	"ledgerclient/submit"
)

func TestTruncateKeepsRunesWhole(t *testing.T) {
	require.Equal(t, "short", truncate("short", 512))

	msg := strings.Repeat("a", 511) + "é and more"
	got := truncate(msg, 512)
	require.True(t, utf8.ValidString(got))
	require.Equal(t, strings.Repeat("a", 511), got)

	got = truncate(strings.Repeat("€", 200), 512)
	require.True(t, utf8.ValidString(got))
	require.LessOrEqual(t, len(got), 512)
	require.Equal(t, 510, len(got))
}

func TestDuplicateIsNeverRetried(t *testing.T) {
	net := ledgertest.New()
	c, err := New(submit.New(net), keys.NewStore(), net.Nodes(),
		WithRetryPrechecks(ledger.StatusBusy, ledger.StatusDuplicateTransaction, ledger.StatusOK))
	require.NoError(t, err)
	t.Cleanup(c.Close)

	require.True(t, c.retryPrechecks[ledger.StatusBusy])
	require.False(t, c.retryPrechecks[ledger.StatusDuplicateTransaction])
	require.False(t, c.retryPrechecks[ledger.StatusOK])
}
