package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"ledgerclient/config"
	"ledgerclient/confirm"
	"ledgerclient/crypto"
	"ledgerclient/journal"
	"ledgerclient/keys"
	"ledgerclient/ledger"
	"ledgerclient/lifecycle"
	"ledgerclient/observability"
	ledgersdk "ledgerclient/sdk/ledger"
	"ledgerclient/submit"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProbeAgainstLocalNetwork(t *testing.T) {
	logger := discardLogger()
	store := keys.NewStore()
	local, err := startLocal(3, crypto.KeyTypeSecp256k1, store, logger)
	require.NoError(t, err)
	t.Cleanup(local.Stop)

	jr, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = jr.Close() })

	pool := ledgersdk.NewPool(ledgersdk.WithInsecure(), ledgersdk.WithCallTimeout(5*time.Second))
	t.Cleanup(func() { _ = pool.Close() })

	registry := prometheus.NewRegistry()
	client, err := lifecycle.New(submit.New(pool), store, local.nodes,
		lifecycle.WithLogger(logger),
		lifecycle.WithMetrics(observability.NewLifecycleMetrics(registry)),
		lifecycle.WithJournal(jr),
		lifecycle.WithPolicy(confirm.Policy{MaxAttempts: 20, Interval: 5 * time.Millisecond, TransportErrorBudget: 2}),
		lifecycle.WithFanout(3),
	)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	p := &probe{client: client, store: store, payer: local.payer, logger: logger, policy: 20, batch: 4}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	report, err := p.Run(ctx)
	require.NoError(t, err)

	require.Equal(t, local.payer.String(), report.Payer)
	require.NotEmpty(t, report.Account)
	require.Equal(t, 4, report.Batch)
	require.Zero(t, report.BatchFail)
	names := make([]string, 0, len(report.Steps))
	for _, s := range report.Steps {
		names = append(names, s.Name)
	}
	require.Equal(t, []string{
		"create-threshold-account",
		"two-of-three-transfer",
		"one-of-three-transfer",
		"duplicate-across-nodes",
		"batch-transfers",
	}, names)
	// 50_000_000 initial, minus one successful 1_000 transfer, plus 10 and
	// the batch 1+2+3+4.
	require.Equal(t, uint64(50_000_000-1_000+10+10), report.Balance)

	router := newRouter(registry, jr)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/journal/summary")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary map[string]int64
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	require.GreaterOrEqual(t, summary["success"], int64(7))
	require.Equal(t, int64(1), summary["failed"])

	txID := report.Steps[0].TransactionID
	resp, err = http.Get(srv.URL + "/journal/tx/" + txID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rows []journal.Submission
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
	require.Len(t, rows, 1)
	require.Equal(t, "SUCCESS", rows[0].Status)
	require.Len(t, rows[0].BodyHash, 64)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Contains(t, string(body), "ledger_client_prechecks_total")
}

func TestRouterWithoutJournal(t *testing.T) {
	srv := httptest.NewServer(newRouter(prometheus.NewRegistry(), nil))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/journal/")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouterRejectsBadLimit(t *testing.T) {
	jr, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = jr.Close() })
	srv := httptest.NewServer(newRouter(prometheus.NewRegistry(), jr))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/journal/?limit=abc")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/journal/tx/0.0.2@1.000000001")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestClientOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Network.LocalNodes = 1
	cfg.Submit.RatePerSecond = 5
	opts, err := dialOptions(cfg, nil, ledger.AccountID{Num: 2})
	require.NoError(t, err)
	require.Len(t, opts, 3)
	require.Len(t, clientOptions(cfg, discardLogger(), nil, nil), 10)

	opts, err = dialOptions(cfg, []byte("shared"), ledger.AccountID{Num: 2})
	require.NoError(t, err)
	require.Len(t, opts, 4)
}

func TestAuthSecretFromEnvironment(t *testing.T) {
	cfg := config.Default()
	secret, err := cfg.AuthSecret()
	require.NoError(t, err)
	require.Nil(t, secret)

	cfg.Network.AuthSecretEnv = "TXPROBE_TEST_AUTH_SECRET"
	t.Setenv("TXPROBE_TEST_AUTH_SECRET", "")
	_, err = cfg.AuthSecret()
	require.Error(t, err)

	t.Setenv("TXPROBE_TEST_AUTH_SECRET", "shared")
	secret, err = cfg.AuthSecret()
	require.NoError(t, err)
	require.Equal(t, []byte("shared"), secret)
}

func TestOpenStoreBackends(t *testing.T) {
	for _, backend := range []string{"leveldb", "bolt"} {
		t.Run(backend, func(t *testing.T) {
			cfg := config.Keys{Path: filepath.Join(t.TempDir(), "keys"), Backend: backend}
			store, err := openStore(cfg)
			require.NoError(t, err)
			leaf, err := store.Generate(crypto.KeyTypeEd25519)
			require.NoError(t, err)
			require.NoError(t, store.Close())

			store, err = openStore(cfg)
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			_, ok := store.Lookup(leaf)
			require.True(t, ok)
		})
	}

	store, err := openStore(config.Keys{})
	require.NoError(t, err)
	require.Zero(t, store.Len())
}
