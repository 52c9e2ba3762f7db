package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ledgerclient/confirm"
	"ledgerclient/ledger"
)

func writeConfig(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "probe.toml", `
[network]
insecure = true
call_timeout = "3s"

[[network.nodes]]
account = "0.0.3"
address = "node-a:50211"

[[network.nodes]]
account = "0.0.4"
address = "node-b:50211"

[payer]
account = "0.0.1001"
keystore = "./payer.keystore"

[polling]
max_attempts = 20
interval = "250ms"
backoff = "exponential"
max_interval = "4s"

[submit]
retry_prechecks = ["busy", "PLATFORM_TRANSACTION_NOT_CREATED"]
fanout = 4
rate_per_second = 50
burst = 10
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	nodes, err := cfg.NodeList()
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	require.Equal(t, ledger.AccountID{Num: 4}, nodes[1].Account)
	require.Equal(t, "node-b:50211", nodes[1].Address)

	payer, err := cfg.PayerAccount()
	require.NoError(t, err)
	require.Equal(t, ledger.AccountID{Num: 1001}, payer)

	policy, err := cfg.Policy()
	require.NoError(t, err)
	require.Equal(t, confirm.Policy{
		MaxAttempts:          20,
		Interval:             250 * time.Millisecond,
		Backoff:              confirm.Exponential,
		MaxInterval:          4 * time.Second,
		TransportErrorBudget: 10,
	}, policy)

	statuses, err := cfg.RetryStatuses()
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	require.Equal(t, "BUSY", statuses[0].String())

	timeout, err := cfg.CallTimeout()
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, timeout)
	require.Equal(t, uint64(100_000), cfg.Fees.TransactionFee)
}

func TestLoadTOMLRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "probe.toml", `
[network]
local_nodes = 3
bootnodes = ["x"]
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "network.bootnodes")
}

func TestLoadYAMLLocalNetwork(t *testing.T) {
	path := writeConfig(t, "probe.yaml", `
network:
  local_nodes: 3
payer:
  key_type: ed25519
fees:
  auto_fee: true
journal:
  dsn: ./journal.db
http:
  listen: 127.0.0.1:9464
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Network.LocalNodes)
	require.True(t, cfg.Fees.AutoFee)
	require.Equal(t, "./journal.db", cfg.Journal.DSN)
	require.Equal(t, "127.0.0.1:9464", cfg.HTTP.Listen)
	require.Equal(t, []string{"BUSY"}, cfg.Submit.RetryPrechecks)
}

func TestLoadYAMLRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "probe.yml", "network:\n  local_nodes: 1\n  peers: 2\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"no nodes":         "[payer]\naccount = \"0.0.2\"\nkey_file = \"k\"\n",
		"bad node":         "[[network.nodes]]\naccount = \"x\"\naddress = \"a\"\n[payer]\naccount = \"0.0.2\"\nkey_file = \"k\"\n",
		"dup node":         "[[network.nodes]]\naccount = \"0.0.3\"\naddress = \"a\"\n[[network.nodes]]\naccount = \"0.0.3\"\naddress = \"b\"\n[payer]\naccount = \"0.0.2\"\nkey_file = \"k\"\n",
		"no payer key":     "[[network.nodes]]\naccount = \"0.0.3\"\naddress = \"a\"\n[payer]\naccount = \"0.0.2\"\n",
		"keystore ed":      "[network]\nlocal_nodes = 1\n[payer]\nkey_type = \"ed25519\"\nkeystore = \"k\"\n",
		"bad backoff":      "[network]\nlocal_nodes = 1\n[polling]\nbackoff = \"linear\"\n",
		"bad interval":     "[network]\nlocal_nodes = 1\n[polling]\ninterval = \"soon\"\n",
		"zero attempts":    "[network]\nlocal_nodes = 1\n[polling]\nmax_attempts = 0\n",
		"bad status":       "[network]\nlocal_nodes = 1\n[submit]\nretry_prechecks = [\"NOPE\"]\n",
		"ok is no retry":   "[network]\nlocal_nodes = 1\n[submit]\nretry_prechecks = [\"OK\"]\n",
		"dup is no retry":  "[network]\nlocal_nodes = 1\n[submit]\nretry_prechecks = [\"BUSY\", \"DUPLICATE_TRANSACTION\"]\n",
		"uncapped backoff": "[network]\nlocal_nodes = 1\n[polling]\nbackoff = \"exponential\"\nmax_interval = \"0s\"\n",
		"half tls":         "[network]\nlocal_nodes = 1\ncert_file = \"c\"\n",
		"keys backend":     "[network]\nlocal_nodes = 1\n[keys]\npath = \"k\"\nbackend = \"redis\"\n",
		"sample ratio":     "[network]\nlocal_nodes = 1\n[telemetry]\nsample_ratio = 2.0\n",
		"negative fanout":  "[network]\nlocal_nodes = 1\n[submit]\nfanout = -1\n",
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "probe.toml", contents))
			require.Error(t, err)
		})
	}
}

func TestLoadRejectsUnsupportedExtension(t *testing.T) {
	_, err := Load(writeConfig(t, "probe.json", "{}"))
	require.ErrorContains(t, err, "unsupported extension")

	_, err = Load("")
	require.Error(t, err)
}
