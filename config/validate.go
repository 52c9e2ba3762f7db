package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"ledgerclient/confirm"
	"ledgerclient/crypto"
	"ledgerclient/ledger"
)

// Validate checks every field that the probe resolves at startup.
func (cfg Config) Validate() error {
	if cfg.Network.LocalNodes < 0 {
		return errors.New("network.local_nodes must not be negative")
	}
	if cfg.Network.LocalNodes == 0 {
		if len(cfg.Network.Nodes) == 0 {
			return errors.New("network.nodes: at least one node required")
		}
		if _, err := cfg.NodeList(); err != nil {
			return err
		}
		if _, err := cfg.PayerAccount(); err != nil {
			return err
		}
		if cfg.Payer.Keystore == "" && cfg.Payer.KeyFile == "" {
			return errors.New("payer: keystore or key_file required")
		}
	}
	if cfg.Payer.Keystore != "" && cfg.Payer.KeyFile != "" {
		return errors.New("payer: keystore and key_file are mutually exclusive")
	}
	keyType, err := crypto.ParseKeyType(cfg.Payer.KeyType)
	if err != nil {
		return fmt.Errorf("payer.key_type: %w", err)
	}
	if cfg.Payer.Keystore != "" && keyType != crypto.KeyTypeSecp256k1 {
		return errors.New("payer: keystore files hold secp256k1 keys only")
	}
	if (cfg.Network.CertFile == "") != (cfg.Network.KeyFile == "") {
		return errors.New("network: cert_file and key_file must be set together")
	}
	if _, err := cfg.CallTimeout(); err != nil {
		return err
	}
	if _, err := cfg.Policy(); err != nil {
		return err
	}
	if _, err := cfg.RetryStatuses(); err != nil {
		return err
	}
	if cfg.Submit.MaxRetries < 0 {
		return errors.New("submit.max_retries must not be negative")
	}
	if cfg.Submit.Fanout < 0 {
		return errors.New("submit.fanout must not be negative")
	}
	if cfg.Submit.RatePerSecond < 0 || cfg.Submit.Burst < 0 {
		return errors.New("submit: rate_per_second and burst must not be negative")
	}
	switch cfg.Keys.Backend {
	case "", "leveldb", "bolt":
	default:
		return fmt.Errorf("keys.backend: unknown backend %q", cfg.Keys.Backend)
	}
	if r := cfg.Telemetry.SampleRatio; r < 0 || r > 1 {
		return errors.New("telemetry.sample_ratio must be within [0,1]")
	}
	return nil
}

// AuthSecret reads the bearer token secret from the configured variable. It
// returns nil when no variable is configured.
func (cfg Config) AuthSecret() ([]byte, error) {
	if cfg.Network.AuthSecretEnv == "" {
		return nil, nil
	}
	value := strings.TrimSpace(os.Getenv(cfg.Network.AuthSecretEnv))
	if value == "" {
		return nil, fmt.Errorf("network.auth_secret_env: %s is not set", cfg.Network.AuthSecretEnv)
	}
	return []byte(value), nil
}

// NodeList resolves the configured nodes.
func (cfg Config) NodeList() ([]ledger.Node, error) {
	nodes := make([]ledger.Node, 0, len(cfg.Network.Nodes))
	seen := make(map[ledger.AccountID]struct{}, len(cfg.Network.Nodes))
	for i, n := range cfg.Network.Nodes {
		account, err := ledger.ParseAccountID(n.Account)
		if err != nil {
			return nil, fmt.Errorf("network.nodes[%d].account: %w", i, err)
		}
		if n.Address == "" {
			return nil, fmt.Errorf("network.nodes[%d].address required", i)
		}
		if _, dup := seen[account]; dup {
			return nil, fmt.Errorf("network.nodes[%d]: duplicate node account %s", i, account)
		}
		seen[account] = struct{}{}
		nodes = append(nodes, ledger.Node{Account: account, Address: n.Address})
	}
	return nodes, nil
}

// PayerAccount resolves payer.account.
func (cfg Config) PayerAccount() (ledger.AccountID, error) {
	account, err := ledger.ParseAccountID(cfg.Payer.Account)
	if err != nil {
		return ledger.AccountID{}, fmt.Errorf("payer.account: %w", err)
	}
	return account, nil
}

// PayerKeyType resolves payer.key_type.
func (cfg Config) PayerKeyType() crypto.KeyType {
	t, err := crypto.ParseKeyType(cfg.Payer.KeyType)
	if err != nil {
		return crypto.KeyTypeSecp256k1
	}
	return t
}

// CallTimeout resolves network.call_timeout. Zero means no per-call bound.
func (cfg Config) CallTimeout() (time.Duration, error) {
	return parseDuration("network.call_timeout", cfg.Network.CallTimeout)
}

// Policy builds the receipt polling policy.
func (cfg Config) Policy() (confirm.Policy, error) {
	interval, err := parseDuration("polling.interval", cfg.Polling.Interval)
	if err != nil {
		return confirm.Policy{}, err
	}
	maxInterval, err := parseDuration("polling.max_interval", cfg.Polling.MaxInterval)
	if err != nil {
		return confirm.Policy{}, err
	}
	backoff, err := confirm.ParseBackoff(cfg.Polling.Backoff)
	if err != nil {
		return confirm.Policy{}, fmt.Errorf("polling.backoff: %w", err)
	}
	policy := confirm.Policy{
		MaxAttempts:          cfg.Polling.MaxAttempts,
		Interval:             interval,
		Backoff:              backoff,
		MaxInterval:          maxInterval,
		TransportErrorBudget: cfg.Polling.TransportErrorBudget,
	}
	if err := policy.Validate(); err != nil {
		return confirm.Policy{}, fmt.Errorf("polling: %w", err)
	}
	return policy, nil
}

// RetryStatuses resolves submit.retry_prechecks.
func (cfg Config) RetryStatuses() ([]ledger.Status, error) {
	statuses := make([]ledger.Status, 0, len(cfg.Submit.RetryPrechecks))
	for _, name := range cfg.Submit.RetryPrechecks {
		status, err := ledger.ParseStatus(name)
		if err != nil {
			return nil, fmt.Errorf("submit.retry_prechecks: %w", err)
		}
		switch status {
		case ledger.StatusOK:
			return nil, errors.New("submit.retry_prechecks: OK is not a rejection")
		case ledger.StatusDuplicateTransaction:
			return nil, errors.New("submit.retry_prechecks: DUPLICATE_TRANSACTION must not be retried with a fresh id")
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
