// Package config loads the transaction probe configuration from TOML or YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the full probe configuration. Durations are strings in
// time.ParseDuration syntax.
type Config struct {
	Network   Network   `toml:"network" yaml:"network"`
	Payer     Payer     `toml:"payer" yaml:"payer"`
	Fees      Fees      `toml:"fees" yaml:"fees"`
	Polling   Polling   `toml:"polling" yaml:"polling"`
	Submit    Submit    `toml:"submit" yaml:"submit"`
	Journal   Journal   `toml:"journal" yaml:"journal"`
	Keys      Keys      `toml:"keys" yaml:"keys"`
	Logging   Logging   `toml:"logging" yaml:"logging"`
	Telemetry Telemetry `toml:"telemetry" yaml:"telemetry"`
	HTTP      HTTP      `toml:"http" yaml:"http"`
}

// Node is one ledger node: its account and its gRPC address.
type Node struct {
	Account string `toml:"account" yaml:"account"`
	Address string `toml:"address" yaml:"address"`
}

// Network lists the nodes to talk to. With LocalNodes set the probe starts
// an in-process network of that size instead and Nodes is ignored.
type Network struct {
	Nodes         []Node `toml:"nodes" yaml:"nodes"`
	LocalNodes    int    `toml:"local_nodes" yaml:"local_nodes"`
	Insecure      bool   `toml:"insecure" yaml:"insecure"`
	CAFile        string `toml:"ca_file" yaml:"ca_file"`
	CertFile      string `toml:"cert_file" yaml:"cert_file"`
	KeyFile       string `toml:"key_file" yaml:"key_file"`
	CallTimeout   string `toml:"call_timeout" yaml:"call_timeout"`
	UserAgent     string `toml:"user_agent" yaml:"user_agent"`
	// AuthSecretEnv names the variable holding the shared secret for bearer
	// tokens. Empty sends no token.
	AuthSecretEnv string `toml:"auth_secret_env" yaml:"auth_secret_env"`
	AuthIssuer    string `toml:"auth_issuer" yaml:"auth_issuer"`
}

// Payer names the paying account and where its key lives. Keystore holds a
// v3 keystore (secp256k1 only); KeyFile a hex private key of KeyType.
type Payer struct {
	Account       string `toml:"account" yaml:"account"`
	KeyType       string `toml:"key_type" yaml:"key_type"`
	Keystore      string `toml:"keystore" yaml:"keystore"`
	KeyFile       string `toml:"key_file" yaml:"key_file"`
	PassphraseEnv string `toml:"passphrase_env" yaml:"passphrase_env"`
}

type Fees struct {
	TransactionFee uint64 `toml:"transaction_fee" yaml:"transaction_fee"`
	QueryPayment   uint64 `toml:"query_payment" yaml:"query_payment"`
	AutoFee        bool   `toml:"auto_fee" yaml:"auto_fee"`
}

type Polling struct {
	MaxAttempts          int    `toml:"max_attempts" yaml:"max_attempts"`
	Interval             string `toml:"interval" yaml:"interval"`
	Backoff              string `toml:"backoff" yaml:"backoff"`
	MaxInterval          string `toml:"max_interval" yaml:"max_interval"`
	TransportErrorBudget int    `toml:"transport_error_budget" yaml:"transport_error_budget"`
}

type Submit struct {
	RetryPrechecks []string `toml:"retry_prechecks" yaml:"retry_prechecks"`
	MaxRetries     int      `toml:"max_retries" yaml:"max_retries"`
	Fanout         int      `toml:"fanout" yaml:"fanout"`
	// RatePerSecond limits fan-out submissions. Zero means unlimited.
	RatePerSecond float64 `toml:"rate_per_second" yaml:"rate_per_second"`
	Burst         int     `toml:"burst" yaml:"burst"`
}

type Journal struct {
	// DSN is a postgres:// URL or a sqlite file path. Empty disables the
	// journal.
	DSN string `toml:"dsn" yaml:"dsn"`
}

type Keys struct {
	// Path of the key store. Empty keeps keys in memory.
	Path    string `toml:"path" yaml:"path"`
	// Backend is "leveldb" (a directory, the default) or "bolt" (a single file).
	Backend string `toml:"backend" yaml:"backend"`
}

type Logging struct {
	Level      string `toml:"level" yaml:"level"`
	Env        string `toml:"env" yaml:"env"`
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
}

type Telemetry struct {
	Endpoint    string  `toml:"endpoint" yaml:"endpoint"`
	Insecure    bool    `toml:"insecure" yaml:"insecure"`
	Headers     string  `toml:"headers" yaml:"headers"`
	Traces      bool    `toml:"traces" yaml:"traces"`
	Metrics     bool    `toml:"metrics" yaml:"metrics"`
	SampleRatio float64 `toml:"sample_ratio" yaml:"sample_ratio"`
}

type HTTP struct {
	// Listen is the address serving /metrics, /healthz and /journal. Empty
	// disables the listener.
	Listen string `toml:"listen" yaml:"listen"`
}

// Default returns the configuration used when a field is left unset.
func Default() Config {
	return Config{
		Network: Network{CallTimeout: "10s", UserAgent: "txprobe"},
		Payer:   Payer{KeyType: "secp256k1", PassphraseEnv: "TXPROBE_KEYSTORE_PASSPHRASE"},
		Fees:    Fees{TransactionFee: 100_000},
		Polling: Polling{
			MaxAttempts:          60,
			Interval:             "1s",
			Backoff:              "fixed",
			MaxInterval:          "16s",
			TransportErrorBudget: 10,
		},
		Submit:  Submit{RetryPrechecks: []string{"BUSY"}, MaxRetries: 3, Fanout: 8},
		Logging: Logging{Level: "info"},
	}
}

// Load reads path, choosing the decoder by extension (.toml, .yaml, .yml),
// then normalizes and validates the result. Unknown keys are rejected.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Config{}, errors.New("config path required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = decodeTOML(data, &cfg)
	case ".yaml", ".yml":
		err = decodeYAML(data, &cfg)
	default:
		return Config{}, fmt.Errorf("config %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func decodeTOML(data []byte, cfg *Config) error {
	meta, err := toml.Decode(string(data), cfg)
	if err != nil {
		return err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		names := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			names = append(names, key.String())
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(names, ", "))
	}
	return nil
}

func decodeYAML(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (cfg *Config) normalize() {
	for i := range cfg.Network.Nodes {
		cfg.Network.Nodes[i].Account = strings.TrimSpace(cfg.Network.Nodes[i].Account)
		cfg.Network.Nodes[i].Address = strings.TrimSpace(cfg.Network.Nodes[i].Address)
	}
	cfg.Payer.Account = strings.TrimSpace(cfg.Payer.Account)
	cfg.Payer.KeyType = strings.ToLower(strings.TrimSpace(cfg.Payer.KeyType))
	cfg.Payer.Keystore = strings.TrimSpace(cfg.Payer.Keystore)
	cfg.Payer.KeyFile = strings.TrimSpace(cfg.Payer.KeyFile)
	cfg.Polling.Backoff = strings.ToLower(strings.TrimSpace(cfg.Polling.Backoff))
	for i, status := range cfg.Submit.RetryPrechecks {
		cfg.Submit.RetryPrechecks[i] = strings.ToUpper(strings.TrimSpace(status))
	}
	cfg.Network.AuthSecretEnv = strings.TrimSpace(cfg.Network.AuthSecretEnv)
	cfg.Network.AuthIssuer = strings.TrimSpace(cfg.Network.AuthIssuer)
	cfg.Journal.DSN = strings.TrimSpace(cfg.Journal.DSN)
	cfg.Keys.Path = strings.TrimSpace(cfg.Keys.Path)
	cfg.Keys.Backend = strings.ToLower(strings.TrimSpace(cfg.Keys.Backend))
	cfg.HTTP.Listen = strings.TrimSpace(cfg.HTTP.Listen)
}

func parseDuration(field, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", field)
	}
	return d, nil
}
