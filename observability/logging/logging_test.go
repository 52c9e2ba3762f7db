package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerRenamesKeysAndMasksSecrets(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := newLogger(&buf, Options{Service: "txprobe", Env: "test", Level: "debug"})
	logger.Debug("keystore unlocked",
		slog.String("passphrase", "hunter2"),
		slog.String("tx_id", "0.0.2@1.000000000"),
		Secret("payer_key_hex", "abcd"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "keystore unlocked", line["message"])
	require.Equal(t, "DEBUG", line["severity"])
	require.Contains(t, line, "timestamp")
	require.Equal(t, "txprobe", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, RedactedValue, line["passphrase"])
	require.Equal(t, RedactedValue, line["payer_key_hex"])
	require.Equal(t, "0.0.2@1.000000000", line["tx_id"])
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
	require.True(t, IsSensitive(" Password "))
	require.Contains(t, SensitiveKeys(), "mnemonic")
}

func TestSetupWritesRotatingFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := t.TempDir() + "/probe.log"
	logger, closer := Setup(Options{Service: "txprobe", File: path})
	logger.Info("hello")
	require.NoError(t, closer.Close())
	require.FileExists(t, path)
}
