package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" api-key = abc ,broken, =x,tenant=ledger")
	require.Equal(t, map[string]string{"api-key": "abc", "tenant": "ledger"}, got)
}

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestInitWithoutExportersOnlyInstallsPropagators(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "txprobe"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitRejectsBadSampleRatio(t *testing.T) {
	_, err := Init(context.Background(), Config{ServiceName: "txprobe", SampleRatio: 1.5})
	require.Error(t, err)
}

func TestSampler(t *testing.T) {
	require.Equal(t, "AlwaysOnSampler", Sampler(0).Description())
	require.Equal(t, "AlwaysOnSampler", Sampler(1).Description())
	require.Contains(t, Sampler(0.25).Description(), "ParentBased")
	require.Contains(t, Sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestResourceCarriesServiceAttributes(t *testing.T) {
	cfg, err := Config{
		ServiceName:    " txprobe ",
		ServiceVersion: "1.2.3",
		Environment:    "staging",
		Attributes:     map[string]string{"ledger.network": "local"},
	}.withDefaults()
	require.NoError(t, err)
	require.Equal(t, defaultEndpoint, cfg.Endpoint)
	require.Equal(t, defaultExportTimeout, cfg.ExportTimeout)

	res, err := cfg.resource()
	require.NoError(t, err)
	values := map[string]string{}
	for _, kv := range res.Attributes() {
		values[string(kv.Key)] = kv.Value.Emit()
	}
	require.Equal(t, "txprobe", values["service.name"])
	require.Equal(t, "1.2.3", values["service.version"])
	require.Equal(t, "staging", values["deployment.environment"])
	require.Equal(t, "local", values["ledger.network"])
}
