package metrics_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-ledger-wallet/internal/metrics"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	m.WalletOpened(metrics.ResultSuccess)
	m.WalletOpened(metrics.ResultSuccess)
	m.AddressesDerived(3)
	m.AddressesDerived(0)
	m.ProviderConstructed("infura", metrics.ResultUnavailable)

	count, err := testutil.GatherAndCount(reg,
		"ledger_wallet_wallet_open_total",
		"ledger_wallet_wallet_addresses_derived_total",
		"ledger_wallet_provider_constructions_total",
	)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := metrics.New(reg)
	require.NoError(t, err)

	_, err = metrics.New(reg)
	assert.Error(t, err)
}

func TestNilServiceIsNoop(t *testing.T) {
	var m *metrics.Service

	assert.NotPanics(t, func() {
		m.WalletOpened(metrics.ResultFailure)
		m.AddressesDerived(1)
		m.ProviderConstructed("etherscan", metrics.ResultSuccess)
	})
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	m.WalletOpened(metrics.ResultFailure)

	path := filepath.Join(t.TempDir(), "ledger_wallet.prom")
	require.NoError(t, metrics.WriteTextfile(path, reg))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(out), `ledger_wallet_wallet_open_total{result="failure"} 1`)
}
