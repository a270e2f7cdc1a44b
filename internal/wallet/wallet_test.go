package wallet_test

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-ledger-wallet/internal/validation"
	"github/chapool/go-ledger-wallet/internal/wallet"
)

func rootParams(t *testing.T, count int) wallet.Params {
	t.Helper()

	emu := newEmulator(t)
	resp, err := emu.GetAddress(context.Background(), "m/44'/60'/0'", false, true)
	require.NoError(t, err)

	return wallet.Params{
		PublicKey:          resp.PublicKey,
		ChainCode:          resp.ChainCode,
		RootDerivationPath: "m/44'/60'/0'",
		AddressCount:       count,
		ChainID:            1,
	}
}

func TestNewDerivesInIndexOrder(t *testing.T) {
	ctx := context.Background()
	p := rootParams(t, 3)

	w, err := wallet.New(ctx, p)
	require.NoError(t, err)

	require.Equal(t, 3, w.Len())
	for i, a := range w.Addresses() {
		assert.Equal(t, uint32(i), a.Index)
	}

	first, ok := w.Address(0)
	require.True(t, ok)
	assert.Equal(t, testFirstAddress, first.Address)

	_, ok = w.Address(3)
	assert.False(t, ok)
	_, ok = w.Address(-1)
	assert.False(t, ok)

	again, err := wallet.New(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, w.Addresses(), again.Addresses())
}

func TestNewAddressesAreReadOnly(t *testing.T) {
	w, err := wallet.New(context.Background(), rootParams(t, 1))
	require.NoError(t, err)

	addresses := w.Addresses()
	addresses[0].Address = "0x0"

	first, _ := w.Address(0)
	assert.Equal(t, testFirstAddress, first.Address)
}

func TestNewInvalidInput(t *testing.T) {
	ctx := context.Background()

	p := rootParams(t, -1)
	_, err := wallet.New(ctx, p)
	assert.Error(t, err)

	p = rootParams(t, 1)
	p.ChainCode = nil
	_, err = wallet.New(ctx, p)
	assert.Error(t, err)

	p = rootParams(t, 1)
	p.RootDerivationPath = "not/a/path"
	_, err = wallet.New(ctx, p)
	assert.Error(t, err)

	for _, count := range []int{wallet.MaxAddressCount + 1, math.MaxInt} {
		p = rootParams(t, count)
		assert.NotPanics(t, func() {
			_, err = wallet.New(ctx, p)
		})
		assert.True(t, validation.IsValidationError(err), "count %d", count)
	}
}

func TestConfigurationAddressCountLimit(t *testing.T) {
	limit := wallet.MaxAddressCount
	assert.NoError(t, wallet.Configuration{AddressCount: &limit}.Validate())

	over := wallet.MaxAddressCount + 1
	err := wallet.Configuration{AddressCount: &over}.Validate()

	var verr *wallet.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "addressCount", verr.Field)
	assert.Equal(t, "must be less than or equal to 65536", verr.Reason)
}

func TestWalletJSON(t *testing.T) {
	w, err := wallet.New(context.Background(), rootParams(t, 1))
	require.NoError(t, err)

	out, err := json.Marshal(w)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "m/44'/60'/0'", decoded["rootDerivationPath"])
	assert.Equal(t, w.ID.String(), decoded["id"])
	assert.Len(t, decoded["addresses"], 1)
	assert.Len(t, decoded["chainCode"], 64)
}
