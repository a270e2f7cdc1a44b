package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github/chapool/go-ledger-wallet/internal/validation"
	"github/chapool/go-ledger-wallet/internal/wallet/address"
	"github/chapool/go-ledger-wallet/internal/wallet/hd"
)

// Params is the root key material and shape of a wallet to construct.
type Params struct {
	PublicKey          []byte
	ChainCode          []byte
	RootDerivationPath string
	AddressCount       int
	ChainID            int64
}

// New derives AddressCount child addresses at <root>/0/i for i in
// 0..AddressCount-1. No device or network I/O happens here, the result is
// fully determined by the key material and path.
func New(ctx context.Context, p Params) (*Wallet, error) {
	return newWallet(ctx, address.NewService(), p)
}

func newWallet(ctx context.Context, addressService address.Service, p Params) (*Wallet, error) {
	if p.AddressCount < 0 {
		return nil, validation.Errorf("addressCount", "must be greater than or equal to 0")
	}
	if p.AddressCount > MaxAddressCount {
		return nil, validation.Errorf("addressCount", "must be less than or equal to %d", MaxAddressCount)
	}

	root, err := addressService.NewRootKey(p.PublicKey, p.ChainCode, p.RootDerivationPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build root key")
	}

	addresses := make([]Address, 0, p.AddressCount)
	for i := 0; i < p.AddressCount; i++ {
		index := uint32(i) //nolint:gosec // bounded by MaxAddressCount

		path, err := hd.AddressPath(p.RootDerivationPath, index)
		if err != nil {
			return nil, err
		}

		addr, err := addressService.DeriveAddress(ctx, root, hd.ExternalChange, index)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to derive address %d", i)
		}

		addresses = append(addresses, Address{Index: index, Path: path, Address: addr})
	}

	return &Wallet{
		ID:                 uuid.New(),
		PublicKey:          append([]byte(nil), p.PublicKey...),
		ChainCode:          append([]byte(nil), p.ChainCode...),
		RootDerivationPath: p.RootDerivationPath,
		ChainID:            p.ChainID,
		addresses:          addresses,
	}, nil
}
