// Package hd builds the BIP-44 derivation paths used to talk to the device
// and to derive child addresses from the fetched root key.
package hd

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github/chapool/go-ledger-wallet/internal/validation"
)

const (
	Purpose uint32 = 44

	// MainnetCoinType is the SLIP-44 coin type of Ether.
	MainnetCoinType uint32 = 60
	// TestnetCoinType is used for every chain other than mainnet.
	TestnetCoinType uint32 = 1

	MainnetChainID int64 = 1

	DefaultAccount uint32 = 0
	// ExternalChange is the change level the device uses for receiving addresses.
	ExternalChange uint32 = 0

	hardenedOffset uint32 = 0x80000000
)

// CoinTypeForChain maps mainnet to the Ether coin type and every other chain
// to the testnet coin type.
func CoinTypeForChain(chainID int64) uint32 {
	if chainID == MainnetChainID {
		return MainnetCoinType
	}
	return TestnetCoinType
}

// RootPath returns m/44'/<coinType>'/0'.
func RootPath(coinType uint32) (string, error) {
	return AccountPath(coinType, DefaultAccount)
}

// AccountPath returns m/44'/<coinType>'/<account>'.
func AccountPath(coinType uint32, account uint32) (string, error) {
	if err := checkIndex("coinType", coinType); err != nil {
		return "", err
	}
	if err := checkIndex("account", account); err != nil {
		return "", err
	}

	path := accounts.DerivationPath{
		hardenedOffset + Purpose,
		hardenedOffset + coinType,
		hardenedOffset + account,
	}

	return path.String(), nil
}

// RootPathForChain is RootPath(CoinTypeForChain(chainID)).
func RootPathForChain(chainID int64) string {
	// coin types from CoinTypeForChain are always in range
	path, _ := RootPath(CoinTypeForChain(chainID))
	return path
}

// AddressPath appends the external change level and index to root:
// <root>/0/<index>.
func AddressPath(root string, index uint32) (string, error) {
	return ChildPath(root, ExternalChange, index)
}

// ChildPath appends <change>/<index> to root.
func ChildPath(root string, change uint32, index uint32) (string, error) {
	base, err := Parse(root)
	if err != nil {
		return "", err
	}
	if err := checkIndex("change", change); err != nil {
		return "", err
	}
	if err := checkIndex("index", index); err != nil {
		return "", err
	}

	path := make(accounts.DerivationPath, 0, len(base)+2)
	path = append(path, base...)
	path = append(path, change, index)

	return path.String(), nil
}

// Parse parses an absolute path ("m/..."). Relative paths are rejected since
// go-ethereum would silently prefix them with its own default root.
func Parse(path string) (accounts.DerivationPath, error) {
	if !strings.HasPrefix(strings.TrimSpace(path), "m/") {
		return nil, validation.Errorf("derivationPath", "%q is not an absolute path", path)
	}

	parsed, err := accounts.ParseDerivationPath(path)
	if err != nil {
		return nil, validation.Errorf("derivationPath", "%v", err)
	}

	return parsed, nil
}

func checkIndex(field string, v uint32) error {
	if v >= hardenedOffset {
		return validation.Errorf(field, "%d is out of range", v)
	}
	return nil
}
