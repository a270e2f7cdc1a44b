package address

import (
	"context"

	"github.com/tyler-smith/go-bip32"
)

// Service provides address derivation functionality
type Service interface {
	// NewRootKey builds a public extended key from the key material returned
	// by the device for rootPath (33 or 65 byte secp256k1 key, 32 byte chain code)
	NewRootKey(publicKey []byte, chainCode []byte, rootPath string) (*bip32.Key, error)

	// DeriveAddress derives the EVM address at <root>/<change>/<index> from a public root key
	DeriveAddress(ctx context.Context, root *bip32.Key, change uint32, index uint32) (string, error)

	// DeriveExtendedKey derives the extended key at path from a seed
	// WARNING: the returned key is private, caller must clear it after use
	DeriveExtendedKey(ctx context.Context, seed []byte, path string) (*bip32.Key, error)

}
