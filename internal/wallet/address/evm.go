package address

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip32"
	"github/chapool/go-ledger-wallet/internal/wallet/hd"
)

const (
	compressedPublicKeyLength   = 33
	uncompressedPublicKeyLength = 65
	chainCodeLength             = 32
)

// NewRootKey builds a public-only extended key, the starting point for
// deriving non-hardened children without the private key.
func (s *service) NewRootKey(publicKey []byte, chainCode []byte, rootPath string) (*bip32.Key, error) {
	path, err := hd.Parse(rootPath)
	if err != nil {
		return nil, err
	}

	compressed, err := compressPublicKey(publicKey)
	if err != nil {
		return nil, err
	}

	if len(chainCode) != chainCodeLength {
		return nil, fmt.Errorf("invalid chain code length: %d", len(chainCode))
	}

	const maxDepth = 255
	if len(path) > maxDepth {
		return nil, fmt.Errorf("derivation path too deep: %d", len(path))
	}

	childNumber := []byte{0, 0, 0, 0}
	if len(path) > 0 {
		last := path[len(path)-1]
		childNumber = []byte{byte(last >> 24), byte(last >> 16), byte(last >> 8), byte(last)}
	}

	return &bip32.Key{
		Version:     bip32.PublicWalletVersion,
		Depth:       byte(len(path)),
		ChildNumber: childNumber,
		// parent fingerprint is unknown, the device does not return the parent key
		FingerPrint: []byte{0, 0, 0, 0},
		ChainCode:   append([]byte(nil), chainCode...),
		Key:         compressed,
		IsPrivate:   false,
	}, nil
}

// DeriveAddress derives an EVM address from a public root key
func (s *service) DeriveAddress(_ context.Context, root *bip32.Key, change uint32, index uint32) (string, error) {
	if root == nil {
		return "", errors.New("root key is nil")
	}
	if root.IsPrivate {
		return "", errors.New("root key must be a public key")
	}

	childKey, err := deriveKeyFromIndices(root, []uint32{change, index})
	if err != nil {
		return "", errors.Wrap(err, "failed to derive child key")
	}

	publicKeyECDSA, err := crypto.DecompressPubkey(childKey.Key)
	if err != nil {
		return "", errors.Wrap(err, "failed to decompress child public key")
	}

	return crypto.PubkeyToAddress(*publicKeyECDSA).Hex(), nil
}

// DeriveExtendedKey derives the extended private key at path from seed
// WARNING: Caller must clear the private key after use
func (s *service) DeriveExtendedKey(_ context.Context, seed []byte, path string) (*bip32.Key, error) {
	indices, err := hd.Parse(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse BIP44 path")
	}

	// Create master key from seed
	masterKey, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create master key")
	}

	key, err := deriveKeyFromIndices(masterKey, indices)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive key from path")
	}

	return key, nil
}

// deriveKeyFromIndices derives a key step by step along indices
func deriveKeyFromIndices(key *bip32.Key, indices []uint32) (*bip32.Key, error) {
	var err error
	for _, index := range indices {
		key, err = key.NewChildKey(index)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to derive child key at index %d", index)
		}
	}

	return key, nil
}

func compressPublicKey(publicKey []byte) ([]byte, error) {
	switch len(publicKey) {
	case compressedPublicKeyLength:
		pub, err := crypto.DecompressPubkey(publicKey)
		if err != nil {
			return nil, errors.Wrap(err, "invalid compressed public key")
		}
		return crypto.CompressPubkey(pub), nil
	case uncompressedPublicKeyLength:
		pub, err := crypto.UnmarshalPubkey(publicKey)
		if err != nil {
			return nil, errors.Wrap(err, "invalid uncompressed public key")
		}
		return crypto.CompressPubkey(pub), nil
	default:
		return nil, fmt.Errorf("invalid public key length: %d", len(publicKey))
	}
}
