// Package provider constructs clients for blockchain RPC endpoints.
package provider

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Kind names a provider type.
type Kind string

const (
	KindEtherscan Kind = "etherscan"
	KindInfura    Kind = "infura"
	KindLocalhost Kind = "localhost"
	// KindInjected is a wallet-injected endpoint, the MetaMask case.
	KindInjected Kind = "injected"
)

// Provider is a connection to a blockchain RPC endpoint.
type Provider interface {
	Kind() Kind
	Network() Network

	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)

	Close()
}
