package provider

import (
	"fmt"
	"strings"

	"github/chapool/go-ledger-wallet/internal/validation"
)

// Network is a named chain the providers know endpoints for.
type Network struct {
	Name    string
	ChainID int64
	// InfuraSubdomain is empty if Infura does not serve the network.
	InfuraSubdomain string
}

var networks = map[string]Network{
	"homestead": {Name: "homestead", ChainID: 1, InfuraSubdomain: "mainnet"},
	"ropsten":   {Name: "ropsten", ChainID: 3},
	"rinkeby":   {Name: "rinkeby", ChainID: 4},
	"goerli":    {Name: "goerli", ChainID: 5},
	"kovan":     {Name: "kovan", ChainID: 42},
	"holesky":   {Name: "holesky", ChainID: 17000, InfuraSubdomain: "holesky"},
	"sepolia":   {Name: "sepolia", ChainID: 11155111, InfuraSubdomain: "sepolia"},
}

var aliases = map[string]string{
	"mainnet": "homestead",
}

// LookupNetwork resolves a network by name, case-insensitively.
func LookupNetwork(name string) (Network, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := aliases[key]; ok {
		key = alias
	}

	n, ok := networks[key]
	if !ok {
		return Network{}, validation.Errorf("network", "unknown network %q", name)
	}

	return n, nil
}

// NetworkByChainID resolves a network by chain id.
func NetworkByChainID(chainID int64) (Network, error) {
	for _, n := range networks {
		if n.ChainID == chainID {
			return n, nil
		}
	}
	return Network{}, validation.Errorf("chainId", "no network with chain id %d", chainID)
}

func (n Network) String() string {
	return fmt.Sprintf("%s (%d)", n.Name, n.ChainID)
}
