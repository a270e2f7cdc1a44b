package provider

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nanmu42/etherscan-api"
	"github.com/pkg/errors"
	"github/chapool/go-ledger-wallet/internal/util"
)

const etherscanTimeout = 15 * time.Second

// etherscanProvider reads chain data through the Etherscan HTTP API. The
// client has no context support, calls return once its own timeout expires.
type etherscanProvider struct {
	network Network
	client  *etherscan.Client
}

func (p *etherscanProvider) Kind() Kind {
	return KindEtherscan
}

func (p *etherscanProvider) Network() Network {
	return p.network
}

func (p *etherscanProvider) ChainID(_ context.Context) (*big.Int, error) {
	return big.NewInt(p.network.ChainID), nil
}

func (p *etherscanProvider) BlockNumber(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n, err := p.client.BlockNumber(time.Now().Unix(), "before")
	if err != nil {
		return 0, errors.Wrap(err, "failed to get latest block number")
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid block number %d", n)
	}

	return uint64(n), nil
}

func (p *etherscanProvider) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	balance, err := p.client.AccountBalance(account.Hex())
	if err != nil {
		return nil, errors.Wrap(err, "failed to get balance")
	}

	return balance.Int(), nil
}

func (p *etherscanProvider) Close() {}

// Etherscan constructs an Etherscan API provider. Without an API key the
// provider is still constructed, Etherscan then applies its anonymous rate
// limit, and a warning is logged.
func (f *Factory) Etherscan(ctx context.Context, network string, apiKey string) (Provider, error) {
	params := map[string]string{"network": network}

	net, err := f.resolveNetwork(network)
	if err != nil {
		return nil, f.failed(ctx, KindEtherscan, params, err)
	}
	params["network"] = net.Name

	if apiKey == "" {
		apiKey = f.cfg.EtherscanAPIKey
	}
	if apiKey == "" {
		util.LogFromContext(ctx).Warn().
			Str("provider", string(KindEtherscan)).
			Msg("No etherscan API key supplied, requests are rate limited")
	}

	baseURL := fmt.Sprintf("%s?chainid=%d&", strings.TrimSuffix(f.etherscanBaseURL, "?"), net.ChainID)
	params["baseUrl"] = baseURL

	return f.build(ctx, KindEtherscan, params, func() (Provider, error) {
		client := etherscan.NewCustomized(etherscan.Customization{
			Timeout: etherscanTimeout,
			Key:     apiKey,
			BaseURL: baseURL,
		})

		return &etherscanProvider{network: net, client: client}, nil
	})
}
