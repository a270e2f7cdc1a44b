package provider

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github/chapool/go-ledger-wallet/internal/util"
)

// rpcProvider is one or more JSON-RPC endpoints accessed through
// go-ethereum's ethclient.
type rpcProvider struct {
	kind    Kind
	network Network
	rpc     *failoverClient
}

func (p *rpcProvider) Kind() Kind {
	return p.kind
}

func (p *rpcProvider) Network() Network {
	return p.network
}

func (p *rpcProvider) ChainID(ctx context.Context) (*big.Int, error) {
	var chainID *big.Int
	err := p.rpc.do(ctx, func(client *ethclient.Client) (err error) {
		chainID, err = client.ChainID(ctx)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get chain ID")
	}
	return chainID, nil
}

func (p *rpcProvider) BlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := p.rpc.do(ctx, func(client *ethclient.Client) (err error) {
		n, err = client.BlockNumber(ctx)
		return err
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to get latest block number")
	}
	return n, nil
}

func (p *rpcProvider) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	var balance *big.Int
	err := p.rpc.do(ctx, func(client *ethclient.Client) (err error) {
		balance, err = client.BalanceAt(ctx, account, nil)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get balance")
	}
	return balance, nil
}

func (p *rpcProvider) Close() {
	p.rpc.close()
}

// dialRPC dials every url. Endpoints that fail to dial are skipped with a
// warning; it is an error only if none can be dialed.
func (f *Factory) dialRPC(ctx context.Context, kind Kind, network Network, urls ...string) (Provider, error) {
	if len(urls) == 0 {
		return nil, errors.New("no RPC endpoint given")
	}

	fc := &failoverClient{}
	var lastErr error

	for _, url := range urls {
		c, err := f.dial(ctx, url)
		if err != nil {
			util.LogFromContext(ctx).Warn().
				Str("provider", string(kind)).
				Str("url", redactURL(url)).
				Err(err).
				Msg("Failed to dial RPC endpoint")
			lastErr = errors.Wrapf(err, "failed to dial %s", redactURL(url))
			continue
		}

		fc.urls = append(fc.urls, url)
		fc.clients = append(fc.clients, ethclient.NewClient(c))
	}

	if len(fc.clients) == 0 {
		return nil, lastErr
	}

	return &rpcProvider{kind: kind, network: network, rpc: fc}, nil
}

// Infura connects to https://<network>.infura.io/v3/<apiKey>. Without an API
// key (argument or configuration) the provider is unavailable.
func (f *Factory) Infura(ctx context.Context, network string, apiKey string) (Provider, error) {
	params := map[string]string{"network": network}

	net, err := f.resolveNetwork(network)
	if err != nil {
		return nil, f.failed(ctx, KindInfura, params, err)
	}
	params["network"] = net.Name

	if net.InfuraSubdomain == "" {
		return nil, f.failed(ctx, KindInfura, params, fmt.Errorf("network %s is not served by infura", net.Name))
	}

	if apiKey == "" {
		apiKey = f.cfg.InfuraAPIKey
	}
	if apiKey == "" {
		return nil, f.unavailable(ctx, KindInfura, "no API key supplied")
	}

	url := fmt.Sprintf("https://%s.infura.io/v3/%s", net.InfuraSubdomain, apiKey)

	return f.build(ctx, KindInfura, params, func() (Provider, error) {
		return f.dialRPC(ctx, KindInfura, net, url)
	})
}

// Localhost connects to a local JSON-RPC node, by default at the configured
// local URL and port (http://localhost:8545). url may list several endpoints
// separated by commas, they are used in order with failover.
func (f *Factory) Localhost(ctx context.Context, url string, network string) (Provider, error) {
	if url == "" {
		url = fmt.Sprintf("%s:%d", strings.TrimSuffix(f.cfg.LocalURL, "/"), f.cfg.LocalPort)
	}
	params := map[string]string{"url": url, "network": network}

	net, err := f.resolveNetwork(network)
	if err != nil {
		return nil, f.failed(ctx, KindLocalhost, params, err)
	}
	params["network"] = net.Name

	return f.build(ctx, KindLocalhost, params, func() (Provider, error) {
		return f.dialRPC(ctx, KindLocalhost, net, parseEndpoints(url)...)
	})
}

// Injected connects to the endpoint of an injected wallet (the MetaMask
// case). When none is injected it logs a single warning and returns an
// *UnavailableError without dialing anything.
func (f *Factory) Injected(ctx context.Context, network string) (Provider, error) {
	endpoint, ok := f.injected.Lookup()
	if !ok {
		return nil, f.unavailable(ctx, KindInjected, "no injected wallet provider found")
	}

	params := map[string]string{"endpoint": redactURL(endpoint), "network": network}

	net, err := f.resolveNetwork(network)
	if err != nil {
		return nil, f.failed(ctx, KindInjected, params, err)
	}
	params["network"] = net.Name

	return f.build(ctx, KindInjected, params, func() (Provider, error) {
		return f.dialRPC(ctx, KindInjected, net, endpoint)
	})
}

// redactURL strips the last path segment of infura style URLs, which carries the API key.
func redactURL(url string) string {
	if i := strings.Index(url, "/v3/"); i >= 0 {
		return url[:i] + "/v3/***"
	}
	return url
}
