package provider

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
	"github/chapool/go-ledger-wallet/internal/config"
	"github/chapool/go-ledger-wallet/internal/metrics"
	"github/chapool/go-ledger-wallet/internal/util"
)

const defaultEtherscanBaseURL = "https://api.etherscan.io/v2/api"

// Dialer opens a raw JSON-RPC client for url.
type Dialer func(ctx context.Context, url string) (*rpc.Client, error)

// InjectedSource reports the endpoint of a wallet injected into the
// environment, if there is one.
type InjectedSource interface {
	Lookup() (endpoint string, ok bool)
}

// StaticSource is an InjectedSource with a fixed endpoint; empty means none.
type StaticSource string

func (s StaticSource) Lookup() (string, bool) {
	return string(s), s != ""
}

// Factory constructs providers. Every constructor either returns a usable
// Provider or a nil Provider and an error (*ConstructionError or
// *UnavailableError) that has already been logged. Constructors never panic.
type Factory struct {
	cfg              config.Providers
	metrics          *metrics.Service
	dial             Dialer
	injected         InjectedSource
	etherscanBaseURL string
}

type Option func(*Factory)

func WithDialer(d Dialer) Option {
	return func(f *Factory) { f.dial = d }
}

func WithInjectedSource(src InjectedSource) Option {
	return func(f *Factory) { f.injected = src }
}

// WithEtherscanBaseURL overrides the Etherscan API endpoint (without query).
func WithEtherscanBaseURL(url string) Option {
	return func(f *Factory) { f.etherscanBaseURL = url }
}

func NewFactory(cfg config.Providers, m *metrics.Service, opts ...Option) *Factory {
	f := &Factory{
		cfg:              cfg,
		metrics:          m,
		dial:             rpc.DialContext,
		injected:         StaticSource(cfg.InjectedEndpoint),
		etherscanBaseURL: defaultEtherscanBaseURL,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Construct dispatches to the constructor of kind. endpoint is the API key
// for etherscan and infura, and the URL for localhost.
func (f *Factory) Construct(ctx context.Context, kind Kind, network string, endpoint string) (Provider, error) {
	switch kind {
	case KindEtherscan:
		return f.Etherscan(ctx, network, endpoint)
	case KindInfura:
		return f.Infura(ctx, network, endpoint)
	case KindLocalhost:
		return f.Localhost(ctx, endpoint, network)
	case KindInjected:
		return f.Injected(ctx, network)
	default:
		return nil, f.failed(ctx, kind, nil, fmt.Errorf("unknown provider kind %q", kind))
	}
}

func (f *Factory) resolveNetwork(network string) (Network, error) {
	if network == "" {
		network = f.cfg.DefaultNetwork
	}
	return LookupNetwork(network)
}

// build runs construct, turning panics and errors into a logged *ConstructionError.
func (f *Factory) build(ctx context.Context, kind Kind, params map[string]string, construct func() (Provider, error)) (p Provider, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, f.failed(ctx, kind, params, fmt.Errorf("panic: %v", r))
		}
	}()

	p, err = construct()
	if err != nil {
		return nil, f.failed(ctx, kind, params, err)
	}

	util.LogFromContext(ctx).Debug().
		Str("provider", string(kind)).
		Interface("params", params).
		Msg("Constructed provider")
	f.metrics.ProviderConstructed(string(kind), metrics.ResultSuccess)

	return p, nil
}

func (f *Factory) failed(ctx context.Context, kind Kind, params map[string]string, err error) error {
	util.LogFromContext(ctx).Error().
		Str("provider", string(kind)).
		Interface("params", params).
		Err(err).
		Msg("Failed to construct provider")
	f.metrics.ProviderConstructed(string(kind), metrics.ResultFailure)

	return &ConstructionError{Kind: kind, Params: params, Err: err}
}

func (f *Factory) unavailable(ctx context.Context, kind Kind, reason string) error {
	util.LogFromContext(ctx).Warn().
		Str("provider", string(kind)).
		Str("reason", reason).
		Msgf("%s provider not available", kind)
	f.metrics.ProviderConstructed(string(kind), metrics.ResultUnavailable)

	return &UnavailableError{Kind: kind, Reason: reason}
}
