package provider_test

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-ledger-wallet/internal/config"
	"github/chapool/go-ledger-wallet/internal/metrics"
	"github/chapool/go-ledger-wallet/internal/provider"
	"github/chapool/go-ledger-wallet/internal/util"
)

type ethService struct{}

func (ethService) ChainId() *hexutil.Big { //nolint:revive,stylecheck // must match eth_chainId
	return (*hexutil.Big)(big.NewInt(1337))
}

func (ethService) BlockNumber() hexutil.Uint64 {
	return 16
}

func (ethService) GetBalance(_ common.Address, _ string) *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(1_000_000_000_000_000_000))
}

type recordingDialer struct {
	server *rpc.Server
	urls   []string
}

func newRecordingDialer(t *testing.T) *recordingDialer {
	t.Helper()

	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", ethService{}))
	t.Cleanup(server.Stop)

	return &recordingDialer{server: server}
}

func (d *recordingDialer) dial(_ context.Context, url string) (*rpc.Client, error) {
	d.urls = append(d.urls, url)
	return rpc.DialInProc(d.server), nil
}

func newFactory(t *testing.T, opts ...provider.Option) (*provider.Factory, *recordingDialer) {
	t.Helper()

	d := newRecordingDialer(t)
	opts = append([]provider.Option{provider.WithDialer(d.dial)}, opts...)

	return provider.NewFactory(config.Default().Providers, nil, opts...), d
}

func logContext(buf *bytes.Buffer) context.Context {
	return util.WithLogger(context.Background(), zerolog.New(buf))
}

func TestLocalhostDefaults(t *testing.T) {
	ctx := context.Background()
	f, d := newFactory(t)

	p, err := f.Localhost(ctx, "", "")
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, []string{"http://localhost:8545"}, d.urls)
	assert.Equal(t, provider.KindLocalhost, p.Kind())
	assert.Equal(t, "homestead", p.Network().Name)

	chainID, err := p.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1337), chainID.Int64())

	block, err := p.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(16), block)

	balance, err := p.BalanceAt(ctx, common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94"))
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", balance.String())
}

func TestLocalhostCustomURL(t *testing.T) {
	f, d := newFactory(t)

	p, err := f.Localhost(context.Background(), "http://127.0.0.1:7545", "sepolia")
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, []string{"http://127.0.0.1:7545"}, d.urls)
	assert.Equal(t, int64(11155111), p.Network().ChainID)
}

func TestLocalhostConstructionFailure(t *testing.T) {
	var buf bytes.Buffer
	f := provider.NewFactory(config.Default().Providers, nil)

	p, err := f.Localhost(logContext(&buf), "ftp://localhost:21", "")
	assert.Nil(t, p)

	var cerr *provider.ConstructionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, provider.KindLocalhost, cerr.Kind)
	assert.Equal(t, "ftp://localhost:21", cerr.Params["url"])
	assert.Contains(t, buf.String(), "Failed to construct provider")
	assert.Contains(t, buf.String(), `"provider":"localhost"`)
}

func TestUnknownNetwork(t *testing.T) {
	f, d := newFactory(t)

	p, err := f.Localhost(context.Background(), "", "atlantis")
	assert.Nil(t, p)

	var cerr *provider.ConstructionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "atlantis", cerr.Params["network"])
	assert.Empty(t, d.urls)
}

func TestInfura(t *testing.T) {
	f, d := newFactory(t)

	p, err := f.Infura(context.Background(), "", "KEY")
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, []string{"https://mainnet.infura.io/v3/KEY"}, d.urls)
	assert.Equal(t, provider.KindInfura, p.Kind())
}

func TestInfuraUsesConfiguredKey(t *testing.T) {
	d := newRecordingDialer(t)
	cfg := config.Default().Providers
	cfg.InfuraAPIKey = "CONFIGURED"

	f := provider.NewFactory(cfg, nil, provider.WithDialer(d.dial))

	p, err := f.Infura(context.Background(), "sepolia", "")
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, []string{"https://sepolia.infura.io/v3/CONFIGURED"}, d.urls)
}

func TestInfuraWithoutKeyIsUnavailable(t *testing.T) {
	var buf bytes.Buffer
	f, d := newFactory(t)

	p, err := f.Infura(logContext(&buf), "homestead", "")
	assert.Nil(t, p)
	assert.ErrorIs(t, err, provider.ErrUnavailable)
	assert.Empty(t, d.urls)
	assert.Contains(t, buf.String(), "not available")
}

func TestInfuraUnsupportedNetwork(t *testing.T) {
	f, _ := newFactory(t)

	p, err := f.Infura(context.Background(), "ropsten", "KEY")
	assert.Nil(t, p)

	var cerr *provider.ConstructionError
	require.ErrorAs(t, err, &cerr)
	assert.NotContains(t, cerr.Error(), "KEY")
}

func TestInjectedMissing(t *testing.T) {
	var buf bytes.Buffer
	f, d := newFactory(t)

	p, err := f.Injected(logContext(&buf), "")
	assert.Nil(t, p)

	var uerr *provider.UnavailableError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, provider.KindInjected, uerr.Kind)
	assert.ErrorIs(t, err, provider.ErrUnavailable)

	assert.Empty(t, d.urls, "no construction is attempted")
	assert.Equal(t, 1, strings.Count(buf.String(), "not available"))
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestInjectedPresent(t *testing.T) {
	f, d := newFactory(t, provider.WithInjectedSource(provider.StaticSource("/tmp/wallet.ipc")))

	p, err := f.Injected(context.Background(), "goerli")
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, []string{"/tmp/wallet.ipc"}, d.urls)
	assert.Equal(t, provider.KindInjected, p.Kind())
	assert.Equal(t, int64(5), p.Network().ChainID)
}

func TestConstructorRecoversPanics(t *testing.T) {
	f := provider.NewFactory(config.Default().Providers, nil,
		provider.WithDialer(func(context.Context, string) (*rpc.Client, error) {
			panic("transport exploded")
		}),
	)

	var p provider.Provider
	var err error
	assert.NotPanics(t, func() {
		p, err = f.Localhost(context.Background(), "", "")
	})
	assert.Nil(t, p)

	var cerr *provider.ConstructionError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Error(), "transport exploded")
}

func TestConstructDispatch(t *testing.T) {
	f, d := newFactory(t)

	p, err := f.Construct(context.Background(), provider.KindLocalhost, "", "http://node:8545")
	require.NoError(t, err)
	p.Close()
	assert.Equal(t, []string{"http://node:8545"}, d.urls)

	p, err = f.Construct(context.Background(), provider.Kind("carrier-pigeon"), "", "")
	assert.Nil(t, p)

	var cerr *provider.ConstructionError
	assert.ErrorAs(t, err, &cerr)
}

func TestFactoryMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	d := newRecordingDialer(t)
	f := provider.NewFactory(config.Default().Providers, m, provider.WithDialer(d.dial))

	p, err := f.Localhost(context.Background(), "", "")
	require.NoError(t, err)
	p.Close()

	_, err = f.Injected(context.Background(), "")
	require.Error(t, err)
	_, err = f.Localhost(context.Background(), "", "atlantis")
	require.Error(t, err)

	expected := `
# HELP ledger_wallet_provider_constructions_total Number of RPC provider constructions by provider kind and result.
# TYPE ledger_wallet_provider_constructions_total counter
ledger_wallet_provider_constructions_total{kind="injected",result="unavailable"} 1
ledger_wallet_provider_constructions_total{kind="localhost",result="failure"} 1
ledger_wallet_provider_constructions_total{kind="localhost",result="success"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "ledger_wallet_provider_constructions_total"))
}

func TestLocalhostFailover(t *testing.T) {
	var buf bytes.Buffer

	healthy := rpc.NewServer()
	require.NoError(t, healthy.RegisterName("eth", ethService{}))
	t.Cleanup(healthy.Stop)

	// no eth namespace, every call fails
	broken := rpc.NewServer()
	t.Cleanup(broken.Stop)

	servers := map[string]*rpc.Server{
		"http://node-a:8545": broken,
		"http://node-b:8545": healthy,
	}

	f := provider.NewFactory(config.Default().Providers, nil,
		provider.WithDialer(func(_ context.Context, url string) (*rpc.Client, error) {
			srv, ok := servers[url]
			if !ok {
				return nil, fmt.Errorf("unexpected url %s", url)
			}
			return rpc.DialInProc(srv), nil
		}),
	)

	ctx := logContext(&buf)

	p, err := f.Localhost(ctx, "http://node-a:8545, http://node-b:8545,", "")
	require.NoError(t, err)
	defer p.Close()

	block, err := p.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(16), block)
	assert.Contains(t, buf.String(), "RPC endpoint call failed")
	assert.Contains(t, buf.String(), "http://node-a:8545")
}

func TestLocalhostAllEndpointsDown(t *testing.T) {
	broken := rpc.NewServer()
	t.Cleanup(broken.Stop)

	f := provider.NewFactory(config.Default().Providers, nil,
		provider.WithDialer(func(context.Context, string) (*rpc.Client, error) {
			return rpc.DialInProc(broken), nil
		}),
	)

	p, err := f.Localhost(context.Background(), "http://a:1,http://b:2", "")
	require.NoError(t, err)
	defer p.Close()

	_, err = p.ChainID(context.Background())
	assert.ErrorContains(t, err, "all RPC endpoints are unavailable")
}

func TestLocalhostSkipsUndialableEndpoints(t *testing.T) {
	d := newRecordingDialer(t)

	f := provider.NewFactory(config.Default().Providers, nil,
		provider.WithDialer(func(ctx context.Context, url string) (*rpc.Client, error) {
			if strings.HasPrefix(url, "ftp") {
				return nil, fmt.Errorf("no known transport for URL scheme %q", "ftp")
			}
			return d.dial(ctx, url)
		}),
	)

	p, err := f.Localhost(context.Background(), "ftp://a:1,http://b:2", "")
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, []string{"http://b:2"}, d.urls)
}

// countingService counts the calls an endpoint receives. With down set
// every call fails.
type countingService struct {
	down     bool
	chainIDs atomic.Int32
	blocks   atomic.Int32
}

func (s *countingService) ChainId() (*hexutil.Big, error) { //nolint:revive,stylecheck // must match eth_chainId
	s.chainIDs.Add(1)
	if s.down {
		return nil, errors.New("node is syncing")
	}
	return (*hexutil.Big)(big.NewInt(1)), nil
}

func (s *countingService) BlockNumber() (hexutil.Uint64, error) {
	s.blocks.Add(1)
	if s.down {
		return 0, errors.New("node is syncing")
	}
	return 99, nil
}

func newCountingFactory(t *testing.T, services map[string]*countingService) *provider.Factory {
	t.Helper()

	servers := make(map[string]*rpc.Server, len(services))
	for url, svc := range services {
		srv := rpc.NewServer()
		require.NoError(t, srv.RegisterName("eth", svc))
		t.Cleanup(srv.Stop)
		servers[url] = srv
	}

	return provider.NewFactory(config.Default().Providers, nil,
		provider.WithDialer(func(_ context.Context, url string) (*rpc.Client, error) {
			return rpc.DialInProc(servers[url]), nil
		}),
	)
}

func TestFailoverSendsNoExtraRequests(t *testing.T) {
	a, b := &countingService{}, &countingService{}
	f := newCountingFactory(t, map[string]*countingService{"http://a:1": a, "http://b:2": b})

	p, err := f.Localhost(context.Background(), "http://a:1,http://b:2", "")
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < 3; i++ {
		block, err := p.BlockNumber(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(99), block)
	}

	assert.Equal(t, int32(3), a.blocks.Load())
	assert.Equal(t, int32(0), a.chainIDs.Load())
	assert.Equal(t, int32(0), b.blocks.Load())
	assert.Equal(t, int32(0), b.chainIDs.Load())
}

func TestFailoverSticksToWorkingEndpoint(t *testing.T) {
	a, b := &countingService{down: true}, &countingService{}
	f := newCountingFactory(t, map[string]*countingService{"http://a:1": a, "http://b:2": b})

	p, err := f.Localhost(context.Background(), "http://a:1,http://b:2", "")
	require.NoError(t, err)
	defer p.Close()

	for i := 0; i < 3; i++ {
		_, err := p.BlockNumber(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), a.blocks.Load(), "the failed endpoint is only tried once")
	assert.Equal(t, int32(3), b.blocks.Load())
}

func TestFailoverStopsOnCanceledContext(t *testing.T) {
	a, b := &countingService{}, &countingService{}
	f := newCountingFactory(t, map[string]*countingService{"http://a:1": a, "http://b:2": b})

	p, err := f.Localhost(context.Background(), "http://a:1,http://b:2", "")
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.BlockNumber(ctx)
	require.Error(t, err)
	assert.Equal(t, int32(0), b.blocks.Load())
}
