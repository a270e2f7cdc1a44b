package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/go-ledger-wallet/internal/config"
	"github/chapool/go-ledger-wallet/internal/metrics"
	"github/chapool/go-ledger-wallet/internal/provider"
	"github/chapool/go-ledger-wallet/internal/util"
	"github/chapool/go-ledger-wallet/internal/util/command"
	"github/chapool/go-ledger-wallet/internal/validation"
)

const (
	kindFlag            string = "kind"
	networkFlag         string = "network"
	apiKeyFlag          string = "api-key"
	urlFlag             string = "url"
	addressFlag         string = "address"
	metricsTextfileFlag string = "metrics-textfile"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("provider",
		newCheck(),
	)
}

type checkResult struct {
	Kind         provider.Kind `json:"kind"`
	Network      string        `json:"network"`
	ChainID      string        `json:"chainId"`
	ChainNetwork string        `json:"chainNetwork,omitempty"`
	BlockNumber  uint64        `json:"blockNumber"`
	Address      string        `json:"address,omitempty"`
	Balance      string        `json:"balance,omitempty"`
}

type checkFlags struct {
	kind            string
	network         string
	apiKey          string
	url             string
	address         string
	metricsTextfile string
}

func newCheck() *cobra.Command {
	var flags checkFlags

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Constructs a provider and queries the chain head",
		Long: `Constructs a provider of the given kind and prints the chain id and the
latest block number, plus the balance of --address if given.

Kinds: etherscan, infura, localhost, injected.`,
		Example: `app provider check --kind localhost --url http://127.0.0.1:8545
app provider check --kind infura --network sepolia --api-key <key>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if flags.address != "" && !common.IsHexAddress(flags.address) {
				return validation.Errorf(addressFlag, "%q is not a hex address", flags.address)
			}

			return command.WithConfig(cmd.Context(), config.DefaultServiceConfigFromEnv(), func(ctx context.Context, cfg config.Server) error {
				return command.WithMetrics(ctx, flags.metricsTextfile, func(m *metrics.Service) error {
					result, err := flags.check(ctx, provider.NewFactory(cfg.Providers, m))
					if err != nil {
						return err
					}

					out, err := json.MarshalIndent(result, "", "  ")
					if err != nil {
						return errors.Wrap(err, "failed to marshal output")
					}

					fmt.Fprintln(cmd.OutOrStdout(), string(out))
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVar(&flags.kind, kindFlag, "", "Provider kind: etherscan, infura, localhost or injected")
	cmd.Flags().StringVar(&flags.network, networkFlag, "", "Network name (default from WALLET_PROVIDER_NETWORK)")
	cmd.Flags().StringVar(&flags.apiKey, apiKeyFlag, "", "API key for etherscan or infura (default from env)")
	cmd.Flags().StringVar(&flags.url, urlFlag, "", "Node URL for localhost (default WALLET_LOCAL_URL:WALLET_LOCAL_PORT)")
	cmd.Flags().StringVar(&flags.address, addressFlag, "", "Account to query the balance of")
	cmd.Flags().StringVar(&flags.metricsTextfile, metricsTextfileFlag, "", "Write prometheus metrics of this run to a textfile")
	_ = cmd.MarkFlagRequired(kindFlag)

	return cmd
}

func (f *checkFlags) check(ctx context.Context, factory *provider.Factory) (*checkResult, error) {
	kind := provider.Kind(f.kind)

	endpoint := f.apiKey
	if kind == provider.KindLocalhost {
		endpoint = f.url
	}

	p, err := factory.Construct(ctx, kind, f.network, endpoint)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	chainID, err := p.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	block, err := p.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}

	result := &checkResult{
		Kind:        p.Kind(),
		Network:     p.Network().Name,
		ChainID:     chainID.String(),
		BlockNumber: block,
	}

	if chainID.Int64() != p.Network().ChainID {
		result.ChainNetwork = "unknown"
		if n, err := provider.NetworkByChainID(chainID.Int64()); err == nil {
			result.ChainNetwork = n.Name
		}

		util.LogFromContext(ctx).Warn().
			Str("network", p.Network().Name).
			Str("chain_id", chainID.String()).
			Str("chain_network", result.ChainNetwork).
			Msg("Provider is serving a different chain than the selected network")
	}

	if f.address != "" {
		account := common.HexToAddress(f.address)

		balance, err := p.BalanceAt(ctx, account)
		if err != nil {
			return nil, err
		}

		result.Address = account.Hex()
		result.Balance = balance.String()
	}

	return result, nil
}
