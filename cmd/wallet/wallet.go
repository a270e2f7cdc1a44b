package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/go-ledger-wallet/internal/config"
	"github/chapool/go-ledger-wallet/internal/metrics"
	"github/chapool/go-ledger-wallet/internal/util/command"
	"github/chapool/go-ledger-wallet/internal/wallet"
	"github/chapool/go-ledger-wallet/internal/wallet/device"
)

const (
	countFlag            string = "count"
	chainIDFlag          string = "chain-id"
	configJSONFlag       string = "config-json"
	indexFlag            string = "index"
	emulatorMnemonicFlag string = "emulator-mnemonic"
	metricsTextfileFlag  string = "metrics-textfile"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("wallet",
		newOpen(),
		newVerify(),
	)
}

// openFlags are shared by all subcommands that open the hardware wallet.
type openFlags struct {
	count            int
	chainID          int64
	configJSON       string
	emulatorMnemonic string
	metricsTextfile  string
}

func (f *openFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.count, countFlag, 0, "Number of addresses to derive")
	cmd.Flags().Int64Var(&f.chainID, chainIDFlag, 0, "Chain id, selects the BIP-44 coin type (default from WALLET_CHAIN_ID)")
	cmd.Flags().StringVar(&f.configJSON, configJSONFlag, "", `Wallet configuration as JSON, e.g. '{"addressCount":5,"chainId":1}'`)
	cmd.Flags().StringVar(&f.emulatorMnemonic, emulatorMnemonicFlag, "", "Use a software emulated device backed by this mnemonic")
	cmd.Flags().StringVar(&f.metricsTextfile, metricsTextfileFlag, "", "Write prometheus metrics of this run to a textfile")

	_ = cmd.Flags().MarkHidden(emulatorMnemonicFlag)
}

// configuration builds the wallet configuration. --config-json wins over the
// individual flags; flags that were not given stay unset.
func (f *openFlags) configuration(cmd *cobra.Command) (wallet.Configuration, error) {
	if f.configJSON != "" {
		return wallet.ParseConfiguration([]byte(f.configJSON))
	}

	var c wallet.Configuration
	if cmd.Flags().Changed(countFlag) {
		count := f.count
		c.AddressCount = &count
	}
	if cmd.Flags().Changed(chainIDFlag) {
		chainID := f.chainID
		c.ChainID = &chainID
	}

	return c, nil
}

//nolint:ireturn
func (f *openFlags) connector(cfg config.Server) (device.Connector, error) {
	if f.emulatorMnemonic == "" {
		return device.NewLedgerConnector(cfg.Wallet.DeviceTimeout), nil
	}

	emulator, err := device.NewEmulator(f.emulatorMnemonic, "")
	if err != nil {
		return nil, err
	}
	return emulator, nil
}

// run opens the wallet service for cfg and passes it to fn.
func (f *openFlags) run(cmd *cobra.Command, fn func(ctx context.Context, svc wallet.Service) error) error {
	return command.WithConfig(cmd.Context(), config.DefaultServiceConfigFromEnv(), func(ctx context.Context, cfg config.Server) error {
		connector, err := f.connector(cfg)
		if err != nil {
			return err
		}

		return command.WithMetrics(ctx, f.metricsTextfile, func(m *metrics.Service) error {
			return fn(ctx, wallet.NewService(connector, cfg.Wallet, m))
		})
	})
}

func newOpen() *cobra.Command {
	var flags openFlags

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Reads the root key from the Ledger and derives addresses",
		Long: `Reads the root public key and chain code from a Ledger running the
Ethereum app and derives the requested number of addresses locally.

The addresses are printed as JSON.`,
		Example: `app wallet open --count 5
app wallet open --config-json '{"addressCount":3,"chainId":11155111}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			walletCfg, err := flags.configuration(cmd)
			if err != nil {
				return err
			}

			return flags.run(cmd, func(ctx context.Context, svc wallet.Service) error {
				w, err := svc.Open(ctx, walletCfg)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), w)
			})
		},
	}

	flags.register(cmd)

	return cmd
}

type verifyResult struct {
	Index    uint32 `json:"index"`
	Path     string `json:"path"`
	Address  string `json:"address"`
	Verified bool   `json:"verified"`
}

func newVerify() *cobra.Command {
	var (
		flags openFlags
		index int
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Shows a derived address on the Ledger for confirmation",
		Long: `Opens the wallet, then asks the Ledger to display the address at the
given index and checks it against the locally derived one.`,
		Example: `app wallet verify --index 2`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if index < 0 {
				return errors.Errorf("--%s must not be negative", indexFlag)
			}

			walletCfg, err := flags.configuration(cmd)
			if err != nil {
				return err
			}
			if walletCfg.AddressCount == nil {
				count := index + 1
				walletCfg.AddressCount = &count
			}

			return flags.run(cmd, func(ctx context.Context, svc wallet.Service) error {
				w, err := svc.Open(ctx, walletCfg)
				if err != nil {
					return err
				}

				if err := svc.Verify(ctx, w, index); err != nil {
					return err
				}

				addr, _ := w.Address(index)
				return printJSON(cmd.OutOrStdout(), verifyResult{
					Index:    addr.Index,
					Path:     addr.Path,
					Address:  addr.Address,
					Verified: true,
				})
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&index, indexFlag, 0, "Index of the address to verify")
	_ = cmd.MarkFlagRequired(indexFlag)

	return cmd
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal output")
	}

	_, err = fmt.Fprintln(w, string(out))
	return err
}
