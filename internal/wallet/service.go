package wallet

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github/chapool/go-ledger-wallet/internal/config"
	"github/chapool/go-ledger-wallet/internal/metrics"
	"github/chapool/go-ledger-wallet/internal/util"
	"github/chapool/go-ledger-wallet/internal/validation"
	"github/chapool/go-ledger-wallet/internal/wallet/address"
	"github/chapool/go-ledger-wallet/internal/wallet/device"
	"github/chapool/go-ledger-wallet/internal/wallet/hd"
)

// Service provides hardware wallet functionality
type Service interface {
	// Open validates cfg, fetches the root key from the device and derives
	// cfg.AddressCount addresses. It returns either a wallet or an error.
	Open(ctx context.Context, cfg Configuration) (*Wallet, error)

	// Verify shows the address at index on the device and checks that it
	// matches the locally derived one.
	Verify(ctx context.Context, w *Wallet, index int) error
}

type service struct {
	connector      device.Connector
	addressService address.Service
	defaults       config.Wallet
	metrics        *metrics.Service
}

// NewService creates a new WalletService
//
//nolint:ireturn // Returning interface is intentional for dependency injection
func NewService(connector device.Connector, defaults config.Wallet, m *metrics.Service) Service {
	return &service{
		connector:      connector,
		addressService: address.NewService(),
		defaults:       defaults,
		metrics:        m,
	}
}

func (s *service) Open(ctx context.Context, cfg Configuration) (*Wallet, error) {
	// validation happens before any device I/O
	if err := cfg.Validate(); err != nil {
		s.metrics.WalletOpened(metrics.ResultInvalid)
		return nil, err
	}

	chainID := s.defaults.DefaultChainID
	if cfg.ChainID != nil {
		chainID = *cfg.ChainID
	}
	if chainID <= 0 {
		s.metrics.WalletOpened(metrics.ResultInvalid)
		return nil, validation.Errorf("chainId", "must be greater than 0")
	}

	rootPath := hd.RootPathForChain(chainID)

	log := util.LogFromContext(ctx).With().
		Str("path", rootPath).
		Int64("chain_id", chainID).
		Int("address_count", *cfg.AddressCount).
		Logger()

	resp, err := s.fetch(ctx, log, rootPath, false, true)
	if err != nil {
		s.metrics.WalletOpened(metrics.ResultFailure)
		return nil, err
	}

	log.Debug().
		Str("public_key", resp.PublicKeyHex()).
		Str("chain_code", resp.ChainCodeHex()).
		Msg("Received root key from device")

	w, err := newWallet(ctx, s.addressService, Params{
		PublicKey:          resp.PublicKey,
		ChainCode:          resp.ChainCode,
		RootDerivationPath: rootPath,
		AddressCount:       *cfg.AddressCount,
		ChainID:            chainID,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to construct wallet from device key")
		s.metrics.WalletOpened(metrics.ResultFailure)
		return nil, errors.Wrap(err, "failed to construct wallet")
	}

	s.metrics.WalletOpened(metrics.ResultSuccess)
	s.metrics.AddressesDerived(w.Len())

	log.Info().Str("wallet_id", w.ID.String()).Msg("Opened hardware wallet")

	return w, nil
}

func (s *service) Verify(ctx context.Context, w *Wallet, index int) error {
	if w == nil {
		return errors.New("wallet is nil")
	}
	if index < 0 {
		return validation.Errorf("index", "must be greater than or equal to 0")
	}

	expected, ok := w.Address(index)
	if !ok {
		return validation.Errorf("index", "%d is out of range, wallet has %d addresses", index, w.Len())
	}

	log := util.LogFromContext(ctx).With().
		Str("wallet_id", w.ID.String()).
		Str("path", expected.Path).
		Logger()

	log.Info().Msg("Confirm the address on the device")

	resp, err := s.fetch(ctx, log, expected.Path, true, false)
	if err != nil {
		return err
	}

	shown := "0x" + strings.TrimPrefix(resp.Address, "0x")
	if !strings.EqualFold(shown, expected.Address) {
		log.Warn().
			Str("derived", expected.Address).
			Str("device", shown).
			Msg("Address verification failed: addresses do not match")
		return errors.Wrapf(ErrAddressMismatch, "index %d", index)
	}

	log.Info().Msg("Address verification successful")
	return nil
}

// fetch connects, requests path and closes the device again. Device failures
// are logged with the path and returned as *ConnectionError.
func (s *service) fetch(ctx context.Context, log zerolog.Logger, path string, display bool, chainCode bool) (*device.AddressResponse, error) {
	dev, err := s.connector.Connect(ctx)
	if err != nil {
		return nil, s.connectionFailed(log, path, err)
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close device")
		}
	}()

	resp, err := dev.GetAddress(ctx, path, display, chainCode)
	if err != nil {
		return nil, s.connectionFailed(log, path, err)
	}

	return resp, nil
}

func (s *service) connectionFailed(log zerolog.Logger, path string, err error) error {
	err = device.Classify(err)
	kind := device.KindOf(err)

	log.Error().
		Err(err).
		Str("kind", kind.String()).
		Str("hint", kind.Hint()).
		Msg("Hardware wallet request failed")

	return &ConnectionError{Path: path, Err: err}
}
