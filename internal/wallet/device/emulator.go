package device

import (
	"context"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
	"github/chapool/go-ledger-wallet/internal/wallet/address"
)

// Emulator is a software stand-in for a Ledger running the Ethereum app,
// backed by a BIP-39 mnemonic. It answers GetAddress exactly like the device
// and can be put into the failure states of a real one.
type Emulator struct {
	mu sync.Mutex

	seed      []byte
	addresses address.Service

	Unplugged     bool
	Locked        bool
	WrongApp      bool
	RejectPrompts bool

	connects int
	requests []string
	closed   bool
}

// NewEmulator creates an emulator for mnemonic and BIP-39 passphrase.
func NewEmulator(mnemonic string, passphrase string) (*Emulator, error) {
	seed, err := bip39.NewSeedWithErrorChecking(strings.TrimSpace(mnemonic), passphrase)
	if err != nil {
		return nil, errors.Wrap(err, "invalid mnemonic")
	}

	return &Emulator{
		seed:      seed,
		addresses: address.NewService(),
	}, nil
}

func (e *Emulator) Connect(ctx context.Context) (Device, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, Classify(err)
	}

	e.connects++
	if e.Unplugged {
		return nil, ErrNotConnected
	}
	e.closed = false

	return e, nil
}

func (e *Emulator) GetAddress(ctx context.Context, path string, display bool, chainCode bool) (*AddressResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, Classify(err)
	}

	e.requests = append(e.requests, path)

	switch {
	case e.closed:
		return nil, &Error{Kind: KindTransport, Err: errors.New("device closed")}
	case e.Locked:
		return nil, statusError(swLocked)
	case e.WrongApp:
		return nil, statusError(swInsNotSupported)
	case display && e.RejectPrompts:
		return nil, statusError(swDenied)
	}

	key, err := e.addresses.DeriveExtendedKey(ctx, e.seed, path)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: err}
	}
	defer func() {
		for i := range key.Key {
			key.Key[i] = 0
		}
	}()

	pub := key.PublicKey()

	ecdsaPub, err := crypto.DecompressPubkey(pub.Key)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: err}
	}

	resp := &AddressResponse{
		PublicKey: crypto.FromECDSAPub(ecdsaPub),
		Address:   strings.TrimPrefix(crypto.PubkeyToAddress(*ecdsaPub).Hex(), "0x"),
	}
	if chainCode {
		resp.ChainCode = append([]byte(nil), pub.ChainCode...)
	}

	return resp, nil
}

func (e *Emulator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	return nil
}

// Connects returns how often Connect was called.
func (e *Emulator) Connects() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.connects
}

// Requests returns the paths requested so far, in order.
func (e *Emulator) Requests() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]string(nil), e.requests...)
}

func statusError(sw uint16) *Error {
	kind, _ := kindForStatusWord(sw)
	return &Error{Kind: kind, StatusWord: sw, Err: errors.Errorf("status word 0x%04x", sw)}
}
