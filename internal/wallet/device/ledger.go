package device

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	ledger_go "github.com/zondax/ledger-go"
	"github/chapool/go-ledger-wallet/internal/util"
	"github/chapool/go-ledger-wallet/internal/wallet/hd"
)

const (
	ethCLA             byte = 0xE0
	ethInsGetPublicKey byte = 0x02

	p1NoDisplay     byte = 0x00
	p1Display       byte = 0x01
	p2NoChainCode   byte = 0x00
	p2WithChainCode byte = 0x01

	chainCodeSize = 32
	maxPathDepth  = 10
)

// LedgerConnector connects to the first Ledger device found on USB.
type LedgerConnector struct {
	admin   ledger_go.LedgerAdmin
	timeout time.Duration
}

// NewLedgerConnector uses the HID transport of zondax/ledger-go. timeout
// bounds each exchange, zero means wait as long as the caller's context.
func NewLedgerConnector(timeout time.Duration) *LedgerConnector {
	return NewLedgerConnectorWithAdmin(ledger_go.NewLedgerAdmin(), timeout)
}

func NewLedgerConnectorWithAdmin(admin ledger_go.LedgerAdmin, timeout time.Duration) *LedgerConnector {
	return &LedgerConnector{admin: admin, timeout: timeout}
}

func (c *LedgerConnector) Connect(ctx context.Context) (Device, error) {
	log := util.LogFromContext(ctx)

	if err := ctx.Err(); err != nil {
		return nil, Classify(err)
	}

	if c.admin.CountDevices() == 0 {
		log.Debug().Msg("No ledger device found")
		return nil, ErrNotConnected
	}

	dev, err := c.admin.Connect(0)
	if err != nil {
		return nil, Classify(errors.Wrap(err, "failed to open ledger device"))
	}

	log.Debug().Msg("Connected to ledger device")

	return &ledgerDevice{dev: dev, timeout: c.timeout}, nil
}

type ledgerDevice struct {
	// held for the whole exchange, the device serves one request at a time
	mu      sync.Mutex
	dev     ledger_go.LedgerDevice
	timeout time.Duration

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

func (d *ledgerDevice) GetAddress(ctx context.Context, path string, display bool, chainCode bool) (*AddressResponse, error) {
	apdu, err := getPublicKeyAPDU(path, display, chainCode)
	if err != nil {
		return nil, err
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	reply, err := d.exchange(ctx, apdu)
	if err != nil {
		return nil, err
	}

	resp, err := parseGetPublicKeyReply(reply, chainCode)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: err}
	}

	return resp, nil
}

type exchangeResult struct {
	reply []byte
	err   error
}

// exchange sends apdu and waits for the reply or ctx. The transport cannot be
// interrupted, so on cancellation the pending exchange finishes in the
// background and its reply is dropped.
func (d *ledgerDevice) exchange(ctx context.Context, apdu []byte) ([]byte, error) {
	done := make(chan exchangeResult, 1)

	go func() {
		d.mu.Lock()
		defer d.mu.Unlock()

		if d.closed.Load() {
			done <- exchangeResult{err: errors.New("device closed")}
			return
		}

		reply, err := d.dev.Exchange(apdu)
		done <- exchangeResult{reply: reply, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, Classify(ctx.Err())
	case res := <-done:
		if res.err != nil {
			return nil, Classify(res.err)
		}
		return res.reply, nil
	}
}

// Close does not wait for a pending exchange. Closing the HID handle makes
// the blocked read of an abandoned exchange return.
func (d *ledgerDevice) Close() error {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		d.closeErr = d.dev.Close()
	})

	return d.closeErr
}

// getPublicKeyAPDU frames the Ethereum app GET ETH PUBLIC ADDRESS command:
// E0 02 P1 P2 Lc [depth] [depth x uint32 BE].
func getPublicKeyAPDU(path string, display bool, chainCode bool) ([]byte, error) {
	indices, err := hd.Parse(path)
	if err != nil {
		return nil, err
	}
	if len(indices) == 0 || len(indices) > maxPathDepth {
		return nil, fmt.Errorf("unsupported derivation path depth %d", len(indices))
	}

	p1, p2 := p1NoDisplay, p2NoChainCode
	if display {
		p1 = p1Display
	}
	if chainCode {
		p2 = p2WithChainCode
	}

	data := make([]byte, 1+4*len(indices))
	data[0] = byte(len(indices))
	for i, idx := range indices {
		binary.BigEndian.PutUint32(data[1+4*i:], idx)
	}

	apdu := make([]byte, 0, 5+len(data))
	apdu = append(apdu, ethCLA, ethInsGetPublicKey, p1, p2, byte(len(data)))
	apdu = append(apdu, data...)

	return apdu, nil
}

// parseGetPublicKeyReply decodes [pkLen][pk][addrLen][addr][chainCode?].
func parseGetPublicKeyReply(reply []byte, chainCode bool) (*AddressResponse, error) {
	if len(reply) < 1 {
		return nil, errors.New("empty reply")
	}

	pkLen := int(reply[0])
	if len(reply) < 1+pkLen+1 {
		return nil, fmt.Errorf("reply too short for public key of %d bytes", pkLen)
	}
	publicKey := reply[1 : 1+pkLen]

	rest := reply[1+pkLen:]
	addrLen := int(rest[0])
	if len(rest) < 1+addrLen {
		return nil, fmt.Errorf("reply too short for address of %d bytes", addrLen)
	}
	addr := string(rest[1 : 1+addrLen])
	rest = rest[1+addrLen:]

	resp := &AddressResponse{
		PublicKey: append([]byte(nil), publicKey...),
		Address:   addr,
	}

	if chainCode {
		if len(rest) < chainCodeSize {
			return nil, fmt.Errorf("reply too short for chain code: %d bytes", len(rest))
		}
		resp.ChainCode = append([]byte(nil), rest[:chainCodeSize]...)
	}

	return resp, nil
}
