// Package device talks to a hardware wallet running the Ethereum app.
package device

import (
	"context"
	"encoding/hex"
)

// AddressResponse is the key material the device returns for a path.
type AddressResponse struct {
	// PublicKey is the secp256k1 public key, 65 bytes uncompressed as sent by the device.
	PublicKey []byte
	// ChainCode is empty unless requested.
	ChainCode []byte
	// Address is the hex address as computed by the device, without 0x prefix.
	Address string
}

func (r *AddressResponse) PublicKeyHex() string {
	return hex.EncodeToString(r.PublicKey)
}

func (r *AddressResponse) ChainCodeHex() string {
	return hex.EncodeToString(r.ChainCode)
}

// Device is a connected hardware wallet.
type Device interface {
	// GetAddress returns the key material at path. With display the device
	// shows the address and waits for the user to confirm or reject it.
	// With chainCode the chain code is returned along with the public key.
	GetAddress(ctx context.Context, path string, display bool, chainCode bool) (*AddressResponse, error)

	Close() error
}

// Connector opens a connection to a device.
type Connector interface {
	Connect(ctx context.Context) (Device, error)
}
