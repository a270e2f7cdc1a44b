package wallet

import (
	"encoding/hex"
	"encoding/json"

	"github.com/google/uuid"
	"github/chapool/go-ledger-wallet/internal/validation"
)

// ValidationError reports bad caller input, naming the offending field.
type ValidationError = validation.Error

// MaxAddressCount bounds the number of addresses a single Open derives.
// Keep in sync with the lte tag of Configuration.AddressCount.
const MaxAddressCount = 1 << 16

// Configuration is the caller supplied input of Open.
type Configuration struct {
	// AddressCount is the number of child addresses to derive, required.
	AddressCount *int `json:"addressCount" validate:"required,gte=0,lte=65536"`
	// ChainID defaults to the configured default chain (mainnet) when nil.
	ChainID *int64 `json:"chainId,omitempty" validate:"omitempty,gt=0"`
}

// Validate checks the shape of c without mutating it.
func (c Configuration) Validate() error {
	return validation.Struct(c)
}

// Address is a derived child address.
type Address struct {
	Index   uint32 `json:"index"`
	Path    string `json:"path"`
	Address string `json:"address"`
}

// Wallet is the read-only result of opening a hardware wallet. All addresses
// are derived at construction time from the root key material.
type Wallet struct {
	ID                 uuid.UUID
	PublicKey          []byte
	ChainCode          []byte
	RootDerivationPath string
	ChainID            int64

	addresses []Address
}

// Addresses returns a copy of the derived addresses in index order.
func (w *Wallet) Addresses() []Address {
	return append([]Address(nil), w.addresses...)
}

// Address returns the address derived at index i.
func (w *Wallet) Address(i int) (Address, bool) {
	if i < 0 || i >= len(w.addresses) {
		return Address{}, false
	}
	return w.addresses[i], true
}

func (w *Wallet) Len() int {
	return len(w.addresses)
}

type walletJSON struct {
	ID                 string    `json:"id"`
	PublicKey          string    `json:"publicKey"`
	ChainCode          string    `json:"chainCode"`
	RootDerivationPath string    `json:"rootDerivationPath"`
	ChainID            int64     `json:"chainId"`
	Addresses          []Address `json:"addresses"`
}

func (w *Wallet) MarshalJSON() ([]byte, error) {
	return json.Marshal(walletJSON{
		ID:                 w.ID.String(),
		PublicKey:          hex.EncodeToString(w.PublicKey),
		ChainCode:          hex.EncodeToString(w.ChainCode),
		RootDerivationPath: w.RootDerivationPath,
		ChainID:            w.ChainID,
		Addresses:          w.Addresses(),
	})
}
