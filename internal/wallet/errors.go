package wallet

import (
	"fmt"

	"github.com/pkg/errors"
	"github/chapool/go-ledger-wallet/internal/wallet/device"
)

// ErrAddressMismatch is returned by Verify when the device shows a different
// address than the one derived locally.
var ErrAddressMismatch = errors.New("device address does not match derived address")

// ConnectionError is a device failure during Open or Verify, carrying the
// derivation path that was being requested.
type ConnectionError struct {
	Path string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("hardware wallet connection failed for path %s: %v", e.Path, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Kind returns the classified device failure.
func (e *ConnectionError) Kind() device.Kind {
	return device.KindOf(e.Err)
}
