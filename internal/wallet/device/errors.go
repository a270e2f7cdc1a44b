package device

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Kind classifies device failures.
type Kind int

const (
	KindTransport Kind = iota
	KindNotConnected
	KindLocked
	KindWrongApp
	KindRejected
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindNotConnected:
		return "not_connected"
	case KindLocked:
		return "locked"
	case KindWrongApp:
		return "wrong_app"
	case KindRejected:
		return "rejected"
	case KindTimeout:
		return "timeout"
	default:
		return "transport"
	}
}

// Hint is a short instruction for the user on how to recover.
func (k Kind) Hint() string {
	switch k {
	case KindNotConnected:
		return "connect the device via USB"
	case KindLocked:
		return "unlock the device with its PIN"
	case KindWrongApp:
		return "open the Ethereum app on the device"
	case KindRejected:
		return "the request was rejected on the device"
	case KindTimeout:
		return "the device did not answer in time"
	default:
		return "check the USB connection and retry"
	}
}

// Status words of the Ethereum app relevant for classification.
const (
	swDenied               uint16 = 0x6985
	swInsNotSupported      uint16 = 0x6D00
	swClaNotSupported      uint16 = 0x6E00
	swAppNotOpen           uint16 = 0x6511
	swLocked               uint16 = 0x5515
	swLockedLegacy         uint16 = 0x6B0C
	swSecurityNotSatisfied uint16 = 0x6982
)

// ErrNotConnected is returned when no device is plugged in.
var ErrNotConnected = &Error{Kind: KindNotConnected, Err: errors.New("no ledger device found")}

// Error is a classified device failure.
type Error struct {
	Kind Kind
	// StatusWord is the APDU status word if the device answered, zero otherwise.
	StatusWord uint16
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("device %s", e.Kind)
	if e.StatusWord != 0 {
		msg += fmt.Sprintf(" (0x%04x)", e.StatusWord)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a classified error, KindTransport otherwise.
func KindOf(err error) Kind {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Kind
	}
	return KindTransport
}

func kindForStatusWord(sw uint16) (Kind, bool) {
	switch sw {
	case swDenied:
		return KindRejected, true
	case swInsNotSupported, swClaNotSupported, swAppNotOpen:
		return KindWrongApp, true
	case swLocked, swLockedLegacy, swSecurityNotSatisfied:
		return KindLocked, true
	default:
		return KindTransport, false
	}
}

var textKinds = []struct {
	kind    Kind
	markers []string
}{
	{KindRejected, []string{"6985", "conditions_not_satisfied", "denied", "rejected"}},
	{KindWrongApp, []string{"6d00", "6e00", "6511", "ins_not_supported", "cla_not_supported", "app not open"}},
	{KindLocked, []string{"5515", "6b0c", "6982", "locked", "security status not satisfied"}},
	{KindNotConnected, []string{"not found", "no ledger", "no device", "not connected", "device (idx"}},
}

// Classify maps an error from the transport onto a *Error. Errors that are
// already classified are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var derr *Error
	if errors.As(err, &derr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindTimeout, Err: err}
	}

	msg := strings.ToLower(err.Error())
	for _, tk := range textKinds {
		for _, m := range tk.markers {
			if strings.Contains(msg, m) {
				return &Error{Kind: tk.kind, Err: err}
			}
		}
	}

	return &Error{Kind: KindTransport, Err: err}
}
