package provider

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrUnavailable is matched by every *UnavailableError.
var ErrUnavailable = errors.New("provider unavailable")

// ConstructionError is returned when the underlying client could not be
// created. Params never contain API keys.
type ConstructionError struct {
	Kind   Kind
	Params map[string]string
	Err    error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("failed to construct %s provider (%s): %v", e.Kind, formatParams(e.Params), e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// UnavailableError is a non-fatal absence, e.g. no injected wallet or no API key.
type UnavailableError struct {
	Kind   Kind
	Reason string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s provider not available: %s", e.Kind, e.Reason)
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}

func formatParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}

	return strings.Join(parts, " ")
}
