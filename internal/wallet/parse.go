package wallet

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
	"github/chapool/go-ledger-wallet/internal/validation"
)

// ParseConfiguration decodes a JSON configuration. Anything but a JSON object
// (null, arrays, primitives) is rejected, as are recognized fields of the
// wrong type. Unknown fields are ignored.
func ParseConfiguration(raw []byte) (Configuration, error) {
	var cfg Configuration

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return cfg, validation.Errorf("config", "must be a JSON object")
	}

	if err := json.Unmarshal(trimmed, &cfg); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Configuration{}, validation.Errorf(typeErr.Field, "must be an integer, got %s", typeErr.Value)
		}
		return Configuration{}, validation.Errorf("config", "%v", err)
	}

	return cfg, nil
}
