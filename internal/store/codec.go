package store

import (
	"github.com/fxamacker/cbor/v2"

	"nyx/internal/domain"
)

// GetValue decodes the CBOR value stored under name into out. A missing
// name leaves out untouched and reports false.
func GetValue(kv domain.KeyValueStore, name string, out any) (bool, error) {
	b, ok, err := kv.Get(name)
	if err != nil || !ok {
		return false, err
	}
	if err := cbor.Unmarshal(b, out); err != nil {
		return false, err
	}
	return true, nil
}

// SetValue stores v under name as CBOR.
func SetValue(kv domain.KeyValueStore, name string, v any) error {
	b, err := cbor.Marshal(v)
	if err != nil {
		return err
	}
	return kv.Set(name, b)
}
