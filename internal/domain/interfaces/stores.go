package interfaces

import (
	"context"

	domaintypes "nyx/internal/domain/types"
)

// KeyValueStore is local durable storage addressed by fixed names.
type KeyValueStore interface {
	Get(name string) (value []byte, ok bool, err error)
	Set(name string, value []byte) error
	Delete(name string) error
}

// IdentityStore persists the local identity sealed under a passphrase. The
// recovery phrase is stored alongside when the identity came from one.
type IdentityStore interface {
	SaveIdentity(passphrase string, id domaintypes.Identity, phrase string) error
	LoadIdentity(passphrase string) (domaintypes.Identity, string, error)
}

// BlobStore holds encrypted attachment envelopes.
type BlobStore interface {
	Upload(ctx context.Context, data []byte, mime string) (url string, err error)
	Fetch(ctx context.Context, url string) ([]byte, error)
}
