package interfaces

import (
	"context"

	domaintypes "nyx/internal/domain/types"
)

// IdentityService creates, restores and inspects the local identity.
type IdentityService interface {
	Create(ctx context.Context, passphrase, name string) (domaintypes.Identity, string, error)
	Restore(ctx context.Context, passphrase, credential, name string) (domaintypes.Identity, error)
	Load(passphrase string) (domaintypes.Identity, error)
	RecoveryPhrase(passphrase string) (string, error)
	ExportHexSeed(passphrase string) (string, error)
	Profile() (domaintypes.Profile, error)
	PublishProfile(ctx context.Context) error
	BlockList
}

// BlockList exposes the local blocked-user policy.
type BlockList interface {
	Block(ctx context.Context, id domaintypes.UserID) error
	Unblock(ctx context.Context, id domaintypes.UserID) error
	Blocked() ([]domaintypes.UserID, error)
}
