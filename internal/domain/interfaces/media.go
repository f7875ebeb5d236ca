package interfaces

import (
	"context"

	domaintypes "nyx/internal/domain/types"
)

// MediaDevices acquires local capture devices.
type MediaDevices interface {
	GetUserMedia(ctx context.Context, c domaintypes.Constraints) (LocalStream, error)
}

// LocalStream is a set of captured tracks. Stop releases every device.
type LocalStream interface {
	ID() string
	Tracks() []LocalTrack
	Stop()
}

// LocalTrack is a single captured track.
type LocalTrack interface {
	ID() string
	Kind() domaintypes.TrackKind
	Enabled() bool
	SetEnabled(bool)
	Stop()
}
