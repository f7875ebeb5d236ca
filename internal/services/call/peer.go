package call

import "nyx/internal/domain"

// PeerConnection is the subset of a WebRTC peer connection the Manager
// drives. Callbacks may fire on any goroutine.
type PeerConnection interface {
	AddTrack(track domain.LocalTrack, streamID string) error
	CreateOffer() (domain.SessionDescription, error)
	CreateAnswer() (domain.SessionDescription, error)
	SetLocalDescription(desc domain.SessionDescription) error
	SetRemoteDescription(desc domain.SessionDescription) error
	AddICECandidate(c domain.ICECandidate) error

	OnICECandidate(fn func(domain.ICECandidate))
	OnTrack(fn func(domain.TrackInfo))
	OnICEConnectionStateChange(fn func(state string))

	Close() error
}

// PeerFactory creates a fresh peer connection for each call.
type PeerFactory func() (PeerConnection, error)

// ICE connection states the Manager reacts to.
const (
	iceFailed = "failed"
	iceClosed = "closed"
)
