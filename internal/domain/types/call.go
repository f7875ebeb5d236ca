package types

import "time"

// CallStatus is the local state of the call state machine.
type CallStatus string

const (
	CallIdle      CallStatus = "idle"
	CallOutgoing  CallStatus = "outgoing"
	CallIncoming  CallStatus = "incoming"
	CallConnected CallStatus = "connected"
	CallError     CallStatus = "error"
)

// CallType selects the media a call carries.
type CallType string

const (
	CallAudio CallType = "audio"
	CallVideo CallType = "video"
)

// TrackKind is the media kind of a track.
type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// TrackInfo is a snapshot of one local or remote media track.
type TrackInfo struct {
	ID       string
	StreamID string
	Kind     TrackKind
	Enabled  bool
}

// CallSession is a snapshot of the state machine. Zero value is not valid;
// use IdleSession.
type CallSession struct {
	Status           CallStatus
	PartnerID        UserID
	PartnerName      string
	CallType         CallType
	ConnectionStatus string
	IsMuted          bool
	IsVideoOff       bool
	CallStartTime    time.Time
	ErrorMessage     string
	LocalTracks      []TrackInfo
	RemoteTracks     []TrackInfo
}

// IdleSession returns the session every manager starts and ends in.
func IdleSession() CallSession {
	return CallSession{
		Status:           CallIdle,
		CallType:         CallVideo,
		ConnectionStatus: "new",
	}
}

// Active reports whether the session holds a call in any phase.
func (s CallSession) Active() bool {
	return s.Status == CallOutgoing || s.Status == CallIncoming || s.Status == CallConnected
}
