package domain

import "errors"

var (
	// ErrInvalidCredential is returned for a malformed recovery phrase or hex seed.
	ErrInvalidCredential = errors.New("invalid recovery phrase or key")
	// ErrInvalidFormat is returned when encoded input has the wrong shape.
	ErrInvalidFormat = errors.New("invalid format")
	// ErrEncryptionFailed is returned when a payload could not be sealed.
	ErrEncryptionFailed = errors.New("encryption failed")
	// ErrUnreadable is returned when a payload could not be opened.
	ErrUnreadable = errors.New("unreadable message")
	// ErrDeviceAcquisition is returned when capture devices are unavailable.
	ErrDeviceAcquisition = errors.New("failed to access media devices")
	// ErrTransportFailed is returned when the peer connection could not be set up.
	ErrTransportFailed = errors.New("transport setup failed")
	// ErrRemoteUnavailable is returned when the signaling store or directory cannot be reached.
	ErrRemoteUnavailable = errors.New("remote store unavailable")
	// ErrBlocked is returned when the partner is on the blocked list.
	ErrBlocked = errors.New("user is blocked")
	// ErrNoActiveCall is returned by answer/reject without an incoming call.
	ErrNoActiveCall = errors.New("no active call")
	// ErrNotFound is returned when a record or profile does not exist.
	ErrNotFound = errors.New("not found")
	// ErrWeakPassphrase is returned when a passphrase does not meet the minimum length.
	ErrWeakPassphrase = errors.New("passphrase too short")
	// ErrNoIdentity is returned before an identity has been created or restored.
	ErrNoIdentity = errors.New("no identity on this device")
)
