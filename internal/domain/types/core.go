package types

// UserID is a session identifier: "05" followed by 22 lowercase hex chars.
type UserID string

// String returns the string form of the user identifier.
func (u UserID) String() string { return string(u) }

// CallID identifies a signaling record.
type CallID string

// String returns the string form of the call identifier.
func (id CallID) String() string { return string(id) }

// KV names used with the local key-value store.
const (
	KeyIdentity    = "identity"
	KeyProfile     = "profile"
	KeyBlocked     = "blocked_users"
)
