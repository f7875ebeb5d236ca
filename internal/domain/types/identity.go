package types

// Identity is derived once from a seed and never changes afterwards.
type Identity struct {
	Seed      Seed
	PublicKey X25519Public
	SecretKey X25519Private
	SessionID UserID
}

// Profile is the public directory entry for a user.
type Profile struct {
	ID            UserID   `json:"id"`
	Name          string   `json:"name"`
	PublicKey     string   `json:"publicKey"`
	Bio           string   `json:"bio,omitempty"`
	StatusMessage string   `json:"statusMessage,omitempty"`
	BlockedUsers  []UserID `json:"blockedUsers,omitempty"`
}
