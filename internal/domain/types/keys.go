package types

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// X25519Private is a Curve25519 secret scalar. It is used unclamped; X25519
// clamps internally.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// Seed is the 32 bytes every key of an identity is derived from.
type Seed [32]byte

// Slice returns the seed as a []byte.
func (s Seed) Slice() []byte { return s[:] }
