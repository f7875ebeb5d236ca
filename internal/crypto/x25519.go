package crypto

import (
	"crypto/sha512"
	"encoding/hex"

	"golang.org/x/crypto/curve25519"

	"nyx/internal/domain"
)

// sessionIDHexLen is the number of hash hex chars after the "05" prefix.
const sessionIDHexLen = 22

// KeypairFromSeed uses seed directly as the Curve25519 secret scalar.
// Clamping happens inside X25519, so the stored secret stays the raw seed.
func KeypairFromSeed(seed domain.Seed) (pub domain.X25519Public, sec domain.X25519Private, err error) {
	copy(sec[:], seed[:])
	pb, err := curve25519.X25519(sec.Slice(), curve25519.Basepoint)
	if err != nil {
		return domain.X25519Public{}, domain.X25519Private{}, err
	}
	copy(pub[:], pb)
	return pub, sec, nil
}

// SessionIDFromSeed returns "05" followed by the first 22 hex chars of
// SHA-512(seed).
func SessionIDFromSeed(seed domain.Seed) domain.UserID {
	sum := sha512.Sum512(seed[:])
	return domain.UserID("05" + hex.EncodeToString(sum[:])[:sessionIDHexLen])
}
