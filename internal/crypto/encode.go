package crypto

import (
	"encoding/base64"
	"fmt"

	"nyx/internal/domain"
)

// B64 returns standard base64 encoding without newlines.
func B64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// PublicKeyFromB64 decodes a base64 Curve25519 public key.
func PublicKeyFromB64(s string) (domain.X25519Public, error) {
	var pub domain.X25519Public
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(b) != len(pub) {
		return pub, fmt.Errorf("public key: %w", domain.ErrInvalidFormat)
	}
	copy(pub[:], b)
	return pub, nil
}
