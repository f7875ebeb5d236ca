package crypto

import (
	"encoding/hex"
	"fmt"
	"strings"

	"nyx/internal/domain"
	"nyx/internal/util/memzero"
)

// SeedFromHex decodes a 32-byte seed written as 64 hex chars, with or
// without a 0x prefix.
func SeedFromHex(s string) (domain.Seed, error) {
	var seed domain.Seed
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return seed, fmt.Errorf("%w: %w", domain.ErrInvalidCredential, domain.ErrInvalidFormat)
	}
	if len(b) != len(seed) {
		return seed, fmt.Errorf("%w: %w: seed is %d bytes", domain.ErrInvalidCredential, domain.ErrInvalidFormat, len(b))
	}
	copy(seed[:], b)
	memzero.Zero(b)
	return seed, nil
}

// SeedFromCredential accepts either a recovery phrase or a hex seed.
func SeedFromCredential(credential string) (domain.Seed, error) {
	if IsHexCredential(credential) {
		return SeedFromHex(credential)
	}
	return SeedFromPhrase(credential)
}

// IsHexCredential reports whether credential looks like a hex seed rather
// than a phrase.
func IsHexCredential(credential string) bool {
	c := strings.TrimSpace(credential)
	if strings.HasPrefix(c, "0x") || strings.HasPrefix(c, "0X") {
		return true
	}
	if strings.ContainsAny(c, " \t\n") || c == "" {
		return false
	}
	_, err := hex.DecodeString(c)
	return err == nil
}

// HexSeed renders seed as 0x-prefixed lowercase hex.
func HexSeed(seed domain.Seed) string {
	return "0x" + hex.EncodeToString(seed[:])
}

// DeriveIdentity builds the full identity for a phrase or hex seed.
func DeriveIdentity(credential string) (domain.Identity, error) {
	seed, err := SeedFromCredential(credential)
	if err != nil {
		return domain.Identity{}, err
	}
	return IdentityFromSeed(seed)
}

// IdentityFromSeed derives the keypair and session id of seed.
func IdentityFromSeed(seed domain.Seed) (domain.Identity, error) {
	pub, sec, err := KeypairFromSeed(seed)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{
		Seed:      seed,
		PublicKey: pub,
		SecretKey: sec,
		SessionID: SessionIDFromSeed(seed),
	}, nil
}
