package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/nacl/box"

	"nyx/internal/domain"
)

const nonceSize = 24

// EncryptMessage seals text for theirs with nacl box and returns
// base64(nonce || ciphertext).
func EncryptMessage(text string, mine domain.X25519Private, theirs domain.X25519Public) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrEncryptionFailed, err)
	}
	sk := [32]byte(mine)
	pk := [32]byte(theirs)
	out := box.Seal(nonce[:], []byte(text), &nonce, &pk, &sk)
	return base64.StdEncoding.EncodeToString(out), nil
}

// DecryptMessage opens an envelope produced by EncryptMessage. Every failure
// is reported as ErrUnreadable and no plaintext is returned.
func DecryptMessage(envelope string, mine domain.X25519Private, theirs domain.X25519Public) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return "", fmt.Errorf("%w: bad encoding", domain.ErrUnreadable)
	}
	if len(raw) < nonceSize+box.Overhead {
		return "", fmt.Errorf("%w: short envelope", domain.ErrUnreadable)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	sk := [32]byte(mine)
	pk := [32]byte(theirs)
	pt, ok := box.Open(nil, raw[nonceSize:], &nonce, &pk, &sk)
	if !ok {
		return "", domain.ErrUnreadable
	}
	if !utf8.Valid(pt) {
		return "", fmt.Errorf("%w: not utf-8", domain.ErrUnreadable)
	}
	return string(pt), nil
}
