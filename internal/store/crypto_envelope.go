package store

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const (
	// The current supported version of the sealed blob format.
	keystoreFormatVersion = 1
)

var (
	// ErrWrongPassphrase is returned when the passphrase is incorrect or the
	// sealed blob has been modified.
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted keystore")
)

// blob holds the ciphertext and the KDF parameters needed to open it.
type blob struct {
	V      int    `cbor:"1,keyasint"`
	Salt   []byte `cbor:"2,keyasint"`
	N      int    `cbor:"3,keyasint"`
	R      int    `cbor:"4,keyasint"`
	P      int    `cbor:"5,keyasint"`
	Cipher []byte `cbor:"6,keyasint"`
}

// kdfParams are the scrypt cost parameters.
type kdfParams struct{ N, R, P int }

func defaultKDF() kdfParams { return kdfParams{N: 1 << 15, R: 8, P: 1} }

// seal derives a key from passphrase and encrypts raw into a CBOR blob.
func seal(passphrase string, raw []byte, kdf kdfParams) ([]byte, error) {
	var salt [16]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return nil, err
	}
	key, err := scrypt.Key([]byte(passphrase), salt[:], kdf.N, kdf.R, kdf.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	// A fresh salt means a fresh key, so a zero nonce is never reused.
	var nonce [chacha20poly1305.NonceSize]byte
	ct := aead.Seal(nil, nonce[:], raw, salt[:])

	return cbor.Marshal(blob{
		V:      keystoreFormatVersion,
		Salt:   salt[:],
		N:      kdf.N,
		R:      kdf.R,
		P:      kdf.P,
		Cipher: ct,
	})
}

// open decrypts a blob produced by seal.
func open(passphrase string, b []byte) ([]byte, error) {
	var bl blob
	if err := cbor.Unmarshal(b, &bl); err != nil {
		return nil, fmt.Errorf("decode keystore: %w", err)
	}
	if bl.V > keystoreFormatVersion {
		return nil, fmt.Errorf("unsupported keystore version %d", bl.V)
	}

	key, err := scrypt.Key([]byte(passphrase), bl.Salt, bl.N, bl.R, bl.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	var nonce [chacha20poly1305.NonceSize]byte
	pt, err := aead.Open(nil, nonce[:], bl.Cipher, bl.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}
