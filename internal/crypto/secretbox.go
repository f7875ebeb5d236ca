package crypto

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/nacl/secretbox"

	"nyx/internal/util/memzero"
)

// EncryptFile seals data under a fresh random key. It returns
// nonce || ciphertext and the key as base64.
func EncryptFile(data []byte) (envelope []byte, key string, err error) {
	var k [32]byte
	defer memzero.Key(&k)
	var nonce [nonceSize]byte
	if _, err = rand.Read(k[:]); err != nil {
		return nil, "", err
	}
	if _, err = rand.Read(nonce[:]); err != nil {
		return nil, "", err
	}
	envelope = secretbox.Seal(nonce[:], data, &nonce, &k)
	return envelope, B64(k[:]), nil
}

// DecryptFile opens an envelope from EncryptFile. ok is false on any
// failure, including a malformed key.
func DecryptFile(envelope []byte, key string) (data []byte, ok bool) {
	kb, err := base64.StdEncoding.DecodeString(key)
	if err != nil || len(kb) != 32 {
		return nil, false
	}
	if len(envelope) < nonceSize+secretbox.Overhead {
		return nil, false
	}
	var k [32]byte
	defer memzero.Key(&k)
	var nonce [nonceSize]byte
	copy(k[:], kb)
	copy(nonce[:], envelope[:nonceSize])
	data, ok = secretbox.Open(nil, envelope[nonceSize:], &nonce, &k)
	if !ok {
		return nil, false
	}
	return data, true
}
