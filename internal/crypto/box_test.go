package crypto_test

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"nyx/internal/crypto"
	"nyx/internal/domain"
)

func keypair(t *testing.T) (domain.X25519Public, domain.X25519Private) {
	t.Helper()
	var seed domain.Seed
	_, err := rand.Read(seed[:])
	require.NoError(t, err)
	pub, sec, err := crypto.KeypairFromSeed(seed)
	require.NoError(t, err)
	return pub, sec
}

func TestMessageRoundTrip(t *testing.T) {
	aPub, aSec := keypair(t)
	bPub, bSec := keypair(t)

	for _, msg := range []string{"", "hello", "héllo wörld 🔒"} {
		env, err := crypto.EncryptMessage(msg, aSec, bPub)
		require.NoError(t, err)

		got, err := crypto.DecryptMessage(env, bSec, aPub)
		require.NoError(t, err)
		require.Equal(t, msg, got)
	}
}

func TestMessageEnvelopeFreshNonce(t *testing.T) {
	_, aSec := keypair(t)
	bPub, _ := keypair(t)

	e1, err := crypto.EncryptMessage("same", aSec, bPub)
	require.NoError(t, err)
	e2, err := crypto.EncryptMessage("same", aSec, bPub)
	require.NoError(t, err)
	require.NotEqual(t, e1, e2)

	raw, err := base64.StdEncoding.DecodeString(e1)
	require.NoError(t, err)
	require.Len(t, raw, 24+16+len("same"))
}

func TestMessageWrongKeyUnreadable(t *testing.T) {
	aPub, aSec := keypair(t)
	bPub, _ := keypair(t)
	_, cSec := keypair(t)

	env, err := crypto.EncryptMessage("secret", aSec, bPub)
	require.NoError(t, err)

	got, err := crypto.DecryptMessage(env, cSec, aPub)
	require.ErrorIs(t, err, domain.ErrUnreadable)
	require.Empty(t, got)
}

func TestMessageTamperedUnreadable(t *testing.T) {
	aPub, aSec := keypair(t)
	bPub, bSec := keypair(t)

	env, err := crypto.EncryptMessage("secret", aSec, bPub)
	require.NoError(t, err)
	raw, _ := base64.StdEncoding.DecodeString(env)
	raw[len(raw)-1] ^= 0x01

	for _, bad := range []string{
		base64.StdEncoding.EncodeToString(raw),
		"not base64!",
		base64.StdEncoding.EncodeToString([]byte("short")),
	} {
		got, err := crypto.DecryptMessage(bad, bSec, aPub)
		require.ErrorIs(t, err, domain.ErrUnreadable)
		require.Empty(t, got)
	}
}

func TestFileRoundTrip(t *testing.T) {
	data := []byte("\x89PNG not really an image")
	env, key, err := crypto.EncryptFile(data)
	require.NoError(t, err)
	require.Len(t, env, 24+16+len(data))

	got, ok := crypto.DecryptFile(env, key)
	require.True(t, ok)
	require.Equal(t, data, got)
}

func TestFileWrongKey(t *testing.T) {
	env, _, err := crypto.EncryptFile([]byte("payload"))
	require.NoError(t, err)
	_, other, err := crypto.EncryptFile([]byte("other"))
	require.NoError(t, err)

	got, ok := crypto.DecryptFile(env, other)
	require.False(t, ok)
	require.Nil(t, got)

	got, ok = crypto.DecryptFile(env, "%%%")
	require.False(t, ok)
	require.Nil(t, got)

	got, ok = crypto.DecryptFile(env[:10], other)
	require.False(t, ok)
	require.Nil(t, got)
}

func TestFileTamperedUnreadable(t *testing.T) {
	data := []byte("holiday photo")
	env, key, err := crypto.EncryptFile(data)
	require.NoError(t, err)

	const nonceLen, tagLen = 24, 16
	for name, i := range map[string]int{
		"nonce":      0,
		"nonce end":  nonceLen - 1,
		"tag":        nonceLen,
		"tag end":    nonceLen + tagLen - 1,
		"ciphertext": nonceLen + tagLen,
		"last byte":  len(env) - 1,
	} {
		bad := append([]byte(nil), env...)
		bad[i] ^= 0x80
		got, ok := crypto.DecryptFile(bad, key)
		require.False(t, ok, name)
		require.Nil(t, got, name)
	}

	got, ok := crypto.DecryptFile(append(env, 0), key)
	require.False(t, ok)
	require.Nil(t, got)

	got, ok = crypto.DecryptFile(env, key)
	require.True(t, ok)
	require.Equal(t, data, got)
}

func TestPublicKeyFromB64(t *testing.T) {
	pub, _ := keypair(t)
	got, err := crypto.PublicKeyFromB64(crypto.B64(pub[:]))
	require.NoError(t, err)
	require.Equal(t, pub, got)

	_, err = crypto.PublicKeyFromB64("AAAA")
	require.ErrorIs(t, err, domain.ErrInvalidFormat)
}
