package store_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"nyx/internal/crypto"
	"nyx/internal/domain"
	"nyx/internal/store"
)

func openBolt(t *testing.T, dir string) *store.BoltStore {
	t.Helper()
	s, err := store.OpenBoltStore(filepath.Join(dir, "nyx.db"))
	require.NoError(t, err)
	return s
}

func TestBoltStoreGetSetDelete(t *testing.T) {
	s := openBolt(t, t.TempDir())
	defer s.Close()

	_, ok, err := s.Get("missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set("k", []byte("v1")))
	v, ok, err := s.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)

	require.NoError(t, s.Delete("k"))
	require.NoError(t, s.Delete("k"))
	_, ok, err = s.Get("k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestValuesSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	s := openBolt(t, dir)
	require.NoError(t, store.SetValue(s, domain.KeyBlocked, []domain.UserID{"05aa", "05bb"}))
	require.NoError(t, s.Close())

	s = openBolt(t, dir)
	defer s.Close()
	var got []domain.UserID
	ok, err := store.GetValue(s, domain.KeyBlocked, &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []domain.UserID{"05aa", "05bb"}, got)
}

func TestKeystoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	phrase, err := crypto.GeneratePhrase()
	require.NoError(t, err)
	id, err := crypto.DeriveIdentity(phrase)
	require.NoError(t, err)

	s := openBolt(t, dir)
	ks := store.NewKeystore(s)
	_, _, err = ks.LoadIdentity("correct horse")
	require.ErrorIs(t, err, domain.ErrNoIdentity)

	require.NoError(t, ks.SaveIdentity("correct horse", id, phrase))
	require.NoError(t, s.Close())

	// The seed is never stored in the clear.
	raw, err := os.ReadFile(filepath.Join(dir, "nyx.db"))
	require.NoError(t, err)
	require.NotContains(t, string(raw), string(id.Seed[:]))
	require.False(t, strings.Contains(string(raw), phrase))

	s = openBolt(t, dir)
	defer s.Close()
	ks = store.NewKeystore(s)

	got, gotPhrase, err := ks.LoadIdentity("correct horse")
	require.NoError(t, err)
	require.Equal(t, id, got)
	require.Equal(t, phrase, gotPhrase)

	_, _, err = ks.LoadIdentity("wrong horse")
	require.ErrorIs(t, err, store.ErrWrongPassphrase)
}

func TestDirBlobStore(t *testing.T) {
	ctx := context.Background()
	bs, err := store.NewDirBlobStore(filepath.Join(t.TempDir(), "blobs"))
	require.NoError(t, err)

	url, err := bs.Upload(ctx, []byte("envelope"), "image/png")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "file://"))

	got, err := bs.Fetch(ctx, url)
	require.NoError(t, err)
	require.Equal(t, []byte("envelope"), got)

	_, err = bs.Fetch(ctx, "file:///etc/passwd")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = bs.Fetch(ctx, "https://example.com/x")
	require.ErrorIs(t, err, domain.ErrInvalidFormat)
	_, err = bs.Fetch(ctx, strings.TrimSuffix(url, ".bin")+"-gone.bin")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
