package identity_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"nyx/internal/crypto"
	"nyx/internal/domain"
	nyxlog "nyx/internal/log"
	"nyx/internal/services/identity"
	"nyx/internal/signaling"
	"nyx/internal/store"
)

const (
	pass = "hunter2hunter2"
	knownPhrase = "abandon ability able about above absent absorb abstract absurd abuse access accident"
)

func newService(t *testing.T, dir *signaling.MemoryStore) *identity.Service {
	t.Helper()
	kv, err := store.OpenBoltStore(filepath.Join(t.TempDir(), "nyx.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	backend, err := nyxlog.New("", "DEBUG", true)
	require.NoError(t, err)
	return identity.New(store.NewKeystore(kv), kv, dir, backend.GetLogger("identity"))
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	dir := signaling.NewMemoryStore()
	svc := newService(t, dir)

	id, phrase, err := svc.Create(ctx, pass, "Alice")
	require.NoError(t, err)
	require.Len(t, strings.Fields(phrase), crypto.PhraseWords)

	derived, err := crypto.DeriveIdentity(phrase)
	require.NoError(t, err)
	require.Equal(t, derived, id)

	loaded, err := svc.Load(pass)
	require.NoError(t, err)
	require.Equal(t, id, loaded)

	got, err := svc.RecoveryPhrase(pass)
	require.NoError(t, err)
	require.Equal(t, phrase, got)

	hexSeed, err := svc.ExportHexSeed(pass)
	require.NoError(t, err)
	require.Equal(t, crypto.HexSeed(id.Seed), hexSeed)

	p, ok, err := dir.Lookup(ctx, id.SessionID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Alice", p.Name)
	require.Equal(t, identity.DefaultBio, p.Bio)
	pub, err := crypto.PublicKeyFromB64(p.PublicKey)
	require.NoError(t, err)
	require.Equal(t, id.PublicKey, pub)

	_, err = svc.Load("not the passphrase")
	require.True(t, identity.IsWrongPassphrase(err))
}

func TestCreateRejects(t *testing.T) {
	svc := newService(t, signaling.NewMemoryStore())

	_, _, err := svc.Create(context.Background(), "short", "Alice")
	require.ErrorIs(t, err, domain.ErrWeakPassphrase)

	_, _, err = svc.Create(context.Background(), pass, "   ")
	require.ErrorIs(t, err, domain.ErrInvalidFormat)

	_, err = svc.Load(pass)
	require.ErrorIs(t, err, domain.ErrNoIdentity)
	_, err = svc.Profile()
	require.ErrorIs(t, err, domain.ErrNoIdentity)
}

func TestRestoreKeepsPublishedName(t *testing.T) {
	ctx := context.Background()
	dir := signaling.NewMemoryStore()

	first := newService(t, dir)
	id, phrase, err := first.Create(ctx, pass, "Alice")
	require.NoError(t, err)

	// A second device restores with an upper-cased, badly spaced phrase.
	second := newService(t, dir)
	messy := "  " + strings.ToUpper(strings.ReplaceAll(phrase, " ", "   ")) + " "
	restored, err := second.Restore(ctx, pass, messy, "ignored")
	require.NoError(t, err)
	require.Equal(t, id, restored)

	p, err := second.Profile()
	require.NoError(t, err)
	require.Equal(t, "Alice", p.Name)

	got, err := second.RecoveryPhrase(pass)
	require.NoError(t, err)
	require.Equal(t, phrase, got)
}

func TestRestoreFromHexSeed(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, signaling.NewMemoryStore())

	want, err := crypto.DeriveIdentity(knownPhrase)
	require.NoError(t, err)

	id, err := svc.Restore(ctx, pass, crypto.HexSeed(want.Seed), "")
	require.NoError(t, err)
	require.Equal(t, want, id)

	p, err := svc.Profile()
	require.NoError(t, err)
	require.Equal(t, identity.RestoredName, p.Name)

	_, err = svc.RecoveryPhrase(pass)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Restore(ctx, pass, "not a phrase", "")
	require.ErrorIs(t, err, domain.ErrInvalidCredential)
}

func TestBlockList(t *testing.T) {
	ctx := context.Background()
	dir := signaling.NewMemoryStore()
	svc := newService(t, dir)
	id, _, err := svc.Create(ctx, pass, "Alice")
	require.NoError(t, err)

	list, err := svc.Blocked()
	require.NoError(t, err)
	require.Empty(t, list)

	require.NoError(t, svc.Block(ctx, "05mallory"))
	require.NoError(t, svc.Block(ctx, "05mallory"))
	require.NoError(t, svc.Block(ctx, "05eve"))

	list, err = svc.Blocked()
	require.NoError(t, err)
	require.Equal(t, []domain.UserID{"05mallory", "05eve"}, list)

	p, _, err := dir.Lookup(ctx, id.SessionID)
	require.NoError(t, err)
	require.Equal(t, list, p.BlockedUsers)

	require.NoError(t, svc.Unblock(ctx, "05mallory"))
	list, err = svc.Blocked()
	require.NoError(t, err)
	require.Equal(t, []domain.UserID{"05eve"}, list)
}

func TestRestoreCarriesBlockList(t *testing.T) {
	ctx := context.Background()
	dir := signaling.NewMemoryStore()

	first := newService(t, dir)
	_, phrase, err := first.Create(ctx, pass, "Alice")
	require.NoError(t, err)
	require.NoError(t, first.Block(ctx, "05mallory"))

	second := newService(t, dir)
	_, err = second.Restore(ctx, pass, phrase, "")
	require.NoError(t, err)

	list, err := second.Blocked()
	require.NoError(t, err)
	require.Equal(t, []domain.UserID{"05mallory"}, list)
}
