package identity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"gopkg.in/op/go-logging.v1"

	"nyx/internal/crypto"
	"nyx/internal/domain"
	"nyx/internal/store"
)

const (
	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 8

	// RestoredName is used when a restored identity has no published profile
	// and no name was given.
	RestoredName = "Restored User"
	// DefaultBio is set on every new profile.
	DefaultBio = "Project Nyx User"
)

// Service manages the identity, its profile and the block list.
type Service struct {
	keys domain.IdentityStore
	kv   domain.KeyValueStore
	dir  domain.Directory
	log  *logging.Logger

	mu sync.Mutex
}

// New returns an identity service. keys seals the identity, kv holds the
// profile and block list, and dir is where the profile is published.
func New(keys domain.IdentityStore, kv domain.KeyValueStore, dir domain.Directory, log *logging.Logger) *Service {
	return &Service{keys: keys, kv: kv, dir: dir, log: log}
}

// Create generates a new recovery phrase, derives the identity from it,
// seals both under passphrase and publishes the profile. The phrase is
// returned so the user can write it down.
func (s *Service) Create(ctx context.Context, passphrase, name string) (domain.Identity, string, error) {
	if err := checkPassphrase(passphrase); err != nil {
		return domain.Identity{}, "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Identity{}, "", fmt.Errorf("%w: display name is required", domain.ErrInvalidFormat)
	}

	phrase, err := crypto.GeneratePhrase()
	if err != nil {
		return domain.Identity{}, "", err
	}
	id, err := crypto.DeriveIdentity(phrase)
	if err != nil {
		return domain.Identity{}, "", err
	}
	if err := s.install(ctx, passphrase, id, phrase, name, nil); err != nil {
		return domain.Identity{}, "", err
	}
	s.log.Noticef("created identity %s", id.SessionID)
	return id, phrase, nil
}

// Restore rebuilds the identity from a recovery phrase or hex seed. The
// display name comes from the published profile if there is one, then from
// name, then RestoredName.
func (s *Service) Restore(ctx context.Context, passphrase, credential, name string) (domain.Identity, error) {
	if err := checkPassphrase(passphrase); err != nil {
		return domain.Identity{}, err
	}

	var phrase string
	if !crypto.IsHexCredential(credential) {
		p, err := crypto.NormalizePhrase(credential)
		if err != nil {
			return domain.Identity{}, err
		}
		phrase = p
	}
	id, err := crypto.DeriveIdentity(credential)
	if err != nil {
		return domain.Identity{}, err
	}

	name = strings.TrimSpace(name)
	existing, found, err := s.dir.Lookup(ctx, id.SessionID)
	if err != nil {
		s.log.Warningf("restore: profile lookup failed: %v", err)
	}
	if found && existing.Name != "" {
		name = existing.Name
	}
	if name == "" {
		name = RestoredName
	}

	if err := s.install(ctx, passphrase, id, phrase, name, existing.BlockedUsers); err != nil {
		return domain.Identity{}, err
	}
	s.log.Noticef("restored identity %s", id.SessionID)
	return id, nil
}

// install seals the identity and writes and publishes its profile,
// replacing whatever identity was there.
func (s *Service) install(
	ctx context.Context,
	passphrase string,
	id domain.Identity,
	phrase, name string,
	blocked []domain.UserID,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.keys.SaveIdentity(passphrase, id, phrase); err != nil {
		return err
	}
	if err := store.SetValue(s.kv, domain.KeyBlocked, blocked); err != nil {
		return err
	}
	p := domain.Profile{
		ID:           id.SessionID,
		Name:         name,
		PublicKey:    crypto.B64(id.PublicKey.Slice()),
		Bio:          DefaultBio,
		BlockedUsers: blocked,
	}
	if err := store.SetValue(s.kv, domain.KeyProfile, p); err != nil {
		return err
	}
	s.publishLocked(ctx, p)
	return nil
}

// Load unseals the identity.
func (s *Service) Load(passphrase string) (domain.Identity, error) {
	id, _, err := s.keys.LoadIdentity(passphrase)
	return id, err
}

// RecoveryPhrase returns the 12-word phrase. Identities restored from a hex
// seed have none.
func (s *Service) RecoveryPhrase(passphrase string) (string, error) {
	_, phrase, err := s.keys.LoadIdentity(passphrase)
	if err != nil {
		return "", err
	}
	if phrase == "" {
		return "", fmt.Errorf("recovery phrase: %w: identity was restored from a raw key", domain.ErrNotFound)
	}
	return phrase, nil
}

// ExportHexSeed returns the raw seed as 0x-prefixed hex.
func (s *Service) ExportHexSeed(passphrase string) (string, error) {
	id, _, err := s.keys.LoadIdentity(passphrase)
	if err != nil {
		return "", err
	}
	return crypto.HexSeed(id.Seed), nil
}

// Profile returns the locally stored profile.
func (s *Service) Profile() (domain.Profile, error) {
	var p domain.Profile
	ok, err := store.GetValue(s.kv, domain.KeyProfile, &p)
	if err != nil {
		return domain.Profile{}, err
	}
	if !ok {
		return domain.Profile{}, domain.ErrNoIdentity
	}
	return p, nil
}

// PublishProfile pushes the stored profile to the directory.
func (s *Service) PublishProfile(ctx context.Context) error {
	p, err := s.Profile()
	if err != nil {
		return err
	}
	return s.dir.Publish(ctx, p)
}

// Block adds id to the block list.
func (s *Service) Block(ctx context.Context, id domain.UserID) error {
	return s.editBlocked(ctx, func(list []domain.UserID) []domain.UserID {
		if slices.Contains(list, id) {
			return list
		}
		return append(list, id)
	})
}

// Unblock removes id from the block list.
func (s *Service) Unblock(ctx context.Context, id domain.UserID) error {
	return s.editBlocked(ctx, func(list []domain.UserID) []domain.UserID {
		return slices.DeleteFunc(list, func(u domain.UserID) bool { return u == id })
	})
}

// Blocked returns the block list.
func (s *Service) Blocked() ([]domain.UserID, error) {
	var list []domain.UserID
	if _, err := store.GetValue(s.kv, domain.KeyBlocked, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Service) editBlocked(ctx context.Context, edit func([]domain.UserID) []domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.Blocked()
	if err != nil {
		return err
	}
	list = edit(list)
	if err := store.SetValue(s.kv, domain.KeyBlocked, list); err != nil {
		return err
	}

	var p domain.Profile
	ok, err := store.GetValue(s.kv, domain.KeyProfile, &p)
	if err != nil || !ok {
		return err
	}
	p.BlockedUsers = list
	if err := store.SetValue(s.kv, domain.KeyProfile, p); err != nil {
		return err
	}
	s.publishLocked(ctx, p)
	return nil
}

// publishLocked is best effort: the local state is authoritative and the
// profile is published again on the next start.
func (s *Service) publishLocked(ctx context.Context, p domain.Profile) {
	if err := s.dir.Publish(ctx, p); err != nil {
		s.log.Warningf("publish profile %s: %v", p.ID, err)
	}
}

func checkPassphrase(passphrase string) error {
	if utf8.RuneCountInString(passphrase) < minPassphraseLength {
		return fmt.Errorf("%w: need at least %d characters", domain.ErrWeakPassphrase, minPassphraseLength)
	}
	return nil
}

// IsWrongPassphrase reports whether err means the passphrase did not open
// the keystore.
func IsWrongPassphrase(err error) bool {
	return errors.Is(err, store.ErrWrongPassphrase)
}

// Compile-time assertion that Service implements domain.IdentityService.
var _ domain.IdentityService = (*Service)(nil)
