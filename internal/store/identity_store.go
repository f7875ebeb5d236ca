package store

import (
	"sync"

	"github.com/fxamacker/cbor/v2"

	"nyx/internal/crypto"
	"nyx/internal/domain"
	"nyx/internal/util/memzero"
)

// sealedIdentity is what gets encrypted. Keys are re-derived from the seed
// on load.
type sealedIdentity struct {
	Seed   []byte `cbor:"1,keyasint"`
	Phrase string `cbor:"2,keyasint,omitempty"`
}

// Keystore persists the identity inside a KeyValueStore, sealed under a
// passphrase.
type Keystore struct {
	kv  domain.KeyValueStore
	kdf kdfParams
	mu  sync.Mutex
}

// NewKeystore returns a Keystore writing to kv.
func NewKeystore(kv domain.KeyValueStore) *Keystore {
	return &Keystore{kv: kv, kdf: defaultKDF()}
}

// SaveIdentity seals the seed of id and phrase, replacing any previous
// identity.
func (s *Keystore) SaveIdentity(passphrase string, id domain.Identity, phrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := cbor.Marshal(sealedIdentity{Seed: id.Seed.Slice(), Phrase: phrase})
	if err != nil {
		return err
	}
	defer memzero.Zero(raw)

	ct, err := seal(passphrase, raw, s.kdf)
	if err != nil {
		return err
	}
	return s.kv.Set(domain.KeyIdentity, ct)
}

// LoadIdentity opens the sealed identity and re-derives its keys. The
// returned phrase is empty when the identity was restored from a hex seed.
func (s *Keystore) LoadIdentity(passphrase string) (domain.Identity, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok, err := s.kv.Get(domain.KeyIdentity)
	if err != nil {
		return domain.Identity{}, "", err
	}
	if !ok {
		return domain.Identity{}, "", domain.ErrNoIdentity
	}
	pt, err := open(passphrase, b)
	if err != nil {
		return domain.Identity{}, "", err
	}
	defer memzero.Zero(pt)

	var sid sealedIdentity
	if err := cbor.Unmarshal(pt, &sid); err != nil {
		return domain.Identity{}, "", err
	}
	defer memzero.Zero(sid.Seed)

	var seed domain.Seed
	if len(sid.Seed) != len(seed) {
		return domain.Identity{}, "", domain.ErrInvalidFormat
	}
	copy(seed[:], sid.Seed)
	id, err := crypto.IdentityFromSeed(seed)
	if err != nil {
		return domain.Identity{}, "", err
	}
	return id, sid.Phrase, nil
}

// Compile-time assertion that Keystore implements domain.IdentityStore.
var _ domain.IdentityStore = (*Keystore)(nil)
