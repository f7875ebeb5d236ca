package message

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"gopkg.in/op/go-logging.v1"

	"nyx/internal/crypto"
	"nyx/internal/domain"
)

const (
	// EncryptionFailedText is displayed in place of a message that could not
	// be sealed.
	EncryptionFailedText = "⚠️ Encryption Failed"
	// UnreadableText is displayed in place of a message that could not be
	// opened.
	UnreadableText = "🔒 Unreadable Message"
)

// Result is the outcome of sealing or opening one payload. Exactly one of
// Text and Err is meaningful.
type Result struct {
	Text string
	Err  error
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Display returns Text, or the placeholder for the failure.
func (r Result) Display() string {
	switch {
	case r.Err == nil:
		return r.Text
	case errors.Is(r.Err, domain.ErrUnreadable):
		return UnreadableText
	default:
		return EncryptionFailedText
	}
}

func failed(err error) Result { return Result{Err: err} }

// Service seals, sends and opens messages for the local identity.
type Service struct {
	me     domain.Identity
	dir    domain.Directory
	store  domain.MessageStore
	blobs  domain.BlobStore
	blocks domain.BlockList
	log    *logging.Logger

	mu     sync.Mutex
	keys   map[domain.UserID]domain.X25519Public
	opened map[domain.UserID]domain.ConversationID
}

// New returns a message service acting as me.
func New(
	me domain.Identity,
	dir domain.Directory,
	store domain.MessageStore,
	blobs domain.BlobStore,
	blocks domain.BlockList,
	log *logging.Logger,
) *Service {
	return &Service{
		me:     me,
		dir:    dir,
		store:  store,
		blobs:  blobs,
		blocks: blocks,
		log:    log,
		keys:   make(map[domain.UserID]domain.X25519Public),
		opened: make(map[domain.UserID]domain.ConversationID),
	}
}

// Encrypt seals text for peer. Blocked peers are refused.
func (s *Service) Encrypt(ctx context.Context, peer domain.UserID, text string) Result {
	if err := s.checkBlocked(peer); err != nil {
		return failed(err)
	}
	pub, err := s.peerKey(ctx, peer)
	if err != nil {
		return failed(fmt.Errorf("%w: %w", domain.ErrEncryptionFailed, err))
	}
	env, err := crypto.EncryptMessage(text, s.me.SecretKey, pub)
	if err != nil {
		s.log.Warningf("encrypt for %s: %v", peer, err)
		return failed(err)
	}
	return Result{Text: env}
}

// Decrypt opens an envelope sent by peer.
func (s *Service) Decrypt(ctx context.Context, peer domain.UserID, envelope string) Result {
	pub, err := s.peerKey(ctx, peer)
	if err != nil {
		return failed(fmt.Errorf("%w: %w", domain.ErrUnreadable, err))
	}
	text, err := crypto.DecryptMessage(envelope, s.me.SecretKey, pub)
	if err != nil {
		s.log.Debugf("decrypt from %s: %v", peer, err)
		return failed(err)
	}
	return Result{Text: text}
}

// SealAttachment seals data with a fresh file key, uploads it and returns
// the sealed message that references it.
func (s *Service) SealAttachment(
	ctx context.Context,
	peer domain.UserID,
	data []byte,
	mime, caption string,
) Result {
	if err := s.checkBlocked(peer); err != nil {
		return failed(err)
	}
	env, key, err := crypto.EncryptFile(data)
	if err != nil {
		return failed(err)
	}
	url, err := s.blobs.Upload(ctx, env, mime)
	if err != nil {
		s.log.Warningf("upload attachment: %v", err)
		return failed(fmt.Errorf("%w: upload: %w", domain.ErrEncryptionFailed, err))
	}
	return s.Encrypt(ctx, peer, Attachment{URL: url, Key: key, Caption: caption}.String())
}

// OpenAttachment fetches and opens the file a decrypted message refers to.
func (s *Service) OpenAttachment(ctx context.Context, a Attachment) ([]byte, error) {
	env, err := s.blobs.Fetch(ctx, a.URL)
	if err != nil {
		return nil, err
	}
	data, ok := crypto.DecryptFile(env, a.Key)
	if !ok {
		return nil, fmt.Errorf("attachment: %w", domain.ErrUnreadable)
	}
	return data, nil
}

func (s *Service) checkBlocked(peer domain.UserID) error {
	list, err := s.blocks.Blocked()
	if err != nil {
		return err
	}
	if slices.Contains(list, peer) {
		return fmt.Errorf("%s: %w", peer, domain.ErrBlocked)
	}
	return nil
}

// peerKey resolves and caches the published key of peer.
func (s *Service) peerKey(ctx context.Context, peer domain.UserID) (domain.X25519Public, error) {
	s.mu.Lock()
	pub, ok := s.keys[peer]
	s.mu.Unlock()
	if ok {
		return pub, nil
	}

	p, found, err := s.dir.Lookup(ctx, peer)
	if err != nil {
		return domain.X25519Public{}, err
	}
	if !found {
		return domain.X25519Public{}, fmt.Errorf("profile %s: %w", peer, domain.ErrNotFound)
	}
	pub, err = crypto.PublicKeyFromB64(p.PublicKey)
	if err != nil {
		return domain.X25519Public{}, err
	}

	s.mu.Lock()
	s.keys[peer] = pub
	s.mu.Unlock()
	return pub, nil
}
