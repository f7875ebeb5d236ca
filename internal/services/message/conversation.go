package message

import (
	"context"
	"errors"
	"fmt"

	"nyx/internal/domain"
)

// Received is a stored message with its content opened.
type Received struct {
	Kind    domain.ChangeKind
	Message domain.ChatMessage
	// Mine is set for messages the local identity sent.
	Mine bool
	Body Result
	// Reply is the opened quote. It is zero unless Message.ReplyTo is set.
	Reply Result
}

// Quote returns a reply reference to r.
func Quote(r Received) *domain.ReplyRef {
	return &domain.ReplyRef{
		ID:       r.Message.ID,
		Content:  r.Message.Content,
		SenderID: r.Message.SenderID,
	}
}

// ConversationWith returns the id of the conversation with peer.
func (s *Service) ConversationWith(peer domain.UserID) domain.ConversationID {
	return domain.ConversationIDFor(s.me.SessionID, peer)
}

// Open creates the conversation with peer on the store, or refreshes the
// participant names of an existing one. Names come from the directory.
func (s *Service) Open(ctx context.Context, peer domain.UserID) (domain.ConversationID, error) {
	if peer == s.me.SessionID {
		return "", fmt.Errorf("open conversation: %w: cannot message yourself", domain.ErrInvalidFormat)
	}
	s.mu.Lock()
	id, ok := s.opened[peer]
	s.mu.Unlock()
	if ok {
		return id, nil
	}

	id = s.ConversationWith(peer)
	conv := domain.Conversation{
		ID:           id,
		Participants: []domain.UserID{s.me.SessionID, peer},
		Names: map[domain.UserID]string{
			s.me.SessionID: s.nameOf(ctx, s.me.SessionID),
			peer:           s.nameOf(ctx, peer),
		},
	}
	if err := s.store.OpenConversation(ctx, conv); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.opened[peer] = id
	s.mu.Unlock()
	return id, nil
}

func (s *Service) nameOf(ctx context.Context, id domain.UserID) string {
	p, found, err := s.dir.Lookup(ctx, id)
	if err != nil {
		s.log.Debugf("lookup %s: %v", id, err)
	}
	if !found || p.Name == "" {
		return domain.UnknownName
	}
	return p.Name
}

// Send seals text for peer and stores it, optionally as a reply.
func (s *Service) Send(
	ctx context.Context,
	peer domain.UserID,
	text string,
	reply *domain.ReplyRef,
) (domain.ChatMessage, error) {
	sealed := s.Encrypt(ctx, peer, text)
	if !sealed.OK() {
		return domain.ChatMessage{}, sealed.Err
	}
	return s.deliver(ctx, peer, sealed.Text, reply)
}

// SendAttachment seals and uploads data, then sends the message that
// references it.
func (s *Service) SendAttachment(
	ctx context.Context,
	peer domain.UserID,
	data []byte,
	mime, caption string,
	reply *domain.ReplyRef,
) (domain.ChatMessage, error) {
	sealed := s.SealAttachment(ctx, peer, data, mime, caption)
	if !sealed.OK() {
		return domain.ChatMessage{}, sealed.Err
	}
	return s.deliver(ctx, peer, sealed.Text, reply)
}

func (s *Service) deliver(
	ctx context.Context,
	peer domain.UserID,
	envelope string,
	reply *domain.ReplyRef,
) (domain.ChatMessage, error) {
	id, err := s.Open(ctx, peer)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	msg, err := s.store.SendMessage(ctx, domain.ChatMessage{
		ConversationID: id,
		SenderID:       s.me.SessionID,
		Content:        envelope,
		Encrypted:      true,
		ReplyTo:        reply,
	})
	if err != nil {
		s.log.Warningf("send to %s: %v", peer, err)
		return domain.ChatMessage{}, err
	}
	s.log.Debugf("sent %s to %s", msg.ID, peer)
	return msg, nil
}

// History returns the conversation with peer, oldest first. A conversation
// that was never opened is empty.
func (s *Service) History(ctx context.Context, peer domain.UserID) ([]Received, error) {
	msgs, err := s.store.ListMessages(ctx, s.ConversationWith(peer))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]Received, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, s.receive(ctx, peer, domain.ChangeAdded, msg))
	}
	return out, nil
}

// Watch follows the conversation with peer. Stored messages arrive first as
// added; a message delivered again after a reconnect arrives as modified. A
// ChangeLost ends the watch.
func (s *Service) Watch(
	ctx context.Context,
	peer domain.UserID,
	fn func(Received),
) (domain.Unsubscribe, error) {
	seen := make(map[domain.MessageID]struct{})
	return s.store.WatchMessages(ctx, s.ConversationWith(peer), func(c domain.MessageChange) {
		if c.Kind == domain.ChangeLost {
			s.log.Warningf("conversation with %s: watch lost", peer)
			fn(Received{Kind: c.Kind})
			return
		}
		if _, ok := seen[c.Message.ID]; ok && c.Kind == domain.ChangeAdded {
			c.Kind = domain.ChangeModified
		}
		seen[c.Message.ID] = struct{}{}
		fn(s.receive(context.Background(), peer, c.Kind, c.Message))
	})
}

func (s *Service) receive(ctx context.Context, peer domain.UserID, kind domain.ChangeKind, msg domain.ChatMessage) Received {
	r := Received{
		Kind:    kind,
		Message: msg,
		Mine:    msg.SenderID == s.me.SessionID,
		Body:    s.open(ctx, peer, msg.Encrypted, msg.Content),
	}
	if msg.ReplyTo != nil {
		r.Reply = s.open(ctx, peer, msg.Encrypted, msg.ReplyTo.Content)
	}
	return r
}

func (s *Service) open(ctx context.Context, peer domain.UserID, encrypted bool, content string) Result {
	if !encrypted {
		return Result{Text: content}
	}
	return s.Decrypt(ctx, peer, content)
}

// Conversations lists the local user's conversations, most recent first.
func (s *Service) Conversations(ctx context.Context) ([]domain.Conversation, error) {
	return s.store.ListConversations(ctx, s.me.SessionID)
}

// WatchConversations follows the local user's conversation list.
func (s *Service) WatchConversations(
	ctx context.Context,
	fn func(domain.ConversationChange),
) (domain.Unsubscribe, error) {
	return s.store.WatchConversations(ctx, s.me.SessionID, fn)
}

// MarkRead marks peer's messages as seen. Failures are only logged.
func (s *Service) MarkRead(ctx context.Context, peer domain.UserID) {
	if err := s.store.MarkRead(ctx, s.ConversationWith(peer), s.me.SessionID); err != nil {
		s.log.Warningf("mark read with %s: %v", peer, err)
	}
}

// SetTyping sets or clears the local user's typing marker. Failures are
// only logged.
func (s *Service) SetTyping(ctx context.Context, peer domain.UserID, typing bool) {
	if err := s.store.SetTyping(ctx, s.ConversationWith(peer), s.me.SessionID, typing); err != nil {
		s.log.Debugf("typing with %s: %v", peer, err)
	}
}

// React sets the local user's reaction on a message. An empty emoji removes
// it.
func (s *Service) React(ctx context.Context, id domain.MessageID, emoji string) error {
	return s.store.React(ctx, id, s.me.SessionID, emoji)
}
