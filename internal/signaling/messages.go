package signaling

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"nyx/internal/domain"
	"nyx/internal/util/queue"
)

type msgSub struct {
	sub
	fn func(domain.MessageChange)
}

type convSub struct {
	sub
	fn func(domain.ConversationChange)
}

func (s *msgSub) deliver(c domain.MessageChange) {
	s.post(func() { s.fn(c) })
}

func (s *convSub) deliver(c domain.ConversationChange) {
	s.post(func() { s.fn(c) })
}

// timestamp is the store clock, at millisecond resolution so values survive
// a JSON round trip unchanged.
func timestamp() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// OpenConversation creates c, or merges its names into the existing
// document. c must have exactly two participants and the matching id.
func (m *MemoryStore) OpenConversation(ctx context.Context, c domain.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(c.Participants) != 2 || c.Participants[0] == c.Participants[1] {
		return fmt.Errorf("open conversation: %w: need two participants", domain.ErrInvalidFormat)
	}
	if want := domain.ConversationIDFor(c.Participants[0], c.Participants[1]); c.ID != want {
		return fmt.Errorf("open conversation: %w: id %q, want %q", domain.ErrInvalidFormat, c.ID, want)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kind := domain.ChangeModified
	conv, ok := m.convs[c.ID]
	if !ok {
		kind = domain.ChangeAdded
		participants := slices.Clone(c.Participants)
		slices.Sort(participants)
		conv = &domain.Conversation{
			ID:              c.ID,
			Participants:    participants,
			Names:           make(map[domain.UserID]string),
			LastMessage:     domain.ConversationStarted,
			LastMessageTime: timestamp(),
			UnreadCounts:    map[domain.UserID]int{participants[0]: 0, participants[1]: 0},
		}
		m.convs[c.ID] = conv
	}
	for id, name := range c.Names {
		if conv.Has(id) && name != "" {
			conv.Names[id] = name
		}
	}
	m.emitConvLocked(kind, conv)
	return nil
}

// SendMessage appends msg to its conversation.
func (m *MemoryStore) SendMessage(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return domain.ChatMessage{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.convs[msg.ConversationID]
	if !ok {
		return domain.ChatMessage{}, fmt.Errorf("send to %s: %w", msg.ConversationID, domain.ErrNotFound)
	}
	if !conv.Has(msg.SenderID) {
		return domain.ChatMessage{}, fmt.Errorf("send to %s: %w: %s is not a participant",
			msg.ConversationID, domain.ErrInvalidFormat, msg.SenderID)
	}

	stored := copyMessage(msg)
	stored.ID = domain.MessageID(uuid.NewString())
	stored.CreatedAt = timestamp()
	stored.Seen = false
	stored.Reactions = nil
	m.msgs[conv.ID] = append(m.msgs[conv.ID], &stored)
	m.msgConv[stored.ID] = conv.ID
	m.msgCount++

	conv.LastMessage = preview(stored)
	conv.LastMessageTime = stored.CreatedAt
	if conv.UnreadCounts == nil {
		conv.UnreadCounts = make(map[domain.UserID]int)
	}
	for _, p := range conv.Participants {
		if p != stored.SenderID {
			conv.UnreadCounts[p]++
		}
	}

	m.emitMessageLocked(domain.ChangeAdded, &stored)
	m.emitConvLocked(domain.ChangeModified, conv)
	return copyMessage(stored), nil
}

// ListMessages returns the conversation's messages, oldest first.
func (m *MemoryStore) ListMessages(ctx context.Context, id domain.ConversationID) ([]domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.convs[id]; !ok {
		return nil, fmt.Errorf("list %s: %w", id, domain.ErrNotFound)
	}
	out := make([]domain.ChatMessage, 0, len(m.msgs[id]))
	for _, msg := range m.msgs[id] {
		out = append(out, copyMessage(*msg))
	}
	return out, nil
}

// ListConversations returns user's conversations, most recent first.
func (m *MemoryStore) ListConversations(ctx context.Context, user domain.UserID) ([]domain.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Conversation
	for _, c := range m.convs {
		if c.Has(user) {
			out = append(out, copyConversation(*c))
		}
	}
	slices.SortFunc(out, func(a, b domain.Conversation) int {
		return b.LastMessageTime.Compare(a.LastMessageTime)
	})
	return out, nil
}

// MarkRead marks the messages reader received as seen and zeroes reader's
// unread count.
func (m *MemoryStore) MarkRead(ctx context.Context, id domain.ConversationID, reader domain.UserID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.convs[id]
	if !ok {
		return fmt.Errorf("mark read %s: %w", id, domain.ErrNotFound)
	}
	for _, msg := range m.msgs[id] {
		if msg.SenderID != reader && !msg.Seen {
			msg.Seen = true
			m.emitMessageLocked(domain.ChangeModified, msg)
		}
	}
	if conv.UnreadCounts == nil {
		conv.UnreadCounts = make(map[domain.UserID]int)
	}
	conv.UnreadCounts[reader] = 0
	m.emitConvLocked(domain.ChangeModified, conv)
	return nil
}

// SetTyping records or clears user's typing marker.
func (m *MemoryStore) SetTyping(ctx context.Context, id domain.ConversationID, user domain.UserID, typing bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.convs[id]
	if !ok {
		return fmt.Errorf("typing in %s: %w", id, domain.ErrNotFound)
	}
	if typing {
		if conv.Typing == nil {
			conv.Typing = make(map[domain.UserID]time.Time)
		}
		conv.Typing[user] = timestamp()
	} else {
		delete(conv.Typing, user)
	}
	m.emitConvLocked(domain.ChangeModified, conv)
	return nil
}

// React sets or, with an empty emoji, removes user's reaction to a message.
func (m *MemoryStore) React(ctx context.Context, id domain.MessageID, user domain.UserID, emoji string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	msg := m.messageLocked(id)
	if msg == nil {
		return fmt.Errorf("react to %s: %w", id, domain.ErrNotFound)
	}
	if emoji == "" {
		delete(msg.Reactions, user)
	} else {
		if msg.Reactions == nil {
			msg.Reactions = make(map[domain.UserID]string)
		}
		msg.Reactions[user] = emoji
	}
	m.emitMessageLocked(domain.ChangeModified, msg)
	return nil
}

// WatchMessages delivers every stored message of the conversation as added,
// then later additions and modifications.
func (m *MemoryStore) WatchMessages(
	ctx context.Context,
	id domain.ConversationID,
	fn func(domain.MessageChange),
) (domain.Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := &msgSub{sub: sub{q: queue.New()}, fn: fn}
	subID := addSub(m, m.msgSubs, id, s)
	for _, msg := range m.msgs[id] {
		s.deliver(domain.MessageChange{Kind: domain.ChangeAdded, Message: copyMessage(*msg)})
	}

	return m.unsubscriber(func() {
		removeSub(m.msgSubs, id, subID)
	}, &s.sub), nil
}

// WatchConversations delivers user's conversations as added, then every
// later change to them.
func (m *MemoryStore) WatchConversations(
	ctx context.Context,
	user domain.UserID,
	fn func(domain.ConversationChange),
) (domain.Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := &convSub{sub: sub{q: queue.New()}, fn: fn}
	subID := addSub(m, m.convSubs, user, s)
	for _, c := range m.convs {
		if c.Has(user) {
			s.deliver(domain.ConversationChange{Kind: domain.ChangeAdded, Conversation: copyConversation(*c)})
		}
	}

	return m.unsubscriber(func() {
		removeSub(m.convSubs, user, subID)
	}, &s.sub), nil
}

func (m *MemoryStore) messageLocked(id domain.MessageID) *domain.ChatMessage {
	conv, ok := m.msgConv[id]
	if !ok {
		return nil
	}
	for _, msg := range m.msgs[conv] {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

func (m *MemoryStore) emitMessageLocked(kind domain.ChangeKind, msg *domain.ChatMessage) {
	for _, s := range m.msgSubs[msg.ConversationID] {
		s.deliver(domain.MessageChange{Kind: kind, Message: copyMessage(*msg)})
	}
}

func (m *MemoryStore) emitConvLocked(kind domain.ChangeKind, c *domain.Conversation) {
	for _, p := range c.Participants {
		for _, s := range m.convSubs[p] {
			s.deliver(domain.ConversationChange{Kind: kind, Conversation: copyConversation(*c)})
		}
	}
}

func preview(msg domain.ChatMessage) string {
	if msg.Encrypted {
		return domain.EncryptedPreview
	}
	return msg.Content
}

func copyMessage(msg domain.ChatMessage) domain.ChatMessage {
	if msg.ReplyTo != nil {
		r := *msg.ReplyTo
		msg.ReplyTo = &r
	}
	msg.Reactions = maps.Clone(msg.Reactions)
	return msg
}

func copyConversation(c domain.Conversation) domain.Conversation {
	c.Participants = slices.Clone(c.Participants)
	c.Names = maps.Clone(c.Names)
	c.UnreadCounts = maps.Clone(c.UnreadCounts)
	c.Typing = maps.Clone(c.Typing)
	return c
}
