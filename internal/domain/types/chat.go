package types

import (
	"slices"
	"strings"
	"time"
)

// ConversationID identifies the one-to-one conversation between two users.
type ConversationID string

// String returns the string form of the conversation identifier.
func (id ConversationID) String() string { return string(id) }

// MessageID identifies a stored chat message.
type MessageID string

// ConversationIDFor returns the id shared by both participants: their
// session ids sorted and joined with "_".
func ConversationIDFor(a, b UserID) ConversationID {
	ids := []string{string(a), string(b)}
	slices.Sort(ids)
	return ConversationID(strings.Join(ids, "_"))
}

// Conversation previews.
const (
	ConversationStarted = "Chat started"
	EncryptedPreview    = "Encrypted Message"
	UnknownName         = "Unknown"
)

// TypingWindow is how long a typing marker stays current.
const TypingWindow = 5 * time.Second

// Conversation is the shared metadata document of a conversation.
type Conversation struct {
	ID              ConversationID       `json:"id"`
	Participants    []UserID             `json:"participants"`
	Names           map[UserID]string    `json:"names,omitempty"`
	LastMessage     string               `json:"lastMessage"`
	LastMessageTime time.Time            `json:"lastMessageTime"`
	UnreadCounts    map[UserID]int       `json:"unreadCounts,omitempty"`
	Typing          map[UserID]time.Time `json:"typing,omitempty"`
}

// Peer returns the participant that is not me.
func (c Conversation) Peer(me UserID) UserID {
	for _, p := range c.Participants {
		if p != me {
			return p
		}
	}
	return ""
}

// DisplayName returns the stored name of the participant that is not me, or
// a short form of their id.
func (c Conversation) DisplayName(me UserID) string {
	peer := c.Peer(me)
	if name := c.Names[peer]; name != "" {
		return name
	}
	if peer == "" {
		return "Chat"
	}
	short := string(peer)
	if len(short) > 5 {
		short = short[:5]
	}
	return "User " + short
}

// IsTyping reports whether id set a typing marker within TypingWindow of now.
func (c Conversation) IsTyping(id UserID, now time.Time) bool {
	at, ok := c.Typing[id]
	return ok && now.Sub(at) < TypingWindow
}

// Has reports whether id takes part in c.
func (c Conversation) Has(id UserID) bool {
	return slices.Contains(c.Participants, id)
}

// ReplyRef quotes the message being replied to. Content is the quoted
// message's stored content, sealed when the original was.
type ReplyRef struct {
	ID       MessageID `json:"id"`
	Content  string    `json:"content"`
	SenderID UserID    `json:"senderId"`
}

// ChatMessage is one stored message. Content is a sealed envelope when
// Encrypted is set.
type ChatMessage struct {
	ID             MessageID         `json:"id"`
	ConversationID ConversationID    `json:"conversationId"`
	SenderID       UserID            `json:"senderId"`
	Content        string            `json:"content"`
	Encrypted      bool              `json:"encrypted"`
	CreatedAt      time.Time         `json:"createdAt"`
	Seen           bool              `json:"seen"`
	ReplyTo        *ReplyRef         `json:"replyTo,omitempty"`
	Reactions      map[UserID]string `json:"reactions,omitempty"`
}

// MessageChange is delivered to message watchers.
type MessageChange struct {
	Kind    ChangeKind  `json:"kind"`
	Message ChatMessage `json:"message"`
}

// ConversationChange is delivered to conversation list watchers.
type ConversationChange struct {
	Kind         ChangeKind   `json:"kind"`
	Conversation Conversation `json:"conversation"`
}
