package interfaces

import (
	"context"

	domaintypes "nyx/internal/domain/types"
)

// MessageStore is the shared document store holding conversations and their
// messages. Watches follow the SignalingStore rules: current state first,
// then every later change, in order, on one goroutine per watch.
type MessageStore interface {
	// OpenConversation creates c if it does not exist, otherwise merges its
	// participant names into the stored document.
	OpenConversation(ctx context.Context, c domaintypes.Conversation) error
	// SendMessage stores m, assigning its id and creation time, and updates
	// the conversation preview and the other participant's unread count.
	SendMessage(ctx context.Context, m domaintypes.ChatMessage) (domaintypes.ChatMessage, error)
	ListMessages(ctx context.Context, id domaintypes.ConversationID) ([]domaintypes.ChatMessage, error)
	ListConversations(ctx context.Context, user domaintypes.UserID) ([]domaintypes.Conversation, error)
	// MarkRead marks every message not sent by reader as seen and resets
	// reader's unread count.
	MarkRead(ctx context.Context, id domaintypes.ConversationID, reader domaintypes.UserID) error
	SetTyping(ctx context.Context, id domaintypes.ConversationID, user domaintypes.UserID, typing bool) error
	// React sets user's reaction on a message. An empty emoji removes it.
	React(ctx context.Context, id domaintypes.MessageID, user domaintypes.UserID, emoji string) error

	WatchMessages(
		ctx context.Context,
		id domaintypes.ConversationID,
		fn func(domaintypes.MessageChange),
	) (Unsubscribe, error)
	WatchConversations(
		ctx context.Context,
		user domaintypes.UserID,
		fn func(domaintypes.ConversationChange),
	) (Unsubscribe, error)
}
