package relay

import (
	"context"
	"fmt"
	"net/http"

	"nyx/internal/domain"
)

func (c *Client) OpenConversation(ctx context.Context, conv domain.Conversation) error {
	if conv.ID == "" {
		return fmt.Errorf("open conversation: %w: empty id", domain.ErrInvalidFormat)
	}
	return c.do(ctx, http.MethodPut, conversationPath(conv.ID), conv, nil)
}

func (c *Client) SendMessage(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	if msg.ConversationID == "" {
		return domain.ChatMessage{}, fmt.Errorf("send message: %w: empty conversation", domain.ErrInvalidFormat)
	}
	var stored domain.ChatMessage
	if err := c.do(ctx, http.MethodPost, messagesPath(msg.ConversationID), msg, &stored); err != nil {
		return domain.ChatMessage{}, err
	}
	return stored, nil
}

func (c *Client) ListMessages(ctx context.Context, id domain.ConversationID) ([]domain.ChatMessage, error) {
	var msgs []domain.ChatMessage
	if err := c.do(ctx, http.MethodGet, messagesPath(id), nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) ListConversations(ctx context.Context, user domain.UserID) ([]domain.Conversation, error) {
	var convs []domain.Conversation
	if err := c.do(ctx, http.MethodGet, userConversationsPath(user), nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

func (c *Client) MarkRead(ctx context.Context, id domain.ConversationID, reader domain.UserID) error {
	return c.do(ctx, http.MethodPost, readPath(id), readBody{Reader: reader}, nil)
}

func (c *Client) SetTyping(ctx context.Context, id domain.ConversationID, user domain.UserID, typing bool) error {
	return c.do(ctx, http.MethodPut, typingPath(id, user), typingBody{Typing: typing}, nil)
}

func (c *Client) React(ctx context.Context, id domain.MessageID, user domain.UserID, emoji string) error {
	return c.do(ctx, http.MethodPut, reactionPath(id, user), reactionBody{Emoji: emoji}, nil)
}

func (c *Client) WatchMessages(
	ctx context.Context,
	id domain.ConversationID,
	fn func(domain.MessageChange),
) (domain.Unsubscribe, error) {
	return watch(ctx, c, watchMessagesPath(id), true, fn, func() domain.MessageChange {
		return domain.MessageChange{Kind: domain.ChangeLost}
	})
}

func (c *Client) WatchConversations(
	ctx context.Context,
	user domain.UserID,
	fn func(domain.ConversationChange),
) (domain.Unsubscribe, error) {
	return watch(ctx, c, watchConversationsPath(user), true, fn, func() domain.ConversationChange {
		return domain.ConversationChange{Kind: domain.ChangeLost}
	})
}
