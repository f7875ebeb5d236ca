package relay_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"nyx/internal/domain"
)

func TestConversationRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := domain.ConversationIDFor("05alice", "05bob")

	require.NoError(t, f.client.OpenConversation(ctx, domain.Conversation{
		ID:           id,
		Participants: []domain.UserID{"05alice", "05bob"},
		Names:        map[domain.UserID]string{"05alice": "Alice"},
	}))

	msgs := make(chan domain.MessageChange, 8)
	unsub, err := f.client.WatchMessages(ctx, id, func(c domain.MessageChange) { msgs <- c })
	require.NoError(t, err)
	defer unsub()

	convs := make(chan domain.ConversationChange, 8)
	unsubConvs, err := f.client.WatchConversations(ctx, "05bob", func(c domain.ConversationChange) { convs <- c })
	require.NoError(t, err)
	defer unsubConvs()
	require.Equal(t, domain.ChangeAdded, next(t, convs).Kind)

	sent, err := f.client.SendMessage(ctx, domain.ChatMessage{
		ConversationID: id,
		SenderID:       "05alice",
		Content:        "sealed",
		Encrypted:      true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, sent.ID)

	c := next(t, msgs)
	require.Equal(t, domain.ChangeAdded, c.Kind)
	require.Equal(t, sent, c.Message)

	conv := next(t, convs).Conversation
	require.Equal(t, domain.EncryptedPreview, conv.LastMessage)
	require.Equal(t, 1, conv.UnreadCounts["05bob"])

	require.NoError(t, f.client.SetTyping(ctx, id, "05bob", true))
	require.Contains(t, next(t, convs).Conversation.Typing, domain.UserID("05bob"))

	require.NoError(t, f.client.MarkRead(ctx, id, "05bob"))
	c = next(t, msgs)
	require.Equal(t, domain.ChangeModified, c.Kind)
	require.True(t, c.Message.Seen)

	require.NoError(t, f.client.React(ctx, sent.ID, "05bob", "❤️"))
	require.Equal(t, "❤️", next(t, msgs).Message.Reactions["05bob"])

	list, err := f.client.ListMessages(ctx, id)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.True(t, list[0].Seen)

	mine, err := f.client.ListConversations(ctx, "05bob")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Zero(t, mine[0].UnreadCounts["05bob"])
	require.Equal(t, "Alice", mine[0].Names["05alice"])

	none, err := f.client.ListConversations(ctx, "05carol")
	require.NoError(t, err)
	require.Empty(t, none)

	require.Equal(t, 1.0, f.metric(t, "nyx_relay_messages_total"))
	require.Equal(t, 1.0, f.metric(t, "nyx_relay_conversations"))
}

func TestConversationErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := domain.ConversationIDFor("05alice", "05bob")

	_, err := f.client.SendMessage(ctx, domain.ChatMessage{ConversationID: id, SenderID: "05alice", Content: "x"})
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.client.ListMessages(ctx, id)
	require.ErrorIs(t, err, domain.ErrNotFound)

	err = f.client.OpenConversation(ctx, domain.Conversation{ID: "bogus", Participants: []domain.UserID{"05alice", "05bob"}})
	require.ErrorIs(t, err, domain.ErrInvalidFormat)

	require.ErrorIs(t, f.client.React(ctx, "missing", "05alice", "x"), domain.ErrNotFound)
	require.ErrorIs(t, f.client.MarkRead(ctx, id, "05alice"), domain.ErrNotFound)
	require.ErrorIs(t, f.client.MarkRead(ctx, id, ""), domain.ErrInvalidFormat)
}
