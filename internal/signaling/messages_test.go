package signaling_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"nyx/internal/domain"
	"nyx/internal/signaling"
)

const (
	alice domain.UserID = "05aaaa"
	bob   domain.UserID = "05bbbb"
)

func openConversation(t *testing.T, s *signaling.MemoryStore) domain.ConversationID {
	t.Helper()
	id := domain.ConversationIDFor(bob, alice)
	require.Equal(t, domain.ConversationID("05aaaa_05bbbb"), id)
	require.NoError(t, s.OpenConversation(context.Background(), domain.Conversation{
		ID:           id,
		Participants: []domain.UserID{bob, alice},
		Names:        map[domain.UserID]string{alice: "Alice", bob: "Bob"},
	}))
	return id
}

func TestOpenConversationMerges(t *testing.T) {
	ctx := context.Background()
	s := signaling.NewMemoryStore()
	id := openConversation(t, s)

	require.NoError(t, s.OpenConversation(ctx, domain.Conversation{
		ID:           id,
		Participants: []domain.UserID{alice, bob},
		Names:        map[domain.UserID]string{alice: "Alice B.", "05cccc": "Carol"},
	}))

	convs, err := s.ListConversations(ctx, bob)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	c := convs[0]
	require.Equal(t, []domain.UserID{alice, bob}, c.Participants)
	require.Equal(t, map[domain.UserID]string{alice: "Alice B.", bob: "Bob"}, c.Names)
	require.Equal(t, domain.ConversationStarted, c.LastMessage)
	require.Equal(t, alice, c.Peer(bob))

	err = s.OpenConversation(ctx, domain.Conversation{ID: "bogus", Participants: []domain.UserID{alice, bob}})
	require.ErrorIs(t, err, domain.ErrInvalidFormat)
	err = s.OpenConversation(ctx, domain.Conversation{ID: id, Participants: []domain.UserID{alice}})
	require.ErrorIs(t, err, domain.ErrInvalidFormat)
}

func TestSendMarkReadAndReact(t *testing.T) {
	ctx := context.Background()
	s := signaling.NewMemoryStore()
	id := openConversation(t, s)

	var msgs recorder[domain.MessageChange]
	unsub, err := s.WatchMessages(ctx, id, msgs.add)
	require.NoError(t, err)
	defer unsub()

	first, err := s.SendMessage(ctx, domain.ChatMessage{ConversationID: id, SenderID: alice, Content: "sealed-1", Encrypted: true})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	require.False(t, first.CreatedAt.IsZero())

	reply := &domain.ReplyRef{ID: first.ID, Content: first.Content, SenderID: alice}
	second, err := s.SendMessage(ctx, domain.ChatMessage{ConversationID: id, SenderID: bob, Content: "hi", ReplyTo: reply})
	require.NoError(t, err)

	convs, err := s.ListConversations(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, "hi", convs[0].LastMessage)
	require.Equal(t, 1, convs[0].UnreadCounts[alice])
	require.Equal(t, 1, convs[0].UnreadCounts[bob])

	require.NoError(t, s.MarkRead(ctx, id, bob))
	require.NoError(t, s.React(ctx, second.ID, alice, "👍"))

	list, err := s.ListMessages(ctx, id)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.True(t, list[0].Seen, "bob read alice's message")
	require.False(t, list[1].Seen, "bob's own message stays unseen")
	require.Equal(t, reply, list[1].ReplyTo)
	require.Equal(t, "👍", list[1].Reactions[alice])

	convs, err = s.ListConversations(ctx, bob)
	require.NoError(t, err)
	require.Zero(t, convs[0].UnreadCounts[bob])

	require.NoError(t, s.React(ctx, second.ID, alice, ""))
	list, err = s.ListMessages(ctx, id)
	require.NoError(t, err)
	require.Empty(t, list[1].Reactions)

	got := msgs.waitLen(t, 5)
	require.Equal(t, domain.ChangeAdded, got[0].Kind)
	require.Equal(t, domain.ChangeAdded, got[1].Kind)
	require.Equal(t, domain.ChangeModified, got[2].Kind)
	require.True(t, got[2].Message.Seen)
	require.Equal(t, "👍", got[3].Message.Reactions[alice])
	require.Empty(t, got[4].Message.Reactions)
}

func TestSendRejects(t *testing.T) {
	ctx := context.Background()
	s := signaling.NewMemoryStore()

	_, err := s.SendMessage(ctx, domain.ChatMessage{ConversationID: "05aaaa_05bbbb", SenderID: alice})
	require.ErrorIs(t, err, domain.ErrNotFound)

	id := openConversation(t, s)
	_, err = s.SendMessage(ctx, domain.ChatMessage{ConversationID: id, SenderID: "05cccc"})
	require.ErrorIs(t, err, domain.ErrInvalidFormat)

	require.ErrorIs(t, s.React(ctx, "missing", alice, "x"), domain.ErrNotFound)
	require.ErrorIs(t, s.SetTyping(ctx, "missing", alice, true), domain.ErrNotFound)
	require.ErrorIs(t, s.MarkRead(ctx, "missing", alice), domain.ErrNotFound)
}

func TestWatchConversations(t *testing.T) {
	ctx := context.Background()
	s := signaling.NewMemoryStore()
	id := openConversation(t, s)

	var convs recorder[domain.ConversationChange]
	unsub, err := s.WatchConversations(ctx, bob, convs.add)
	require.NoError(t, err)

	require.NoError(t, s.SetTyping(ctx, id, alice, true))
	require.NoError(t, s.SetTyping(ctx, id, alice, false))

	got := convs.waitLen(t, 3)
	require.Equal(t, domain.ChangeAdded, got[0].Kind)
	require.Contains(t, got[1].Conversation.Typing, alice)
	require.NotContains(t, got[2].Conversation.Typing, alice)

	st := s.Stats()
	require.Equal(t, 1, st.Conversations)
	require.Equal(t, 1, st.Watches)
	unsub()
	require.Zero(t, s.Stats().Watches)
}
