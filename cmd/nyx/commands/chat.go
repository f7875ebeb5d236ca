package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"nyx/internal/domain"
	"nyx/internal/services/message"
)

func sendCmd() *cobra.Command {
	var reply string
	cmd := &cobra.Command{
		Use:   "send <peer> <text>...",
		Short: "Send an encrypted message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			me, err := loadIdentity()
			if err != nil {
				return err
			}
			msgs := wire.Messages(me)
			peer := domain.UserID(args[0])
			quote, err := findQuote(ctx, msgs, peer, reply)
			if err != nil {
				return err
			}
			sent, err := msgs.Send(ctx, peer, strings.Join(args[1:], " "), quote)
			if err != nil {
				return err
			}
			fmt.Println(sent.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&reply, "reply", "", "id of the message to reply to")
	return cmd
}

func inboxCmd() *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "inbox <peer>",
		Short: "Print the conversation with a peer and mark it read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			me, err := loadIdentity()
			if err != nil {
				return err
			}
			msgs := wire.Messages(me)
			peer := domain.UserID(args[0])
			if !follow {
				history, err := msgs.History(ctx, peer)
				if err != nil {
					return err
				}
				for _, r := range history {
					printMessage(r)
				}
				msgs.MarkRead(ctx, peer)
				return nil
			}
			return followConversation(ctx, msgs, me.SessionID, peer)
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing new messages until Ctrl-C")
	return cmd
}

// followConversation prints the conversation and every later message until
// ctx is cancelled. Incoming messages are marked read as they arrive.
func followConversation(ctx context.Context, msgs *message.Service, me, peer domain.UserID) error {
	lost := make(chan struct{}, 1)
	unsub, err := msgs.Watch(ctx, peer, func(r message.Received) {
		switch r.Kind {
		case domain.ChangeLost:
			lost <- struct{}{}
		case domain.ChangeAdded:
			printMessage(r)
			if !r.Mine {
				msgs.MarkRead(ctx, peer)
			}
		}
	})
	if err != nil {
		return err
	}
	defer unsub()

	typing := false
	unsubConvs, err := msgs.WatchConversations(ctx, func(c domain.ConversationChange) {
		if c.Conversation.ID != msgs.ConversationWith(peer) {
			return
		}
		now := c.Conversation.IsTyping(peer, time.Now())
		if now && !typing {
			fmt.Printf("%s is typing...\n", c.Conversation.DisplayName(me))
		}
		typing = now
	})
	if err != nil {
		return err
	}
	defer unsubConvs()

	select {
	case <-ctx.Done():
		return nil
	case <-lost:
		return fmt.Errorf("%w: lost the conversation watch", domain.ErrRemoteUnavailable)
	}
}

func printMessage(r message.Received) {
	who := "them"
	if r.Mine {
		who = "me"
	}
	at := r.Message.CreatedAt.Local().Format(time.Kitchen)
	body := r.Body.Display()
	if a, ok := message.ParseAttachment(r.Body.Text); ok && r.Body.OK() {
		body = "[attachment] " + a.Caption
	}
	fmt.Printf("%s %s %s: %s", at, r.Message.ID, who, body)
	if r.Mine && r.Message.Seen {
		fmt.Print(" (seen)")
	}
	for user, emoji := range r.Message.Reactions {
		fmt.Printf(" %s:%s", shortID(user), emoji)
	}
	fmt.Println()
	if r.Message.ReplyTo != nil {
		fmt.Printf("    > %s\n", r.Reply.Display())
	}
}

func shortID(id domain.UserID) string {
	s := string(id)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// findQuote returns the reply reference for the message id in the
// conversation with peer, or nil for an empty id.
func findQuote(ctx context.Context, msgs *message.Service, peer domain.UserID, id string) (*domain.ReplyRef, error) {
	if id == "" {
		return nil, nil
	}
	r, err := findMessage(ctx, msgs, peer, id)
	if err != nil {
		return nil, err
	}
	return message.Quote(r), nil
}

func findMessage(ctx context.Context, msgs *message.Service, peer domain.UserID, id string) (message.Received, error) {
	history, err := msgs.History(ctx, peer)
	if err != nil {
		return message.Received{}, err
	}
	for _, r := range history {
		if string(r.Message.ID) == id {
			return r, nil
		}
	}
	return message.Received{}, fmt.Errorf("message %s: %w", id, domain.ErrNotFound)
}

func chatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chats",
		Short: "List conversations, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := loadIdentity()
			if err != nil {
				return err
			}
			convs, err := wire.Messages(me).Conversations(cmd.Context())
			if err != nil {
				return err
			}
			now := time.Now()
			for _, c := range convs {
				peer := c.Peer(me.SessionID)
				line := fmt.Sprintf("%-20s %s  %s  %s", c.DisplayName(me.SessionID), peer,
					c.LastMessageTime.Local().Format(time.DateTime), c.LastMessage)
				if n := c.UnreadCounts[me.SessionID]; n > 0 {
					line += fmt.Sprintf("  (%d unread)", n)
				}
				if c.IsTyping(peer, now) {
					line += "  typing..."
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func reactCmd() *cobra.Command {
	var remove bool
	cmd := &cobra.Command{
		Use:   "react <message id> [emoji]",
		Short: "React to a message, or remove your reaction",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := loadIdentity()
			if err != nil {
				return err
			}
			emoji := "❤️"
			if len(args) == 2 {
				emoji = args[1]
			}
			if remove {
				emoji = ""
			}
			return wire.Messages(me).React(cmd.Context(), domain.MessageID(args[0]), emoji)
		},
	}
	cmd.Flags().BoolVar(&remove, "remove", false, "remove your reaction")
	return cmd
}

func typingCmd() *cobra.Command {
	var stop bool
	cmd := &cobra.Command{
		Use:   "typing <peer>",
		Short: "Show the peer that you are typing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := loadIdentity()
			if err != nil {
				return err
			}
			wire.Messages(me).SetTyping(cmd.Context(), domain.UserID(args[0]), !stop)
			return nil
		},
	}
	cmd.Flags().BoolVar(&stop, "stop", false, "clear the typing marker")
	return cmd
}
