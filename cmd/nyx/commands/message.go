package commands

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"nyx/internal/domain"
	"nyx/internal/services/message"
)

func encryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt <peer> <text>",
		Short: "Seal a message for a peer and print the envelope",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := loadIdentity()
			if err != nil {
				return err
			}
			res := wire.Messages(me).Encrypt(cmd.Context(), domain.UserID(args[0]), args[1])
			if !res.OK() {
				return res.Err
			}
			fmt.Println(res.Text)
			return nil
		},
	}
}

func decryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt <peer> <envelope>",
		Short: "Open a message from a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := loadIdentity()
			if err != nil {
				return err
			}
			res := wire.Messages(me).Decrypt(cmd.Context(), domain.UserID(args[0]), args[1])
			if a, ok := message.ParseAttachment(res.Text); ok && res.OK() {
				fmt.Printf("[attachment] %s\n", a.Caption)
				return nil
			}
			fmt.Println(res.Display())
			return nil
		},
	}
}

func attachCmd() *cobra.Command {
	var caption, reply string
	cmd := &cobra.Command{
		Use:   "attach <peer> <file>",
		Short: "Seal and upload a file, then send the message referencing it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			me, err := loadIdentity()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			msgs := wire.Messages(me)
			peer := domain.UserID(args[0])
			quote, err := findQuote(ctx, msgs, peer, reply)
			if err != nil {
				return err
			}
			sent, err := msgs.SendAttachment(ctx, peer, data, http.DetectContentType(data), caption, quote)
			if err != nil {
				return err
			}
			fmt.Println(sent.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&caption, "caption", "", "text sent with the file")
	cmd.Flags().StringVar(&reply, "reply", "", "id of the message to reply to")
	return cmd
}

func openAttachmentCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "open-attachment <peer> <message id | envelope>",
		Short: "Open a message carrying a file and save the file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			me, err := loadIdentity()
			if err != nil {
				return err
			}
			msgs := wire.Messages(me)
			peer := domain.UserID(args[0])
			var res message.Result
			if r, err := findMessage(cmd.Context(), msgs, peer, args[1]); err == nil {
				res = r.Body
			} else {
				res = msgs.Decrypt(cmd.Context(), peer, args[1])
			}
			if !res.OK() {
				return res.Err
			}
			a, ok := message.ParseAttachment(res.Text)
			if !ok {
				return fmt.Errorf("message carries no attachment: %w", domain.ErrInvalidFormat)
			}
			data, err := msgs.OpenAttachment(cmd.Context(), a)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return err
			}
			if a.Caption != "" {
				fmt.Println(a.Caption)
			}
			fmt.Printf("saved %d bytes to %s\n", len(data), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "attachment.bin", "where to write the file")
	return cmd
}
