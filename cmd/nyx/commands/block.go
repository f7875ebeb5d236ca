package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"nyx/internal/domain"
)

func blockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "block <session id>",
		Short: "Refuse messages and calls from a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.Identity.Block(cmd.Context(), domain.UserID(args[0]))
		},
	}
}

func unblockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unblock <session id>",
		Short: "Remove a user from the block list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return wire.Identity.Unblock(cmd.Context(), domain.UserID(args[0]))
		},
	}
}

func blockedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "blocked",
		Short: "Print the block list",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := wire.Identity.Blocked()
			if err != nil {
				return err
			}
			for _, id := range list {
				fmt.Println(id)
			}
			return nil
		},
	}
}
