package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <display name>",
		Short: "Create a new identity and print its recovery phrase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			id, phrase, err := wire.Identity.Create(cmd.Context(), passphrase, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Identity created.\nSession ID: %s\n\nRecovery phrase (write it down):\n  %s\n", id.SessionID, phrase)
			return nil
		},
	}
}

func restoreCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "restore <recovery phrase | 0x hex key>",
		Short: "Restore an identity from its recovery phrase or raw key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			id, err := wire.Identity.Restore(cmd.Context(), passphrase, args[0], name)
			if err != nil {
				return err
			}
			p, err := wire.Identity.Profile()
			if err != nil {
				return err
			}
			fmt.Printf("Welcome back, %s\nSession ID: %s\n", p.Name, id.SessionID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name if none is published")
	return cmd
}

func whoamiCmd() *cobra.Command {
	var publish bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Print the local profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := wire.Identity.Profile()
			if err != nil {
				return err
			}
			fmt.Printf("Session ID: %s\nName:       %s\nPublic key: %s\n", p.ID, p.Name, p.PublicKey)
			if publish {
				if err := wire.Identity.PublishProfile(cmd.Context()); err != nil {
					return err
				}
				fmt.Println("Profile published.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "publish the profile to the relay again")
	return cmd
}

func phraseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "phrase",
		Short: "Print the recovery phrase",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			phrase, err := wire.Identity.RecoveryPhrase(passphrase)
			if err != nil {
				return err
			}
			fmt.Println(phrase)
			return nil
		},
	}
}

func exportKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-key",
		Short: "Print the raw key as 0x-prefixed hex",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			seed, err := wire.Identity.ExportHexSeed(passphrase)
			if err != nil {
				return err
			}
			fmt.Println(seed)
			return nil
		},
	}
}
