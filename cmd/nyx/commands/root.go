package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"nyx/internal/app"
	"nyx/internal/domain"
	"nyx/internal/services/identity"
)

const passphraseEnv = "NYX_PASSPHRASE"

var (
	home       string
	passphrase string
	relayURL   string
	logLevel   string

	wire *app.Wire
)

func Execute() error {
	root := &cobra.Command{
		Use:           "nyx",
		Short:         "End-to-end encrypted messaging and calls",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".nyx")
			}
			if passphrase == "" {
				passphrase = os.Getenv(passphraseEnv)
			}

			cfg, err := app.LoadFile(home)
			if err != nil {
				return err
			}
			if relayURL != "" {
				cfg.Relay.URL = relayURL
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			if err := cfg.FixupAndValidate(); err != nil {
				return err
			}

			wire, err = app.NewWire(cmd.Context(), cfg)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if wire == nil {
				return nil
			}
			return wire.Close()
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "data dir (default ~/.nyx)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the local key (or $"+passphraseEnv+")")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay base URL, overrides nyx.toml")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "ERROR, WARNING, NOTICE, INFO or DEBUG")

	root.AddCommand(
		createCmd(), restoreCmd(), whoamiCmd(), phraseCmd(), exportKeyCmd(),
		sendCmd(), inboxCmd(), chatsCmd(), reactCmd(), typingCmd(),
		encryptCmd(), decryptCmd(), attachCmd(), openAttachmentCmd(),
		blockCmd(), unblockCmd(), blockedCmd(),
		callCmd(), listenCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", explain(err))
	}
	return err
}

func requirePassphrase() error {
	if passphrase == "" {
		return fmt.Errorf("passphrase required (-p or $%s)", passphraseEnv)
	}
	return nil
}

// loadIdentity unseals the local identity.
func loadIdentity() (domain.Identity, error) {
	if err := requirePassphrase(); err != nil {
		return domain.Identity{}, err
	}
	return wire.Identity.Load(passphrase)
}

func explain(err error) string {
	switch {
	case identity.IsWrongPassphrase(err):
		return "wrong passphrase"
	case errors.Is(err, domain.ErrNoIdentity):
		return "no identity here yet; run `nyx create` or `nyx restore`"
	case errors.Is(err, domain.ErrInvalidCredential):
		return "please enter a valid 12-word phrase or hex key"
	default:
		return err.Error()
	}
}
