package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"nyx/internal/domain"
	"nyx/internal/services/call"
)

const hangUpTimeout = 5 * time.Second

func callCmd() *cobra.Command {
	var (
		video bool
		name  string
	)
	cmd := &cobra.Command{
		Use:   "call <peer>",
		Short: "Call a peer; Ctrl-C hangs up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			me, err := loadIdentity()
			if err != nil {
				return err
			}
			m, err := wire.Calls(ctx, me)
			if err != nil {
				return err
			}
			defer m.Close()

			peer := domain.UserID(args[0])
			if name == "" {
				name = string(peer)
				if p, ok, err := wire.Relay.Lookup(ctx, peer); err == nil && ok {
					name = p.Name
				}
			}

			updates, unsubscribe := m.Subscribe()
			defer unsubscribe()
			if err := m.StartCall(ctx, peer, name, video); err != nil {
				return err
			}
			return follow(ctx, m, updates, false)
		},
	}
	cmd.Flags().BoolVar(&video, "video", false, "start a video call")
	cmd.Flags().StringVar(&name, "name", "", "name to show for the peer")
	return cmd
}

func listenCmd() *cobra.Command {
	var (
		answer bool
		reject bool
		video  bool
	)
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Wait for incoming calls; Ctrl-C quits",
		RunE: func(cmd *cobra.Command, args []string) error {
			if answer && reject {
				return fmt.Errorf("--answer and --reject are exclusive")
			}
			ctx := cmd.Context()
			me, err := loadIdentity()
			if err != nil {
				return err
			}
			if err := wire.Identity.PublishProfile(ctx); err != nil {
				wire.Log.GetLogger("cli").Warningf("publish profile: %v", err)
			}
			m, err := wire.Calls(ctx, me)
			if err != nil {
				return err
			}
			defer m.Close()

			updates, unsubscribe := m.Subscribe()
			defer unsubscribe()
			fmt.Printf("Listening as %s\n", me.SessionID)
			for {
				select {
				case <-ctx.Done():
					return nil
				case s, ok := <-updates:
					if !ok {
						return nil
					}
					if s.Status != domain.CallIncoming {
						continue
					}
					fmt.Printf("Incoming %s call from %s (%s)\n", s.CallType, s.PartnerName, s.PartnerID)
					switch {
					case reject:
						if err := m.RejectCall(ctx); err != nil {
							return err
						}
						fmt.Println("Rejected.")
						continue
					case !answer:
						continue
					}
					if err := m.AnswerCall(ctx, video && s.CallType == domain.CallVideo); err != nil {
						return err
					}
					if err := follow(ctx, m, updates, true); err != nil {
						return err
					}
					if ctx.Err() != nil {
						return nil
					}
					fmt.Println("Listening...")
				}
			}
		},
	}
	cmd.Flags().BoolVar(&answer, "answer", false, "answer every call")
	cmd.Flags().BoolVar(&reject, "reject", false, "reject every call")
	cmd.Flags().BoolVar(&video, "video", false, "send video when answering a video call")
	return cmd
}

// follow prints session changes until the call ends or ctx is cancelled,
// in which case it hangs up. With keep set the updates channel stays open
// for the caller.
func follow(ctx context.Context, m *call.Manager, updates <-chan domain.CallSession, keep bool) error {
	var last domain.CallSession
	for {
		select {
		case <-ctx.Done():
			hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hangUpTimeout)
			defer cancel()
			return m.HangUp(hctx)
		case s, ok := <-updates:
			if !ok {
				return nil
			}
			printChange(last, s)
			switch {
			case s.Status == domain.CallIdle && last.Status != "":
				return nil
			case s.Status == domain.CallError && s.ErrorMessage != call.MsgDeclined:
				hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), hangUpTimeout)
				defer cancel()
				if err := m.HangUp(hctx); err != nil {
					return err
				}
				if keep {
					return nil
				}
				return fmt.Errorf("call failed: %s", s.ErrorMessage)
			}
			last = s
		}
	}
}

func printChange(last, s domain.CallSession) {
	if s.Status != last.Status {
		switch s.Status {
		case domain.CallOutgoing:
			fmt.Printf("Calling %s...\n", s.PartnerName)
		case domain.CallConnected:
			fmt.Printf("Connected with %s at %s\n", s.PartnerName, s.CallStartTime.Format(time.Kitchen))
		case domain.CallError:
			fmt.Printf("Error: %s\n", s.ErrorMessage)
		case domain.CallIdle:
			if !last.CallStartTime.IsZero() {
				fmt.Printf("Call ended after %s\n", time.Since(last.CallStartTime).Round(time.Second))
			} else {
				fmt.Println("Call ended")
			}
		}
	}
	if s.ConnectionStatus != last.ConnectionStatus && s.Status != domain.CallIdle {
		fmt.Printf("  ice: %s\n", s.ConnectionStatus)
	}
	if len(s.RemoteTracks) > len(last.RemoteTracks) {
		for _, t := range s.RemoteTracks[len(last.RemoteTracks):] {
			fmt.Printf("  receiving %s\n", t.Kind)
		}
	}
}
