package app_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nyx/internal/app"
	"nyx/internal/domain"
	nyxlog "nyx/internal/log"
	"nyx/internal/relay"
	messagesvc "nyx/internal/services/message"
	"nyx/internal/signaling"
)

const pass = "correct horse battery"

func newRelay(t *testing.T) string {
	t.Helper()
	backend, err := nyxlog.New("", "DEBUG", true)
	require.NoError(t, err)
	srv := httptest.NewServer(relay.NewServer(signaling.NewMemoryStore(), backend.GetLogger("relay"), nil))
	t.Cleanup(srv.Close)
	return srv.URL
}

func newWire(t *testing.T, relayURL string) *app.Wire {
	t.Helper()
	cfg := &app.Config{
		Home:    t.TempDir(),
		Logging: &app.Logging{Disable: true},
		Relay:   &app.Relay{URL: relayURL},
		WebRTC: &app.WebRTC{
			// Host candidates only; tests must not depend on reaching STUN.
			ICEServers:        []string{"stun:127.0.0.1:3478"},
			DeclineDelay:      50 * time.Millisecond,
			RejectDeleteDelay: 20 * time.Millisecond,
		},
	}
	require.NoError(t, cfg.FixupAndValidate())
	w, err := app.NewWire(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestMessagesOverRelay(t *testing.T) {
	ctx := context.Background()
	url := newRelay(t)
	aw, bw := newWire(t, url), newWire(t, url)

	alice, _, err := aw.Identity.Create(ctx, pass, "Alice")
	require.NoError(t, err)
	bob, _, err := bw.Identity.Create(ctx, pass, "Bob")
	require.NoError(t, err)

	_, err = aw.Messages(alice).Send(ctx, bob.SessionID, "hello over the relay", nil)
	require.NoError(t, err)
	_, err = aw.Messages(alice).SendAttachment(ctx, bob.SessionID, []byte("photo"), "image/jpeg", "hi", nil)
	require.NoError(t, err)

	inbox, err := bw.Messages(bob).History(ctx, alice.SessionID)
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	require.Equal(t, "hello over the relay", inbox[0].Body.Display())

	// Both wires share nothing but the relay, so Bob cannot open Alice's
	// blob directory; he can still read the text of the message.
	opened := inbox[1].Body
	require.True(t, opened.OK(), "%v", opened.Err)
	require.Contains(t, opened.Text, "[secure_image]")
	require.Contains(t, opened.Text, "|hi")

	data, err := aw.Messages(alice).OpenAttachment(ctx, mustParse(t, opened.Text))
	require.NoError(t, err)
	require.Equal(t, []byte("photo"), data)

	convs, err := bw.Messages(bob).Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	require.Equal(t, "Alice", convs[0].DisplayName(bob.SessionID))
	require.Equal(t, 2, convs[0].UnreadCounts[bob.SessionID])
}

func TestCallOverRelay(t *testing.T) {
	ctx := context.Background()
	url := newRelay(t)
	aw, bw := newWire(t, url), newWire(t, url)

	alice, _, err := aw.Identity.Create(ctx, pass, "Alice")
	require.NoError(t, err)
	bob, _, err := bw.Identity.Create(ctx, pass, "Bob")
	require.NoError(t, err)

	am, err := aw.Calls(ctx, alice)
	require.NoError(t, err)
	defer am.Close()
	bm, err := bw.Calls(ctx, bob)
	require.NoError(t, err)
	defer bm.Close()

	require.NoError(t, am.StartCall(ctx, bob.SessionID, "Bob", false))
	require.Eventually(t, func() bool { return bm.State().Status == domain.CallIncoming }, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, "Alice", bm.State().PartnerName)
	require.Equal(t, domain.CallAudio, bm.State().CallType)

	require.NoError(t, bm.AnswerCall(ctx, false))
	require.Eventually(t, func() bool { return am.State().Status == domain.CallConnected }, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, domain.CallConnected, bm.State().Status)
	require.Len(t, am.State().LocalTracks, 1)

	require.NoError(t, am.HangUp(ctx))
	require.Equal(t, domain.CallIdle, am.State().Status)
	require.Eventually(t, func() bool { return bm.State().Status == domain.CallIdle }, 5*time.Second, 10*time.Millisecond)
}

func TestBlockedCallerOverRelay(t *testing.T) {
	ctx := context.Background()
	url := newRelay(t)
	aw, bw := newWire(t, url), newWire(t, url)

	alice, _, err := aw.Identity.Create(ctx, pass, "Alice")
	require.NoError(t, err)
	bob, _, err := bw.Identity.Create(ctx, pass, "Bob")
	require.NoError(t, err)
	require.NoError(t, bw.Identity.Block(ctx, alice.SessionID))

	am, err := aw.Calls(ctx, alice)
	require.NoError(t, err)
	defer am.Close()
	bm, err := bw.Calls(ctx, bob)
	require.NoError(t, err)
	defer bm.Close()

	require.NoError(t, am.StartCall(ctx, bob.SessionID, "Bob", true))
	require.Never(t, func() bool { return bm.State().Status != domain.CallIdle }, 300*time.Millisecond, 10*time.Millisecond)
}

func mustParse(t *testing.T, text string) messagesvc.Attachment {
	t.Helper()
	a, ok := messagesvc.ParseAttachment(text)
	require.True(t, ok)
	return a
}
