package relay_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nyx/internal/domain"
)

func (f *fixture) waitWatches(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.mem.Stats().Watches == n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatchSurvivesDroppedConnection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	changes := make(chan domain.CallChange, 8)
	unsub, err := f.client.WatchIncoming(ctx, "05bob", func(c domain.CallChange) { changes <- c })
	require.NoError(t, err)
	defer unsub()
	f.waitWatches(t, 1)

	f.relay.CloseWatches()
	rec := record(f)
	require.NoError(t, f.client.CreateCall(ctx, rec))

	c := next(t, changes)
	require.Equal(t, domain.ChangeAdded, c.Kind)
	require.Equal(t, rec.ID, c.Record.ID)
	f.waitWatches(t, 1)

	select {
	case c := <-changes:
		t.Fatalf("unexpected %s change", c.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatchCallSeesRemovalAcrossRedial(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rec := record(f)
	require.NoError(t, f.client.CreateCall(ctx, rec))

	changes := make(chan domain.CallChange, 8)
	unsub, err := f.client.WatchCall(ctx, rec.ID, func(c domain.CallChange) { changes <- c })
	require.NoError(t, err)
	defer unsub()
	require.Equal(t, domain.ChangeAdded, next(t, changes).Kind)
	f.waitWatches(t, 1)

	f.relay.CloseWatches()
	require.NoError(t, f.mem.DeleteCall(ctx, rec.ID))

	// Depending on when the redial lands the record is replayed first.
	for {
		c := next(t, changes)
		require.NotEqual(t, domain.ChangeLost, c.Kind)
		if c.Kind == domain.ChangeRemoved {
			break
		}
	}
}

func TestWatchReportsLostRelay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.client.Redials = 2
	rec := record(f)

	calls := make(chan domain.CallChange, 8)
	unsubCall, err := f.client.WatchCall(ctx, rec.ID, func(c domain.CallChange) { calls <- c })
	require.NoError(t, err)
	defer unsubCall()
	require.Equal(t, domain.ChangeRemoved, next(t, calls).Kind)

	cands := make(chan domain.CandidateChange, 8)
	unsubCands, err := f.client.WatchCandidates(ctx, rec.ID, domain.CallerCandidates, func(c domain.CandidateChange) { cands <- c })
	require.NoError(t, err)
	defer unsubCands()
	f.waitWatches(t, 2)

	f.srv.Close()
	f.relay.CloseWatches()

	c := next(t, calls)
	require.Equal(t, domain.ChangeLost, c.Kind)
	require.Equal(t, rec.ID, c.Record.ID)
	require.Equal(t, domain.ChangeLost, next(t, cands).Kind)
}
