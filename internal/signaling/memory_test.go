package signaling_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nyx/internal/domain"
	"nyx/internal/signaling"
)

const wait = 2 * time.Second

type recorder[T any] struct {
	mu  sync.Mutex
	got []T
}

func (r *recorder[T]) add(v T) {
	r.mu.Lock()
	r.got = append(r.got, v)
	r.mu.Unlock()
}

func (r *recorder[T]) snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.got...)
}

func (r *recorder[T]) waitLen(t *testing.T, n int) []T {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.snapshot()) >= n }, wait, time.Millisecond)
	return r.snapshot()
}

func record(s *signaling.MemoryStore) domain.CallRecord {
	return domain.CallRecord{
		ID:       s.NewCallID(),
		CallerID: "05aaaa",
		CalleeID: "05bbbb",
		CallType: domain.CallVideo,
		Offer:    domain.SessionDescription{Type: domain.SDPOffer, SDP: "v=0 offer"},
	}
}

func TestWatchCallLifecycle(t *testing.T) {
	ctx := context.Background()
	s := signaling.NewMemoryStore()
	rec := record(s)
	require.NoError(t, s.CreateCall(ctx, rec))

	var r recorder[domain.CallChange]
	unsub, err := s.WatchCall(ctx, rec.ID, r.add)
	require.NoError(t, err)
	defer unsub()

	answer := domain.SessionDescription{Type: domain.SDPAnswer, SDP: "v=0 answer"}
	require.NoError(t, s.UpdateCall(ctx, rec.ID, domain.CallUpdate{Answer: &answer}))
	require.NoError(t, s.DeleteCall(ctx, rec.ID))

	got := r.waitLen(t, 3)
	require.Equal(t, domain.ChangeAdded, got[0].Kind)
	require.Nil(t, got[0].Record.Answer)
	require.Equal(t, domain.ChangeModified, got[1].Kind)
	require.Equal(t, answer, *got[1].Record.Answer)
	require.Equal(t, domain.ChangeRemoved, got[2].Kind)
	require.Equal(t, rec.ID, got[2].Record.ID)

	_, ok, err := s.GetCall(ctx, rec.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWatchMissingCallReportsRemoved(t *testing.T) {
	s := signaling.NewMemoryStore()
	var r recorder[domain.CallChange]
	unsub, err := s.WatchCall(context.Background(), "nope", r.add)
	require.NoError(t, err)
	defer unsub()

	got := r.waitLen(t, 1)
	require.Equal(t, domain.ChangeRemoved, got[0].Kind)
}

func TestUpdateMissingCall(t *testing.T) {
	s := signaling.NewMemoryStore()
	st := domain.RecordRejected
	err := s.UpdateCall(context.Background(), "nope", domain.CallUpdate{Status: &st})
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, s.DeleteCall(context.Background(), "nope"))
}

func TestWatchIncomingFiltersByCallee(t *testing.T) {
	ctx := context.Background()
	s := signaling.NewMemoryStore()

	existing := record(s)
	require.NoError(t, s.CreateCall(ctx, existing))

	var r recorder[domain.CallChange]
	unsub, err := s.WatchIncoming(ctx, "05bbbb", r.add)
	require.NoError(t, err)
	defer unsub()

	other := record(s)
	other.CalleeID = "05cccc"
	require.NoError(t, s.CreateCall(ctx, other))

	fresh := record(s)
	require.NoError(t, s.CreateCall(ctx, fresh))

	got := r.waitLen(t, 2)
	require.Equal(t, existing.ID, got[0].Record.ID)
	require.Equal(t, fresh.ID, got[1].Record.ID)
	for _, c := range got {
		require.Equal(t, domain.ChangeAdded, c.Kind)
	}
	time.Sleep(20 * time.Millisecond)
	require.Len(t, r.snapshot(), 2)
}

func TestCandidatesReplayThenStream(t *testing.T) {
	ctx := context.Background()
	s := signaling.NewMemoryStore()
	rec := record(s)
	require.NoError(t, s.CreateCall(ctx, rec))

	c1 := domain.ICECandidate{Candidate: "candidate:1"}
	c2 := domain.ICECandidate{Candidate: "candidate:2"}
	require.NoError(t, s.AddCandidate(ctx, rec.ID, domain.CallerCandidates, c1))

	var r recorder[domain.CandidateChange]
	unsub, err := s.WatchCandidates(ctx, rec.ID, domain.CallerCandidates, r.add)
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, s.AddCandidate(ctx, rec.ID, domain.AnswerCandidates, domain.ICECandidate{Candidate: "other side"}))
	require.NoError(t, s.AddCandidate(ctx, rec.ID, domain.CallerCandidates, c2))

	got := r.waitLen(t, 2)
	require.Equal(t, c1, got[0].Candidate)
	require.Equal(t, c2, got[1].Candidate)

	err = s.AddCandidate(ctx, "nope", domain.CallerCandidates, c1)
	require.ErrorIs(t, err, domain.ErrNotFound)
	err = s.AddCandidate(ctx, rec.ID, "sideways", c1)
	require.ErrorIs(t, err, domain.ErrInvalidFormat)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	s := signaling.NewMemoryStore()
	rec := record(s)
	require.NoError(t, s.CreateCall(ctx, rec))

	var r recorder[domain.CallChange]
	unsub, err := s.WatchCall(ctx, rec.ID, r.add)
	require.NoError(t, err)
	r.waitLen(t, 1)
	require.Equal(t, 1, s.CallWatches(rec.ID))

	unsub()
	unsub()
	require.Equal(t, 0, s.CallWatches(rec.ID))
	require.Equal(t, 0, s.Stats().Watches)

	require.NoError(t, s.DeleteCall(ctx, rec.ID))
	time.Sleep(20 * time.Millisecond)
	require.Len(t, r.snapshot(), 1)
}

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	s := signaling.NewMemoryStore()

	_, ok, err := s.Lookup(ctx, "05aaaa")
	require.NoError(t, err)
	require.False(t, ok)

	p := domain.Profile{ID: "05aaaa", Name: "Alice", PublicKey: "cGs="}
	require.NoError(t, s.Publish(ctx, p))
	got, ok, err := s.Lookup(ctx, "05aaaa")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, p, got)

	require.ErrorIs(t, s.Publish(ctx, domain.Profile{}), domain.ErrInvalidFormat)
	require.Equal(t, 1, s.Stats().Profiles)
}
