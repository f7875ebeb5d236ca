package call_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"nyx/internal/domain"
	"nyx/internal/services/call"
	"nyx/internal/signaling"
)

type fakeTrack struct {
	id   string
	kind domain.TrackKind

	mu      sync.Mutex
	enabled bool
	stopped bool
}

func (t *fakeTrack) ID() string             { return t.id }
func (t *fakeTrack) Kind() domain.TrackKind { return t.kind }

func (t *fakeTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *fakeTrack) SetEnabled(on bool) {
	t.mu.Lock()
	t.enabled = on
	t.mu.Unlock()
}

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTrack) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeStream struct {
	id     string
	tracks []*fakeTrack
}

func (s *fakeStream) ID() string { return s.id }

func (s *fakeStream) Tracks() []domain.LocalTrack {
	out := make([]domain.LocalTrack, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

func (s *fakeStream) Stop() {
	for _, t := range s.tracks {
		t.Stop()
	}
}

func (s *fakeStream) stopped() bool {
	for _, t := range s.tracks {
		if !t.isStopped() {
			return false
		}
	}
	return true
}

// fakeDevices hands out fake streams. With a gate set, GetUserMedia blocks
// until the gate is closed, signalling entered first.
type fakeDevices struct {
	mu      sync.Mutex
	err     error
	gate    chan struct{}
	entered chan struct{}
	streams []*fakeStream
}

func (d *fakeDevices) GetUserMedia(ctx context.Context, c domain.Constraints) (domain.LocalStream, error) {
	d.mu.Lock()
	gate, entered, err := d.gate, d.entered, d.err
	d.mu.Unlock()

	if gate != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	s := &fakeStream{id: fmt.Sprintf("stream-%d", len(d.streams)+1)}
	if c.Audio {
		s.tracks = append(s.tracks, &fakeTrack{id: s.id + "-audio", kind: domain.TrackAudio, enabled: true})
	}
	if c.Video {
		s.tracks = append(s.tracks, &fakeTrack{id: s.id + "-video", kind: domain.TrackVideo, enabled: true})
	}
	d.streams = append(d.streams, s)
	return s, nil
}

func (d *fakeDevices) setErr(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *fakeDevices) stream(i int) *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.streams) {
		return nil
	}
	return d.streams[i]
}

func (d *fakeDevices) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.streams)
}

// fakePeer encodes its track kinds in the SDP it produces, so the other
// side learns which remote tracks to report.
type fakePeer struct {
	name string

	mu         sync.Mutex
	kinds      []string
	local      *domain.SessionDescription
	remote     *domain.SessionDescription
	candidates []domain.ICECandidate
	closed     bool

	onCand  func(domain.ICECandidate)
	onTrack func(domain.TrackInfo)
	onState func(string)
}

func (p *fakePeer) AddTrack(t domain.LocalTrack, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kinds = append(p.kinds, string(t.Kind()))
	return nil
}

func (p *fakePeer) sdp() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(append([]string{p.name}, p.kinds...), " ")
}

func (p *fakePeer) CreateOffer() (domain.SessionDescription, error) {
	return domain.SessionDescription{Type: domain.SDPOffer, SDP: p.sdp()}, nil
}

func (p *fakePeer) CreateAnswer() (domain.SessionDescription, error) {
	p.mu.Lock()
	hasRemote := p.remote != nil
	p.mu.Unlock()
	if !hasRemote {
		return domain.SessionDescription{}, errors.New("no remote description")
	}
	return domain.SessionDescription{Type: domain.SDPAnswer, SDP: p.sdp()}, nil
}

func (p *fakePeer) SetLocalDescription(d domain.SessionDescription) error {
	p.mu.Lock()
	p.local = &d
	cb := p.onCand
	p.mu.Unlock()
	if cb != nil {
		go cb(domain.ICECandidate{Candidate: "candidate:" + p.name})
	}
	return nil
}

func (p *fakePeer) SetRemoteDescription(d domain.SessionDescription) error {
	p.mu.Lock()
	p.remote = &d
	cb := p.onTrack
	p.mu.Unlock()

	fields := strings.Fields(d.SDP)
	if len(fields) == 0 {
		return errors.New("empty sdp")
	}
	for _, k := range fields[1:] {
		if cb != nil {
			cb(domain.TrackInfo{ID: fields[0] + "-" + k, StreamID: fields[0], Kind: domain.TrackKind(k), Enabled: true})
		}
	}
	return nil
}

func (p *fakePeer) AddICECandidate(c domain.ICECandidate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		return errors.New("remote description not set")
	}
	p.candidates = append(p.candidates, c)
	return nil
}

func (p *fakePeer) OnICECandidate(fn func(domain.ICECandidate)) {
	p.mu.Lock()
	p.onCand = fn
	p.mu.Unlock()
}

func (p *fakePeer) OnTrack(fn func(domain.TrackInfo)) {
	p.mu.Lock()
	p.onTrack = fn
	p.mu.Unlock()
}

func (p *fakePeer) OnICEConnectionStateChange(fn func(string)) {
	p.mu.Lock()
	p.onState = fn
	p.mu.Unlock()
}

func (p *fakePeer) Close() error {
	p.mu.Lock()
	p.closed = true
	cb := p.onState
	p.mu.Unlock()
	if cb != nil {
		cb("closed")
	}
	return nil
}

func (p *fakePeer) setState(s string) {
	p.mu.Lock()
	cb := p.onState
	p.mu.Unlock()
	cb(s)
}

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePeer) remoteCandidates() []domain.ICECandidate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.ICECandidate(nil), p.candidates...)
}

type fakeFactory struct {
	name string

	mu    sync.Mutex
	peers []*fakePeer
}

func (f *fakeFactory) New() (call.PeerConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &fakePeer{name: fmt.Sprintf("%s-%d", f.name, len(f.peers)+1)}
	f.peers = append(f.peers, p)
	return p, nil
}

func (f *fakeFactory) peer(i int) *fakePeer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.peers) {
		return nil
	}
	return f.peers[i]
}

type fakeBlocks struct {
	mu  sync.Mutex
	ids []domain.UserID
	err error
}

func (b *fakeBlocks) Block(_ context.Context, id domain.UserID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ids = append(b.ids, id)
	return nil
}

func (b *fakeBlocks) Unblock(_ context.Context, id domain.UserID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ids = slices.DeleteFunc(b.ids, func(x domain.UserID) bool { return x == id })
	return nil
}

func (b *fakeBlocks) Blocked() ([]domain.UserID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.ids), b.err
}

// lossyStore lets a test end every open call and candidate watch with
// ChangeLost, as the relay client does once redials are exhausted.
type lossyStore struct {
	*signaling.MemoryStore

	mu    sync.Mutex
	calls []func()
	cands []func()
}

func (s *lossyStore) WatchCall(ctx context.Context, id domain.CallID, fn func(domain.CallChange)) (domain.Unsubscribe, error) {
	var (
		mu   sync.Mutex
		done bool
	)
	deliver := func(c domain.CallChange) {
		mu.Lock()
		defer mu.Unlock()
		if !done {
			fn(c)
		}
	}
	unsub, err := s.MemoryStore.WatchCall(ctx, id, deliver)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.calls = append(s.calls, func() {
		unsub()
		mu.Lock()
		defer mu.Unlock()
		if !done {
			done = true
			fn(domain.CallChange{Kind: domain.ChangeLost, Record: domain.CallRecord{ID: id}})
		}
	})
	s.mu.Unlock()
	return unsub, nil
}

func (s *lossyStore) WatchCandidates(
	ctx context.Context,
	id domain.CallID,
	side domain.CandidateSide,
	fn func(domain.CandidateChange),
) (domain.Unsubscribe, error) {
	var (
		mu   sync.Mutex
		done bool
	)
	unsub, err := s.MemoryStore.WatchCandidates(ctx, id, side, func(c domain.CandidateChange) {
		mu.Lock()
		defer mu.Unlock()
		if !done {
			fn(c)
		}
	})
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cands = append(s.cands, func() {
		unsub()
		mu.Lock()
		defer mu.Unlock()
		if !done {
			done = true
			fn(domain.CandidateChange{Kind: domain.ChangeLost})
		}
	})
	s.mu.Unlock()
	return unsub, nil
}

// drop ends every watch opened so far.
func (s *lossyStore) drop() {
	s.mu.Lock()
	fns := append(append([]func(){}, s.calls...), s.cands...)
	s.calls, s.cands = nil, nil
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
