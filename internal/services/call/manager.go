package call

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"gopkg.in/op/go-logging.v1"

	"nyx/internal/domain"
	"nyx/internal/util/queue"
)

var (
	// ErrCallSuperseded is returned by an operation whose call was torn down
	// or replaced before the operation finished.
	ErrCallSuperseded = errors.New("call superseded")
	// ErrClosed is returned once the Manager has been closed.
	ErrClosed = errors.New("call manager closed")
)

// Messages shown in CallSession.ErrorMessage.
const (
	MsgBlocked       = "Cannot call blocked user."
	MsgDevices       = "Failed to access media devices."
	MsgStartFailed   = "Failed to start call."
	MsgConnectFailed = "Failed to connect call."
	MsgICEFailed     = "Connection failed. The network link could not be established."
	MsgDeclined      = "Call Declined"
	MsgSignalingLost = "Lost connection to the signaling relay."

	// UnknownCaller is the partner name used when the directory has no
	// profile for an inbound caller.
	UnknownCaller = "Unknown Caller"
)

const (
	defaultDeclineDelay      = 2 * time.Second
	defaultRejectDeleteDelay = time.Second
	bestEffortTimeout        = 10 * time.Second
)

// Options tunes a Manager. Zero values select the defaults.
type Options struct {
	// DeclineDelay is how long a declined outgoing call stays in the error
	// state before it is torn down.
	DeclineDelay time.Duration
	// RejectDeleteDelay is how long a rejected record is kept so the caller
	// can observe the rejection.
	RejectDeleteDelay time.Duration
	// RingTimeout hangs up an unanswered outgoing call. Zero disables it.
	RingTimeout time.Duration
}

func (o *Options) fixup() {
	if o.DeclineDelay <= 0 {
		o.DeclineDelay = defaultDeclineDelay
	}
	if o.RejectDeleteDelay <= 0 {
		o.RejectDeleteDelay = defaultRejectDeleteDelay
	}
}

// Manager owns the single call of one client: its peer connection, its
// captured media and its signaling subscriptions.
type Manager struct {
	me      domain.UserID
	store   domain.SignalingStore
	dir     domain.Directory
	blocks  domain.BlockList
	devices domain.MediaDevices
	newPeer PeerFactory
	log     *logging.Logger
	opts    Options

	q *queue.Queue

	// Everything below up to mu is owned by the loop goroutine.
	session     domain.CallSession
	gen         uint64
	callID      domain.CallID
	localSide   domain.CandidateSide
	pc          PeerConnection
	stream      domain.LocalStream
	remoteSet   bool
	recordReady bool
	inbound     []domain.ICECandidate
	outbound    []domain.ICECandidate
	subs        []domain.Unsubscribe
	timers      []*time.Timer
	incoming    domain.Unsubscribe
	watchers    map[chan domain.CallSession]struct{}

	mu       sync.RWMutex
	snapshot domain.CallSession
}

// New returns a Manager for the local user me. dir may be nil, in which
// case inbound callers are shown as UnknownCaller. blocks is consulted on
// every inbound and outbound call; nil blocks nobody.
func New(
	me domain.UserID,
	store domain.SignalingStore,
	dir domain.Directory,
	blocks domain.BlockList,
	devices domain.MediaDevices,
	peers PeerFactory,
	log *logging.Logger,
	opts Options,
) *Manager {
	opts.fixup()
	idle := domain.IdleSession()
	return &Manager{
		me:       me,
		store:    store,
		dir:      dir,
		blocks:   blocks,
		devices:  devices,
		newPeer:  peers,
		log:      log,
		opts:     opts,
		q:        queue.New(),
		session:  idle,
		snapshot: idle,
		watchers: make(map[chan domain.CallSession]struct{}),
	}
}

// Init starts watching for calls addressed to this client.
func (m *Manager) Init(ctx context.Context) error {
	unsub, err := m.store.WatchIncoming(ctx, m.me, func(c domain.CallChange) {
		m.q.Post(func() { m.onIncoming(c) })
	})
	if err != nil {
		return fmt.Errorf("%w: watch incoming: %w", domain.ErrRemoteUnavailable, err)
	}

	dup := false
	if err := m.onLoop(func() {
		if m.incoming != nil {
			dup = true
			return
		}
		m.incoming = unsub
	}); err != nil {
		unsub()
		return err
	}
	if dup {
		unsub()
	}
	return nil
}

// Close tears down any call, deletes its record and stops the Manager.
// Subscriber channels are closed.
func (m *Manager) Close() error {
	var (
		id       domain.CallID
		incoming domain.Unsubscribe
	)
	if err := m.onLoop(func() {
		id = m.callID
		m.cleanup()
		incoming, m.incoming = m.incoming, nil
		for ch := range m.watchers {
			close(ch)
			delete(m.watchers, ch)
		}
		m.q.Halt()
	}); err != nil {
		return nil
	}
	if incoming != nil {
		incoming()
	}
	if id != "" {
		m.deleteRecord(id)
	}
	m.q.Wait()
	return nil
}

// State returns a snapshot of the call session.
func (m *Manager) State() domain.CallSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Subscribe returns a channel carrying the latest session after every
// change, starting with the current one. Slow readers only miss
// intermediate states. The returned func cancels the subscription.
func (m *Manager) Subscribe() (<-chan domain.CallSession, func()) {
	ch := make(chan domain.CallSession, 1)
	if err := m.onLoop(func() {
		m.watchers[ch] = struct{}{}
		ch <- cloneSession(m.session)
	}); err != nil {
		close(ch)
		return ch, func() {}
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.q.Post(func() {
				if _, ok := m.watchers[ch]; ok {
					delete(m.watchers, ch)
					close(ch)
				}
			})
		})
	}
}

// ToggleMute enables or disables every local audio track.
func (m *Manager) ToggleMute(muted bool) error {
	return m.onLoop(func() {
		if m.stream == nil {
			return
		}
		setKindEnabled(m.stream, domain.TrackAudio, !muted)
		s := m.session
		s.IsMuted = muted
		s.LocalTracks = trackInfos(m.stream)
		m.setSession(s)
	})
}

// ToggleVideo enables or disables every local video track.
func (m *Manager) ToggleVideo(videoOff bool) error {
	return m.onLoop(func() {
		if m.stream == nil {
			return
		}
		setKindEnabled(m.stream, domain.TrackVideo, !videoOff)
		s := m.session
		s.IsVideoOff = videoOff
		s.LocalTracks = trackInfos(m.stream)
		m.setSession(s)
	})
}

// onLoop runs fn on the loop goroutine and waits for it to return. It must
// not be called from the loop goroutine.
func (m *Manager) onLoop(fn func()) error {
	done := make(chan struct{})
	if !m.q.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrClosed
	}
	<-done
	return nil
}

// postFor runs fn on the loop unless the call generation has moved past g.
func (m *Manager) postFor(g uint64, fn func()) {
	m.q.Post(func() {
		if m.gen == g {
			fn()
		}
	})
}

// after schedules fn on the loop for the current generation. Pending timers
// are stopped by release.
func (m *Manager) after(d time.Duration, fn func()) {
	g := m.gen
	m.timers = append(m.timers, time.AfterFunc(d, func() { m.postFor(g, fn) }))
}

// isBlocked reports whether id is on the block list. A list that cannot be
// read blocks nobody.
func (m *Manager) isBlocked(id domain.UserID) bool {
	if m.blocks == nil {
		return false
	}
	ids, err := m.blocks.Blocked()
	if err != nil {
		m.log.Warningf("read block list: %v", err)
		return false
	}
	return slices.Contains(ids, id)
}

func (m *Manager) setSession(s domain.CallSession) {
	m.session = s
	snap := cloneSession(s)

	m.mu.Lock()
	m.snapshot = snap
	m.mu.Unlock()

	for ch := range m.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- cloneSession(snap)
	}
}

func (m *Manager) fail(msg string) {
	s := m.session
	s.Status = domain.CallError
	s.ErrorMessage = msg
	m.setSession(s)
}

// release frees every resource held for the current call and invalidates
// in-flight work, leaving the session and call id untouched.
func (m *Manager) release() {
	m.gen++
	for _, t := range m.timers {
		t.Stop()
	}
	m.timers = nil
	if m.stream != nil {
		m.stream.Stop()
		m.stream = nil
	}
	if m.pc != nil {
		if err := m.pc.Close(); err != nil {
			m.log.Debugf("close peer connection: %v", err)
		}
		m.pc = nil
	}
	for _, u := range m.subs {
		u()
	}
	m.subs = nil
	m.remoteSet = false
	m.recordReady = false
	m.inbound = nil
	m.outbound = nil
}

// abort releases the call but keeps it visible as an error until the user
// hangs up.
func (m *Manager) abort(msg string) {
	m.release()
	m.fail(msg)
}

// cleanup returns to idle. Calling it while idle is a no-op apart from the
// generation bump.
func (m *Manager) cleanup() {
	m.release()
	if m.callID != "" {
		m.log.Debugf("call %s torn down", m.callID)
	}
	m.callID = ""
	m.localSide = ""
	m.setSession(domain.IdleSession())
}

// attach creates the peer connection for generation g and feeds it the
// captured tracks. The Manager owns stream from here on.
func (m *Manager) attach(g uint64, stream domain.LocalStream, side domain.CandidateSide) error {
	m.stream = stream
	m.localSide = side
	pc, err := m.newPeer()
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransportFailed, err)
	}
	m.pc = pc

	pc.OnICECandidate(func(c domain.ICECandidate) {
		m.postFor(g, func() { m.onLocalCandidate(c) })
	})
	pc.OnTrack(func(t domain.TrackInfo) {
		m.postFor(g, func() { m.onRemoteTrack(t) })
	})
	pc.OnICEConnectionStateChange(func(state string) {
		m.postFor(g, func() { m.onICEState(state) })
	})

	for _, t := range stream.Tracks() {
		if err := pc.AddTrack(t, stream.ID()); err != nil {
			return fmt.Errorf("%w: add %s track: %w", domain.ErrTransportFailed, t.Kind(), err)
		}
	}
	return nil
}

// adopt stores the subscriptions opened for generation g and runs then on
// the loop. If g is stale the subscriptions are released instead.
func (m *Manager) adopt(g uint64, subs []domain.Unsubscribe, then func()) error {
	stale := false
	err := m.onLoop(func() {
		if m.gen != g {
			stale = true
			return
		}
		m.subs = append(m.subs, subs...)
		then()
	})
	if err != nil || stale {
		for _, u := range subs {
			u()
		}
	}
	if err != nil {
		return err
	}
	if stale {
		return ErrCallSuperseded
	}
	return nil
}

func (m *Manager) onLocalCandidate(c domain.ICECandidate) {
	if !m.recordReady {
		m.outbound = append(m.outbound, c)
		return
	}
	go m.publishCandidate(m.callID, m.localSide, c)
}

func (m *Manager) flushOutbound() {
	for _, c := range m.outbound {
		go m.publishCandidate(m.callID, m.localSide, c)
	}
	m.outbound = nil
}

func (m *Manager) publishCandidate(id domain.CallID, side domain.CandidateSide, c domain.ICECandidate) {
	ctx, cancel := context.WithTimeout(context.Background(), bestEffortTimeout)
	defer cancel()
	if err := m.store.AddCandidate(ctx, id, side, c); err != nil {
		m.log.Warningf("publish candidate for call %s: %v", id, err)
	}
}

// onCandidateChange feeds a trickled candidate to the peer. A lost candidate
// watch leaves the call running on the candidates already exchanged.
func (m *Manager) onCandidateChange(c domain.CandidateChange) {
	if c.Kind == domain.ChangeLost {
		m.log.Warningf("call %s: candidate watch lost", m.callID)
		return
	}
	m.onRemoteCandidate(c.Candidate)
}

func (m *Manager) onRemoteCandidate(c domain.ICECandidate) {
	if !m.remoteSet || m.pc == nil {
		m.inbound = append(m.inbound, c)
		return
	}
	if err := m.pc.AddICECandidate(c); err != nil {
		m.log.Warningf("add remote candidate for call %s: %v", m.callID, err)
	}
}

// applyRemote sets the remote description and drains the candidates that
// arrived before it.
func (m *Manager) applyRemote(desc domain.SessionDescription) error {
	if err := m.pc.SetRemoteDescription(desc); err != nil {
		return err
	}
	m.remoteSet = true
	pending := m.inbound
	m.inbound = nil
	for _, c := range pending {
		m.onRemoteCandidate(c)
	}
	return nil
}

func (m *Manager) onRemoteTrack(t domain.TrackInfo) {
	s := m.session
	s.RemoteTracks = append(append([]domain.TrackInfo(nil), s.RemoteTracks...), t)
	m.setSession(s)
}

func (m *Manager) onICEState(state string) {
	s := m.session
	s.ConnectionStatus = state
	m.setSession(s)

	switch state {
	case iceFailed:
		m.log.Warningf("call %s: ICE failed", m.callID)
		m.fail(MsgICEFailed)
	case iceClosed:
		m.cleanup()
	}
}

// deleteRecord removes a record without failing the caller.
func (m *Manager) deleteRecord(id domain.CallID) {
	ctx, cancel := context.WithTimeout(context.Background(), bestEffortTimeout)
	defer cancel()
	if err := m.store.DeleteCall(ctx, id); err != nil {
		m.log.Warningf("delete call %s: %v", id, err)
	}
}

func trackInfos(s domain.LocalStream) []domain.TrackInfo {
	if s == nil {
		return nil
	}
	var out []domain.TrackInfo
	for _, t := range s.Tracks() {
		out = append(out, domain.TrackInfo{
			ID:       t.ID(),
			StreamID: s.ID(),
			Kind:     t.Kind(),
			Enabled:  t.Enabled(),
		})
	}
	return out
}

func setKindEnabled(s domain.LocalStream, kind domain.TrackKind, enabled bool) {
	for _, t := range s.Tracks() {
		if t.Kind() == kind {
			t.SetEnabled(enabled)
		}
	}
}

func cloneSession(s domain.CallSession) domain.CallSession {
	s.LocalTracks = append([]domain.TrackInfo(nil), s.LocalTracks...)
	s.RemoteTracks = append([]domain.TrackInfo(nil), s.RemoteTracks...)
	return s
}
