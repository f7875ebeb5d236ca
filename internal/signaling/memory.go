package signaling

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"nyx/internal/domain"
	"nyx/internal/util/queue"
)

type candKey struct {
	id   domain.CallID
	side domain.CandidateSide
}

type callEntry struct {
	rec        domain.CallRecord
	candidates map[domain.CandidateSide][]domain.ICECandidate
}

// sub is one watch. Deliveries are posted to its own queue so a slow
// subscriber never blocks writers or other subscribers.
type sub struct {
	q       *queue.Queue
	stopped atomic.Bool
}

func (s *sub) post(fn func()) {
	s.q.Post(func() {
		if !s.stopped.Load() {
			fn()
		}
	})
}

func (s *sub) stop() {
	s.stopped.Store(true)
	s.q.Halt()
}

type callSub struct {
	sub
	fn func(domain.CallChange)
}

type candSub struct {
	sub
	fn func(domain.CandidateChange)
}

// Stats is a point-in-time view of the store's size.
type Stats struct {
	Calls         int
	Profiles      int
	Conversations int
	Messages      int
	Watches       int
}

// MemoryStore implements domain.SignalingStore, domain.MessageStore and
// domain.Directory in memory.
type MemoryStore struct {
	mu sync.Mutex

	calls map[domain.CallID]*callEntry
	users map[domain.UserID]domain.Profile

	convs    map[domain.ConversationID]*domain.Conversation
	msgs     map[domain.ConversationID][]*domain.ChatMessage
	msgConv  map[domain.MessageID]domain.ConversationID
	msgCount int

	callSubs     map[domain.CallID]map[uint64]*callSub
	incomingSubs map[domain.UserID]map[uint64]*callSub
	candSubs     map[candKey]map[uint64]*candSub
	msgSubs      map[domain.ConversationID]map[uint64]*msgSub
	convSubs     map[domain.UserID]map[uint64]*convSub
	nextSub      uint64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		calls:        make(map[domain.CallID]*callEntry),
		users:        make(map[domain.UserID]domain.Profile),
		convs:        make(map[domain.ConversationID]*domain.Conversation),
		msgs:         make(map[domain.ConversationID][]*domain.ChatMessage),
		msgConv:      make(map[domain.MessageID]domain.ConversationID),
		callSubs:     make(map[domain.CallID]map[uint64]*callSub),
		incomingSubs: make(map[domain.UserID]map[uint64]*callSub),
		candSubs:     make(map[candKey]map[uint64]*candSub),
		msgSubs:      make(map[domain.ConversationID]map[uint64]*msgSub),
		convSubs:     make(map[domain.UserID]map[uint64]*convSub),
	}
}

// NewCallID returns a random record identifier.
func (m *MemoryStore) NewCallID() domain.CallID {
	return domain.CallID(uuid.NewString())
}

// CreateCall stores rec, replacing any record with the same id.
func (m *MemoryStore) CreateCall(ctx context.Context, rec domain.CallRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		return fmt.Errorf("create call: %w: empty id", domain.ErrInvalidFormat)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kind := domain.ChangeAdded
	e, ok := m.calls[rec.ID]
	if ok {
		kind = domain.ChangeModified
		e.rec = copyRecord(rec)
	} else {
		e = &callEntry{
			rec:        copyRecord(rec),
			candidates: make(map[domain.CandidateSide][]domain.ICECandidate),
		}
		m.calls[rec.ID] = e
	}
	m.emitCallLocked(domain.CallChange{Kind: kind, Record: copyRecord(e.rec)})
	return nil
}

// UpdateCall merges u into an existing record.
func (m *MemoryStore) UpdateCall(ctx context.Context, id domain.CallID, u domain.CallUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.calls[id]
	if !ok {
		return fmt.Errorf("update call %s: %w", id, domain.ErrNotFound)
	}
	u.Apply(&e.rec)
	m.emitCallLocked(domain.CallChange{Kind: domain.ChangeModified, Record: copyRecord(e.rec)})
	return nil
}

// GetCall returns the record for id.
func (m *MemoryStore) GetCall(ctx context.Context, id domain.CallID) (domain.CallRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.CallRecord{}, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.calls[id]
	if !ok {
		return domain.CallRecord{}, false, nil
	}
	return copyRecord(e.rec), true, nil
}

// DeleteCall removes the record and its candidates. Deleting a missing
// record is not an error.
func (m *MemoryStore) DeleteCall(ctx context.Context, id domain.CallID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.calls[id]
	if !ok {
		return nil
	}
	delete(m.calls, id)
	m.emitCallLocked(domain.CallChange{Kind: domain.ChangeRemoved, Record: copyRecord(e.rec)})
	return nil
}

// AddCandidate appends c to one of the record's candidate collections.
func (m *MemoryStore) AddCandidate(
	ctx context.Context,
	id domain.CallID,
	side domain.CandidateSide,
	c domain.ICECandidate,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !side.Valid() {
		return fmt.Errorf("add candidate: %w: side %q", domain.ErrInvalidFormat, side)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.calls[id]
	if !ok {
		return fmt.Errorf("add candidate to %s: %w", id, domain.ErrNotFound)
	}
	e.candidates[side] = append(e.candidates[side], c)
	for _, s := range m.candSubs[candKey{id, side}] {
		s.deliver(domain.CandidateChange{Kind: domain.ChangeAdded, Candidate: c})
	}
	return nil
}

// WatchCall delivers the current record state, or a removal if it does not
// exist, followed by every later change.
func (m *MemoryStore) WatchCall(
	ctx context.Context,
	id domain.CallID,
	fn func(domain.CallChange),
) (domain.Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := &callSub{sub: sub{q: queue.New()}, fn: fn}
	subID := addSub(m, m.callSubs, id, s)

	if e, ok := m.calls[id]; ok {
		s.deliver(domain.CallChange{Kind: domain.ChangeAdded, Record: copyRecord(e.rec)})
	} else {
		s.deliver(domain.CallChange{Kind: domain.ChangeRemoved, Record: domain.CallRecord{ID: id}})
	}

	return m.unsubscriber(func() {
		removeSub(m.callSubs, id, subID)
	}, &s.sub), nil
}

// WatchIncoming delivers every record addressed to callee as added, then
// later changes to those records.
func (m *MemoryStore) WatchIncoming(
	ctx context.Context,
	callee domain.UserID,
	fn func(domain.CallChange),
) (domain.Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := &callSub{sub: sub{q: queue.New()}, fn: fn}
	subID := addSub(m, m.incomingSubs, callee, s)

	for _, e := range m.calls {
		if e.rec.CalleeID == callee {
			s.deliver(domain.CallChange{Kind: domain.ChangeAdded, Record: copyRecord(e.rec)})
		}
	}

	return m.unsubscriber(func() {
		removeSub(m.incomingSubs, callee, subID)
	}, &s.sub), nil
}

// WatchCandidates delivers every candidate already in the collection, then
// each one appended later.
func (m *MemoryStore) WatchCandidates(
	ctx context.Context,
	id domain.CallID,
	side domain.CandidateSide,
	fn func(domain.CandidateChange),
) (domain.Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !side.Valid() {
		return nil, fmt.Errorf("watch candidates: %w: side %q", domain.ErrInvalidFormat, side)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := candKey{id, side}
	s := &candSub{sub: sub{q: queue.New()}, fn: fn}
	subID := addSub(m, m.candSubs, key, s)

	if e, ok := m.calls[id]; ok {
		for _, c := range e.candidates[side] {
			s.deliver(domain.CandidateChange{Kind: domain.ChangeAdded, Candidate: c})
		}
	}

	return m.unsubscriber(func() {
		removeSub(m.candSubs, key, subID)
	}, &s.sub), nil
}

// Publish stores p, replacing any previous profile with the same id.
func (m *MemoryStore) Publish(ctx context.Context, p domain.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.ID == "" {
		return fmt.Errorf("publish profile: %w: empty id", domain.ErrInvalidFormat)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[p.ID] = p
	return nil
}

// Lookup returns the profile for id. A missing profile is not an error.
func (m *MemoryStore) Lookup(ctx context.Context, id domain.UserID) (domain.Profile, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Profile{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.users[id]
	return p, ok, nil
}

// Stats reports the number of stored documents and open watches.
func (m *MemoryStore) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Stats{
		Calls:         len(m.calls),
		Profiles:      len(m.users),
		Conversations: len(m.convs),
		Messages:      m.msgCount,
	}
	for _, subs := range m.callSubs {
		st.Watches += len(subs)
	}
	for _, subs := range m.incomingSubs {
		st.Watches += len(subs)
	}
	for _, subs := range m.candSubs {
		st.Watches += len(subs)
	}
	for _, subs := range m.msgSubs {
		st.Watches += len(subs)
	}
	for _, subs := range m.convSubs {
		st.Watches += len(subs)
	}
	return st
}

// CallWatches reports how many record and candidate watches are open on id.
func (m *MemoryStore) CallWatches(id domain.CallID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.callSubs[id])
	n += len(m.candSubs[candKey{id, domain.CallerCandidates}])
	n += len(m.candSubs[candKey{id, domain.AnswerCandidates}])
	return n
}

func (s *callSub) deliver(c domain.CallChange) {
	s.post(func() { s.fn(c) })
}

func (s *candSub) deliver(c domain.CandidateChange) {
	s.post(func() { s.fn(c) })
}

func (m *MemoryStore) emitCallLocked(c domain.CallChange) {
	for _, s := range m.callSubs[c.Record.ID] {
		s.deliver(c)
	}
	for _, s := range m.incomingSubs[c.Record.CalleeID] {
		s.deliver(c)
	}
}

// unsubscriber returns an idempotent handle that unregisters and stops s.
func (m *MemoryStore) unsubscriber(unregister func(), s *sub) domain.Unsubscribe {
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			unregister()
			m.mu.Unlock()
			s.stop()
		})
	}
}

func addSub[K comparable, S any](m *MemoryStore, subs map[K]map[uint64]S, key K, s S) uint64 {
	m.nextSub++
	if subs[key] == nil {
		subs[key] = make(map[uint64]S)
	}
	subs[key][m.nextSub] = s
	return m.nextSub
}

func removeSub[K comparable, S any](subs map[K]map[uint64]S, key K, id uint64) {
	delete(subs[key], id)
	if len(subs[key]) == 0 {
		delete(subs, key)
	}
}

func copyRecord(r domain.CallRecord) domain.CallRecord {
	if r.Answer != nil {
		a := *r.Answer
		r.Answer = &a
	}
	return r
}

var (
	_ domain.SignalingStore = (*MemoryStore)(nil)
	_ domain.MessageStore   = (*MemoryStore)(nil)
	_ domain.Directory      = (*MemoryStore)(nil)
)
