package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/op/go-logging.v1"

	"nyx/internal/domain"
	"nyx/internal/signaling"
)

const (
	maxBodySize = 1 << 20
	writeWait   = 10 * time.Second
)

type metrics struct {
	created    prometheus.Counter
	deleted    prometheus.Counter
	candidates prometheus.Counter
	messages   prometheus.Counter
	requests   *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer, store *signaling.MemoryStore) *metrics {
	m := &metrics{
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nyx_relay_calls_created_total",
			Help: "Number of call records created",
		}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nyx_relay_calls_deleted_total",
			Help: "Number of call records deleted",
		}),
		candidates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nyx_relay_candidates_total",
			Help: "Number of ICE candidates relayed",
		}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nyx_relay_messages_total",
			Help: "Number of chat messages stored",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nyx_relay_requests_total",
			Help: "Number of HTTP requests by method and status code",
		}, []string{"method", "code"}),
	}
	watches := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "nyx_relay_active_watches",
		Help: "Number of open websocket watches",
	}, func() float64 { return float64(store.Stats().Watches) })
	active := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "nyx_relay_active_calls",
		Help: "Number of call records currently stored",
	}, func() float64 { return float64(store.Stats().Calls) })
	convs := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "nyx_relay_conversations",
		Help: "Number of conversations currently stored",
	}, func() float64 { return float64(store.Stats().Conversations) })

	if reg != nil {
		reg.MustRegister(m.created, m.deleted, m.candidates, m.messages, m.requests, watches, active, convs)
	}
	return m
}

// Server serves the relay API from a MemoryStore.
type Server struct {
	store    *signaling.MemoryStore
	log      *logging.Logger
	metrics  *metrics
	mux      *http.ServeMux
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewServer builds the relay handler. reg may be nil to skip metrics
// registration.
func NewServer(store *signaling.MemoryStore, log *logging.Logger, reg prometheus.Registerer) *Server {
	s := &Server{
		store:   store,
		log:     log,
		metrics: newMetrics(reg, store),
		mux:     http.NewServeMux(),
		conns:   make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Clients are CLIs, not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	s.mux.HandleFunc("PUT /calls/{id}", s.createCall)
	s.mux.HandleFunc("PATCH /calls/{id}", s.updateCall)
	s.mux.HandleFunc("GET /calls/{id}", s.getCall)
	s.mux.HandleFunc("DELETE /calls/{id}", s.deleteCall)
	s.mux.HandleFunc("POST /calls/{id}/candidates/{side}", s.addCandidate)
	s.mux.HandleFunc("PUT /users/{id}", s.publish)
	s.mux.HandleFunc("GET /users/{id}", s.lookup)
	s.mux.HandleFunc("GET /watch/calls/{id}", s.watchCall)
	s.mux.HandleFunc("GET /watch/incoming/{callee}", s.watchIncoming)
	s.mux.HandleFunc("GET /watch/calls/{id}/candidates/{side}", s.watchCandidates)

	s.mux.HandleFunc("PUT /conversations/{id}", s.openConversation)
	s.mux.HandleFunc("GET /conversations/{id}/messages", s.listMessages)
	s.mux.HandleFunc("POST /conversations/{id}/messages", s.sendMessage)
	s.mux.HandleFunc("POST /conversations/{id}/read", s.markRead)
	s.mux.HandleFunc("PUT /conversations/{id}/typing/{user}", s.setTyping)
	s.mux.HandleFunc("PUT /messages/{id}/reactions/{user}", s.react)
	s.mux.HandleFunc("GET /users/{id}/conversations", s.listConversations)
	s.mux.HandleFunc("GET /watch/conversations/{id}/messages", s.watchMessages)
	s.mux.HandleFunc("GET /watch/users/{id}/conversations", s.watchConversations)
	return s
}

// CloseWatches sends a going-away close frame on every open watch and drops
// it. Clients redial and get the current state replayed.
func (s *Server) CloseWatches() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay restarting")
	for _, c := range conns {
		_ = c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = c.Close()
	}
	if len(conns) > 0 {
		s.log.Noticef("closed %d watches", len(conns))
	}
}

// ServeHTTP implements http.Handler with a lightweight access log.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.metrics.requests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
	s.log.Debugf("%s %s %s %d %dB %s", r.Method, r.URL.Path, r.RemoteAddr, rec.status, rec.bytes, time.Since(start))
}

func (s *Server) createCall(w http.ResponseWriter, r *http.Request) {
	var rec domain.CallRecord
	if !decode(w, r, &rec) {
		return
	}
	id := domain.CallID(r.PathValue("id"))
	if rec.ID != "" && rec.ID != id {
		writeError(w, http.StatusBadRequest, "record id does not match path")
		return
	}
	rec.ID = id
	if rec.CallerID == "" || rec.CalleeID == "" {
		writeError(w, http.StatusBadRequest, "caller and callee are required")
		return
	}
	if s.fail(w, s.store.CreateCall(r.Context(), rec)) {
		return
	}
	s.metrics.created.Inc()
	s.log.Debugf("call %s: %s -> %s", id, rec.CallerID, rec.CalleeID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) updateCall(w http.ResponseWriter, r *http.Request) {
	var u domain.CallUpdate
	if !decode(w, r, &u) {
		return
	}
	if s.fail(w, s.store.UpdateCall(r.Context(), domain.CallID(r.PathValue("id")), u)) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getCall(w http.ResponseWriter, r *http.Request) {
	rec, ok, err := s.store.GetCall(r.Context(), domain.CallID(r.PathValue("id")))
	if s.fail(w, err) {
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no such call")
		return
	}
	writeJSON(w, rec)
}

func (s *Server) deleteCall(w http.ResponseWriter, r *http.Request) {
	id := domain.CallID(r.PathValue("id"))
	_, existed, _ := s.store.GetCall(r.Context(), id)
	if s.fail(w, s.store.DeleteCall(r.Context(), id)) {
		return
	}
	if existed {
		s.metrics.deleted.Inc()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addCandidate(w http.ResponseWriter, r *http.Request) {
	var c domain.ICECandidate
	if !decode(w, r, &c) {
		return
	}
	id := domain.CallID(r.PathValue("id"))
	side := domain.CandidateSide(r.PathValue("side"))
	if s.fail(w, s.store.AddCandidate(r.Context(), id, side, c)) {
		return
	}
	s.metrics.candidates.Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) publish(w http.ResponseWriter, r *http.Request) {
	var p domain.Profile
	if !decode(w, r, &p) {
		return
	}
	id := domain.UserID(r.PathValue("id"))
	if p.ID != "" && p.ID != id {
		writeError(w, http.StatusBadRequest, "profile id does not match path")
		return
	}
	p.ID = id
	if s.fail(w, s.store.Publish(r.Context(), p)) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) {
	p, ok, err := s.store.Lookup(r.Context(), domain.UserID(r.PathValue("id")))
	if s.fail(w, err) {
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no such user")
		return
	}
	writeJSON(w, p)
}

func (s *Server) watchCall(w http.ResponseWriter, r *http.Request) {
	id := domain.CallID(r.PathValue("id"))
	serveWatch(s, w, r, func(ctx context.Context, fn func(domain.CallChange)) (domain.Unsubscribe, error) {
		return s.store.WatchCall(ctx, id, fn)
	})
}

func (s *Server) watchIncoming(w http.ResponseWriter, r *http.Request) {
	callee := domain.UserID(r.PathValue("callee"))
	serveWatch(s, w, r, func(ctx context.Context, fn func(domain.CallChange)) (domain.Unsubscribe, error) {
		return s.store.WatchIncoming(ctx, callee, fn)
	})
}

func (s *Server) watchCandidates(w http.ResponseWriter, r *http.Request) {
	id := domain.CallID(r.PathValue("id"))
	side := domain.CandidateSide(r.PathValue("side"))
	if !side.Valid() {
		writeError(w, http.StatusBadRequest, "unknown candidate side")
		return
	}
	serveWatch(s, w, r, func(ctx context.Context, fn func(domain.CandidateChange)) (domain.Unsubscribe, error) {
		return s.store.WatchCandidates(ctx, id, side, fn)
	})
}

func (s *Server) openConversation(w http.ResponseWriter, r *http.Request) {
	var c domain.Conversation
	if !decode(w, r, &c) {
		return
	}
	id := domain.ConversationID(r.PathValue("id"))
	if c.ID != "" && c.ID != id {
		writeError(w, http.StatusBadRequest, "conversation id does not match path")
		return
	}
	c.ID = id
	if s.fail(w, s.store.OpenConversation(r.Context(), c)) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.store.ListMessages(r.Context(), domain.ConversationID(r.PathValue("id")))
	if s.fail(w, err) {
		return
	}
	writeJSON(w, msgs)
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var msg domain.ChatMessage
	if !decode(w, r, &msg) {
		return
	}
	id := domain.ConversationID(r.PathValue("id"))
	if msg.ConversationID != "" && msg.ConversationID != id {
		writeError(w, http.StatusBadRequest, "conversation id does not match path")
		return
	}
	msg.ConversationID = id
	stored, err := s.store.SendMessage(r.Context(), msg)
	if s.fail(w, err) {
		return
	}
	s.metrics.messages.Inc()
	writeJSON(w, stored)
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	var body readBody
	if !decode(w, r, &body) {
		return
	}
	if body.Reader == "" {
		writeError(w, http.StatusBadRequest, "reader is required")
		return
	}
	if s.fail(w, s.store.MarkRead(r.Context(), domain.ConversationID(r.PathValue("id")), body.Reader)) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setTyping(w http.ResponseWriter, r *http.Request) {
	var body typingBody
	if !decode(w, r, &body) {
		return
	}
	id := domain.ConversationID(r.PathValue("id"))
	user := domain.UserID(r.PathValue("user"))
	if s.fail(w, s.store.SetTyping(r.Context(), id, user, body.Typing)) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) react(w http.ResponseWriter, r *http.Request) {
	var body reactionBody
	if !decode(w, r, &body) {
		return
	}
	id := domain.MessageID(r.PathValue("id"))
	user := domain.UserID(r.PathValue("user"))
	if s.fail(w, s.store.React(r.Context(), id, user, body.Emoji)) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.store.ListConversations(r.Context(), domain.UserID(r.PathValue("id")))
	if s.fail(w, err) {
		return
	}
	if convs == nil {
		convs = []domain.Conversation{}
	}
	writeJSON(w, convs)
}

func (s *Server) watchMessages(w http.ResponseWriter, r *http.Request) {
	id := domain.ConversationID(r.PathValue("id"))
	serveWatch(s, w, r, func(ctx context.Context, fn func(domain.MessageChange)) (domain.Unsubscribe, error) {
		return s.store.WatchMessages(ctx, id, fn)
	})
}

func (s *Server) watchConversations(w http.ResponseWriter, r *http.Request) {
	user := domain.UserID(r.PathValue("id"))
	serveWatch(s, w, r, func(ctx context.Context, fn func(domain.ConversationChange)) (domain.Unsubscribe, error) {
		return s.store.WatchConversations(ctx, user, fn)
	})
}

// serveWatch upgrades the request and streams every change as one JSON text
// frame until the peer goes away.
func serveWatch[T any](
	s *Server,
	w http.ResponseWriter,
	r *http.Request,
	subscribe func(context.Context, func(T)) (domain.Unsubscribe, error),
) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warningf("watch %s: upgrade: %v", r.URL.Path, err)
		return
	}
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	unsub, err := subscribe(r.Context(), func(v T) {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(v); err != nil {
			// The read loop below notices the broken connection.
			_ = conn.Close()
		}
	})
	if err != nil {
		s.log.Warningf("watch %s: %v", r.URL.Path, err)
		return
	}
	defer unsub()

	// Clients never send data frames; reading services control frames and
	// reports when the connection closes.
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

// fail writes the HTTP error matching err and reports whether it did.
func (s *Server) fail(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidFormat):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Errorf("relay: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
	return true
}

func decode(w http.ResponseWriter, r *http.Request, out any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Hijack lets websocket upgrades through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("relay: response writer cannot hijack")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
