package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"
	"gopkg.in/op/go-logging.v1"

	"nyx/internal/domain"
)

const (
	defaultRedialBase = 500 * time.Millisecond
	defaultRedialMax  = 10 * time.Second
	defaultRedials    = 5
)

// Client talks to a relay Server.
//
// A watch whose connection drops is redialled with exponential backoff
// between RedialBase and RedialMax. The relay replays current state on every
// dial, so a restored watch misses nothing. Call and candidate watches give
// up after Redials attempts and deliver a ChangeLost; incoming, message and
// conversation watches keep trying until unsubscribed.
type Client struct {
	Base   string
	HTTP   *http.Client
	Dialer *websocket.Dialer
	Log    *logging.Logger

	RedialBase time.Duration
	RedialMax  time.Duration
	Redials    uint64
}

// NewClient returns a Client for the relay at base, e.g. "http://localhost:8080".
func NewClient(base string, log *logging.Logger) *Client {
	return &Client{
		Base:       strings.TrimRight(base, "/"),
		HTTP:       &http.Client{Timeout: 15 * time.Second},
		Dialer:     websocket.DefaultDialer,
		Log:        log,
		RedialBase: defaultRedialBase,
		RedialMax:  defaultRedialMax,
		Redials:    defaultRedials,
	}
}

// NewCallID returns a random record identifier. Ids are minted locally.
func (c *Client) NewCallID() domain.CallID {
	return domain.CallID(uuid.NewString())
}

func (c *Client) CreateCall(ctx context.Context, rec domain.CallRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("create call: %w: empty id", domain.ErrInvalidFormat)
	}
	return c.do(ctx, http.MethodPut, callPath(rec.ID), rec, nil)
}

func (c *Client) UpdateCall(ctx context.Context, id domain.CallID, u domain.CallUpdate) error {
	return c.do(ctx, http.MethodPatch, callPath(id), u, nil)
}

func (c *Client) GetCall(ctx context.Context, id domain.CallID) (domain.CallRecord, bool, error) {
	var rec domain.CallRecord
	err := c.do(ctx, http.MethodGet, callPath(id), nil, &rec)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.CallRecord{}, false, nil
	}
	if err != nil {
		return domain.CallRecord{}, false, err
	}
	return rec, true, nil
}

func (c *Client) DeleteCall(ctx context.Context, id domain.CallID) error {
	return c.do(ctx, http.MethodDelete, callPath(id), nil, nil)
}

func (c *Client) AddCandidate(
	ctx context.Context,
	id domain.CallID,
	side domain.CandidateSide,
	cand domain.ICECandidate,
) error {
	if !side.Valid() {
		return fmt.Errorf("add candidate: %w: side %q", domain.ErrInvalidFormat, side)
	}
	return c.do(ctx, http.MethodPost, candidatesPath(id, side), cand, nil)
}

func (c *Client) Publish(ctx context.Context, p domain.Profile) error {
	if p.ID == "" {
		return fmt.Errorf("publish profile: %w: empty id", domain.ErrInvalidFormat)
	}
	return c.do(ctx, http.MethodPut, userPath(p.ID), p, nil)
}

func (c *Client) Lookup(ctx context.Context, id domain.UserID) (domain.Profile, bool, error) {
	var p domain.Profile
	err := c.do(ctx, http.MethodGet, userPath(id), nil, &p)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Profile{}, false, nil
	}
	if err != nil {
		return domain.Profile{}, false, err
	}
	return p, true, nil
}

func (c *Client) WatchCall(
	ctx context.Context,
	id domain.CallID,
	fn func(domain.CallChange),
) (domain.Unsubscribe, error) {
	return watch(ctx, c, watchCallPath(id), false, fn, func() domain.CallChange {
		return domain.CallChange{Kind: domain.ChangeLost, Record: domain.CallRecord{ID: id}}
	})
}

func (c *Client) WatchIncoming(
	ctx context.Context,
	callee domain.UserID,
	fn func(domain.CallChange),
) (domain.Unsubscribe, error) {
	return watch(ctx, c, watchIncomingPath(callee), true, fn, func() domain.CallChange {
		return domain.CallChange{Kind: domain.ChangeLost}
	})
}

func (c *Client) WatchCandidates(
	ctx context.Context,
	id domain.CallID,
	side domain.CandidateSide,
	fn func(domain.CandidateChange),
) (domain.Unsubscribe, error) {
	if !side.Valid() {
		return nil, fmt.Errorf("watch candidates: %w: side %q", domain.ErrInvalidFormat, side)
	}
	return watch(ctx, c, watchCandidatesPath(id, side), false, fn, func() domain.CandidateChange {
		return domain.CandidateChange{Kind: domain.ChangeLost}
	})
}

// watcher owns the current connection of one watch.
type watcher struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	stopped bool
}

// swap installs a redialled connection unless the watch was stopped.
func (w *watcher) swap(conn *websocket.Conn) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return false
	}
	w.conn = conn
	return true
}

func (w *watcher) current() *websocket.Conn {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn
}

func (w *watcher) stop() *websocket.Conn {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	return w.conn
}

// watch dials a websocket watch and feeds each decoded frame to fn on a
// single goroutine. ctx bounds the first dial only. A dropped connection is
// redialled; when that fails fn receives lost() and the watch ends.
func watch[T any](
	ctx context.Context,
	c *Client,
	path string,
	persistent bool,
	fn func(T),
	lost func() T,
) (domain.Unsubscribe, error) {
	conn, err := c.dial(ctx, path)
	if err != nil {
		return nil, err
	}

	wctx, cancel := context.WithCancel(context.Background())
	w := &watcher{conn: conn}
	go func() {
		for {
			err := read(wctx, w.current(), fn)
			if wctx.Err() != nil {
				return
			}
			c.Log.Warningf("watch %s: connection lost: %v", path, err)

			next, err := c.redial(wctx, path, persistent)
			if wctx.Err() != nil {
				if next != nil {
					_ = next.Close()
				}
				return
			}
			if err != nil {
				c.Log.Errorf("watch %s: giving up: %v", path, err)
				fn(lost())
				return
			}
			if !w.swap(next) {
				_ = next.Close()
				return
			}
			c.Log.Noticef("watch %s: restored", path)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			conn := w.stop()
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			_ = conn.Close()
		})
	}, nil
}

// read decodes frames from conn into fn until the connection fails or ctx is
// cancelled.
func read[T any](ctx context.Context, conn *websocket.Conn, fn func(T)) error {
	for {
		var v T
		if err := conn.ReadJSON(&v); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		fn(v)
	}
}

func (c *Client) dial(ctx context.Context, path string) (*websocket.Conn, error) {
	u := "ws" + strings.TrimPrefix(c.Base, "http") + path
	conn, resp, err := c.Dialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil {
			return nil, statusError(http.MethodGet, path, resp)
		}
		return nil, fmt.Errorf("%w: watch %s: %w", domain.ErrTransportFailed, path, err)
	}
	return conn, nil
}

func (c *Client) redial(ctx context.Context, path string, persistent bool) (*websocket.Conn, error) {
	b := retry.NewExponential(c.RedialBase)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithCappedDuration(c.RedialMax, b)
	if !persistent {
		b = retry.WithMaxRetries(c.Redials, b)
	}

	var conn *websocket.Conn
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		var err error
		conn, err = c.dial(ctx, path)
		if errors.Is(err, domain.ErrTransportFailed) || errors.Is(err, domain.ErrRemoteUnavailable) {
			c.Log.Debugf("watch %s: redial: %v", path, err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: relay %s %s: %w", domain.ErrTransportFailed, method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return statusError(method, path, resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func statusError(method, path string, resp *http.Response) error {
	var eb errorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&eb)
	var kind error
	switch resp.StatusCode {
	case http.StatusNotFound:
		kind = domain.ErrNotFound
	case http.StatusBadRequest:
		kind = domain.ErrInvalidFormat
	default:
		kind = domain.ErrRemoteUnavailable
	}
	if eb.Error != "" {
		return fmt.Errorf("relay %s %s: %s: %w: %s", method, path, resp.Status, kind, eb.Error)
	}
	return fmt.Errorf("relay %s %s: %s: %w", method, path, resp.Status, kind)
}

var (
	_ domain.SignalingStore = (*Client)(nil)
	_ domain.MessageStore   = (*Client)(nil)
	_ domain.Directory      = (*Client)(nil)
)
