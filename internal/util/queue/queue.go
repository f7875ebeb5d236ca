// Package queue provides an unbounded FIFO of closures drained by a single
// goroutine.
package queue

import "sync"

// Queue runs posted funcs one at a time, in post order, on its own
// goroutine. Post never blocks.
type Queue struct {
	mu     sync.Mutex
	items  []func()
	closed bool

	wakeCh chan struct{}
	haltCh chan struct{}
	doneCh chan struct{}
}

// New starts a Queue.
func New() *Queue {
	q := &Queue{
		wakeCh: make(chan struct{}, 1),
		haltCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go q.worker()
	return q
}

// Post appends fn. It returns false once the queue is halted.
func (q *Queue) Post(fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, fn)
	q.mu.Unlock()

	select {
	case q.wakeCh <- struct{}{}:
	default:
	}
	return true
}

// Halt stops accepting work. Funcs already posted still run. It may be
// called from inside a posted func.
func (q *Queue) Halt() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.haltCh)
	}
}

// Wait blocks until the worker has drained the queue after Halt. Calling it
// from a posted func deadlocks.
func (q *Queue) Wait() { <-q.doneCh }

func (q *Queue) worker() {
	defer close(q.doneCh)
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			select {
			case <-q.wakeCh:
			case <-q.haltCh:
			}
			continue
		}
		fn := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.mu.Unlock()

		fn()
	}
}
