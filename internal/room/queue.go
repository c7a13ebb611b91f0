package room

import (
	"context"
	"sync"

	"github.com/concerto-app/theatre/internal/model"
)

// outboundQueue is the per-user unbounded, FIFO, closeable queue of
// envelopes waiting to be delivered to one member. End-of-stream is
// modeled by closing the queue rather than a sentinel value, which is
// what lets Room.Fetch hand callers a plain range-able channel.
type outboundQueue struct {
	mu     sync.Mutex
	items  []model.Envelope
	closed bool
	notify chan struct{}
}

func newOutboundQueue() *outboundQueue {
	return &outboundQueue{notify: make(chan struct{}, 1)}
}

func (q *outboundQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// enqueue appends env. A no-op once the queue has been closed — this
// is how broadcasts to a just-disconnected user are discarded.
func (q *outboundQueue) enqueue(env model.Envelope) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, env)
	q.mu.Unlock()
	q.signal()
}

// close marks the queue as closed: later enqueues are discarded, and
// next reports end-of-stream once the pending items are popped.
// Idempotent.
func (q *outboundQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// pop returns the oldest pending envelope, if any. done is true once
// the queue is closed and fully drained.
func (q *outboundQueue) pop() (env model.Envelope, ok bool, done bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) > 0 {
		env = q.items[0]
		q.items = q.items[1:]
		return env, true, false
	}
	return nil, false, q.closed
}

// next blocks until an envelope is available, the queue drains closed
// (ok=false), or ctx is canceled (ok=false).
func (q *outboundQueue) next(ctx context.Context) (model.Envelope, bool) {
	for {
		if env, ok, done := q.pop(); ok {
			return env, true
		} else if done {
			return nil, false
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, false
		}
	}
}
