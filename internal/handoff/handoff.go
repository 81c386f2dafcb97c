// Package handoff moves work from any goroutine onto a single consumer
// goroutine. Producers Post closures, the consumer runs them with Drain.
package handoff

import "sync"

// Queue of closures waiting for the consumer
type Queue struct {
	mu     sync.Mutex
	fns    []func()
	closed bool
	ready  chan struct{}
}

func New() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Post queues fn to run on the consumer. Never blocks. Returns false if the
// queue is closed and fn was dropped.
func (q *Queue) Post(fn func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.fns = append(q.fns, fn)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// Drain runs all queued closures in post order on the calling goroutine and
// returns how many ran. Closures posted while draining run in the same call.
func (q *Queue) Drain() int {
	n := 0
	for {
		q.mu.Lock()
		if q.closed || len(q.fns) == 0 {
			q.mu.Unlock()
			return n
		}
		fns := q.fns
		q.fns = nil
		q.mu.Unlock()

		for _, fn := range fns {
			fn()
			n++
		}
	}
}

// Ready is signaled after a Post. Consumers select on it and then Drain.
func (q *Queue) Ready() <-chan struct{} { return q.ready }

// Len is number of closures waiting
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.fns)
}

// Close drops queued closures, later posts are dropped too
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.fns = nil
	q.mu.Unlock()
}
