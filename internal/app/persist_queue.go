package app

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// PersistQueue runs store writes one at a time in submission order on a single
// goroutine, so a participant's updates reach the store in the order they happened.
// Submit never blocks the caller.
type PersistQueue struct {
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	pending []func(ctx context.Context)
	closed  bool
	signal  chan struct{}
	done    chan struct{}
}

func NewPersistQueue(timeout time.Duration, logger *slog.Logger) *PersistQueue {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistQueue{
		timeout: timeout,
		logger:  logger,
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Submit enqueues task. Tasks submitted after Stop are dropped.
func (q *PersistQueue) Submit(task func(ctx context.Context)) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("persist queue stopped, dropping write")
		return
	}
	q.pending = append(q.pending, task)
	q.mu.Unlock()
	q.notify()
}

// Run executes tasks until Stop is called or ctx is done, then drains what is pending.
// Each task gets its own timeout; cancellation of ctx does not abort in-flight writes.
func (q *PersistQueue) Run(ctx context.Context) {
	defer close(q.done)
	base := context.WithoutCancel(ctx)
	for {
		task, ok := q.next(ctx)
		if !ok {
			return
		}
		q.exec(base, task)
	}
}

// Stop refuses new tasks. Run returns once the pending ones are done.
func (q *PersistQueue) Stop() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notify()
}

// Done is closed when Run has returned.
func (q *PersistQueue) Done() <-chan struct{} { return q.done }

func (q *PersistQueue) next(ctx context.Context) (func(ctx context.Context), bool) {
	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			task := q.pending[0]
			q.pending[0] = nil
			q.pending = q.pending[1:]
			q.mu.Unlock()
			return task, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, false
		}

		select {
		case <-q.signal:
		case <-ctx.Done():
			q.Stop()
		}
	}
}

func (q *PersistQueue) exec(base context.Context, task func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(base, q.timeout)
	defer cancel()
	task(ctx)
}

func (q *PersistQueue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
