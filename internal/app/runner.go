package app

import (
	"context"
	"errors"
	"time"
)

// ErrStopped is returned by Runner.Do once the loop has exited.
var ErrStopped = errors.New("runner stopped")

// Runner is the host loop of one controller: it serializes participant events,
// persistence completions and the one-second tick onto a single goroutine.
type Runner struct {
	ctrl        *Controller
	interval    time.Duration
	resyncEvery int
	events      chan func()
	done        chan struct{}
}

// NewRunner wires ctrl to a new loop. resyncEvery is the number of ticks between
// drift corrections; zero disables them.
func NewRunner(ctrl *Controller, interval time.Duration, resyncEvery int) *Runner {
	if interval <= 0 {
		interval = time.Second
	}
	r := &Runner{
		ctrl:        ctrl,
		interval:    interval,
		resyncEvery: resyncEvery,
		events:      make(chan func(), 16),
		done:        make(chan struct{}),
	}
	ctrl.post = r.post
	return r
}

// Run drives the loop until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-r.events:
			fn()
		case <-ticker.C:
			r.ctrl.Tick()
			ticks++
			if r.resyncEvery > 0 && ticks%r.resyncEvery == 0 {
				r.ctrl.Resync()
			}
		}
	}
}

// Do runs fn on the loop and waits for its result.
func (r *Runner) Do(ctx context.Context, fn func(c *Controller) error) error {
	errc := make(chan error, 1)
	select {
	case r.events <- func() { errc <- fn(r.ctrl) }:
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-errc:
		return err
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run has returned.
func (r *Runner) Done() <-chan struct{} { return r.done }

func (r *Runner) post(fn func()) {
	select {
	case r.events <- fn:
	case <-r.done:
	}
}
