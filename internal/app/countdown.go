package app

// CountdownTimer counts whole seconds down to zero. It has no goroutine of its own:
// the host loop calls Tick once per second, so there is exactly one tick source per
// timer and restarting it simply replaces the previous run.
type CountdownTimer struct {
	remaining int
	running   bool
}

// Start (re)starts the countdown at seconds. A non-positive value leaves it stopped.
func (t *CountdownTimer) Start(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	t.remaining = seconds
	t.running = seconds > 0
}

// Stop cancels the countdown, keeping the remaining value for display.
func (t *CountdownTimer) Stop() {
	t.running = false
}

// Set corrects the remaining time without changing whether the timer runs.
func (t *CountdownTimer) Set(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	t.remaining = seconds
}

// Tick decrements a running timer and reports whether this tick reached zero.
// The timer stops itself on expiry.
func (t *CountdownTimer) Tick() bool {
	if !t.running {
		return false
	}
	t.remaining--
	if t.remaining <= 0 {
		t.remaining = 0
		t.running = false
		return true
	}
	return false
}

func (t *CountdownTimer) Remaining() int { return t.remaining }

func (t *CountdownTimer) Running() bool { return t.running }
