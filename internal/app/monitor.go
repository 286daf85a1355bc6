package app

// FullscreenMonitor runs the grace countdown that starts when the participant leaves
// fullscreen. Re-entering fullscreen is always the participant's own gesture; the
// monitor never asks the platform to re-enter.
type FullscreenMonitor struct {
	period  int
	grace   CountdownTimer
	warning bool
}

func NewFullscreenMonitor(graceSeconds int) *FullscreenMonitor {
	return &FullscreenMonitor{period: graceSeconds}
}

// Lost starts the grace countdown. It reports false if a warning is already running.
func (m *FullscreenMonitor) Lost() bool {
	if m.warning {
		return false
	}
	m.warning = true
	m.grace.Start(m.period)
	return true
}

// Regained cancels the grace countdown and clears the warning.
func (m *FullscreenMonitor) Regained() bool {
	was := m.warning
	m.Cancel()
	return was
}

// Cancel stops the grace countdown unconditionally.
func (m *FullscreenMonitor) Cancel() {
	m.warning = false
	m.grace.Stop()
}

// Tick advances the grace countdown and reports whether it just expired.
func (m *FullscreenMonitor) Tick() bool {
	if !m.warning {
		return false
	}
	if m.grace.Tick() {
		m.warning = false
		return true
	}
	return false
}

func (m *FullscreenMonitor) Warning() bool { return m.warning }

func (m *FullscreenMonitor) Remaining() int {
	if !m.warning {
		return 0
	}
	return m.grace.Remaining()
}
