package app

import (
	"fmt"

	"escape-room-service/internal/domain"
)

// Timer levels used for display.
const (
	LevelNormal   = "normal"
	LevelWarning  = "warning"
	LevelCritical = "critical"
)

// FormatClock renders seconds as MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// TimerLevel is critical at five minutes or less and warning at fifteen or less.
func TimerLevel(seconds int) string {
	switch {
	case seconds <= 5*60:
		return LevelCritical
	case seconds <= 15*60:
		return LevelWarning
	default:
		return LevelNormal
	}
}

// View returns the current snapshot without consuming a pending notice.
func (c *Controller) View() domain.View {
	return c.buildView()
}

func (c *Controller) buildView() domain.View {
	remaining := c.countdown.Remaining()
	v := domain.View{
		State:               c.state,
		Identity:            c.session.Identity(),
		Score:               c.session.Score(),
		ChallengesCompleted: c.session.Completed(),
		CurrentChallenge:    c.session.Current(),
		TotalChallenges:     c.session.Total(),
		Remaining:           remaining,
		Attempts:            c.attempts,
		Warning:             c.monitor.Warning(),
		GraceRemaining:      c.monitor.Remaining(),
		Saved:               c.session.ID() != "",
		Notice:              c.notice,
	}

	switch c.state {
	case domain.StatePlaying:
		v.Clock = FormatClock(remaining)
		v.TimerLevel = TimerLevel(remaining)
		v.Challenge = c.catalog.Metadata(c.session.Current())
		v.HintOpen = c.hintOpen
		if c.hintOpen {
			v.Hint = v.Challenge.Hint
		}
		v.Challenges = c.links()
	case domain.StateResult:
		v.Score = c.final.Score
		v.ChallengesCompleted = c.final.ChallengesCompleted
	}
	return v
}

func (c *Controller) links() []domain.ChallengeLink {
	numbers := c.catalog.Numbers()
	links := make([]domain.ChallengeLink, 0, len(numbers))
	current := c.session.Current()
	for _, n := range numbers {
		links = append(links, domain.ChallengeLink{
			Number:    n,
			Title:     c.catalog.Metadata(n).Title,
			Active:    n == current,
			Completed: n < current,
			Unlocked:  c.session.Unlocked(n),
		})
	}
	return links
}

// Subscribe returns a channel that receives a view after every event. When the buffer
// is full the oldest unread view is dropped. The caller must invoke cancel.
func (c *Controller) Subscribe() (<-chan domain.View, func()) {
	ch := make(chan domain.View, 8)
	initial := c.buildView()

	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	c.mu.Unlock()

	ch <- initial

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.subscribers[ch]; ok {
			delete(c.subscribers, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

func (c *Controller) publish() {
	v := c.buildView()
	c.notice = nil

	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range c.subscribers {
		select {
		case ch <- v:
		default:
			// drop the stale view so slow readers never block the loop
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}
