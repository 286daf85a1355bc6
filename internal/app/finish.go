package app

import (
	"context"
	"errors"
	"fmt"

	"escape-room-service/internal/domain"
)

// ResumeOutcome classifies the result of an identity lookup.
type ResumeOutcome int

const (
	ResumeNotFound ResumeOutcome = iota
	ResumeResumed
	ResumeCompleted
	ResumeExpired
)

func (o ResumeOutcome) String() string {
	switch o {
	case ResumeResumed:
		return "resumed"
	case ResumeCompleted:
		return "completed"
	case ResumeExpired:
		return "expired"
	default:
		return "not_found"
	}
}

// ResumeResult is the outcome of Resume together with the record it was based on.
type ResumeResult struct {
	Outcome ResumeOutcome
	Session domain.Session
}

// Resume looks up a persisted session for identity and reconciles local state with it.
// A completed session goes straight to the result screen; an active session whose
// time has run out is finished immediately.
func (c *Controller) Resume(ctx context.Context, identity domain.Identity) (ResumeResult, error) {
	if c.state != domain.StateEntry {
		return ResumeResult{}, domain.ErrNotInEntry
	}

	rec, err := c.gateway.FindSession(ctx, identity.Normalized())
	if errors.Is(err, domain.ErrSessionNotFound) {
		return ResumeResult{Outcome: ResumeNotFound}, nil
	}
	if err != nil {
		return ResumeResult{}, fmt.Errorf("find session: %w", err)
	}

	now := c.clock.Now()
	c.epoch++
	c.session.Load(rec, now)
	c.resetPlay()

	if rec.Status == domain.StatusCompleted {
		c.state = domain.StateResult
		c.finalized = true
		c.remoteFinalized = true
		c.final = c.session.Snapshot()
		c.logger.Info("session already completed", "id", rec.ID)
		c.publish()
		return ResumeResult{Outcome: ResumeCompleted, Session: rec}, nil
	}

	c.finalized = false
	c.remoteFinalized = false
	c.state = domain.StatePlaying

	remaining := c.session.Remaining(c.opts.Duration, now)
	if remaining == 0 {
		c.logger.Info("resumed session has no time left", "id", rec.ID)
		c.countdown.Set(0)
		c.finish(c.session.Snapshot())
		c.publish()
		return ResumeResult{Outcome: ResumeExpired, Session: rec}, nil
	}

	c.countdown.Start(remaining)
	if !c.platform.IsFullscreen() && c.monitor.Lost() {
		c.raise(domain.NoticeFullscreen, "You have left fullscreen mode!")
	}

	c.logger.Info("session resumed", "id", rec.ID, "remaining", remaining, "current", c.session.Current())
	c.publish()
	return ResumeResult{Outcome: ResumeResumed, Session: rec}, nil
}

// finish ends the round with snap. Only the first call has any effect. Local state
// changes synchronously; the store is finalized off the loop, or once the session id
// arrives if creation is still in flight.
func (c *Controller) finish(snap Snapshot) {
	if c.finalized {
		return
	}
	c.finalized = true
	c.final = snap

	c.cancelTimers()
	c.exitFullscreen()
	c.hintOpen = false
	c.session.MarkCompleted()
	c.state = domain.StateResult
	c.logger.Info("session finished", "id", c.session.ID(), "score", snap.Score, "completed", snap.ChallengesCompleted)

	if c.session.ID() == "" {
		return
	}
	c.finalizeRemote(snap)
}

func (c *Controller) finalizeRemote(snap Snapshot) {
	c.remoteFinalized = true

	id := c.session.ID()
	status := domain.StatusCompleted
	update := domain.SessionUpdate{
		Score:               &snap.Score,
		ChallengesCompleted: &snap.ChallengesCompleted,
		Status:              &status,
		MarkCompleted:       true,
	}
	entry := domain.LeaderboardEntry{
		ID:                  id,
		Identity:            c.session.Identity(),
		Score:               snap.Score,
		ChallengesCompleted: snap.ChallengesCompleted,
		Status:              status,
		CompletedAt:         c.clock.Now(),
	}

	c.executor.Submit(func(ctx context.Context) {
		if err := c.gateway.UpdateSession(ctx, id, update); err != nil {
			c.logger.Error("finalize session failed", "id", id, "error", err)
		}
		if err := c.gateway.WriteLeaderboardEntry(ctx, id, entry); err != nil {
			c.logger.Error("write leaderboard entry failed", "id", id, "error", err)
		}
	})
}
