package app

import (
	"context"
	"fmt"
	"time"

	"escape-room-service/internal/domain"
)

// Gateway abstracts the remote document store that persists sessions and the leaderboard.
type Gateway interface {
	// CreateSession stores a new session. The store assigns the id, startedAt and lastUpdated.
	CreateSession(ctx context.Context, fields domain.NewSession) (domain.Session, error)
	// FindSession returns at most one session for the identity (uid preferred, else
	// name+rollNo), or domain.ErrSessionNotFound.
	FindSession(ctx context.Context, identity domain.Identity) (domain.Session, error)
	// UpdateSession applies a partial update and refreshes lastUpdated.
	UpdateSession(ctx context.Context, id string, update domain.SessionUpdate) error
	// WriteLeaderboardEntry upserts the entry under id, in a collection distinct from sessions.
	WriteLeaderboardEntry(ctx context.Context, id string, entry domain.LeaderboardEntry) error
}

// LeaderboardReader lists finished sessions, best score first.
type LeaderboardReader interface {
	TopEntries(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// RoundRepository loads round content (from cache/backing store).
type RoundRepository interface {
	GetRound(ctx context.Context, roundID string) (domain.Round, error)
}

// Presence grants one live connection exclusive ownership of an identity, so a single
// controller writes each session document.
type Presence interface {
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Refresh(ctx context.Context, key, owner string, ttl time.Duration) error
	Release(ctx context.Context, key, owner string) error
}

// Platform is the display surface capability the controller needs for anti-cheat.
// Changes in fullscreen engagement are reported through Controller.OnFullscreenChange.
type Platform interface {
	RequestFullscreen() error
	ExitFullscreen() error
	IsFullscreen() bool
}

// Confirmer asks the participant to approve a costly action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// Executor runs persistence work off the event loop.
type Executor interface {
	Submit(task func(ctx context.Context))
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(task func(ctx context.Context))

func (f ExecutorFunc) Submit(task func(ctx context.Context)) { f(task) }

// Confirmation prompts shown before costly actions.
const (
	PromptSkip = "Are you sure you want to skip this challenge? You will receive 0 points."
	PromptQuit = "Are you sure you want to quit? Progress will be lost."
)

// HintPrompt is the confirmation shown before a hint is charged.
func HintPrompt(cost int) string {
	return fmt.Sprintf("Using a hint will cost %d marks. Proceed?", cost)
}
