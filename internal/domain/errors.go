package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is wrapped by every ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrSessionNotFound is returned by gateways when no session matches an identity or id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRoundNotFound indicates the round content could not be loaded.
	ErrRoundNotFound = errors.New("round not found")
	// ErrPersistenceUnavailable wraps failures of the remote document store.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	// ErrFullscreenDenied is logged when the platform refuses a fullscreen request.
	ErrFullscreenDenied = errors.New("fullscreen request denied")
	// ErrNotPlaying is returned for play actions outside the playing state.
	ErrNotPlaying = errors.New("session is not playing")
	// ErrNotInEntry is returned when starting while a session is already loaded.
	ErrNotInEntry = errors.New("session already started")
	// ErrChallengeLocked is returned when navigating past the unlocked challenges.
	ErrChallengeLocked = errors.New("challenge is locked")
	// ErrRoundLocked is returned when the round has not been opened yet.
	ErrRoundLocked = errors.New("round is locked")
	// ErrSessionBusy indicates another live connection already holds the identity.
	ErrSessionBusy = errors.New("session is open elsewhere")
)

// ValidationError reports a rejected input field. It is raised before any I/O.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
