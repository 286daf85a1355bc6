package app

import (
	"time"

	"escape-room-service/internal/clock"
	"escape-room-service/internal/domain"
)

// Snapshot is the score/progress pair every write and finalization carries.
type Snapshot struct {
	Score               int
	ChallengesCompleted int
}

// SessionStore is the authoritative in-memory copy of the current session.
// All mutations clamp into the session invariants: score ≥ 0, completed monotonic
// within [0,total], current within [1,total].
type SessionStore struct {
	total int

	id         string
	identity   domain.Identity
	score      int
	completed  int
	current    int
	status     domain.SessionStatus
	startedAt  time.Time // store clock; zero until known
	localStart time.Time // local clock, anchor while startedAt is unknown
}

func NewSessionStore(total int) *SessionStore {
	s := &SessionStore{total: total}
	s.Reset()
	return s
}

// Reset returns every field to its initial value.
func (s *SessionStore) Reset() {
	s.id = ""
	s.identity = domain.Identity{}
	s.score = 0
	s.completed = 0
	s.current = 1
	s.status = domain.StatusActive
	s.startedAt = time.Time{}
	s.localStart = time.Time{}
}

// Begin prepares a fresh local session for identity.
func (s *SessionStore) Begin(identity domain.Identity, now time.Time) {
	s.Reset()
	s.identity = identity
	s.localStart = now
}

// Load reconciles a persisted record into local state and derives the current challenge.
func (s *SessionStore) Load(rec domain.Session, now time.Time) {
	s.Reset()
	s.id = rec.ID
	s.identity = rec.Identity
	s.score = clampScore(rec.Score)
	s.completed = s.clampCompleted(rec.ChallengesCompleted)
	s.current = s.derivedCurrent()
	s.status = rec.Status
	s.startedAt = rec.StartedAt
	s.localStart = now
}

// Created applies the identifiers assigned by the store.
func (s *SessionStore) Created(rec domain.Session) {
	s.id = rec.ID
	if !rec.StartedAt.IsZero() {
		s.startedAt = rec.StartedAt
	}
}

// Apply sets a new score/completed pair. Completed never decreases.
func (s *SessionStore) Apply(score, completed int) Snapshot {
	s.score = clampScore(score)
	if c := s.clampCompleted(completed); c > s.completed {
		s.completed = c
	}
	return s.Snapshot()
}

// Advance moves to the next challenge. It reports false at the last challenge.
func (s *SessionStore) Advance() bool {
	if s.current < s.total {
		s.current++
		return true
	}
	return false
}

// Unlocked reports whether the participant may navigate to number.
func (s *SessionStore) Unlocked(number int) bool {
	return number >= 1 && number <= s.derivedCurrent()
}

// NavigateTo jumps to an unlocked challenge.
func (s *SessionStore) NavigateTo(number int) error {
	if !s.Unlocked(number) {
		return domain.ErrChallengeLocked
	}
	s.current = number
	return nil
}

// MarkCompleted flips the local status.
func (s *SessionStore) MarkCompleted() {
	s.status = domain.StatusCompleted
}

// Remaining returns the whole seconds left of duration at now, anchored at the store's
// startedAt when known and at the local start otherwise.
func (s *SessionStore) Remaining(duration time.Duration, now time.Time) int {
	anchor := s.startedAt
	if anchor.IsZero() {
		anchor = s.localStart
	}
	return RemainingSeconds(duration, anchor, now)
}

func (s *SessionStore) Snapshot() Snapshot {
	return Snapshot{Score: s.score, ChallengesCompleted: s.completed}
}

func (s *SessionStore) ID() string                   { return s.id }
func (s *SessionStore) Identity() domain.Identity    { return s.identity }
func (s *SessionStore) Score() int                   { return s.score }
func (s *SessionStore) Completed() int               { return s.completed }
func (s *SessionStore) Current() int                 { return s.current }
func (s *SessionStore) Total() int                   { return s.total }
func (s *SessionStore) Status() domain.SessionStatus { return s.status }
func (s *SessionStore) StartedAt() time.Time         { return s.startedAt }

func (s *SessionStore) derivedCurrent() int {
	next := s.completed + 1
	if next > s.total {
		next = s.total
	}
	if next < 1 {
		next = 1
	}
	return next
}

func (s *SessionStore) clampCompleted(completed int) int {
	if completed < 0 {
		return 0
	}
	if completed > s.total {
		return s.total
	}
	return completed
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	return score
}

// RemainingSeconds is max(0, duration - floor((now-startedAt)/1s)), never more than duration.
func RemainingSeconds(duration time.Duration, startedAt, now time.Time) int {
	total := int(duration / time.Second)
	remaining := total - clock.ElapsedSeconds(startedAt, now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
