package domain

import (
	"strings"
	"time"
)

// SessionStatus is the persisted lifecycle marker of a session document.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
)

// Identity names the participant. UID links to an authenticated principal when present
// and is then the preferred lookup key; otherwise Name+RollNo is used.
type Identity struct {
	Name   string `json:"name"`
	RollNo string `json:"rollNo"`
	UID    string `json:"uid,omitempty"`
	Email  string `json:"email,omitempty"`
}

// Normalized returns the identity with surrounding whitespace removed.
func (i Identity) Normalized() Identity {
	return Identity{
		Name:   strings.TrimSpace(i.Name),
		RollNo: strings.TrimSpace(i.RollNo),
		UID:    strings.TrimSpace(i.UID),
		Email:  strings.TrimSpace(i.Email),
	}
}

// Session is one participant's persisted attempt record.
type Session struct {
	ID                  string        `json:"id"`
	Identity            Identity      `json:"identity"`
	Score               int           `json:"score"`
	ChallengesCompleted int           `json:"challengesCompleted"`
	Status              SessionStatus `json:"status"`
	StartedAt           time.Time     `json:"startedAt"`
	CompletedAt         *time.Time    `json:"completedAt,omitempty"`
	LastUpdated         time.Time     `json:"lastUpdated"`
}

// NewSession carries the fields of a session before the store assigns id and timestamps.
type NewSession struct {
	Identity            Identity
	Score               int
	ChallengesCompleted int
	Status              SessionStatus
}

// SessionUpdate is a partial update; nil fields are left untouched by the store.
// LastUpdated is always refreshed by the store's clock.
type SessionUpdate struct {
	Score               *int
	ChallengesCompleted *int
	Status              *SessionStatus
	// MarkCompleted stamps completedAt with the store's clock if it is not set yet.
	MarkCompleted bool
}

// LeaderboardEntry is the denormalized snapshot written once when a session finishes.
type LeaderboardEntry struct {
	ID                  string        `json:"id"`
	Identity            Identity      `json:"identity"`
	Score               int           `json:"score"`
	ChallengesCompleted int           `json:"challengesCompleted"`
	Status              SessionStatus `json:"status"`
	CompletedAt         time.Time     `json:"completedAt"`
}

// Challenge is the externally supplied metadata of one challenge in a round.
type Challenge struct {
	Number    int      `json:"number" yaml:"number" toml:"number"`
	Title     string   `json:"title" yaml:"title" toml:"title"`
	Story     string   `json:"story" yaml:"story" toml:"story"`
	Hint      string   `json:"hint" yaml:"hint" toml:"hint"`
	Rules     []string `json:"rules" yaml:"rules" toml:"rules"`
	Penalties []string `json:"penalties" yaml:"penalties" toml:"penalties"`
	// Exempt challenges are never auto-skipped after repeated wrong answers.
	Exempt bool `json:"exempt" yaml:"exempt" toml:"exempt"`
}

// Round is an ordered set of challenges.
type Round struct {
	ID         string      `json:"id" yaml:"id" toml:"id"`
	Name       string      `json:"name" yaml:"name" toml:"name"`
	Challenges []Challenge `json:"challenges" yaml:"challenges" toml:"challenges"`
}
