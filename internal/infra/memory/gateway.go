package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"escape-room-service/internal/domain"
	"github.com/google/uuid"
)

// Gateway is an in-process session and leaderboard store. It is the default when no
// remote store is configured and the reference implementation for the others.
type Gateway struct {
	now func() time.Time

	mu          sync.RWMutex
	sessions    map[string]domain.Session
	leaderboard map[string]domain.LeaderboardEntry
}

func NewGateway() *Gateway {
	return NewGatewayWithClock(time.Now)
}

// NewGatewayWithClock is used by tests for deterministic server timestamps.
func NewGatewayWithClock(now func() time.Time) *Gateway {
	return &Gateway{
		now:         now,
		sessions:    make(map[string]domain.Session),
		leaderboard: make(map[string]domain.LeaderboardEntry),
	}
}

func (g *Gateway) CreateSession(_ context.Context, fields domain.NewSession) (domain.Session, error) {
	now := g.now()
	rec := domain.Session{
		ID:                  uuid.NewString(),
		Identity:            fields.Identity.Normalized(),
		Score:               fields.Score,
		ChallengesCompleted: fields.ChallengesCompleted,
		Status:              fields.Status,
		StartedAt:           now,
		LastUpdated:         now,
	}
	if rec.Status == "" {
		rec.Status = domain.StatusActive
	}

	g.mu.Lock()
	g.sessions[rec.ID] = rec
	g.mu.Unlock()
	return rec, nil
}

// FindSession returns the most recently started session matching identity.
func (g *Gateway) FindSession(_ context.Context, identity domain.Identity) (domain.Session, error) {
	identity = identity.Normalized()

	g.mu.RLock()
	defer g.mu.RUnlock()

	var (
		found domain.Session
		ok    bool
	)
	for _, rec := range g.sessions {
		if !Matches(rec.Identity, identity) {
			continue
		}
		if !ok || rec.StartedAt.After(found.StartedAt) {
			found, ok = rec, true
		}
	}
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return found, nil
}

func (g *Gateway) UpdateSession(_ context.Context, id string, update domain.SessionUpdate) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	g.sessions[id] = ApplyUpdate(rec, update, g.now())
	return nil
}

func (g *Gateway) WriteLeaderboardEntry(_ context.Context, id string, entry domain.LeaderboardEntry) error {
	entry.ID = id
	g.mu.Lock()
	g.leaderboard[id] = entry
	g.mu.Unlock()
	return nil
}

// TopEntries returns up to limit entries, best first. Ties go to whoever finished
// earlier, then by name.
func (g *Gateway) TopEntries(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	g.mu.RLock()
	entries := make([]domain.LeaderboardEntry, 0, len(g.leaderboard))
	for _, entry := range g.leaderboard {
		entries = append(entries, entry)
	}
	g.mu.RUnlock()

	SortEntries(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Session returns a stored session by id.
func (g *Gateway) Session(id string) (domain.Session, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rec, ok := g.sessions[id]
	return rec, ok
}

// Entry returns a stored leaderboard entry by id.
func (g *Gateway) Entry(id string) (domain.LeaderboardEntry, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	entry, ok := g.leaderboard[id]
	return entry, ok
}

// Matches reports whether rec belongs to the participant described by want:
// by uid when want has one, else by name and roll number.
func Matches(rec, want domain.Identity) bool {
	if want.UID != "" {
		return rec.UID == want.UID
	}
	return rec.Name == want.Name && rec.RollNo == want.RollNo
}

// ApplyUpdate merges a partial update into rec. Completed never decreases and the
// score is floored at zero.
func ApplyUpdate(rec domain.Session, update domain.SessionUpdate, now time.Time) domain.Session {
	if update.Score != nil {
		rec.Score = *update.Score
		if rec.Score < 0 {
			rec.Score = 0
		}
	}
	if update.ChallengesCompleted != nil && *update.ChallengesCompleted > rec.ChallengesCompleted {
		rec.ChallengesCompleted = *update.ChallengesCompleted
	}
	if update.Status != nil {
		rec.Status = *update.Status
	}
	if update.MarkCompleted && rec.CompletedAt == nil {
		at := now
		rec.CompletedAt = &at
	}
	rec.LastUpdated = now
	return rec
}

// SortEntries orders entries by score desc, then earliest completion, then name.
func SortEntries(entries []domain.LeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if !entries[i].CompletedAt.Equal(entries[j].CompletedAt) {
			return entries[i].CompletedAt.Before(entries[j].CompletedAt)
		}
		return entries[i].Identity.Name < entries[j].Identity.Name
	})
}
