package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"escape-room-service/internal/domain"
)

func TestGatewayCreateFindUpdate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	g := NewGatewayWithClock(func() time.Time { return now })

	rec, err := g.CreateSession(ctx, domain.NewSession{
		Identity: domain.Identity{Name: " Alice ", RollNo: "R1"},
		Status:   domain.StatusActive,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID == "" || !rec.StartedAt.Equal(now) {
		t.Fatalf("expected id and server start time, got %+v", rec)
	}

	found, err := g.FindSession(ctx, domain.Identity{Name: "Alice", RollNo: "R1"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.ID != rec.ID {
		t.Fatalf("expected %s, got %s", rec.ID, found.ID)
	}

	score, completed := 18, 2
	now = now.Add(time.Minute)
	if err := g.UpdateSession(ctx, rec.ID, domain.SessionUpdate{Score: &score, ChallengesCompleted: &completed}); err != nil {
		t.Fatalf("update: %v", err)
	}
	lower := 1
	if err := g.UpdateSession(ctx, rec.ID, domain.SessionUpdate{ChallengesCompleted: &lower}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := g.Session(rec.ID)
	if got.Score != 18 || got.ChallengesCompleted != 2 {
		t.Fatalf("expected 18/2, got %d/%d", got.Score, got.ChallengesCompleted)
	}
	if !got.LastUpdated.Equal(now) {
		t.Fatalf("expected lastUpdated refreshed")
	}
	if got.CompletedAt != nil {
		t.Fatalf("completedAt set too early")
	}
}

func TestGatewayFindByUIDAndMissing(t *testing.T) {
	ctx := context.Background()
	g := NewGateway()

	_, _ = g.CreateSession(ctx, domain.NewSession{Identity: domain.Identity{Name: "Bob", RollNo: "R2", UID: "u-2"}})

	if _, err := g.FindSession(ctx, domain.Identity{UID: "u-2", Name: "Other"}); err != nil {
		t.Fatalf("expected uid lookup to win, got %v", err)
	}
	if _, err := g.FindSession(ctx, domain.Identity{Name: "Bob", RollNo: "nope"}); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := g.UpdateSession(ctx, "missing", domain.SessionUpdate{}); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
}

func TestGatewayMarkCompletedOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	g := NewGatewayWithClock(func() time.Time { return now })

	rec, _ := g.CreateSession(ctx, domain.NewSession{Identity: domain.Identity{Name: "A", RollNo: "1"}})
	status := domain.StatusCompleted
	_ = g.UpdateSession(ctx, rec.ID, domain.SessionUpdate{Status: &status, MarkCompleted: true})
	first := now

	now = now.Add(time.Hour)
	_ = g.UpdateSession(ctx, rec.ID, domain.SessionUpdate{Status: &status, MarkCompleted: true})

	got, _ := g.Session(rec.ID)
	if got.Status != domain.StatusCompleted || got.CompletedAt == nil || !got.CompletedAt.Equal(first) {
		t.Fatalf("expected completedAt stamped once at %v, got %+v", first, got.CompletedAt)
	}
}

func TestTopEntriesOrdering(t *testing.T) {
	ctx := context.Background()
	g := NewGateway()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	_ = g.WriteLeaderboardEntry(ctx, "a", domain.LeaderboardEntry{Identity: domain.Identity{Name: "Zed"}, Score: 50, CompletedAt: base.Add(time.Minute)})
	_ = g.WriteLeaderboardEntry(ctx, "b", domain.LeaderboardEntry{Identity: domain.Identity{Name: "Amy"}, Score: 50, CompletedAt: base})
	_ = g.WriteLeaderboardEntry(ctx, "c", domain.LeaderboardEntry{Identity: domain.Identity{Name: "Cal"}, Score: 90, CompletedAt: base.Add(time.Hour)})
	// upsert replaces
	_ = g.WriteLeaderboardEntry(ctx, "a", domain.LeaderboardEntry{Identity: domain.Identity{Name: "Zed"}, Score: 40, CompletedAt: base})

	entries, err := g.TopEntries(ctx, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	order := []string{entries[0].ID, entries[1].ID, entries[2].ID}
	if order[0] != "c" || order[1] != "b" || order[2] != "a" {
		t.Fatalf("unexpected order %v", order)
	}

	top, _ := g.TopEntries(ctx, 1)
	if len(top) != 1 || top[0].ID != "c" {
		t.Fatalf("expected limit to apply, got %+v", top)
	}
}
