package cli

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"escape-room-service/internal/catalog"
	"escape-room-service/internal/config"
	"escape-room-service/internal/domain"
	"github.com/alicebob/miniredis/v2"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenBackendSQLite(t *testing.T) {
	var cfg config.Config
	cfg.Store.Driver = config.DriverSQLite
	cfg.SQLite.Path = ":memory:"

	ctx := context.Background()
	b, err := openBackend(ctx, cfg, discardLogger())
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	defer b.Close()

	if err := b.checks["sqlite"](ctx); err != nil {
		t.Fatalf("sqlite check: %v", err)
	}
	round, err := b.rounds.GetRound(ctx, roundID(cfg))
	if err != nil {
		t.Fatalf("get round: %v", err)
	}
	if round.ID != catalog.DefaultRoundID || len(round.Challenges) != 9 {
		t.Fatalf("expected built-in round, got %s with %d challenges", round.ID, len(round.Challenges))
	}

	rec, err := b.store.CreateSession(ctx, domain.NewSession{
		Identity: domain.Identity{Name: "Fay", RollNo: "R3"},
		Status:   domain.StatusActive,
	})
	if err != nil || rec.ID == "" {
		t.Fatalf("create session: %+v %v", rec, err)
	}
}

func TestOpenBackendRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	var cfg config.Config
	cfg.Store.Driver = config.DriverRedis
	cfg.Redis.Addr = mr.Addr()

	ctx := context.Background()
	b, err := openBackend(ctx, cfg, discardLogger())
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	defer b.Close()

	if err := b.checks["redis"](ctx); err != nil {
		t.Fatalf("redis check: %v", err)
	}
	if _, err := b.rounds.GetRound(ctx, catalog.DefaultRoundID); err != nil {
		t.Fatalf("get round: %v", err)
	}
	if !mr.Exists("escape:round:" + catalog.DefaultRoundID) {
		t.Fatalf("expected round cached in redis")
	}
	ok, err := b.presence.Acquire(ctx, "uid:u1", "conn-1", 0)
	if err != nil || !ok {
		t.Fatalf("acquire presence: %v %v", ok, err)
	}
}

func TestScoringRulesOverrides(t *testing.T) {
	var cfg config.Config
	cfg.Scoring.HintCost = 5
	cfg.Scoring.SkipPoints = 1

	rules := scoringRules(cfg)
	if rules.HintCost != 5 || rules.SkipPoints != 1 {
		t.Fatalf("expected overrides applied, got %+v", rules)
	}
	if rules.CorrectPoints != 10 || rules.WrongPenalty != 2 || rules.MaxAttempts != 3 {
		t.Fatalf("expected defaults kept, got %+v", rules)
	}

	opts := roundOptions(cfg)
	if opts.Duration.Minutes() != 60 || opts.GracePeriod.Seconds() != 10 {
		t.Fatalf("unexpected round options %+v", opts)
	}
}
