package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"escape-room-service/internal/app"
	"escape-room-service/internal/catalog"
	"escape-room-service/internal/config"
	"escape-room-service/internal/infra/firestore"
	"escape-room-service/internal/infra/memory"
	"escape-room-service/internal/infra/postgres"
	redisstore "escape-room-service/internal/infra/redis"
	"escape-room-service/internal/infra/sqlite"
	"escape-room-service/internal/scoring"
	transport "escape-room-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"
)

type sessionStore interface {
	app.Gateway
	app.LeaderboardReader
}

// backend is the set of stores selected by the config.
type backend struct {
	store    sessionStore
	rounds   app.RoundRepository
	presence app.Presence
	checks   map[string]transport.Checker
	closers  []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *backend, err error) {
	b := &backend{checks: make(map[string]transport.Checker)}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = redisClient.Close() })
		b.checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		b.checks["postgres"] = func(ctx context.Context) error { return pool.Ping(ctx) }
	}

	loaders := memory.FallbackLoader{}
	if cfg.Round.CatalogFile != "" {
		loaders = append(loaders, catalog.NewFileLoader(cfg.Round.CatalogFile))
	}
	if pool != nil {
		loaders = append(loaders, postgres.NewRoundLoader(pool))
	}
	loaders = append(loaders, memory.NewStaticRoundLoader(catalog.DefaultRound()))

	catalogTTL := config.Duration(cfg.Round.CatalogTTL, 10*time.Minute)
	if redisClient != nil {
		b.rounds = redisstore.NewRoundRepository(redisClient, loaders, catalogTTL)
		b.presence = redisstore.NewPresence(redisClient)
	} else {
		b.rounds = memory.NewRoundRepository(loaders, catalogTTL)
		b.presence = memory.NewPresence()
	}

	switch cfg.StoreDriver() {
	case config.DriverMemory:
		b.store = memory.NewGateway()
	case config.DriverRedis:
		b.store = redisstore.NewGateway(redisClient, config.Duration(cfg.Redis.TTL, 0))
	case config.DriverPostgres:
		b.store = postgres.NewGateway(pool)
	case config.DriverSQLite:
		if dir := filepath.Dir(cfg.SQLite.Path); cfg.SQLite.Path != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		gw, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = gw.Close() })
		b.checks["sqlite"] = gw.Ping
		b.store = gw
	case config.DriverFirestore:
		var opts []option.ClientOption
		if cfg.Firestore.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.Firestore.CredentialsFile))
		}
		collection := cfg.Firestore.Collection
		if collection == "" {
			collection = roundID(cfg)
		}
		gw, err := firestore.New(ctx, cfg.Firestore.ProjectID, collection, opts...)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = gw.Close() })
		b.checks["firestore"] = gw.Ping
		b.store = gw
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	logger.Info("backend ready", "driver", cfg.StoreDriver(), "redis", redisClient != nil, "postgres", pool != nil)
	return b, nil
}

func roundID(cfg config.Config) string {
	if cfg.Round.ID != "" {
		return cfg.Round.ID
	}
	return catalog.DefaultRoundID
}

func roundOptions(cfg config.Config) app.Options {
	return app.Options{
		Duration:    config.Duration(cfg.Round.Duration, 60*time.Minute),
		GracePeriod: config.Duration(cfg.Round.GracePeriod, 10*time.Second),
		Locked:      cfg.Round.Locked,
	}
}

// scoringRules applies the configured overrides; zero keeps the default except for
// skip points, whose default is zero.
func scoringRules(cfg config.Config) scoring.Rules {
	rules := scoring.DefaultRules()
	s := cfg.Scoring
	if s.CorrectPoints > 0 {
		rules.CorrectPoints = s.CorrectPoints
	}
	if s.WrongPenalty > 0 {
		rules.WrongPenalty = s.WrongPenalty
	}
	if s.HintCost > 0 {
		rules.HintCost = s.HintCost
	}
	if s.MaxAttempts > 0 {
		rules.MaxAttempts = s.MaxAttempts
	}
	rules.SkipPoints = s.SkipPoints
	return rules
}
