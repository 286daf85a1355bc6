package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"escape-room-service/internal/catalog"
	"escape-room-service/internal/config"
	"escape-room-service/internal/domain"
	pgmigrations "escape-room-service/internal/infra/postgres/migrations"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

// NewMigrateCmd applies database migrations and seeds round content.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and seed rounds",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath)
		},
	}
}

func runMigrations(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	return runMigrationsWithConfig(ctx, cfg, newLogger(cfg, os.Stdout))
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.Postgres.URL == "" {
		return errors.New("postgres url not configured")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)

	if err := migrator.Init(ctx); err != nil {
		return err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		logger.Info("no new migrations")
	} else {
		logger.Info("migrations applied", "group", group.String())
	}

	rounds, err := seedRounds(cfg)
	if err != nil {
		return err
	}
	if err := pgmigrations.SeedRounds(ctx, db, rounds); err != nil {
		return fmt.Errorf("seed rounds: %w", err)
	}
	logger.Info("rounds seeded", "count", len(rounds))
	return nil
}

// seedRounds returns the rounds from the catalog file, or the built-in round.
func seedRounds(cfg config.Config) ([]domain.Round, error) {
	if cfg.Round.CatalogFile == "" {
		return []domain.Round{catalog.DefaultRound()}, nil
	}
	return catalog.LoadFile(cfg.Round.CatalogFile)
}
