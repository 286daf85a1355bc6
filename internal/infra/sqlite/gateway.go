// Package sqlite provides a single-file session store for kiosks and local rehearsals.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"escape-room-service/internal/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Gateway persists sessions and leaderboard entries in SQLite.
type Gateway struct {
	db  *sql.DB
	now func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path (":memory:" for an in-process store) and applies the schema.
func Open(path string) (*Gateway, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Gateway{db: db, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (g *Gateway) Close() error {
	if g == nil || g.db == nil {
		return nil
	}
	return g.db.Close()
}

// Ping reports whether the database is reachable.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.db.PingContext(ctx)
}

const sessionColumns = `id, name, roll_no, uid, email, score, challenges_completed, status, started_at, completed_at, last_updated`

func (g *Gateway) CreateSession(ctx context.Context, fields domain.NewSession) (domain.Session, error) {
	now := g.now().UTC().Truncate(time.Millisecond)
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

	_, err := g.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)`,
		rec.ID, rec.Identity.Name, rec.Identity.RollNo, rec.Identity.UID, rec.Identity.Email,
		rec.Score, rec.ChallengesCompleted, string(rec.Status), toMillis(now), toMillis(now),
	)
	if err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}
	return rec, nil
}

func (g *Gateway) FindSession(ctx context.Context, identity domain.Identity) (domain.Session, error) {
	identity = identity.Normalized()

	var row *sql.Row
	if identity.UID != "" {
		row = g.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions
			WHERE uid = ? ORDER BY started_at DESC LIMIT 1`, identity.UID)
	} else {
		row = g.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions
			WHERE name = ? AND roll_no = ? ORDER BY started_at DESC LIMIT 1`, identity.Name, identity.RollNo)
	}

	var (
		rec                    domain.Session
		status                 string
		startedAt, lastUpdated int64
		completedAt            sql.NullInt64
	)
	err := row.Scan(&rec.ID, &rec.Identity.Name, &rec.Identity.RollNo, &rec.Identity.UID, &rec.Identity.Email,
		&rec.Score, &rec.ChallengesCompleted, &status, &startedAt, &completedAt, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("find session: %w", err)
	}
	rec.Status = domain.SessionStatus(status)
	rec.StartedAt = fromMillis(startedAt)
	rec.LastUpdated = fromMillis(lastUpdated)
	if completedAt.Valid {
		at := fromMillis(completedAt.Int64)
		rec.CompletedAt = &at
	}
	return rec, nil
}

func (g *Gateway) UpdateSession(ctx context.Context, id string, update domain.SessionUpdate) error {
	var status *string
	if update.Status != nil {
		s := string(*update.Status)
		status = &s
	}
	mark := 0
	if update.MarkCompleted {
		mark = 1
	}

	res, err := g.db.ExecContext(ctx, `
		UPDATE sessions SET
			score = CASE WHEN ?1 IS NULL THEN score ELSE MAX(?1, 0) END,
			challenges_completed = MAX(challenges_completed, COALESCE(?2, challenges_completed)),
			status = COALESCE(?3, status),
			completed_at = CASE WHEN ?4 = 1 AND completed_at IS NULL THEN ?5 ELSE completed_at END,
			last_updated = ?5
		WHERE id = ?6`,
		update.Score, update.ChallengesCompleted, status, mark, toMillis(g.now()), id,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (g *Gateway) WriteLeaderboardEntry(ctx context.Context, id string, entry domain.LeaderboardEntry) error {
	completedAt := entry.CompletedAt
	if completedAt.IsZero() {
		completedAt = g.now()
	}
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO leaderboard_entries (id, name, roll_no, uid, email, score, challenges_completed, status, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			roll_no = excluded.roll_no,
			uid = excluded.uid,
			email = excluded.email,
			score = excluded.score,
			challenges_completed = excluded.challenges_completed,
			status = excluded.status,
			completed_at = excluded.completed_at`,
		id, entry.Identity.Name, entry.Identity.RollNo, entry.Identity.UID, entry.Identity.Email,
		entry.Score, entry.ChallengesCompleted, string(entry.Status), toMillis(completedAt),
	)
	if err != nil {
		return fmt.Errorf("write leaderboard entry: %w", err)
	}
	return nil
}

func (g *Gateway) TopEntries(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := g.db.QueryContext(ctx, `
		SELECT id, name, roll_no, uid, email, score, challenges_completed, status, completed_at
		FROM leaderboard_entries
		ORDER BY score DESC, completed_at ASC, name ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var (
			entry       domain.LeaderboardEntry
			status      string
			completedAt int64
		)
		if err := rows.Scan(&entry.ID, &entry.Identity.Name, &entry.Identity.RollNo, &entry.Identity.UID,
			&entry.Identity.Email, &entry.Score, &entry.ChallengesCompleted, &status, &completedAt); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		entry.Status = domain.SessionStatus(status)
		entry.CompletedAt = fromMillis(completedAt)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
