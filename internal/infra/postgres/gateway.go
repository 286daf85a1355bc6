package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"escape-room-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Gateway stores sessions and leaderboard entries in Postgres. Timestamps come from
// the database clock.
type Gateway struct {
	pool *pgxpool.Pool
}

func NewGateway(pool *pgxpool.Pool) *Gateway {
	return &Gateway{pool: pool}
}

const sessionColumns = `id, name, roll_no, uid, email, score, challenges_completed, status, started_at, completed_at, last_updated`

func (g *Gateway) CreateSession(ctx context.Context, fields domain.NewSession) (domain.Session, error) {
	identity := fields.Identity.Normalized()
	status := fields.Status
	if status == "" {
		status = domain.StatusActive
	}

	row := g.pool.QueryRow(ctx, `
		INSERT INTO sessions (id, name, roll_no, uid, email, score, challenges_completed, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+sessionColumns,
		uuid.NewString(), identity.Name, identity.RollNo, identity.UID, identity.Email,
		fields.Score, fields.ChallengesCompleted, string(status),
	)
	rec, err := scanSession(row)
	if err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}
	return rec, nil
}

func (g *Gateway) FindSession(ctx context.Context, identity domain.Identity) (domain.Session, error) {
	identity = identity.Normalized()

	var row pgx.Row
	if identity.UID != "" {
		row = g.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions
			WHERE uid = $1 ORDER BY started_at DESC LIMIT 1`, identity.UID)
	} else {
		row = g.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions
			WHERE name = $1 AND roll_no = $2 ORDER BY started_at DESC LIMIT 1`, identity.Name, identity.RollNo)
	}

	rec, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("find session: %w", err)
	}
	return rec, nil
}

func (g *Gateway) UpdateSession(ctx context.Context, id string, update domain.SessionUpdate) error {
	var status *string
	if update.Status != nil {
		s := string(*update.Status)
		status = &s
	}

	tag, err := g.pool.Exec(ctx, `
		UPDATE sessions SET
			score = CASE WHEN $2::int IS NULL THEN score ELSE GREATEST($2::int, 0) END,
			challenges_completed = GREATEST(challenges_completed, COALESCE($3::int, challenges_completed)),
			status = COALESCE($4::text, status),
			completed_at = CASE WHEN $5 AND completed_at IS NULL THEN now() ELSE completed_at END,
			last_updated = now()
		WHERE id = $1`,
		id, update.Score, update.ChallengesCompleted, status, update.MarkCompleted,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (g *Gateway) WriteLeaderboardEntry(ctx context.Context, id string, entry domain.LeaderboardEntry) error {
	completedAt := entry.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}
	_, err := g.pool.Exec(ctx, `
		INSERT INTO leaderboard_entries (id, name, roll_no, uid, email, score, challenges_completed, status, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			roll_no = EXCLUDED.roll_no,
			uid = EXCLUDED.uid,
			email = EXCLUDED.email,
			score = EXCLUDED.score,
			challenges_completed = EXCLUDED.challenges_completed,
			status = EXCLUDED.status,
			completed_at = EXCLUDED.completed_at`,
		id, entry.Identity.Name, entry.Identity.RollNo, entry.Identity.UID, entry.Identity.Email,
		entry.Score, entry.ChallengesCompleted, string(entry.Status), completedAt,
	)
	if err != nil {
		return fmt.Errorf("write leaderboard entry: %w", err)
	}
	return nil
}

func (g *Gateway) TopEntries(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := g.pool.Query(ctx, `
		SELECT id, name, roll_no, uid, email, score, challenges_completed, status, completed_at
		FROM leaderboard_entries
		ORDER BY score DESC, completed_at ASC, name ASC
		LIMIT $1`, lim)
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var (
			entry  domain.LeaderboardEntry
			status string
		)
		if err := rows.Scan(&entry.ID, &entry.Identity.Name, &entry.Identity.RollNo, &entry.Identity.UID,
			&entry.Identity.Email, &entry.Score, &entry.ChallengesCompleted, &status, &entry.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		entry.Status = domain.SessionStatus(status)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanSession(row pgx.Row) (domain.Session, error) {
	var (
		rec    domain.Session
		status string
	)
	err := row.Scan(&rec.ID, &rec.Identity.Name, &rec.Identity.RollNo, &rec.Identity.UID, &rec.Identity.Email,
		&rec.Score, &rec.ChallengesCompleted, &status, &rec.StartedAt, &rec.CompletedAt, &rec.LastUpdated)
	if err != nil {
		return domain.Session{}, err
	}
	rec.Status = domain.SessionStatus(status)
	return rec, nil
}
