package migrations

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"escape-room-service/internal/domain"
	"github.com/uptrace/bun"
)

type roundRow struct {
	bun.BaseModel `bun:"table:rounds"`

	ID        string          `bun:"id,pk"`
	Data      json.RawMessage `bun:"data,type:jsonb"`
	UpdatedAt time.Time       `bun:"updated_at"`
}

// SeedRounds upserts round content so the round loader can serve it.
func SeedRounds(ctx context.Context, db *bun.DB, rounds []domain.Round) error {
	if len(rounds) == 0 {
		return nil
	}
	rows := make([]roundRow, 0, len(rounds))
	for _, round := range rounds {
		data, err := json.Marshal(round)
		if err != nil {
			return fmt.Errorf("marshal round %s: %w", round.ID, err)
		}
		rows = append(rows, roundRow{ID: round.ID, Data: data, UpdatedAt: time.Now()})
	}

	_, err := db.NewInsert().
		Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("seed rounds: %w", err)
	}
	return nil
}
