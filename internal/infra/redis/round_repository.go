package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"escape-room-service/internal/domain"
	"escape-room-service/internal/infra/memory"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// RoundRepository caches round content in Redis as JSON and falls back to a loader on
// cache miss:
//
//	SET escape:round:{roundID} {json} PX ttl
type RoundRepository struct {
	client *redis.Client
	loader memory.RoundLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewRoundRepository(client *redis.Client, loader memory.RoundLoader, ttl time.Duration) *RoundRepository {
	return &RoundRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *RoundRepository) GetRound(ctx context.Context, roundID string) (domain.Round, error) {
	key := r.roundKey(roundID)
	if round, ok := r.cached(ctx, key); ok {
		return round, nil
	}

	result, err, _ := r.sf.Do(roundID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if round, ok := r.cached(ctx, key); ok {
			return round, nil
		}

		round, err := r.loader.LoadRound(ctx, roundID)
		if err != nil {
			return domain.Round{}, err
		}

		if raw, err := json.Marshal(round); err == nil {
			_ = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()
		}
		return round, nil
	})
	if err != nil {
		return domain.Round{}, err
	}
	return result.(domain.Round), nil
}

func (r *RoundRepository) cached(ctx context.Context, key string) (domain.Round, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil || len(raw) == 0 {
		return domain.Round{}, false
	}
	var round domain.Round
	if err := json.Unmarshal(raw, &round); err != nil {
		return domain.Round{}, false
	}
	return round, true
}

func (r *RoundRepository) roundKey(roundID string) string {
	return "escape:round:" + roundID
}

func (r *RoundRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
