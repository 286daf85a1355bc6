package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"escape-room-service/internal/domain"
	"escape-room-service/internal/infra/memory"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Gateway stores sessions and the leaderboard in Redis.
//
//	HSET  escape:session:{id}          one hash per session
//	SET   escape:identity:uid:{uid}    -> latest session id for a principal
//	SET   escape:identity:roll:{name}:{rollNo}
//	ZADD  escape:leaderboard           rank -> session id
//	HSET  escape:leaderboard:{id}      entry snapshot
//
// Timestamps come from the Redis server clock.
type Gateway struct {
	client *redis.Client
	ttl    time.Duration
}

// NewGateway returns a gateway. A positive ttl expires session documents.
func NewGateway(client *redis.Client, ttl time.Duration) *Gateway {
	return &Gateway{client: client, ttl: ttl}
}

// updateScript applies a partial update atomically. completed never decreases,
// score is floored at zero and completedAt is stamped once. When ARGV[8] is a positive
// ttl in milliseconds every key is extended.
var updateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
if ARGV[2] == '1' then
  local s = tonumber(ARGV[3])
  if s < 0 then s = 0 end
  redis.call('HSET', KEYS[1], 'score', s)
end
if ARGV[4] == '1' then
  local c = tonumber(ARGV[5])
  local cur = tonumber(redis.call('HGET', KEYS[1], 'completed') or '0')
  if c > cur then
    redis.call('HSET', KEYS[1], 'completed', c)
  end
end
if ARGV[6] ~= '' then
  redis.call('HSET', KEYS[1], 'status', ARGV[6])
end
if ARGV[7] == '1' and redis.call('HEXISTS', KEYS[1], 'completedAt') == 0 then
  redis.call('HSET', KEYS[1], 'completedAt', ARGV[1])
end
redis.call('HSET', KEYS[1], 'lastUpdated', ARGV[1])
local ttl = tonumber(ARGV[8])
if ttl > 0 then
  for _, key in ipairs(KEYS) do
    redis.call('PEXPIRE', key, ttl)
  end
end
return 1
`)

func (g *Gateway) CreateSession(ctx context.Context, fields domain.NewSession) (domain.Session, error) {
	now, err := g.client.Time(ctx).Result()
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
	}

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

	key := sessionKey(rec.ID)
	pipe := g.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"id":          rec.ID,
		"name":        rec.Identity.Name,
		"rollNo":      rec.Identity.RollNo,
		"uid":         rec.Identity.UID,
		"email":       rec.Identity.Email,
		"score":       rec.Score,
		"completed":   rec.ChallengesCompleted,
		"status":      string(rec.Status),
		"startedAt":   millis(now),
		"lastUpdated": millis(now),
	})
	pipe.Set(ctx, identityKey(rec.Identity), rec.ID, g.ttl)
	if g.ttl > 0 {
		pipe.Expire(ctx, key, g.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Session{}, fmt.Errorf("create session: %w", err)
	}
	return rec, nil
}

func (g *Gateway) FindSession(ctx context.Context, identity domain.Identity) (domain.Session, error) {
	id, err := g.client.Get(ctx, identityKey(identity.Normalized())).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("find session: %w", err)
	}

	fields, err := g.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}
	if len(fields) == 0 {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return decodeSession(fields), nil
}

func (g *Gateway) UpdateSession(ctx context.Context, id string, update domain.SessionUpdate) error {
	now, err := g.client.Time(ctx).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceUnavailable, err)
	}

	args := []interface{}{millis(now), "0", 0, "0", 0, "", "0", g.ttl.Milliseconds()}
	if update.Score != nil {
		args[1], args[2] = "1", *update.Score
	}
	if update.ChallengesCompleted != nil {
		args[3], args[4] = "1", *update.ChallengesCompleted
	}
	if update.Status != nil {
		args[5] = string(*update.Status)
	}
	if update.MarkCompleted {
		args[6] = "1"
	}

	keys := []string{sessionKey(id)}
	if g.ttl > 0 {
		fields, err := g.client.HMGet(ctx, sessionKey(id), "name", "rollNo", "uid").Result()
		if err != nil {
			return fmt.Errorf("load identity: %w", err)
		}
		if fields[0] != nil || fields[2] != nil {
			keys = append(keys, identityKey(domain.Identity{
				Name:   str(fields[0]),
				RollNo: str(fields[1]),
				UID:    str(fields[2]),
			}))
		}
	}

	ok, err := updateScript.Run(ctx, g.client, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if ok == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (g *Gateway) WriteLeaderboardEntry(ctx context.Context, id string, entry domain.LeaderboardEntry) error {
	entry.ID = id
	pipe := g.client.TxPipeline()
	pipe.HSet(ctx, leaderboardEntryKey(id), map[string]interface{}{
		"id":          id,
		"name":        entry.Identity.Name,
		"rollNo":      entry.Identity.RollNo,
		"uid":         entry.Identity.UID,
		"email":       entry.Identity.Email,
		"score":       entry.Score,
		"completed":   entry.ChallengesCompleted,
		"status":      string(entry.Status),
		"completedAt": millis(entry.CompletedAt),
	})
	pipe.ZAdd(ctx, leaderboardKey, redis.Z{Score: rank(entry), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write leaderboard entry: %w", err)
	}
	return nil
}

func (g *Gateway) TopEntries(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := g.client.ZRevRange(ctx, leaderboardKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}

	pipe := g.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, leaderboardEntryKey(id))
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("read leaderboard entries: %w", err)
		}
	}

	entries := make([]domain.LeaderboardEntry, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		entries = append(entries, decodeEntry(fields))
	}
	// equal ranks come back in member order; settle them by name
	memory.SortEntries(entries)
	return entries, nil
}

const leaderboardKey = "escape:leaderboard"

func sessionKey(id string) string {
	return "escape:session:" + id
}

func leaderboardEntryKey(id string) string {
	return "escape:leaderboard:" + id
}

func identityKey(identity domain.Identity) string {
	if identity.UID != "" {
		return "escape:identity:uid:" + identity.UID
	}
	return "escape:identity:roll:" + identity.Name + ":" + identity.RollNo
}

// rank orders by score, then by earlier completion.
func rank(entry domain.LeaderboardEntry) float64 {
	const span = 1e13
	return float64(entry.Score)*span + (span - float64(millis(entry.CompletedAt)))
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(raw string) time.Time {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func atoi(raw string) int {
	n, _ := strconv.Atoi(raw)
	return n
}

func decodeIdentity(fields map[string]string) domain.Identity {
	return domain.Identity{
		Name:   fields["name"],
		RollNo: fields["rollNo"],
		UID:    fields["uid"],
		Email:  fields["email"],
	}
}

func decodeSession(fields map[string]string) domain.Session {
	rec := domain.Session{
		ID:                  fields["id"],
		Identity:            decodeIdentity(fields),
		Score:               atoi(fields["score"]),
		ChallengesCompleted: atoi(fields["completed"]),
		Status:              domain.SessionStatus(fields["status"]),
		StartedAt:           fromMillis(fields["startedAt"]),
		LastUpdated:         fromMillis(fields["lastUpdated"]),
	}
	if raw, ok := fields["completedAt"]; ok {
		if at := fromMillis(raw); !at.IsZero() {
			rec.CompletedAt = &at
		}
	}
	return rec
}

func decodeEntry(fields map[string]string) domain.LeaderboardEntry {
	return domain.LeaderboardEntry{
		ID:                  fields["id"],
		Identity:            decodeIdentity(fields),
		Score:               atoi(fields["score"]),
		ChallengesCompleted: atoi(fields["completed"]),
		Status:              domain.SessionStatus(fields["status"]),
		CompletedAt:         fromMillis(fields["completedAt"]),
	}
}
