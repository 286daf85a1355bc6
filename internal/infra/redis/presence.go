package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence marks which connection currently owns an identity, shared across instances:
//
//	SET escape:presence:{key} {owner} NX PX ttl
type Presence struct {
	client *redis.Client
}

func NewPresence(client *redis.Client) *Presence {
	return &Presence{client: client}
}

var refreshScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

func (p *Presence) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	ok, err := p.client.SetNX(ctx, p.key(key), owner, ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	current, err := p.client.Get(ctx, p.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return p.client.SetNX(ctx, p.key(key), owner, ttl).Result()
	}
	if err != nil {
		return false, err
	}
	if current != owner {
		return false, nil
	}
	return true, p.Refresh(ctx, key, owner, ttl)
}

func (p *Presence) Refresh(ctx context.Context, key, owner string, ttl time.Duration) error {
	return refreshScript.Run(ctx, p.client, []string{p.key(key)}, owner, ttl.Milliseconds()).Err()
}

func (p *Presence) Release(ctx context.Context, key, owner string) error {
	return releaseScript.Run(ctx, p.client, []string{p.key(key)}, owner).Err()
}

func (p *Presence) key(key string) string {
	return "escape:presence:" + key
}
