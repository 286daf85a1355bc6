package memory

import (
	"context"
	"sync"
	"time"
)

// Presence is an in-memory implementation of app.Presence.
type Presence struct {
	now func() time.Time

	mu     sync.Mutex
	claims map[string]claim
}

type claim struct {
	owner     string
	expiresAt time.Time
}

func NewPresence() *Presence {
	return &Presence{
		now:    time.Now,
		claims: make(map[string]claim),
	}
}

// Acquire claims key for owner unless another owner holds a live claim.
func (p *Presence) Acquire(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if c, ok := p.claims[key]; ok && c.owner != owner && c.expiresAt.After(now) {
		return false, nil
	}
	p.claims[key] = claim{owner: owner, expiresAt: now.Add(ttl)}
	return true, nil
}

// Refresh extends owner's claim. It is a no-op if owner no longer holds key.
func (p *Presence) Refresh(_ context.Context, key, owner string, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.claims[key]; ok && c.owner == owner {
		p.claims[key] = claim{owner: owner, expiresAt: p.now().Add(ttl)}
	}
	return nil
}

// Release drops owner's claim on key.
func (p *Presence) Release(_ context.Context, key, owner string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.claims[key]; ok && c.owner == owner {
		delete(p.claims, key)
	}
	return nil
}

// Held reports whether key has a live claim.
func (p *Presence) Held(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.claims[key]
	return ok && c.expiresAt.After(p.now())
}
