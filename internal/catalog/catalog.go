// Package catalog exposes the ordered challenge list of a round and its metadata.
package catalog

import (
	"fmt"
	"sort"

	"escape-room-service/internal/domain"
)

// Catalog is an immutable, ordered view over a round's challenges.
type Catalog struct {
	roundID    string
	challenges []domain.Challenge
	byNumber   map[int]domain.Challenge
}

// New builds a catalog from a round. Challenges are renumbered 1..N in the order given
// when numbers are missing or duplicated.
func New(round domain.Round) (*Catalog, error) {
	if len(round.Challenges) == 0 {
		return nil, fmt.Errorf("round %q has no challenges", round.ID)
	}

	challenges := make([]domain.Challenge, len(round.Challenges))
	copy(challenges, round.Challenges)
	sort.SliceStable(challenges, func(i, j int) bool {
		return challenges[i].Number < challenges[j].Number
	})

	byNumber := make(map[int]domain.Challenge, len(challenges))
	for i := range challenges {
		if challenges[i].Number != i+1 {
			challenges[i].Number = i + 1
		}
		byNumber[challenges[i].Number] = challenges[i]
	}

	return &Catalog{
		roundID:    round.ID,
		challenges: challenges,
		byNumber:   byNumber,
	}, nil
}

// RoundID returns the id of the round the catalog was built from.
func (c *Catalog) RoundID() string { return c.roundID }

// Total returns the number of challenges.
func (c *Catalog) Total() int { return len(c.challenges) }

// Numbers returns the challenge numbers in play order.
func (c *Catalog) Numbers() []int {
	out := make([]int, len(c.challenges))
	for i, ch := range c.challenges {
		out[i] = ch.Number
	}
	return out
}

// Metadata returns the challenge with the given number, or a placeholder.
func (c *Catalog) Metadata(number int) domain.Challenge {
	if ch, ok := c.byNumber[number]; ok {
		return ch
	}
	return Placeholder(number)
}

// Exempt reports whether the challenge is excluded from auto-skip.
func (c *Catalog) Exempt(number int) bool {
	return c.byNumber[number].Exempt
}

// Placeholder is shown for challenge numbers the round does not define.
func Placeholder(number int) domain.Challenge {
	return domain.Challenge{
		Number: number,
		Title:  "Unknown",
		Story:  "No story available.",
		Hint:   "No hint available.",
	}
}
