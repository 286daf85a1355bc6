package catalog

import (
	"fmt"

	"escape-room-service/internal/domain"
)

// DefaultRoundID identifies the built-in round.
const DefaultRoundID = "round2"

// DefaultRound is the built-in nine-challenge round used when no catalog source is
// configured. Challenge content is supplied by the client; only structure lives here.
func DefaultRound() domain.Round {
	challenges := make([]domain.Challenge, 0, 9)
	for n := 1; n <= 9; n++ {
		challenges = append(challenges, domain.Challenge{
			Number:    n,
			Title:     fmt.Sprintf("Challenge %d", n),
			Story:     "Solve the puzzle to unlock the next door.",
			Hint:      "No hint available.",
			Rules:     []string{"Solve the puzzle before the timer runs out."},
			Penalties: []string{"-2 points per wrong answer.", "-2 points per hint."},
			// Memory and gate puzzles cannot be attempt-limited fairly.
			Exempt: n == 3 || n == 8,
		})
	}
	return domain.Round{ID: DefaultRoundID, Name: "The Protocol", Challenges: challenges}
}
