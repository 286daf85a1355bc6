// Package scoring holds the pure score and attempt transitions of a round.
package scoring

// Rules holds the configurable scoring constants.
type Rules struct {
	CorrectPoints int // default: 10
	WrongPenalty  int // default: 2
	HintCost      int // default: 2
	SkipPoints    int // default: 0
	MaxAttempts   int // default: 3, wrong answers before an auto-skip
}

// DefaultRules returns the production defaults.
func DefaultRules() Rules {
	return Rules{
		CorrectPoints: 10,
		WrongPenalty:  2,
		HintCost:      2,
		SkipPoints:    0,
		MaxAttempts:   3,
	}
}

// OnCorrect awards the challenge and counts it as completed.
func (r Rules) OnCorrect(score, completed int) (int, int) {
	return score + r.CorrectPoints, completed + 1
}

// OnWrong applies the wrong-answer penalty. The completed count is unaffected.
func (r Rules) OnWrong(score int) int {
	return Clamp(score - r.WrongPenalty)
}

// OnHint charges for a newly revealed hint.
func (r Rules) OnHint(score int) int {
	return Clamp(score - r.HintCost)
}

// OnSkip advances without a penalty.
func (r Rules) OnSkip(score, completed int) (int, int) {
	return Clamp(score + r.SkipPoints), completed + 1
}

// OnAutoSkip advances after the attempt limit. Wrong answers have already been charged,
// so it behaves exactly like a manual skip.
func (r Rules) OnAutoSkip(score, completed int) (int, int) {
	return r.OnSkip(score, completed)
}

// AutoSkip reports whether attempts has reached the limit on a non-exempt challenge.
func (r Rules) AutoSkip(attempts int, exempt bool) bool {
	if exempt || r.MaxAttempts <= 0 {
		return false
	}
	return attempts >= r.MaxAttempts
}

// Clamp floors a score at zero.
func Clamp(score int) int {
	if score < 0 {
		return 0
	}
	return score
}
