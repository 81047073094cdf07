package engine

import "time"

// ScoringPolicy maps the outcome of one question to points. The bonus is
// evaluated against the time remaining at the winning event, so review or UI
// delay can never change an already earned score.
type ScoringPolicy struct {
	BasePoints     int
	BonusPerSecond int
}

// Score returns base points plus one bonus per whole second left on the clock
// for a correct answer, and zero otherwise. There is no negative marking; a
// wrong answer scores the same as a timeout.
func (p ScoringPolicy) Score(correct bool, remaining time.Duration) int {
	if !correct {
		return 0
	}
	if remaining < 0 {
		remaining = 0
	}
	return p.BasePoints + int(remaining/time.Second)*p.BonusPerSecond
}
