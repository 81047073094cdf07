package engine

import (
	"testing"
	"time"
)

func TestScoreCorrectWithTimeBonus(t *testing.T) {
	policy := ScoringPolicy{BasePoints: 100, BonusPerSecond: 10}

	if got := policy.Score(true, 4*time.Second); got != 140 {
		t.Fatalf("expected 140 points, got %d", got)
	}
}

func TestScoreBonusFloorsPartialSeconds(t *testing.T) {
	policy := ScoringPolicy{BasePoints: 100, BonusPerSecond: 10}

	if got := policy.Score(true, 1500*time.Millisecond); got != 110 {
		t.Fatalf("expected 110 points for 1.5s remaining, got %d", got)
	}
	if got := policy.Score(true, 999*time.Millisecond); got != 100 {
		t.Fatalf("expected base points only below 1s, got %d", got)
	}
}

func TestScoreWrongAnswerIsZero(t *testing.T) {
	policy := ScoringPolicy{BasePoints: 100, BonusPerSecond: 10}

	if got := policy.Score(false, 9*time.Second); got != 0 {
		t.Fatalf("wrong answers must score zero, got %d", got)
	}
}

func TestScoreClampsNegativeRemaining(t *testing.T) {
	policy := ScoringPolicy{BasePoints: 100, BonusPerSecond: 10}

	if got := policy.Score(true, -time.Second); got != 100 {
		t.Fatalf("negative remaining must not reduce base points, got %d", got)
	}
}
