package game

import (
	"math"
	"time"
)

// Scoring curve: base * speedFactor * streakBonus. The exact constants are
// tunables; the structural guarantee is that answering faster never scores
// less, and the curve never goes below the floor.
const (
	answerBaseScore = 1000
	speedFloor      = 0.3
	streakBonusStep = 0.1
	streakBonusCap  = 5
)

// scoreAnswer computes the score delta for a correct answer at time now
// within the [start, end] window, given the player's current streak.
func scoreAnswer(now, start, end time.Time, streak int) int {
	total := end.Sub(start)
	speed := speedFloor
	if total > 0 {
		elapsed := now.Sub(start)
		if elapsed < 0 {
			elapsed = 0
		}
		if elapsed > total {
			elapsed = total
		}
		frac := float64(elapsed) / float64(total)
		speed = 1.0 - (1.0-speedFloor)*frac
	}
	if streak > streakBonusCap {
		streak = streakBonusCap
	}
	bonus := 1.0 + streakBonusStep*float64(streak)
	return int(math.Round(answerBaseScore * speed * bonus))
}
