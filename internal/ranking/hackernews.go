package ranking

import (
	"math"
	"time"
)

// DefaultGravity is the canonical Hacker News decay exponent.
const DefaultGravity = 1.8

// HackerNewsScore computes the Hacker News ranking score. The first point is
// free and excluded, so a single-vote item scores 0. Future-dated content
// (negative age) scores 0. Higher gravity decays faster. Gravity values <= 0
// fall back to DefaultGravity.
func HackerNewsScore(plusminus int64, createdAt, now time.Time, gravity float64) float64 {
	if gravity <= 0 {
		gravity = DefaultGravity
	}

	points := float64(plusminus - 1)
	if points < 0 {
		points = 0
	}

	ageHours := now.Sub(createdAt).Hours()
	if ageHours < 0 {
		return 0
	}

	return points / math.Pow(ageHours+2, gravity)
}
