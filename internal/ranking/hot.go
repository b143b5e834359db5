package ranking

import (
	"math"
	"time"
)

// hotEpoch is the fixed reference instant of the original Reddit algorithm,
// 2005-12-08T07:46:43Z. Any fixed epoch orders items identically; this one
// keeps scores numerically comparable with the reference implementation.
var hotEpoch = time.Date(2005, time.December, 8, 7, 46, 43, 0, time.UTC)

// HotScore computes the Reddit Hot score from a voteable's net signed total
// and its creation time. It uses absolute creation time, not relative age:
// newer items score systematically higher regardless of later vote activity,
// and scores grow unboundedly over calendar time. Rounded to seven decimals.
func HotScore(plusminus int64, createdAt time.Time) float64 {
	order := math.Log10(math.Max(math.Abs(float64(plusminus)), 1))

	var sign float64
	switch {
	case plusminus > 0:
		sign = 1
	case plusminus < 0:
		sign = -1
	}

	seconds := createdAt.Sub(hotEpoch).Seconds()
	return math.Round((sign*order+seconds/45000.0)*1e7) / 1e7
}
