package ranking

import "math"

// Precomputed z-scores for the supported confidence levels.
var zScores = map[float64]float64{
	0.80: 1.28,
	0.85: 1.44,
	0.90: 1.64,
	0.95: 1.96,
	0.99: 2.58,
}

// defaultZ is the 0.95 z-score, used for unrecognized confidence levels.
const defaultZ = 1.96

// WilsonScore computes the lower bound of the Wilson score confidence
// interval for the true upvote proportion. With zero total votes the score
// is 0. The result is clamped to [0, 1] and rounded to six decimals.
//
// For a fixed up/total ratio the score grows with total (more votes, more
// confidence); for a fixed total it grows with the ratio.
func WilsonScore(up, total int64, confidence float64) float64 {
	if total == 0 {
		return 0
	}

	z, ok := zScores[confidence]
	if !ok {
		z = defaultZ
	}

	n := float64(total)
	phat := float64(up) / n
	z2 := z * z

	score := (phat + z2/(2*n) - z*math.Sqrt((phat*(1-phat)+z2/(4*n))/n)) / (1 + z2/n)

	score = math.Max(0, math.Min(1, score))
	return math.Round(score*1e6) / 1e6
}
