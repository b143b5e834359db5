package domain

// RankingAlgorithm selects a scoring function for generic ranking calls.
type RankingAlgorithm string

const (
	RankingWilson     RankingAlgorithm = "wilson"
	RankingRedditHot  RankingAlgorithm = "hot"
	RankingHackerNews RankingAlgorithm = "hackernews"
)

// Valid reports whether the algorithm name is recognized.
func (a RankingAlgorithm) Valid() bool {
	switch a {
	case RankingWilson, RankingRedditHot, RankingHackerNews:
		return true
	}
	return false
}

// Options is the explicit configuration surface of the voting core. It is
// passed to the engines at construction; there is no ambient global state.
type Options struct {
	// AllowRecast permits changing an existing vote's value in place.
	// Disabled, a duplicate cast fails with ErrAlreadyVoted.
	AllowRecast bool
	// AllowDuplicateVotes disables the one-vote-per-key constraint entirely.
	// Counter semantics become additive-only: every cast inserts a new row.
	AllowDuplicateVotes bool
	// AllowSelfVote disables the ErrSelfVote check.
	AllowSelfVote bool
	// CounterCache maintains incremental tallies through a TallyStore.
	// Disabled, aggregate reads fall back to live ledger aggregation.
	CounterCache bool
	// DefaultRanking is the algorithm used by generic Score calls.
	DefaultRanking RankingAlgorithm
	// HotGravity is the decay exponent for the Hacker News algorithm.
	HotGravity float64
	// WilsonConfidence is the default confidence level for Wilson scoring.
	WilsonConfidence float64
}

// DefaultOptions returns the standard configuration: recast on, duplicates
// off, self-votes off, counter cache on.
func DefaultOptions() Options {
	return Options{
		AllowRecast:      true,
		CounterCache:     true,
		DefaultRanking:   RankingWilson,
		HotGravity:       1.8,
		WilsonConfidence: 0.95,
	}
}
