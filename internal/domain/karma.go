package domain

import (
	"math"
	"time"
)

const (
	// DefaultHalfLife is the decay half-life when a source enables decay
	// without specifying one.
	DefaultHalfLife = 90 * 24 * time.Hour
	// DefaultDecayFloor is the minimum decay factor: old votes never decay
	// below this share of their weight.
	DefaultDecayFloor = 0.1
)

// DecayConfig enables exponential time decay for a karma source. Each vote
// contributes weight * max(2^-(age/halfLife), floor).
type DecayConfig struct {
	HalfLife time.Duration
	Floor    float64
}

func (d DecayConfig) halfLife() time.Duration {
	if d.HalfLife <= 0 {
		return DefaultHalfLife
	}
	return d.HalfLife
}

func (d DecayConfig) floor() float64 {
	if d.Floor <= 0 {
		return DefaultDecayFloor
	}
	return d.Floor
}

// Factor computes the decay multiplier for a vote of the given age.
func (d DecayConfig) Factor(age time.Duration) float64 {
	halfLives := age.Hours() / d.halfLife().Hours()
	f := math.Exp2(-halfLives)
	if f < d.floor() {
		return d.floor()
	}
	return f
}

// KarmaSource binds one voter-owned collection of voteables to karma
// computation. A voter kind may declare several sources; each contributes
// additively to total karma.
type KarmaSource struct {
	// Name identifies the source in KarmaFor and breakdowns.
	Name string
	// VoteableKind is the kind of owned voteables whose received votes count.
	VoteableKind string
	// Scope narrows counting to one vote scope. Nil counts every scope.
	Scope *string
	// PositiveWeight and NegativeWeight weight up- and downvotes. A source
	// with weights {1.0, 0.5} values a downvote at half an upvote.
	PositiveWeight float64
	NegativeWeight float64
	// Decay, when set, replaces flat counting with per-vote time decay.
	Decay *DecayConfig
}

// KarmaLevel maps a karma threshold to a level label. Levels are declared in
// ascending threshold order; thresholds partition karma into half-open
// intervals, and a voter holds the label of the highest threshold not
// exceeding their karma.
type KarmaLevel struct {
	Threshold int64
	Label     string
}

// LevelUnknown is returned when no levels are configured or karma falls
// below every threshold.
const LevelUnknown = "unknown"

// KarmaProgress describes a voter's position between their current level and
// the next one.
type KarmaProgress struct {
	CurrentLevel    string  `json:"current_level"`
	NextLevel       *string `json:"next_level,omitempty"`
	ProgressPercent float64 `json:"progress_percent"`
	KarmaNeeded     int64   `json:"karma_needed"`
}

// SourceKarma is one row of a karma breakdown.
type SourceKarma struct {
	Source      string `json:"source"`
	Value       int64  `json:"value"`
	RecentValue int64  `json:"recent_value"` // last 30 days
}
