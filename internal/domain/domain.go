package domain

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
)

// --- Identity ---

// Ref identifies an entity by kind and ID. Votes reference both their voter
// and their voteable this way, so any entity type can participate without
// the core knowing about it.
type Ref struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// Equal reports whether two refs point at the same entity.
func (r Ref) Equal(o Ref) bool {
	return r.Kind == o.Kind && r.ID == o.ID
}

// IsZero reports whether the ref is missing either component and so
// cannot identify an entity.
func (r Ref) IsZero() bool {
	return r.Kind == "" || r.ID == ""
}

func (r Ref) String() string {
	return r.Kind + ":" + r.ID
}

// --- Capabilities ---

// Voter is anything that can cast votes.
type Voter interface {
	VoterRef() Ref
}

// Voteable is anything that can receive votes.
type Voteable interface {
	VoteableRef() Ref
}

// Owned is implemented by voteables whose received votes should count toward
// an owner's karma. The owner ref is denormalized onto each vote row at cast
// time so karma queries stay a single indexed scan.
type Owned interface {
	OwnerRef() Ref
}

// Timestamped exposes a creation time. Age-based ranking (Reddit Hot, Hacker
// News) requires the voteable to implement it.
type Timestamped interface {
	CreationTime() time.Time
}

// --- Vote ---

// Direction classifies a vote by the sign of its value.
type Direction int

const (
	DirectionDown    Direction = -1
	DirectionNeutral Direction = 0
	DirectionUp      Direction = 1
)

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "neutral"
	}
}

// DirectionOf returns the direction for a signed vote value.
func DirectionOf(value int64) Direction {
	switch {
	case value > 0:
		return DirectionUp
	case value < 0:
		return DirectionDown
	default:
		return DirectionNeutral
	}
}

// IntegralValue validates a value received from an untyped source (JSON,
// form input) and returns it as a vote value. Non-integral input yields
// ErrInvalidVoteValue.
func IntegralValue(v float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, ErrInvalidVoteValue
	}
	return int64(v), nil
}

// Vote is the atomic ledger unit: one actor's signed rating of one voteable
// within one scope. Value and scope never change after creation except for
// value-on-recast.
type Vote struct {
	ID        uuid.UUID `json:"id"`
	Voter     Ref       `json:"voter"`
	Voteable  Ref       `json:"voteable"`
	Owner     Ref       `json:"owner,omitempty"` // zero when the voteable has no karma owner
	Value     int64     `json:"value"`
	Scope     string    `json:"scope,omitempty"` // "" is the unscoped partition
	CastSeq   int64     `json:"-"`               // 0 in unique mode; discriminator when duplicates are allowed
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Direction returns the vote's direction from the sign of its value.
func (v *Vote) Direction() Direction {
	return DirectionOf(v.Value)
}

// Key is the uniqueness key of a vote: one vote per (voter, voteable, scope)
// unless duplicates are allowed.
type Key struct {
	Voter    Ref
	Voteable Ref
	Scope    string
}

func (v *Vote) Key() Key {
	return Key{Voter: v.Voter, Voteable: v.Voteable, Scope: v.Scope}
}

// --- Tally ---

// Tally is the aggregate over all votes on one (voteable, scope) partition.
type Tally struct {
	Up    int64 `json:"up"`
	Down  int64 `json:"down"`
	Count int64 `json:"count"`
	Total int64 `json:"total"`
}

// Plusminus is the net signed total.
func (t Tally) Plusminus() int64 {
	return t.Total
}

// PercentFor is the share of upvotes in percent, rounded to one decimal.
// Zero votes yields 0.
func (t Tally) PercentFor() float64 {
	if t.Count == 0 {
		return 0
	}
	return math.Round(float64(t.Up)/float64(t.Count)*1000) / 10
}

// PercentAgainst is 100 minus PercentFor, except when there are no votes.
func (t Tally) PercentAgainst() float64 {
	if t.Count == 0 {
		return 0
	}
	return math.Round((100-float64(t.Up)/float64(t.Count)*100)*10) / 10
}

// IsZero reports whether the tally counts nothing.
func (t Tally) IsZero() bool {
	return t == Tally{}
}

// TallyDelta is the incremental adjustment a single ledger mutation causes.
type TallyDelta struct {
	Up    int64
	Down  int64
	Count int64
	Total int64
}

// Apply returns the tally with the delta applied.
func (t Tally) Apply(d TallyDelta) Tally {
	return Tally{
		Up:    t.Up + d.Up,
		Down:  t.Down + d.Down,
		Count: t.Count + d.Count,
		Total: t.Total + d.Total,
	}
}

// CreateDelta is the tally adjustment for a newly created vote.
func CreateDelta(value int64) TallyDelta {
	d := TallyDelta{Count: 1, Total: value}
	switch DirectionOf(value) {
	case DirectionUp:
		d.Up = 1
	case DirectionDown:
		d.Down = 1
	}
	return d
}

// UpdateDelta is the tally adjustment for a recast from oldValue to newValue.
// Up/down counters move only when the sign class changes.
func UpdateDelta(oldValue, newValue int64) TallyDelta {
	d := TallyDelta{Total: newValue - oldValue}
	oldDir, newDir := DirectionOf(oldValue), DirectionOf(newValue)
	if oldDir == newDir {
		return d
	}
	switch oldDir {
	case DirectionUp:
		d.Up = -1
	case DirectionDown:
		d.Down = -1
	}
	switch newDir {
	case DirectionUp:
		d.Up = 1
	case DirectionDown:
		d.Down = 1
	}
	return d
}

// DeleteDelta is the inverse of CreateDelta.
func DeleteDelta(value int64) TallyDelta {
	d := CreateDelta(value)
	return TallyDelta{Up: -d.Up, Down: -d.Down, Count: -d.Count, Total: -d.Total}
}

// --- Ports ---

// SourceFilter selects the votes contributing to one karma source: votes
// received on voteables of one kind owned by the voter, optionally narrowed
// to a scope and a time range.
type SourceFilter struct {
	VoteableKind string
	Scope        *string   // nil matches every scope
	Since        time.Time // zero matches all time
}

// Partition identifies one (voteable, scope) counter partition.
type Partition struct {
	Voteable Ref
	Scope    string
}

// VoteStore is the durable vote ledger. Implementations must enforce the
// (voter, voteable, scope, cast_seq) uniqueness key atomically: a
// check-then-insert race between two creates for the same key resolves to
// exactly one surviving row, the loser receiving ErrAlreadyVoted.
type VoteStore interface {
	Create(ctx context.Context, vote *Vote) error
	UpdateValue(ctx context.Context, id uuid.UUID, value int64, updatedAt time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error

	Find(ctx context.Context, key Key) (*Vote, error) // (nil, nil) when absent

	// Aggregate computes the live tally for one (voteable, scope) partition.
	// It is the ground truth the counter cache is reconciled against.
	Aggregate(ctx context.Context, voteable Ref, scope string) (Tally, error)
	// AggregateAll computes the live tally across every scope of a voteable.
	AggregateAll(ctx context.Context, voteable Ref) (Tally, error)

	// ListPartitions enumerates every (voteable, scope) partition holding at
	// least one vote. Reconciliation scans these against the counter cache.
	ListPartitions(ctx context.Context) ([]Partition, error)

	// CountBySource counts up- and downvotes received by one owner through
	// one karma source.
	CountBySource(ctx context.Context, owner Ref, filter SourceFilter) (up, down int64, err error)
	// ListBySource returns the individual votes behind CountBySource, oldest
	// first. Decayed karma needs per-vote ages, not just counts.
	ListBySource(ctx context.Context, owner Ref, filter SourceFilter) ([]Vote, error)
}

// TallyStore is the counter cache strategy. Mutation methods must be atomic
// increments at the storage layer, never read-modify-write in application
// code.
type TallyStore interface {
	ApplyDelta(ctx context.Context, voteable Ref, scope string, delta TallyDelta) (Tally, error)
	Get(ctx context.Context, voteable Ref, scope string) (Tally, error)
	// Set overwrites the cached tally. Used by reconciliation to repair drift.
	Set(ctx context.Context, voteable Ref, scope string, tally Tally) error
}

// KarmaCache caches computed karma per voter. Staleness is the caller's
// concern: reads return whatever was last stored.
type KarmaCache interface {
	Get(ctx context.Context, voter Ref) (int64, bool, error)
	Set(ctx context.Context, voter Ref, karma int64) error
}

// --- Events ---

type VoteEventType string

const (
	VoteCreated VoteEventType = "vote_created"
	VoteUpdated VoteEventType = "vote_updated"
	VoteRemoved VoteEventType = "vote_removed"
)

// VoteEvent is emitted after a ledger mutation, carrying the resulting
// aggregate snapshot. Delivery is a collaborator concern.
type VoteEvent struct {
	Type  VoteEventType `json:"type"`
	Vote  Vote          `json:"vote"`
	Tally Tally         `json:"tally"`
	At    time.Time     `json:"at"`
}

// EventPublisher hands vote events to an external broadcast collaborator.
type EventPublisher interface {
	PublishVoteEvent(ctx context.Context, event VoteEvent) error
}

// NoopPublisher discards events.
type NoopPublisher struct{}

func (NoopPublisher) PublishVoteEvent(context.Context, VoteEvent) error { return nil }
