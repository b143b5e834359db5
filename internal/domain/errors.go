package domain

import "errors"

// All of these are expected, caller-recoverable conditions. The engines
// return them unchanged; they are never treated as process failures.
var (
	ErrInvalidVoteValue = errors.New("vote value must be an integer")
	ErrSelfVote         = errors.New("voting for yourself is not allowed")
	ErrAlreadyVoted     = errors.New("already voted")
	ErrVoterNotFound    = errors.New("voter not found")
	ErrVoteableNotFound = errors.New("voteable not found")
	ErrNoCreationTime   = errors.New("voteable has no creation time")
)
