// Package domain holds the core model of the voting system: votes, voter and
// voteable identity, vote tallies, and the ports the engines depend on.
// It has no dependencies on adapters or engines.
package domain
