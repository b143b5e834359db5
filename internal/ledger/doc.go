// Package ledger implements the vote ledger engine: casting, recasting,
// removing and toggling votes, aggregate readers, and the ranking entry
// points. It is synchronous, stateless-per-call logic over a VoteStore;
// concurrency correctness is delegated to the store's atomicity guarantees.
package ledger
