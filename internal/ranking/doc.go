// Package ranking implements the three stateless scoring functions: Wilson
// score lower bound, Reddit Hot, and Hacker News. All are pure: same input,
// same output, no I/O.
package ranking
