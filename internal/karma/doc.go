// Package karma turns votes received on a voter's owned content into a
// reputation score. Sources declare which owned collections count and how
// up- and downvotes are weighted; levels map karma thresholds to labels.
package karma
