package search

import "context"

// Result is one raw ranked hit from a search collaborator. Scores are in
// the collaborator's native range; the coordinator normalizes them.
type Result struct {
	SourceID string
	Title    string
	Text     string
	Score    float64
	Metadata map[string]interface{}
}

// SemanticSearcher is the vector-similarity collaborator.
type SemanticSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// LexicalSearcher is the keyword/full-text collaborator.
type LexicalSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}
