// Package workflow indexes automation workflow templates and serves
// time-bounded cached search over them.
package workflow

import "github.com/google/uuid"

// Workflow is one automation workflow template.
type Workflow struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Lang        string    `json:"lang"`
}

// SearchResult is a workflow with its BM25 score. Lower scores rank
// better; bm25() reports a cost.
type SearchResult struct {
	Workflow Workflow `json:"workflow"`
	Score    float64  `json:"score"`
}

// SearchOptions narrows a search.
type SearchOptions struct {
	Tags []string
	Lang string
	K    int
}
