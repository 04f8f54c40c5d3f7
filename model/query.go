package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Retrieval methods of a SearchResult.
const (
	MethodVector  = "vector"
	MethodContext = "context"
)

// QueryConfig controls a chunk search.
// ContextWindow adds up to this many chunks before and after every hit,
// ContextWeight scales the score of a hit for its context chunks.
type QueryConfig struct {
	TopK          int     `json:"top_k"`
	MinSimilarity float64 `json:"min_similarity"`
	ContextWindow int     `json:"context_window"`
	ContextWeight float64 `json:"context_weight"`
}

// DefaultQueryConfig returns a vector only search of the ten best chunks.
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{
		TopK:          10,
		MinSimilarity: 0,
		ContextWindow: 0,
		ContextWeight: 0.5,
	}
}

// Validate rejects a non-positive TopK, a negative window and weights outside [0,1].
func (c QueryConfig) Validate() error {
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidConfig, c.TopK)
	}
	if c.ContextWindow < 0 {
		return fmt.Errorf("%w: context_window must not be negative, got %d", ErrInvalidConfig, c.ContextWindow)
	}
	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		return fmt.Errorf("%w: min_similarity must be within [0,1], got %v", ErrInvalidConfig, c.MinSimilarity)
	}
	if c.ContextWeight < 0 || c.ContextWeight > 1 {
		return fmt.Errorf("%w: context_weight must be within [0,1], got %v", ErrInvalidConfig, c.ContextWeight)
	}
	return nil
}

// SearchResult is a chunk found by a search.
// Distance is the index distance to the matching chunk, zero for vector hits.
type SearchResult struct {
	Chunk      *Chunk    `json:"chunk"`
	DocumentID uuid.UUID `json:"document_id"`
	Score      float64   `json:"score"`
	Similarity float64   `json:"similarity"`
	Distance   int       `json:"distance"`
	Method     string    `json:"method"`
}
