package retrieval

import (
	"context"

	"github.com/siherrmann/docgrapher/model"
)

// Strategy defines a retrieval strategy
type Strategy interface {
	Retrieve(ctx context.Context, embedding []float32, config model.QueryConfig) ([]*model.SearchResult, error)
}

// NewStrategy picks the contextual strategy when the config asks for context chunks.
func NewStrategy(engine *Engine, config model.QueryConfig) Strategy {
	if config.ContextWindow > 0 {
		return NewContextualStrategy(engine)
	}
	return NewVectorOnlyStrategy(engine)
}

// VectorOnlyStrategy performs pure vector similarity search
type VectorOnlyStrategy struct {
	engine *Engine
}

// NewVectorOnlyStrategy creates a new vector-only strategy
func NewVectorOnlyStrategy(engine *Engine) *VectorOnlyStrategy {
	return &VectorOnlyStrategy{engine: engine}
}

// Retrieve performs vector-only retrieval
func (s *VectorOnlyStrategy) Retrieve(ctx context.Context, embedding []float32, config model.QueryConfig) ([]*model.SearchResult, error) {
	return s.engine.VectorRetrieve(ctx, embedding, config)
}

// ContextualStrategy adds the neighboring chunks of every vector hit.
type ContextualStrategy struct {
	engine *Engine
}

// NewContextualStrategy creates a new contextual strategy
func NewContextualStrategy(engine *Engine) *ContextualStrategy {
	return &ContextualStrategy{engine: engine}
}

// Retrieve performs contextual retrieval. A context chunk scores the hit's score
// times ContextWeight and is kept once, with its best score. Chunks that are hits
// themselves keep their vector result.
func (s *ContextualStrategy) Retrieve(ctx context.Context, embedding []float32, config model.QueryConfig) ([]*model.SearchResult, error) {
	vectorResults, err := s.engine.VectorRetrieve(ctx, embedding, config)
	if err != nil {
		return nil, err
	}

	resultMap := make(map[string]*model.SearchResult, len(vectorResults))
	for _, result := range vectorResults {
		resultMap[result.Chunk.ID.String()] = result
	}

	documents := newDocumentChunks(s.engine.chunks)
	for _, result := range vectorResults {
		chunks, err := documents.get(ctx, result.DocumentID)
		if err != nil {
			return nil, err
		}

		for _, neighbor := range contextOf(chunks, result.Chunk.Index, config.ContextWindow) {
			score := result.Score * config.ContextWeight
			existing, exists := resultMap[neighbor.ID.String()]
			if exists && (existing.Method == model.MethodVector || existing.Score >= score) {
				continue
			}

			resultMap[neighbor.ID.String()] = &model.SearchResult{
				Chunk:      neighbor,
				DocumentID: result.DocumentID,
				Score:      score,
				Similarity: 0,
				Distance:   abs(neighbor.Index - result.Chunk.Index),
				Method:     model.MethodContext,
			}
		}
	}

	results := make([]*model.SearchResult, 0, len(resultMap))
	for _, result := range resultMap {
		results = append(results, result)
	}
	sortResults(results)

	return results, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
