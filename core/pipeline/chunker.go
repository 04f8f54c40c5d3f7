package pipeline

import (
	"github.com/siherrmann/docgrapher/model"
)

// Chunker materializes chunk records from a boundary plan.
type Chunker struct {
	planner *Planner
}

// NewChunker creates a chunker. A nil estimator uses EstimateTokens.
func NewChunker(config model.ChunkingConfig, estimate TokenEstimator) (*Chunker, error) {
	planner, err := NewPlanner(config, estimate)
	if err != nil {
		return nil, err
	}
	return &Chunker{planner: planner}, nil
}

// Plan returns the planned spans of a document.
func (c *Chunker) Plan(doc *model.Document) []Span {
	return c.planner.Plan(doc)
}

// Chunk plans and materializes the chunks of a document.
// Empty content yields zero chunks.
func (c *Chunker) Chunk(doc *model.Document) ([]*model.Chunk, error) {
	return c.Materialize(doc, c.Plan(doc)), nil
}

// Materialize creates one chunk per span, indexed in span order.
// Chunk ids are derived from the document id and the span, so re-chunking is stable.
func (c *Chunker) Materialize(doc *model.Document, spans []Span) []*model.Chunk {
	chunks := make([]*model.Chunk, 0, len(spans))
	for i, span := range spans {
		metadata := model.Metadata{
			"strategy": span.Strategy,
		}
		if span.SubChunkIndex != nil {
			metadata["parent_title"] = span.Title
		}

		chunks = append(chunks, &model.Chunk{
			ID:            model.ChunkID(doc.ID, i, span.Start, span.End),
			DocumentID:    doc.ID,
			Index:         i,
			Title:         span.Title,
			Content:       doc.Content[span.Start:span.End],
			StartPos:      span.Start,
			EndPos:        span.End,
			HeadingLevel:  span.HeadingLevel,
			SubChunkIndex: span.SubChunkIndex,
			Metadata:      metadata,
			CreatedAt:     doc.CreatedAt,
		})
	}
	return chunks
}
