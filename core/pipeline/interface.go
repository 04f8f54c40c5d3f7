package pipeline

import (
	"context"

	"github.com/siherrmann/docgrapher/model"
)

// TokenEstimator estimates the number of tokens of a text.
type TokenEstimator func(text string) int

// EstimateTokens is the default estimator: one token per four bytes.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// EmbeddingProvider turns texts into vectors, one per text and in input order.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimension() int
}

// Analyzer supplies the summary, entities and concepts of a document.
type Analyzer interface {
	Analyze(ctx context.Context, doc *model.Document, chunks []*model.Chunk) (*model.Analysis, error)
}

// Pipeline combines chunking and embedding.
type Pipeline struct {
	Chunker *Chunker
	Batcher *Batcher
}

// NewPipeline creates a new processing pipeline
func NewPipeline(chunker *Chunker, batcher *Batcher) *Pipeline {
	return &Pipeline{
		Chunker: chunker,
		Batcher: batcher,
	}
}

// Process chunks a document and embeds every chunk.
// The returned error is a *model.StageError naming the failed stage.
func (p *Pipeline) Process(ctx context.Context, doc *model.Document) ([]*model.Chunk, error) {
	chunks, err := p.Chunker.Chunk(doc)
	if err != nil {
		return nil, model.NewStageError(model.StageChunk, err)
	}

	err = ctx.Err()
	if err != nil {
		return chunks, model.NewStageError(model.StageEmbed, err)
	}

	err = p.Batcher.EmbedChunks(ctx, chunks)
	if err != nil {
		return chunks, model.NewStageError(model.StageEmbed, err)
	}

	return chunks, nil
}
