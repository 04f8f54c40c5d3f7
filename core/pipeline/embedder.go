package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/siherrmann/docgrapher/model"
)

// Batcher embeds chunks in bounded batches.
type Batcher struct {
	provider EmbeddingProvider
	config   model.EmbeddingConfig
	logger   *slog.Logger
}

// NewBatcher creates an embedding batcher.
// Non-positive batch sizes or attempt limits are rejected with ErrInvalidConfig.
func NewBatcher(provider EmbeddingProvider, config model.EmbeddingConfig, logger *slog.Logger) (*Batcher, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: embedding provider is nil", ErrInvalidConfig)
	}
	if config.BatchSize <= 0 || config.MaxAttempts <= 0 {
		return nil, fmt.Errorf("%w: batch size and max attempts must be positive", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Batcher{
		provider: provider,
		config:   config,
		logger:   logger.With("component", "batcher"),
	}, nil
}

// Provider returns the embedding provider of the batcher.
func (b *Batcher) Provider() EmbeddingProvider {
	return b.provider
}

// EmbedChunks attaches an embedding to every chunk. Batches of one call are issued
// in chunk order, one after another. Transient batch failures are retried with
// exponential backoff, any other failure aborts immediately.
// Vectors with a wrong length mark their chunk failed and the call returns
// ErrDimensionMismatch after all batches ran.
func (b *Batcher) EmbedChunks(ctx context.Context, chunks []*model.Chunk) error {
	dimension := b.provider.Dimension()
	var failed []int

	for start := 0; start < len(chunks); start += b.config.BatchSize {
		batch := chunks[start:min(start+b.config.BatchSize, len(chunks))]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.Content
		}

		var vectors [][]float32
		err := RetryWithBackoff(ctx, b.logger, func() error {
			var err error
			vectors, err = b.provider.Embed(ctx, texts)
			return err
		}, IsTransient, b.config.MaxAttempts, b.config.InitialBackoff, b.config.MaxBackoff)
		if err != nil {
			return fmt.Errorf("embed batch at chunk %d: %w", start, err)
		}

		if len(vectors) != len(batch) {
			return fmt.Errorf("embed batch at chunk %d: provider returned %d vectors for %d texts", start, len(vectors), len(batch))
		}

		for i, chunk := range batch {
			if len(vectors[i]) != dimension {
				chunk.Failed = true
				chunk.Embedding = nil
				failed = append(failed, chunk.Index)
				continue
			}
			chunk.Failed = false
			chunk.Embedding = &model.Embedding{
				ChunkID:   chunk.ID,
				Vector:    vectors[i],
				Model:     b.provider.Model(),
				Dimension: dimension,
			}
		}

		b.logger.Debug("Embedded batch", "start", start, "size", len(batch))
	}

	if len(failed) > 0 {
		return fmt.Errorf("%w: chunks %v do not have dimension %d", ErrDimensionMismatch, failed, dimension)
	}

	return nil
}
