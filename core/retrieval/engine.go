package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/siherrmann/docgrapher/helper"
	"github.com/siherrmann/docgrapher/model"
)

// VectorSearcher is the similarity query of the vector store.
type VectorSearcher interface {
	Query(ctx context.Context, vector []float32, topK int, minScore float64, exclude *uuid.UUID) ([]*model.VectorHit, error)
}

// ChunkSource returns the chunks of committed documents in chunk order.
// Documents without a metadata record yield helper.ErrNotFound.
type ChunkSource interface {
	Chunks(ctx context.Context, documentID uuid.UUID) ([]*model.Chunk, error)
}

// Engine searches chunks of committed documents by vector similarity.
type Engine struct {
	vectors VectorSearcher
	chunks  ChunkSource
}

// NewEngine creates a new retrieval engine
func NewEngine(vectors VectorSearcher, chunks ChunkSource) (*Engine, error) {
	if vectors == nil || chunks == nil {
		return nil, fmt.Errorf("%w: vector searcher and chunk source are required", model.ErrInvalidConfig)
	}

	return &Engine{
		vectors: vectors,
		chunks:  chunks,
	}, nil
}

// VectorRetrieve returns the chunks most similar to embedding, best first.
// Hits of uncommitted or deleted documents are skipped.
func (e *Engine) VectorRetrieve(ctx context.Context, embedding []float32, config model.QueryConfig) ([]*model.SearchResult, error) {
	hits, err := e.vectors.Query(ctx, embedding, config.TopK, config.MinSimilarity, nil)
	if err != nil {
		return nil, helper.NewError("query vectors", err)
	}

	documents := newDocumentChunks(e.chunks)
	results := make([]*model.SearchResult, 0, len(hits))
	for _, hit := range hits {
		chunks, err := documents.get(ctx, hit.DocumentID)
		if err != nil {
			return nil, err
		}

		chunk := findChunk(chunks, hit.ChunkID)
		if chunk == nil {
			continue
		}

		results = append(results, &model.SearchResult{
			Chunk:      chunk,
			DocumentID: hit.DocumentID,
			Score:      hit.Similarity,
			Similarity: hit.Similarity,
			Distance:   0,
			Method:     model.MethodVector,
		})
	}

	sortResults(results)

	return results, nil
}

// GetContext returns the chunks of a document at most window positions away
// from the chunk at index, excluding that chunk, in chunk order.
func (e *Engine) GetContext(ctx context.Context, documentID uuid.UUID, index int, window int) ([]*model.Chunk, error) {
	chunks, err := e.chunks.Chunks(ctx, documentID)
	if err != nil {
		return nil, helper.NewError("select chunks", err)
	}
	return contextOf(chunks, index, window), nil
}

// documentChunks caches the chunks of every document touched by one search.
// A nil entry marks a document without a committed record.
type documentChunks struct {
	source ChunkSource
	cache  map[uuid.UUID][]*model.Chunk
}

func newDocumentChunks(source ChunkSource) *documentChunks {
	return &documentChunks{source: source, cache: map[uuid.UUID][]*model.Chunk{}}
}

func (d *documentChunks) get(ctx context.Context, documentID uuid.UUID) ([]*model.Chunk, error) {
	if chunks, ok := d.cache[documentID]; ok {
		return chunks, nil
	}

	chunks, err := d.source.Chunks(ctx, documentID)
	if errors.Is(err, helper.ErrNotFound) {
		d.cache[documentID] = nil
		return nil, nil
	}
	if err != nil {
		return nil, helper.NewError("select chunks", err)
	}

	d.cache[documentID] = chunks
	return chunks, nil
}

func findChunk(chunks []*model.Chunk, chunkID uuid.UUID) *model.Chunk {
	for _, chunk := range chunks {
		if chunk.ID == chunkID {
			return chunk
		}
	}
	return nil
}

func contextOf(chunks []*model.Chunk, index int, window int) []*model.Chunk {
	neighbors := []*model.Chunk{}
	if window <= 0 {
		return neighbors
	}
	for _, chunk := range chunks {
		if chunk.Index == index {
			continue
		}
		if chunk.Index >= index-window && chunk.Index <= index+window {
			neighbors = append(neighbors, chunk)
		}
	}
	return neighbors
}

// sortResults orders by score, ties by document id and chunk index.
func sortResults(results []*model.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].DocumentID != results[j].DocumentID {
			return results[i].DocumentID.String() < results[j].DocumentID.String()
		}
		return results[i].Chunk.Index < results[j].Chunk.Index
	})
}
