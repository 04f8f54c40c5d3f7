package retrieval

import (
	"context"
	"testing"

	"github.com/siherrmann/docgrapher/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStrategy(t *testing.T) {
	engine, err := NewEngine(&mockVectors{}, newMockChunks())
	require.NoError(t, err, "Expected NewEngine to not return an error")

	t.Run("Valid call NewStrategy without context window", func(t *testing.T) {
		strategy := NewStrategy(engine, model.DefaultQueryConfig())
		assert.IsType(t, &VectorOnlyStrategy{}, strategy, "Expected vector only strategy")
	})

	t.Run("Valid call NewStrategy with context window", func(t *testing.T) {
		config := model.DefaultQueryConfig()
		config.ContextWindow = 1
		strategy := NewStrategy(engine, config)
		assert.IsType(t, &ContextualStrategy{}, strategy, "Expected contextual strategy")
	})
}

func TestVectorOnlyStrategyRetrieve(t *testing.T) {
	source := newMockChunks()
	_, chunks := source.addDocument(3)
	engine, err := NewEngine(&mockVectors{hits: []*model.VectorHit{hitFor(chunks[1], 0.8)}}, source)
	require.NoError(t, err, "Expected NewEngine to not return an error")

	t.Run("Valid call Retrieve", func(t *testing.T) {
		results, err := NewVectorOnlyStrategy(engine).Retrieve(context.Background(), []float32{1, 0, 0}, model.DefaultQueryConfig())
		require.NoError(t, err, "Expected Retrieve to not return an error")
		require.Len(t, results, 1, "Expected only the vector hit")
		assert.Equal(t, model.MethodVector, results[0].Method, "Expected vector method")
	})
}

func TestContextualStrategyRetrieve(t *testing.T) {
	source := newMockChunks()
	_, chunks := source.addDocument(6)
	engine, err := NewEngine(&mockVectors{hits: []*model.VectorHit{
		hitFor(chunks[1], 0.9),
		hitFor(chunks[2], 0.6),
	}}, source)
	require.NoError(t, err, "Expected NewEngine to not return an error")

	config := model.DefaultQueryConfig()
	config.ContextWindow = 1
	config.ContextWeight = 0.5

	t.Run("Valid call Retrieve adds neighbors of every hit", func(t *testing.T) {
		results, err := NewContextualStrategy(engine).Retrieve(context.Background(), []float32{1, 0, 0}, config)
		require.NoError(t, err, "Expected Retrieve to not return an error")
		require.Len(t, results, 4, "Expected two hits and two context chunks")

		byIndex := map[int]*model.SearchResult{}
		for _, result := range results {
			byIndex[result.Chunk.Index] = result
		}

		assert.Equal(t, model.MethodVector, byIndex[1].Method, "Expected hit to keep its vector result")
		assert.Equal(t, model.MethodVector, byIndex[2].Method, "Expected hit to keep its vector result")
		assert.Equal(t, model.MethodContext, byIndex[0].Method, "Expected neighbor of the first hit")
		assert.InDelta(t, 0.45, byIndex[0].Score, 1e-9, "Expected weighted score of the first hit")
		assert.Equal(t, 1, byIndex[0].Distance, "Expected distance one")
		assert.InDelta(t, 0.3, byIndex[3].Score, 1e-9, "Expected weighted score of the second hit")
		assert.NotContains(t, byIndex, 4, "Expected chunks outside the window to be left out")

		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score, "Expected results sorted by score")
		}
	})

	t.Run("Valid call Retrieve keeps the best score of shared neighbors", func(t *testing.T) {
		wide := config
		wide.ContextWindow = 2

		results, err := NewContextualStrategy(engine).Retrieve(context.Background(), []float32{1, 0, 0}, wide)
		require.NoError(t, err, "Expected Retrieve to not return an error")

		for _, result := range results {
			if result.Chunk.Index == 3 {
				assert.InDelta(t, 0.45, result.Score, 1e-9, "Expected score from the better hit")
				assert.Equal(t, 2, result.Distance, "Expected distance to the better hit")
			}
		}
	})
}
