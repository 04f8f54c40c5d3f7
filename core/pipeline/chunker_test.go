package pipeline

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/siherrmann/docgrapher/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChunker(t *testing.T) *Chunker {
	t.Helper()
	chunker, err := NewChunker(model.DefaultPipelineConfig().Chunking, nil)
	require.NoError(t, err, "Expected NewChunker to not return an error")
	return chunker
}

func newDoc(content string, headings ...model.Heading) *model.Document {
	return &model.Document{
		ID:        uuid.New(),
		Title:     "Doc",
		Content:   content,
		Format:    model.FormatMarkdown,
		Structure: headings,
	}
}

// assertCoverage checks that the chunks cover [0, len(content)) without gaps.
func assertCoverage(t *testing.T, doc *model.Document, chunks []*model.Chunk) {
	t.Helper()
	require.NotEmpty(t, chunks)
	assert.Equal(t, 0, chunks[0].StartPos, "Expected first chunk to start at 0")
	assert.Equal(t, len(doc.Content), chunks[len(chunks)-1].EndPos, "Expected last chunk to end at content end")
	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i].StartPos, chunks[i-1].EndPos, "Expected no gap before chunk %d", i)
		assert.Greater(t, chunks[i].StartPos, chunks[i-1].StartPos, "Expected chunk %d to start after chunk %d", i, i-1)
	}
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, doc.Content[c.StartPos:c.EndPos], c.Content)
		assert.True(t, utf8.ValidString(c.Content), "Expected chunk %d to be valid UTF-8", i)
	}
}

func TestNewChunker(t *testing.T) {
	t.Run("Valid call NewChunker", func(t *testing.T) {
		_, err := NewChunker(model.DefaultPipelineConfig().Chunking, nil)
		assert.NoError(t, err)
	})

	invalid := map[string]func(c *model.ChunkingConfig){
		"zero max tokens":         func(c *model.ChunkingConfig) { c.MaxTokens = 0 },
		"negative sub chunk":      func(c *model.ChunkingConfig) { c.SubChunkTokens = -1 },
		"zero chunk tokens":       func(c *model.ChunkingConfig) { c.ChunkTokens = 0 },
		"overlap exceeds window":  func(c *model.ChunkingConfig) { c.OverlapTokens = c.ChunkTokens },
		"boundary window above 1": func(c *model.ChunkingConfig) { c.BoundaryWindow = 1.5 },
	}
	for name, mutate := range invalid {
		t.Run("Invalid call NewChunker with "+name, func(t *testing.T) {
			config := model.DefaultPipelineConfig().Chunking
			mutate(&config)
			_, err := NewChunker(config, nil)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestSemanticChunking(t *testing.T) {
	chunker := newTestChunker(t)

	t.Run("Valid call Plan with three headings yields three spans", func(t *testing.T) {
		doc := newDoc(strings.Repeat("x", 2000),
			model.Heading{Title: "One", Level: 1, Offset: 0},
			model.Heading{Title: "Two", Level: 1, Offset: 500},
			model.Heading{Title: "Three", Level: 1, Offset: 1400},
		)

		chunks, err := chunker.Chunk(doc)
		require.NoError(t, err)
		require.Len(t, chunks, 3)

		expected := [][2]int{{0, 500}, {500, 1400}, {1400, 2000}}
		for i, c := range chunks {
			assert.Equal(t, expected[i][0], c.StartPos)
			assert.Equal(t, expected[i][1], c.EndPos)
			require.NotNil(t, c.HeadingLevel)
			assert.Equal(t, 1, *c.HeadingLevel)
			assert.Nil(t, c.SubChunkIndex)
		}
		assert.Equal(t, "Two", chunks[1].Title)
		assertCoverage(t, doc, chunks)
	})

	t.Run("Valid call Plan absorbs nested headings", func(t *testing.T) {
		doc := newDoc(strings.Repeat("y", 1000),
			model.Heading{Title: "Parent", Level: 1, Offset: 0},
			model.Heading{Title: "Child", Level: 2, Offset: 200},
			model.Heading{Title: "Grandchild", Level: 3, Offset: 300},
			model.Heading{Title: "Sibling", Level: 1, Offset: 600},
		)

		chunks, err := chunker.Chunk(doc)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "Parent", chunks[0].Title)
		assert.Equal(t, 600, chunks[0].EndPos)
		assert.Equal(t, "Sibling", chunks[1].Title)
		assertCoverage(t, doc, chunks)
	})

	t.Run("Valid call Plan ends a deeper first heading at a shallower heading", func(t *testing.T) {
		doc := newDoc(strings.Repeat("z", 300),
			model.Heading{Title: "Deep", Level: 3, Offset: 0},
			model.Heading{Title: "Top", Level: 1, Offset: 100},
		)

		chunks, err := chunker.Chunk(doc)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, 100, chunks[0].EndPos)
		assertCoverage(t, doc, chunks)
	})

	t.Run("Valid call Plan turns content before the first heading into a preamble", func(t *testing.T) {
		doc := newDoc(strings.Repeat("p", 400),
			model.Heading{Title: "Late", Level: 2, Offset: 150},
		)

		chunks, err := chunker.Chunk(doc)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "Doc", chunks[0].Title)
		assert.Nil(t, chunks[0].HeadingLevel)
		assert.Equal(t, 150, chunks[0].EndPos)
		assertCoverage(t, doc, chunks)
	})

	t.Run("Valid call Plan with unsorted and out of range headings", func(t *testing.T) {
		doc := newDoc(strings.Repeat("q", 500),
			model.Heading{Title: "B", Level: 1, Offset: 250},
			model.Heading{Title: "Out", Level: 1, Offset: 900},
			model.Heading{Title: "A", Level: 1, Offset: 0},
			model.Heading{Title: "Negative", Level: 1, Offset: -3},
		)

		chunks, err := chunker.Chunk(doc)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "A", chunks[0].Title)
		assert.Equal(t, "B", chunks[1].Title)
		assertCoverage(t, doc, chunks)
	})

	t.Run("Valid call Plan splits an oversized span by paragraphs", func(t *testing.T) {
		paragraph := strings.Repeat("w", 1000) + "\n\n"
		content := "# Big\n" + strings.Repeat(paragraph, 6)
		doc := newDoc(content, model.Heading{Title: "Big", Level: 1, Offset: 0})

		chunks, err := chunker.Chunk(doc)
		require.NoError(t, err)
		require.Greater(t, len(chunks), 1, "Expected the span to be split")

		for i, c := range chunks {
			assert.Equal(t, "Big", c.Title)
			require.NotNil(t, c.SubChunkIndex)
			assert.Equal(t, i, *c.SubChunkIndex)
			require.NotNil(t, c.HeadingLevel)
			assert.LessOrEqual(t, EstimateTokens(c.Content), 800, "Expected sub-chunk %d within the budget", i)
		}
		assertCoverage(t, doc, chunks)
	})

	t.Run("Valid call Plan hard splits a paragraph over the budget", func(t *testing.T) {
		content := strings.Repeat("é", 5000)
		doc := newDoc(content, model.Heading{Title: "Wall", Level: 1, Offset: 0})

		chunks, err := chunker.Chunk(doc)
		require.NoError(t, err)
		require.Len(t, chunks, 4)
		for _, c := range chunks[:3] {
			assert.Equal(t, 3200, len(c.Content))
		}
		assertCoverage(t, doc, chunks)
	})
}

func TestFixedChunking(t *testing.T) {
	chunker := newTestChunker(t)

	t.Run("Valid call Chunk with empty content yields zero chunks", func(t *testing.T) {
		chunks, err := chunker.Chunk(newDoc(""))
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})

	t.Run("Valid call Chunk with short content yields one chunk", func(t *testing.T) {
		doc := newDoc("Just a short text.")
		chunks, err := chunker.Chunk(doc)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, StrategyFixed, chunks[0].Metadata["strategy"])
		assertCoverage(t, doc, chunks)
	})

	t.Run("Valid call Plan overlaps windows without sentences", func(t *testing.T) {
		doc := newDoc(strings.Repeat("a", 10000))
		chunks, err := chunker.Chunk(doc)
		require.NoError(t, err)

		require.Len(t, chunks, 3)
		assert.Equal(t, [2]int{0, 4000}, [2]int{chunks[0].StartPos, chunks[0].EndPos})
		assert.Equal(t, [2]int{3200, 7200}, [2]int{chunks[1].StartPos, chunks[1].EndPos})
		assert.Equal(t, [2]int{6400, 10000}, [2]int{chunks[2].StartPos, chunks[2].EndPos})
		assertCoverage(t, doc, chunks)
	})

	t.Run("Valid call Plan cuts a window at the last sentence in its final share", func(t *testing.T) {
		var b strings.Builder
		for b.Len() < 9000 {
			b.WriteString("This is sentence number ")
			b.WriteString(fmt.Sprint(b.Len()))
			b.WriteString(". ")
		}
		doc := newDoc(b.String())

		chunks, err := chunker.Chunk(doc)
		require.NoError(t, err)
		require.Greater(t, len(chunks), 1)

		first := chunks[0]
		assert.Less(t, first.EndPos, 4000)
		assert.GreaterOrEqual(t, first.EndPos, 2800)
		assert.True(t, strings.HasSuffix(first.Content, ". "), "Expected the cut after a sentence terminator")
		assert.True(t, strings.HasPrefix(doc.Content[first.EndPos:], "This"))
		assertCoverage(t, doc, chunks)
	})

	t.Run("Valid call Plan ignores a sentence outside the final share", func(t *testing.T) {
		content := "Short one. " + strings.Repeat("b", 6000)
		doc := newDoc(content)

		chunks, err := chunker.Chunk(doc)
		require.NoError(t, err)
		assert.Equal(t, 4000, chunks[0].EndPos)
	})

	t.Run("Valid call Plan never splits a multibyte rune", func(t *testing.T) {
		doc := newDoc(strings.Repeat("日本語", 3000))
		chunks, err := chunker.Chunk(doc)
		require.NoError(t, err)
		assertCoverage(t, doc, chunks)
	})
}

func TestChunkDeterminism(t *testing.T) {
	chunker := newTestChunker(t)
	doc := newDoc(strings.Repeat("Alpha beta. Gamma delta. ", 800))

	first, err := chunker.Chunk(doc)
	require.NoError(t, err)
	second, err := chunker.Chunk(doc)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].StartPos, second[i].StartPos)
		assert.Equal(t, first[i].EndPos, second[i].EndPos)
	}
}

func TestCustomEstimator(t *testing.T) {
	config := model.DefaultPipelineConfig().Chunking
	config.MaxTokens = 3
	config.SubChunkTokens = 3

	words := func(text string) int {
		return len(strings.Fields(text))
	}
	chunker, err := NewChunker(config, words)
	require.NoError(t, err)

	doc := newDoc("one two\n\nthree four\n\nfive", model.Heading{Title: "H", Level: 1, Offset: 0})
	chunks, err := chunker.Chunk(doc)
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, "three four\n\nfive", chunks[1].Content)
	for _, c := range chunks {
		assert.LessOrEqual(t, words(c.Content), 3)
	}
	assertCoverage(t, doc, chunks)
}
