package model

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewDocumentRecord(t *testing.T) {
	t.Run("Valid call NewDocumentRecord computes derived metadata", func(t *testing.T) {
		doc := &Document{
			ID:       uuid.New(),
			Title:    "Guide",
			Format:   FormatMarkdown,
			Content:  strings.Repeat("word ", 450),
			Metadata: Metadata{"team": "docs"},
		}
		chunks := []*Chunk{
			{Embedding: &Embedding{Dimension: 3}},
			{Embedding: &Embedding{Dimension: 3}},
		}

		record := NewDocumentRecord(doc, chunks, nil)

		assert.Equal(t, doc.ID, record.DocumentID, "Expected document id")
		assert.Equal(t, 450, record.WordCount, "Expected word count")
		assert.Equal(t, 3, record.ReadingTime, "Expected 450 words at 200 wpm to round up to 3 minutes")
		assert.Len(t, record.Checksum, 64, "Expected hex sha256 checksum")
		assert.Equal(t, 2, record.ChunkCount, "Expected chunk count")
		assert.Equal(t, RecordStatusProcessed, record.Status, "Expected processed status")
		assert.Equal(t, "docs", record.Metadata["team"], "Expected document metadata")
	})

	t.Run("Valid call NewDocumentRecord checksum depends on content only", func(t *testing.T) {
		a := NewDocumentRecord(&Document{ID: uuid.New(), Content: "same"}, nil, nil)
		b := NewDocumentRecord(&Document{ID: uuid.New(), Title: "Other", Content: "same"}, nil, nil)

		assert.Equal(t, a.Checksum, b.Checksum, "Expected equal checksums for equal content")
	})

	t.Run("Valid call NewDocumentRecord for an empty document", func(t *testing.T) {
		record := NewDocumentRecord(&Document{ID: uuid.New()}, nil, nil)

		assert.Equal(t, 0, record.WordCount, "Expected no words")
		assert.Equal(t, 0, record.ReadingTime, "Expected no reading time")
		assert.Equal(t, 0.0, record.QualityScore, "Expected zero quality")
	})
}

func TestQualityScore(t *testing.T) {
	t.Run("Valid call QualityScore saturates at one", func(t *testing.T) {
		doc := &Document{
			Content:   "# Title\n" + strings.Repeat("text ", 1000),
			Structure: []Heading{{Title: "Title", Level: 1, Offset: 0}},
		}

		score := QualityScore(doc, []*Relationship{{}, {}, {}, {}})
		assert.Equal(t, 1.0, score, "Expected every signal to saturate")
	})

	t.Run("Valid call QualityScore rewards headings and relationships", func(t *testing.T) {
		plain := &Document{Content: strings.Repeat("text ", 300)}
		structured := &Document{
			Content:   "# Title\n" + strings.Repeat("text ", 300),
			Structure: []Heading{{Title: "Title", Level: 1, Offset: 0}},
		}

		assert.Greater(t, QualityScore(structured, nil), QualityScore(plain, nil), "Expected headings to raise the score")
		assert.Greater(t, QualityScore(plain, []*Relationship{{}}), QualityScore(plain, nil), "Expected relationships to raise the score")
		assert.Equal(t, 0.5, QualityScore(plain, nil), "Expected full length and half structure")
	})
}
