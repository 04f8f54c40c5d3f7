package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocumentFromFile(t *testing.T) {
	t.Run("Successfully reads file and creates document", func(t *testing.T) {
		tmpDir := t.TempDir()
		filePath := filepath.Join(tmpDir, "test.txt")
		content := "This is test content"
		err := os.WriteFile(filePath, []byte(content), 0644)
		require.NoError(t, err)

		doc, err := NewDocumentFromFile(filePath, Metadata{"author": "test"})

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, doc.ID, "Document should get an id")
		assert.Equal(t, "test", doc.Title, "Title should be filename without extension")
		assert.Equal(t, filePath, doc.Source, "Source should be file path")
		assert.Equal(t, content, doc.Content, "Content should match file content")
		assert.Equal(t, FormatText, doc.Format)
		assert.Equal(t, "test", doc.Metadata["author"])
		assert.False(t, doc.CreatedAt.IsZero())
	})

	t.Run("Returns error for non-existent file", func(t *testing.T) {
		doc, err := NewDocumentFromFile("/non/existent/file.txt", nil)

		require.Error(t, err)
		assert.Nil(t, doc)
	})

	t.Run("Derives markdown format from extension", func(t *testing.T) {
		tmpDir := t.TempDir()
		filePath := filepath.Join(tmpDir, "guide.MD")
		err := os.WriteFile(filePath, []byte("# Guide"), 0644)
		require.NoError(t, err)

		doc, err := NewDocumentFromFile(filePath, nil)

		require.NoError(t, err)
		assert.Equal(t, "guide", doc.Title)
		assert.Equal(t, FormatMarkdown, doc.Format)
	})

	t.Run("Handles file without extension", func(t *testing.T) {
		tmpDir := t.TempDir()
		filePath := filepath.Join(tmpDir, "README")
		err := os.WriteFile(filePath, []byte("Readme content"), 0644)
		require.NoError(t, err)

		doc, err := NewDocumentFromFile(filePath, nil)

		require.NoError(t, err)
		assert.Equal(t, "README", doc.Title, "Title should be full filename when no extension")
		assert.Equal(t, FormatText, doc.Format)
	})

	t.Run("Handles file with multiple dots in name", func(t *testing.T) {
		tmpDir := t.TempDir()
		filePath := filepath.Join(tmpDir, "my.file.name.txt")
		err := os.WriteFile(filePath, []byte("Content with dots"), 0644)
		require.NoError(t, err)

		doc, err := NewDocumentFromFile(filePath, nil)

		require.NoError(t, err)
		assert.Equal(t, "my.file.name", doc.Title, "Title should remove only last extension")
	})
}

func TestDocumentHeadings(t *testing.T) {
	t.Run("Sorts headings and drops out of range offsets", func(t *testing.T) {
		doc := &Document{
			Content: "0123456789",
			Structure: []Heading{
				{Title: "B", Level: 1, Offset: 5},
				{Title: "A", Level: 1, Offset: 0},
				{Title: "Past end", Level: 2, Offset: 10},
				{Title: "Negative", Level: 2, Offset: -1},
			},
		}

		headings := doc.Headings()

		require.Len(t, headings, 2)
		assert.Equal(t, "A", headings[0].Title)
		assert.Equal(t, "B", headings[1].Title)
		assert.Equal(t, "B", doc.Structure[0].Title, "Structure should not be reordered in place")
	})

	t.Run("Empty structure yields no headings", func(t *testing.T) {
		doc := &Document{Content: "text"}

		assert.Empty(t, doc.Headings())
	})
}
