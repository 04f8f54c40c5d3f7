package convert

import (
	"testing"

	"github.com/siherrmann/docgrapher/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Run("Default registry has built-in formats", func(t *testing.T) {
		registry := DefaultRegistry()
		assert.True(t, registry.Has(model.FormatText))
		assert.True(t, registry.Has("Markdown"), "Expected format lookup to ignore case")
		assert.Equal(t, []string{model.FormatMarkdown, model.FormatText}, registry.Formats())
	})

	t.Run("Register adds a format", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register("upper", ConverterFunc(func(raw []byte) (*Converted, error) {
			return &Converted{Content: string(raw) + "!"}, nil
		}))

		converted, err := registry.Convert("upper", []byte("hi"))
		require.NoError(t, err)
		assert.Equal(t, "hi!", converted.Content)
	})

	t.Run("Unknown format is an error", func(t *testing.T) {
		_, err := NewRegistry().Convert("pdf", []byte("x"))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown format")
	})
}

func TestNewDocument(t *testing.T) {
	t.Run("Valid call NewDocument", func(t *testing.T) {
		doc, err := NewDocument(DefaultRegistry(), "Guide", "markdown", "guide.md", []byte("# Guide\r\nBody"))
		require.NoError(t, err)
		assert.NotEmpty(t, doc.ID)
		assert.Equal(t, "Guide", doc.Title)
		assert.Equal(t, model.FormatMarkdown, doc.Format)
		assert.Equal(t, "# Guide\nBody", doc.Content)
		require.Len(t, doc.Structure, 1)
		assert.False(t, doc.CreatedAt.IsZero())
	})

	t.Run("Invalid call NewDocument with unknown format", func(t *testing.T) {
		_, err := NewDocument(DefaultRegistry(), "x", "docx", "", []byte("x"))
		assert.Error(t, err)
	})
}

func TestTextConverter(t *testing.T) {
	converted, err := TextConverter{}.Convert([]byte("a\r\nb\rc\xff"))
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc", converted.Content)
	assert.Empty(t, converted.Structure)
}

func TestMarkdownConverter(t *testing.T) {
	t.Run("Headings carry level and offset", func(t *testing.T) {
		content := "Intro\n# Title\ntext\n## Sub ##\nmore\n### Deep\n"
		converted, err := MarkdownConverter{}.Convert([]byte(content))
		require.NoError(t, err)

		require.Len(t, converted.Structure, 3)
		assert.Equal(t, model.Heading{Title: "Title", Level: 1, Offset: 6}, converted.Structure[0])
		assert.Equal(t, model.Heading{Title: "Sub", Level: 2, Offset: 19}, converted.Structure[1])
		assert.Equal(t, "Deep", converted.Structure[2].Title)
		assert.Equal(t, 3, converted.Structure[2].Level)
		assert.Equal(t, "### Deep", content[converted.Structure[2].Offset:converted.Structure[2].Offset+8])
	})

	t.Run("Headings in fenced code are skipped", func(t *testing.T) {
		content := "# Real\n```go\n# not a heading\n```\n~~~\n## also not\n~~~\n## Second\n"
		converted, err := MarkdownConverter{}.Convert([]byte(content))
		require.NoError(t, err)

		require.Len(t, converted.Structure, 2)
		assert.Equal(t, "Real", converted.Structure[0].Title)
		assert.Equal(t, "Second", converted.Structure[1].Title)
	})

	t.Run("Not headings", func(t *testing.T) {
		converted, err := MarkdownConverter{}.Convert([]byte("#hashtag\n####### seven\n    # indented code\n"))
		require.NoError(t, err)
		assert.Empty(t, converted.Structure)
	})

	t.Run("Images become assets", func(t *testing.T) {
		converted, err := MarkdownConverter{}.Convert([]byte("See ![diagram](img/flow.png \"Flow\") here"))
		require.NoError(t, err)
		require.Len(t, converted.Assets, 1)
		assert.Equal(t, model.Asset{Name: "diagram", MediaType: "image", URI: "img/flow.png"}, converted.Assets[0])
	})
}
