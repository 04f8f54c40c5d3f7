package model

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	FormatText     = "text"
	FormatMarkdown = "markdown"
)

// Heading is one entry of a document's structure tree.
// Offset is the byte offset of the heading in the normalized content.
type Heading struct {
	Title  string `json:"title"`
	Level  int    `json:"level"`
	Offset int    `json:"offset"`
}

// Asset is a non-text artifact extracted during conversion (image, attachment, ...).
type Asset struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type,omitempty"`
	URI       string `json:"uri,omitempty"`
}

// Document represents a normalized source document.
// It is never mutated once handed to the pipeline, re-ingestion creates a new Document.
type Document struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Format    string    `json:"format"`
	Source    string    `json:"source,omitempty"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	Structure []Heading `json:"structure,omitempty"`
	Assets    []Asset   `json:"assets,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewDocumentFromFile reads a file and creates a Document with the file content
// The title defaults to the filename, the source to the file path and the format
// is derived from the file extension.
func NewDocumentFromFile(filePath string, metadata Metadata) (*Document, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	// Get filename without extension for default title
	filename := filepath.Base(filePath)
	title := filename[:len(filename)-len(filepath.Ext(filename))]
	if title == "" {
		title = filename
	}

	return &Document{
		ID:        uuid.New(),
		Title:     title,
		Source:    filePath,
		Content:   string(content),
		Format:    FormatFromPath(filePath),
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// FormatFromPath maps a file extension to a format tag. Unknown extensions are plain text.
func FormatFromPath(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".md", ".markdown", ".mdown":
		return FormatMarkdown
	default:
		return FormatText
	}
}

// Headings returns the headings usable as chunk boundaries: inside the content
// and sorted by offset. The document itself is not modified.
func (d *Document) Headings() []Heading {
	headings := make([]Heading, 0, len(d.Structure))
	for _, h := range d.Structure {
		if h.Offset < 0 || h.Offset >= len(d.Content) {
			continue
		}
		headings = append(headings, h)
	}
	sort.SliceStable(headings, func(i, j int) bool {
		return headings[i].Offset < headings[j].Offset
	})
	return headings
}
