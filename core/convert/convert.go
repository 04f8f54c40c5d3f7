package convert

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/docgrapher/model"
)

// Converted is the normalized output of a converter.
type Converted struct {
	Content   string
	Structure []model.Heading
	Assets    []model.Asset
}

// Converter turns raw bytes of one format into normalized content.
type Converter interface {
	Convert(raw []byte) (*Converted, error)
}

// ConverterFunc adapts a function to the Converter interface.
type ConverterFunc func(raw []byte) (*Converted, error)

// Convert calls f(raw).
func (f ConverterFunc) Convert(raw []byte) (*Converted, error) {
	return f(raw)
}

// Registry maps format tags to their converters.
// Adding a format is a Register call.
type Registry struct {
	converters map[string]Converter
}

// NewRegistry creates an empty converter registry.
func NewRegistry() *Registry {
	return &Registry{
		converters: make(map[string]Converter),
	}
}

// DefaultRegistry creates a registry with the built-in text and markdown converters.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(model.FormatText, TextConverter{})
	r.Register(model.FormatMarkdown, MarkdownConverter{})
	return r
}

// Register adds or replaces the converter of a format.
func (r *Registry) Register(format string, converter Converter) {
	r.converters[strings.ToLower(format)] = converter
}

// Has returns true if a converter is registered for format.
func (r *Registry) Has(format string) bool {
	_, ok := r.converters[strings.ToLower(format)]
	return ok
}

// Formats returns all registered formats, sorted.
func (r *Registry) Formats() []string {
	formats := make([]string, 0, len(r.converters))
	for format := range r.converters {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

// Convert converts raw with the converter registered for format.
// Returns an error if the format is not registered.
func (r *Registry) Convert(format string, raw []byte) (*Converted, error) {
	converter, ok := r.converters[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("unknown format: %s", format)
	}
	return converter.Convert(raw)
}

// NewDocument converts raw and builds a new document from the result.
func NewDocument(registry *Registry, title string, format string, source string, raw []byte) (*model.Document, error) {
	converted, err := registry.Convert(format, raw)
	if err != nil {
		return nil, err
	}

	return &model.Document{
		ID:        uuid.New(),
		Title:     title,
		Content:   converted.Content,
		Format:    strings.ToLower(format),
		Source:    source,
		Metadata:  model.Metadata{},
		Structure: converted.Structure,
		Assets:    converted.Assets,
		CreatedAt: time.Now().UTC(),
	}, nil
}
