package model

import (
	"fmt"

	"github.com/google/uuid"
)

// IndexType is the pgvector index method of the vector store.
type IndexType string

const (
	IndexHNSW    IndexType = "hnsw"
	IndexIVFFlat IndexType = "ivfflat"
)

// VectorIndexConfig describes the similarity index of the vector store.
// M and EFConstruction apply to HNSW, Lists to IVFFlat. Zero values take the pgvector defaults.
type VectorIndexConfig struct {
	Type           IndexType `yaml:"type"`
	M              int       `yaml:"m"`
	EFConstruction int       `yaml:"ef_construction"`
	Lists          int       `yaml:"lists"`
}

// Validate rejects unknown index types and negative parameters.
func (c VectorIndexConfig) Validate() error {
	if c.Type != IndexHNSW && c.Type != IndexIVFFlat {
		return fmt.Errorf("%w: unsupported index type %q (use %q or %q)", ErrInvalidConfig, c.Type, IndexHNSW, IndexIVFFlat)
	}
	if c.M < 0 || c.EFConstruction < 0 || c.Lists < 0 {
		return fmt.Errorf("%w: vector index parameters must not be negative", ErrInvalidConfig)
	}
	return nil
}

// WithDefaults fills zero parameters with the pgvector defaults.
func (c VectorIndexConfig) WithDefaults() VectorIndexConfig {
	if c.M == 0 {
		c.M = 16
	}
	if c.EFConstruction == 0 {
		c.EFConstruction = 64
	}
	if c.Lists == 0 {
		c.Lists = 100
	}
	return c
}

// VectorEntry is one row of the vector store, id is VectorID(DocumentID, ChunkID).
type VectorEntry struct {
	ID         string    `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	ChunkID    uuid.UUID `json:"chunk_id"`
	Vector     []float32 `json:"vector"`
	Metadata   Metadata  `json:"metadata,omitempty"`
}

// VectorHit is a similarity query result.
type VectorHit struct {
	ID         string    `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	ChunkID    uuid.UUID `json:"chunk_id"`
	Metadata   Metadata  `json:"metadata,omitempty"`
	Similarity float64   `json:"similarity"`
}

// NewVectorEntry builds the vector entry of an embedded chunk.
// Metadata carries title, a content preview, the document format and the chunk index.
func NewVectorEntry(doc *Document, chunk *Chunk) *VectorEntry {
	var vector []float32
	if chunk.Embedding != nil {
		vector = chunk.Embedding.Vector
	}
	return &VectorEntry{
		ID:         VectorID(doc.ID, chunk.ID),
		DocumentID: doc.ID,
		ChunkID:    chunk.ID,
		Vector:     vector,
		Metadata: Metadata{
			"title":       chunk.Title,
			"document":    doc.Title,
			"preview":     chunk.Preview(200),
			"format":      doc.Format,
			"chunk_index": chunk.Index,
		},
	}
}
