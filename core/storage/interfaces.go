package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/siherrmann/docgrapher/model"
)

// MetadataStore is the transactional store holding document records.
// A document is committed if and only if it has a record here.
type MetadataStore interface {
	Begin(ctx context.Context) (MetadataTx, error)
	SelectRecord(ctx context.Context, documentID uuid.UUID) (*model.DocumentRecord, error)
	FilterCommitted(ctx context.Context, documentIDs []uuid.UUID) ([]uuid.UUID, error)
	ListDocumentIDs(ctx context.Context) ([]uuid.UUID, error)
	DeleteRecord(ctx context.Context, documentID uuid.UUID) (bool, error)
}

// MetadataTx is an open metadata transaction.
type MetadataTx interface {
	UpsertRecord(ctx context.Context, record *model.DocumentRecord) error
	Commit() error
	Rollback() error
}

// ContentStore holds full document content and chunk collections.
type ContentStore interface {
	UpsertContent(ctx context.Context, doc *model.Document) error
	UpsertChunks(ctx context.Context, documentID uuid.UUID, chunks []*model.Chunk) error
	SelectContent(ctx context.Context, documentID uuid.UUID) (*model.Document, error)
	SelectChunks(ctx context.Context, documentID uuid.UUID) ([]*model.Chunk, error)
	DeleteDocument(ctx context.Context, documentID uuid.UUID) (int, error)
	ListDocumentIDs(ctx context.Context) ([]uuid.UUID, error)
}

// GraphStore holds the knowledge graph.
// UpsertNode get-or-creates non-document nodes by (kind, normalized name) and
// returns the stored node, whose id may differ from the given one.
// DeleteEdgesByDocument removes the edges written by a document and keeps its nodes.
type GraphStore interface {
	UpsertNode(ctx context.Context, node *model.Node) (*model.Node, error)
	UpsertEdge(ctx context.Context, edge *model.Edge) error
	DeleteEdgesByDocument(ctx context.Context, documentID uuid.UUID) (int, error)
	DeleteDocument(ctx context.Context, documentID uuid.UUID) (int, error)
	ListDocumentIDs(ctx context.Context) ([]uuid.UUID, error)
}

// VectorStore holds one vector per chunk.
type VectorStore interface {
	UpsertVectors(ctx context.Context, entries []*model.VectorEntry) error
	Query(ctx context.Context, vector []float32, topK int, minScore float64, exclude *uuid.UUID) ([]*model.VectorHit, error)
	DeleteDocument(ctx context.Context, documentID uuid.UUID) (int, error)
	ListDocumentIDs(ctx context.Context) ([]uuid.UUID, error)
}
