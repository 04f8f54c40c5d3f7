package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/siherrmann/docgrapher/helper"
	"github.com/siherrmann/docgrapher/model"
)

// Bundle is the complete output of one document run.
// Relationships are the accepted ones, inverses are taken from Relationship.Inverse.
type Bundle struct {
	Document      *model.Document
	Chunks        []*model.Chunk
	Analysis      *model.Analysis
	Relationships []*model.Relationship
}

// CommitResult describes a commit attempt.
// Orphaned is set if side store writes happened but the metadata commit failed.
type CommitResult struct {
	DocumentID uuid.UUID
	Record     *model.DocumentRecord
	Nodes      int
	Edges      int
	Vectors    int
	Committed  bool
	Orphaned   bool
}

// DeleteResult describes a compensating delete.
type DeleteResult struct {
	DocumentID uuid.UUID
	Existed    bool
	Removed    map[StoreName]int
}

// Orchestrator commits one document across the four stores as one logical unit.
// The metadata commit is the commit point: side stores are written before it,
// readers join against the metadata store.
type Orchestrator struct {
	metadata MetadataStore
	content  ContentStore
	graph    GraphStore
	vectors  VectorStore
	locks    *KeyedMutex
	logger   *slog.Logger
}

// NewOrchestrator creates an orchestrator over the given stores.
func NewOrchestrator(metadata MetadataStore, content ContentStore, graph GraphStore, vectors VectorStore, logger *slog.Logger) (*Orchestrator, error) {
	if metadata == nil || content == nil || graph == nil || vectors == nil {
		return nil, fmt.Errorf("%w: metadata, content, graph and vector stores must be set", ErrStoreRequired)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		metadata: metadata,
		content:  content,
		graph:    graph,
		vectors:  vectors,
		locks:    NewKeyedMutex(),
		logger:   logger.With("component", "orchestrator"),
	}, nil
}

// Commit writes the bundle: metadata record inside an open transaction, then
// content and chunks, graph nodes and edges, vectors, and finally commits the transaction.
// Edges and vectors are replaced per document, so a retry after a failed attempt
// leaves only what the retry wrote. Edges are owned by the committing document,
// so clearing them never touches edges another document wrote.
// A side store failure rolls back the transaction so no record exists.
// A failed commit leaves the side writes in place and flags the result Orphaned.
// Commits of the same document id are serialized.
func (o *Orchestrator) Commit(ctx context.Context, bundle *Bundle) (*CommitResult, error) {
	if bundle == nil || bundle.Document == nil {
		return nil, helper.NewError("commit", fmt.Errorf("bundle without document"))
	}
	doc := bundle.Document

	for _, chunk := range bundle.Chunks {
		if chunk.Failed || chunk.Embedding == nil {
			return nil, helper.NewError("commit", fmt.Errorf("%w: chunk %d", ErrFailedChunks, chunk.Index))
		}
	}

	unlock := o.locks.Lock(doc.ID)
	defer unlock()

	result := &CommitResult{DocumentID: doc.ID}

	tx, err := o.metadata.Begin(ctx)
	if err != nil {
		return result, newStoreError(StoreMetadata, "begin", err)
	}

	abort := func(err error) (*CommitResult, error) {
		rollbackErr := tx.Rollback()
		if rollbackErr != nil {
			o.logger.Error("Rollback failed", "document_id", doc.ID, "error", rollbackErr)
		}
		o.logger.Warn("Commit aborted", "document_id", doc.ID, "error", err)
		return result, err
	}

	record := model.NewDocumentRecord(doc, bundle.Chunks, bundle.Relationships)
	err = tx.UpsertRecord(ctx, record)
	if err != nil {
		return abort(newStoreError(StoreMetadata, "upsert record", err))
	}

	err = o.writeContent(ctx, bundle)
	if err != nil {
		return abort(err)
	}

	result.Nodes, result.Edges, err = o.writeGraph(ctx, bundle)
	if err != nil {
		return abort(err)
	}

	result.Vectors, err = o.writeVectors(ctx, bundle)
	if err != nil {
		return abort(err)
	}

	if err := ctx.Err(); err != nil {
		result.Orphaned = true
		return abort(newStoreError(StoreMetadata, "commit", err))
	}

	err = tx.Commit()
	if err != nil {
		result.Orphaned = true
		return abort(newStoreError(StoreMetadata, "commit", err))
	}

	result.Record = record
	result.Committed = true

	o.logger.Info("Committed document",
		"document_id", doc.ID,
		"chunks", len(bundle.Chunks),
		"nodes", result.Nodes,
		"edges", result.Edges,
		"vectors", result.Vectors,
	)

	return result, nil
}

func (o *Orchestrator) writeContent(ctx context.Context, bundle *Bundle) error {
	err := o.content.UpsertContent(ctx, bundle.Document)
	if err != nil {
		return newStoreError(StoreContent, "upsert content", err)
	}

	err = o.content.UpsertChunks(ctx, bundle.Document.ID, bundle.Chunks)
	if err != nil {
		return newStoreError(StoreContent, "upsert chunks", err)
	}

	return nil
}

func (o *Orchestrator) writeGraph(ctx context.Context, bundle *Bundle) (int, int, error) {
	doc := bundle.Document
	nodes, edges := 0, 0

	documentID := doc.ID
	documentNode := &model.Node{
		ID:         doc.ID,
		Kind:       model.CategoryDocument,
		Name:       doc.Title,
		DocumentID: &documentID,
		Embedding:  firstEmbedding(bundle.Chunks),
		Metadata: model.Metadata{
			"format": doc.Format,
			"source": doc.Source,
		},
	}
	_, err := o.graph.UpsertNode(ctx, documentNode)
	if err != nil {
		return nodes, edges, newStoreError(StoreGraph, "upsert document node", err)
	}
	nodes++

	_, err = o.graph.DeleteEdgesByDocument(ctx, doc.ID)
	if err != nil {
		return nodes, edges, newStoreError(StoreGraph, "clear edges", err)
	}

	for _, entity := range bundle.Analysis.All() {
		kind, edgeType := model.CategoryEntity, model.RelationshipMentionsEntity
		if entity.Kind == model.EntityKindConcept {
			kind, edgeType = model.CategoryConcept, model.RelationshipContainsConcept
		}

		stored, err := o.graph.UpsertNode(ctx, &model.Node{
			Kind:     kind,
			Name:     entity.Name,
			Metadata: model.EntityNodeMetadata(entity),
		})
		if err != nil {
			return nodes, edges, newStoreError(StoreGraph, "upsert "+string(kind)+" node", err)
		}
		nodes++

		err = o.graph.UpsertEdge(ctx, &model.Edge{
			SourceID:   doc.ID,
			TargetID:   stored.ID,
			Type:       edgeType,
			Category:   kind,
			Confidence: 1.0,
			DocumentID: doc.ID,
			Metadata: model.Metadata{
				"occurrences": len(entity.Occurrences),
			},
		})
		if err != nil {
			return nodes, edges, newStoreError(StoreGraph, "upsert "+string(edgeType)+" edge", err)
		}
		edges++
	}

	for _, r := range bundle.Relationships {
		err := o.graph.UpsertEdge(ctx, model.EdgeFromRelationship(r, doc.ID))
		if err != nil {
			return nodes, edges, newStoreError(StoreGraph, "upsert relationship edge", err)
		}
		edges++

		if r.Inverse != nil {
			err = o.graph.UpsertEdge(ctx, model.EdgeFromRelationship(r.Inverse, doc.ID))
			if err != nil {
				return nodes, edges, newStoreError(StoreGraph, "upsert inverse edge", err)
			}
			edges++
		}
	}

	return nodes, edges, nil
}

func (o *Orchestrator) writeVectors(ctx context.Context, bundle *Bundle) (int, error) {
	entries := []*model.VectorEntry{}
	for _, chunk := range bundle.Chunks {
		entries = append(entries, model.NewVectorEntry(bundle.Document, chunk))
	}

	_, err := o.vectors.DeleteDocument(ctx, bundle.Document.ID)
	if err != nil {
		return 0, newStoreError(StoreVector, "clear vectors", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	err = o.vectors.UpsertVectors(ctx, entries)
	if err != nil {
		return 0, newStoreError(StoreVector, "upsert vectors", err)
	}

	return len(entries), nil
}

func firstEmbedding(chunks []*model.Chunk) []float32 {
	for _, c := range chunks {
		if c.Embedding != nil && !c.Failed {
			return c.Embedding.Vector
		}
	}
	return nil
}

// Delete removes a document from all stores, metadata first so readers stop
// seeing it immediately. All stores are attempted even if one fails.
func (o *Orchestrator) Delete(ctx context.Context, documentID uuid.UUID) (*DeleteResult, error) {
	unlock := o.locks.Lock(documentID)
	defer unlock()

	result := &DeleteResult{
		DocumentID: documentID,
		Removed:    map[StoreName]int{},
	}

	existed, err := o.metadata.DeleteRecord(ctx, documentID)
	if err != nil {
		return result, newStoreError(StoreMetadata, "delete", err)
	}
	result.Existed = existed
	if existed {
		result.Removed[StoreMetadata] = 1
	}

	errs := []error{}
	for _, store := range o.sideStores() {
		removed, err := store.delete(ctx, documentID)
		if err != nil {
			errs = append(errs, newStoreError(store.name, "delete", err))
			continue
		}
		result.Removed[store.name] = removed
	}

	o.logger.Info("Deleted document", "document_id", documentID, "existed", existed, "removed", result.Removed)

	return result, errors.Join(errs...)
}

// Record returns the committed record of a document or helper.ErrNotFound.
func (o *Orchestrator) Record(ctx context.Context, documentID uuid.UUID) (*model.DocumentRecord, error) {
	record, err := o.metadata.SelectRecord(ctx, documentID)
	if err != nil {
		return nil, newStoreError(StoreMetadata, "select record", err)
	}
	return record, nil
}

// Chunks returns the chunks of a committed document in chunk order.
// Uncommitted documents yield helper.ErrNotFound even if the content store holds chunks.
func (o *Orchestrator) Chunks(ctx context.Context, documentID uuid.UUID) ([]*model.Chunk, error) {
	_, err := o.Record(ctx, documentID)
	if err != nil {
		return nil, err
	}

	chunks, err := o.content.SelectChunks(ctx, documentID)
	if err != nil {
		return nil, newStoreError(StoreContent, "select chunks", err)
	}
	return chunks, nil
}

// Content returns the full content of a committed document.
func (o *Orchestrator) Content(ctx context.Context, documentID uuid.UUID) (*model.Document, error) {
	_, err := o.Record(ctx, documentID)
	if err != nil {
		return nil, err
	}

	doc, err := o.content.SelectContent(ctx, documentID)
	if err != nil {
		return nil, newStoreError(StoreContent, "select content", err)
	}
	return doc, nil
}

type sideStore struct {
	name   StoreName
	list   func(ctx context.Context) ([]uuid.UUID, error)
	delete func(ctx context.Context, documentID uuid.UUID) (int, error)
}

func (o *Orchestrator) sideStores() []sideStore {
	return []sideStore{
		{name: StoreContent, list: o.content.ListDocumentIDs, delete: o.content.DeleteDocument},
		{name: StoreGraph, list: o.graph.ListDocumentIDs, delete: o.graph.DeleteDocument},
		{name: StoreVector, list: o.vectors.ListDocumentIDs, delete: o.vectors.DeleteDocument},
	}
}
