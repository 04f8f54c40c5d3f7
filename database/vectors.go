package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/docgrapher/helper"
	"github.com/siherrmann/docgrapher/model"
	loadSql "github.com/siherrmann/docgrapher/sql"
)

// VectorsDBHandlerFunctions defines the interface for vector store database operations.
type VectorsDBHandlerFunctions interface {
	UpsertVectors(ctx context.Context, entries []*model.VectorEntry) error
	Query(ctx context.Context, vector []float32, topK int, minScore float64, exclude *uuid.UUID) ([]*model.VectorHit, error)
	SelectVectorIDs(ctx context.Context, documentID uuid.UUID) ([]string, error)
	DeleteDocument(ctx context.Context, documentID uuid.UUID) (int, error)
	ListDocumentIDs(ctx context.Context) ([]uuid.UUID, error)
	ChangeIndex(ctx context.Context, config model.VectorIndexConfig) error
	ChangeIndexType(ctx context.Context, indexType model.IndexType) error
}

// VectorsDBHandler handles the pgvector backed vector store.
type VectorsDBHandler struct {
	db        *helper.Database
	dimension int
}

// NewVectorsDBHandler creates a new vectors database handler for vectors of embeddingDim.
// If force is true, it will reload the SQL functions even if they already exist.
func NewVectorsDBHandler(db *helper.Database, embeddingDim int, force bool) (*VectorsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim))
	}

	vectorsDbHandler := &VectorsDBHandler{
		db:        db,
		dimension: embeddingDim,
	}

	err := loadSql.LoadVectorsSql(vectorsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load vectors sql", err)
	}

	err = vectorsDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized VectorsDBHandler", "dimension", embeddingDim)

	return vectorsDbHandler, nil
}

// CreateTable creates the 'vectors' table in the database.
// If the table already exists, it does not create it again.
func (h *VectorsDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_vectors($1);`, embeddingDim)
	if err != nil {
		return helper.NewError("init vectors", err)
	}

	h.db.Logger.Info("Checked/created table vectors")

	return nil
}

// UpsertVectors writes all entries in one transaction, replacing entries with the same id.
func (h *VectorsDBHandler) UpsertVectors(ctx context.Context, entries []*model.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}

	for _, e := range entries {
		if len(e.Vector) != h.dimension {
			return helper.NewError("vector dimension validation", fmt.Errorf("vector %s has dimension %d, expected %d", e.ID, len(e.Vector), h.dimension))
		}
	}

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		_, err := tx.ExecContext(
			ctx,
			`SELECT * FROM upsert_vector($1, $2, $3, $4, $5)`,
			e.ID,
			e.DocumentID,
			e.ChunkID,
			pgvector.NewVector(e.Vector),
			e.Metadata,
		)
		if err != nil {
			return helper.NewError("upsert vector", err)
		}
	}

	return helper.NewError("commit", tx.Commit())
}

// Query returns the topK entries with cosine similarity >= minScore, best first.
// Entries of the exclude document are skipped.
func (h *VectorsDBHandler) Query(ctx context.Context, vector []float32, topK int, minScore float64, exclude *uuid.UUID) ([]*model.VectorHit, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_vectors_by_similarity($1, $2, $3, $4)`,
		pgvector.NewVector(vector),
		topK,
		minScore,
		exclude,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	hits := []*model.VectorHit{}
	for rows.Next() {
		hit := &model.VectorHit{}
		err := rows.Scan(
			&hit.ID,
			&hit.DocumentID,
			&hit.ChunkID,
			&hit.Metadata,
			&hit.Similarity,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		hits = append(hits, hit)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return hits, nil
}

// SelectVectorIDs returns the ids of a document's vector entries, sorted.
func (h *VectorsDBHandler) SelectVectorIDs(ctx context.Context, documentID uuid.UUID) ([]string, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_vector_ids_by_document($1)`,
		documentID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		err := rows.Scan(&id)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		ids = append(ids, id)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return ids, nil
}

// DeleteDocument deletes all vector entries of a document.
func (h *VectorsDBHandler) DeleteDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	var deleted int
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT delete_vectors_by_document($1)`,
		documentID,
	).Scan(&deleted)
	if err != nil {
		return 0, helper.NewError("delete vectors", err)
	}
	return deleted, nil
}

// ListDocumentIDs returns the distinct document ids present in the vector store.
func (h *VectorsDBHandler) ListDocumentIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_vector_document_ids()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	return scanIDs(rows)
}
