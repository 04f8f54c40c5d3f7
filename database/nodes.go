package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/docgrapher/helper"
	"github.com/siherrmann/docgrapher/model"
	loadSql "github.com/siherrmann/docgrapher/sql"
)

// NodesDBHandlerFunctions defines the interface for Nodes database operations.
type NodesDBHandlerFunctions interface {
	UpsertNode(ctx context.Context, node *model.Node) (*model.Node, error)
	SelectNode(ctx context.Context, id uuid.UUID) (*model.Node, error)
	SelectNodeByExternalID(ctx context.Context, kind model.Category, externalID string) (*model.Node, error)
	SelectNodesByName(ctx context.Context, kinds []model.Category, names []string) ([]*model.Node, error)
	SelectNodesBySimilarity(ctx context.Context, embedding []float32, kinds []model.Category, limit int, threshold float64) ([]*model.Node, error)
	DeleteNodesByDocument(ctx context.Context, documentID uuid.UUID) (int, error)
	SelectDocumentIDs(ctx context.Context) ([]uuid.UUID, error)
}

// NodesDBHandler handles graph node database operations
type NodesDBHandler struct {
	db *helper.Database
}

// NewNodesDBHandler creates a new nodes database handler.
// embeddingDim is the dimension of node embeddings used for similarity search.
// If force is true, it will reload the SQL functions even if they already exist.
func NewNodesDBHandler(db *helper.Database, embeddingDim int, force bool) (*NodesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	nodesDbHandler := &NodesDBHandler{
		db: db,
	}

	err := loadSql.LoadNodesSql(nodesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load nodes sql", err)
	}

	err = nodesDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized NodesDBHandler")

	return nodesDbHandler, nil
}

// CreateTable creates the 'nodes' table in the database.
// If the table already exists, it does not create it again.
func (h *NodesDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_nodes($1);`, embeddingDim)
	if err != nil {
		return helper.NewError("init nodes", err)
	}

	h.db.Logger.Info("Checked/created table nodes")

	return nil
}

// UpsertNode get-or-creates a node and returns the stored version.
// Document nodes are upserted by id, other kinds by (kind, normalized name).
func (h *NodesDBHandler) UpsertNode(ctx context.Context, node *model.Node) (*model.Node, error) {
	id := node.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	var embedding *pgvector.Vector
	if len(node.Embedding) > 0 {
		v := pgvector.NewVector(node.Embedding)
		embedding = &v
	}

	var externalID *string
	if node.ExternalID != "" {
		externalID = &node.ExternalID
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM upsert_node($1, $2, $3, $4, $5, $6, $7, $8)`,
		id,
		string(node.Kind),
		node.Name,
		model.NormalizeName(node.Name),
		externalID,
		node.DocumentID,
		embedding,
		node.Metadata,
	)

	stored, err := scanNode(row, false)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return stored, nil
}

// SelectNode retrieves a node by id
func (h *NodesDBHandler) SelectNode(ctx context.Context, id uuid.UUID) (*model.Node, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_node($1)`,
		id,
	)

	node, err := scanNode(row, false)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("select node", helper.ErrNotFound)
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return node, nil
}

// SelectNodeByExternalID retrieves a knowledge base node by its external id (e.g. "123" for Feature #123).
func (h *NodesDBHandler) SelectNodeByExternalID(ctx context.Context, kind model.Category, externalID string) (*model.Node, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_node_by_external_id($1, $2)`,
		string(kind),
		externalID,
	)

	node, err := scanNode(row, false)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewError("select node by external id", helper.ErrNotFound)
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return node, nil
}

// SelectNodesByName retrieves nodes of the given kinds whose normalized name matches one of names.
func (h *NodesDBHandler) SelectNodesByName(ctx context.Context, kinds []model.Category, names []string) ([]*model.Node, error) {
	normalized := make([]string, 0, len(names))
	for _, n := range names {
		normalized = append(normalized, model.NormalizeName(n))
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_nodes_by_name($1, $2)`,
		pq.Array(categoryStrings(kinds)),
		pq.Array(normalized),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}

	return scanNodes(rows, false)
}

// SelectNodesBySimilarity performs vector similarity search over nodes carrying an embedding.
func (h *NodesDBHandler) SelectNodesBySimilarity(ctx context.Context, embedding []float32, kinds []model.Category, limit int, threshold float64) ([]*model.Node, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_nodes_by_similarity($1, $2, $3, $4)`,
		pgvector.NewVector(embedding),
		pq.Array(categoryStrings(kinds)),
		limit,
		threshold,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}

	return scanNodes(rows, true)
}

// DeleteNodesByDocument deletes the nodes owned by a document. Edges touching them cascade.
func (h *NodesDBHandler) DeleteNodesByDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	var deleted int
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT delete_nodes_by_document($1)`,
		documentID,
	).Scan(&deleted)
	if err != nil {
		return 0, helper.NewError("delete nodes", err)
	}
	return deleted, nil
}

// SelectDocumentIDs returns the distinct ids of documents owning nodes.
func (h *NodesDBHandler) SelectDocumentIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_node_document_ids()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	return scanIDs(rows)
}

func scanNode(row rowScanner, withSimilarity bool) (*model.Node, error) {
	node := &model.Node{}
	var kind string
	var externalID sql.NullString
	var embedding *pgvector.Vector

	dest := []any{
		&node.ID,
		&kind,
		&node.Name,
		&externalID,
		&node.DocumentID,
		&embedding,
		&node.Metadata,
		&node.CreatedAt,
	}
	if withSimilarity {
		dest = append(dest, &node.Similarity)
	}

	err := row.Scan(dest...)
	if err != nil {
		return nil, err
	}

	node.Kind = model.Category(kind)
	node.ExternalID = externalID.String
	if embedding != nil {
		node.Embedding = embedding.Slice()
	}

	return node, nil
}

func scanNodes(rows *sql.Rows, withSimilarity bool) ([]*model.Node, error) {
	defer rows.Close()

	nodes := []*model.Node{}
	for rows.Next() {
		node, err := scanNode(rows, withSimilarity)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		nodes = append(nodes, node)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return nodes, nil
}

func categoryStrings(categories []model.Category) []string {
	s := make([]string, len(categories))
	for i, c := range categories {
		s[i] = string(c)
	}
	return s
}
