package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/siherrmann/docgrapher/helper"
	"github.com/siherrmann/docgrapher/model"
	loadSql "github.com/siherrmann/docgrapher/sql"
)

// EdgesDBHandlerFunctions defines the interface for Edges database operations.
type EdgesDBHandlerFunctions interface {
	UpsertEdge(ctx context.Context, edge *model.Edge) error
	SelectEdgesFromNode(ctx context.Context, nodeID uuid.UUID, edgeTypes []model.RelationshipType) ([]*model.Edge, error)
	SelectEdgesConnectedToNode(ctx context.Context, nodeID uuid.UUID, edgeTypes []model.RelationshipType) ([]*model.EdgeConnection, error)
	DeleteEdgesByDocument(ctx context.Context, documentID uuid.UUID) (int, error)
	SelectDocumentIDs(ctx context.Context) ([]uuid.UUID, error)
}

// EdgesDBHandler handles edge-related database operations
type EdgesDBHandler struct {
	db *helper.Database
}

// NewEdgesDBHandler creates a new edges database handler.
// The nodes table has to exist, edges reference it.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEdgesDBHandler(db *helper.Database, force bool) (*EdgesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	edgesDbHandler := &EdgesDBHandler{
		db: db,
	}

	err := loadSql.LoadEdgesSql(edgesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load edges sql", err)
	}

	err = edgesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EdgesDBHandler")

	return edgesDbHandler, nil
}

// CreateTable creates the 'edges' table in the database.
// If the table already exists, it does not create it again.
func (h *EdgesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_edges();`)
	if err != nil {
		return helper.NewError("init edges", err)
	}

	h.db.Logger.Info("Checked/created table edges")

	return nil
}

// UpsertEdge inserts an edge or updates the existing edge with the same
// (source, target, type, document). Edges of other documents are never touched.
func (h *EdgesDBHandler) UpsertEdge(ctx context.Context, edge *model.Edge) error {
	if edge.ID == uuid.Nil {
		edge.ID = model.EdgeID(edge.DocumentID, edge.SourceID, edge.TargetID, edge.Type)
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM upsert_edge($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		edge.ID,
		edge.SourceID,
		edge.TargetID,
		string(edge.Type),
		string(edge.Category),
		edge.Confidence,
		edge.Description,
		edge.Bidirectional,
		edge.DocumentID,
		edge.Metadata,
	)

	stored, _, err := scanEdge(row, false)
	if err != nil {
		return helper.NewError("scan", err)
	}
	*edge = *stored

	return nil
}

// SelectEdgesFromNode retrieves the outgoing edges of a node.
// A nil or empty edgeTypes selects all types.
func (h *EdgesDBHandler) SelectEdgesFromNode(ctx context.Context, nodeID uuid.UUID, edgeTypes []model.RelationshipType) ([]*model.Edge, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_edges_from_node($1, $2)`,
		nodeID,
		edgeTypesParam(edgeTypes),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var edges []*model.Edge
	for rows.Next() {
		edge, _, err := scanEdge(rows, false)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		edges = append(edges, edge)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return edges, nil
}

// SelectEdgesConnectedToNode retrieves all edges touching a node with their direction.
func (h *EdgesDBHandler) SelectEdgesConnectedToNode(ctx context.Context, nodeID uuid.UUID, edgeTypes []model.RelationshipType) ([]*model.EdgeConnection, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_edges_connected_to_node($1, $2)`,
		nodeID,
		edgeTypesParam(edgeTypes),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var connections []*model.EdgeConnection
	for rows.Next() {
		edge, isOutgoing, err := scanEdge(rows, true)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		connections = append(connections, &model.EdgeConnection{
			Edge:       edge,
			IsOutgoing: isOutgoing,
		})
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return connections, nil
}

// DeleteEdgesByDocument deletes all edges written by a document's commit.
func (h *EdgesDBHandler) DeleteEdgesByDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	var deleted int
	err := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT delete_edges_by_document($1)`,
		documentID,
	).Scan(&deleted)
	if err != nil {
		return 0, helper.NewError("delete edges", err)
	}
	return deleted, nil
}

// SelectDocumentIDs returns the distinct ids of documents owning edges.
func (h *EdgesDBHandler) SelectDocumentIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_edge_document_ids()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	return scanIDs(rows)
}

func scanEdge(row rowScanner, withDirection bool) (*model.Edge, bool, error) {
	edge := &model.Edge{}
	var edgeType, category string
	var isOutgoing bool

	dest := []any{
		&edge.ID,
		&edge.SourceID,
		&edge.TargetID,
		&edgeType,
		&category,
		&edge.Confidence,
		&edge.Description,
		&edge.Bidirectional,
		&edge.DocumentID,
		&edge.Metadata,
		&edge.CreatedAt,
	}
	if withDirection {
		dest = append(dest, &isOutgoing)
	}

	err := row.Scan(dest...)
	if err != nil {
		return nil, false, err
	}

	edge.Type = model.RelationshipType(edgeType)
	edge.Category = model.Category(category)

	return edge, isOutgoing, nil
}

func edgeTypesParam(edgeTypes []model.RelationshipType) interface{} {
	if len(edgeTypes) == 0 {
		return nil
	}
	s := make([]string, len(edgeTypes))
	for i, t := range edgeTypes {
		s[i] = string(t)
	}
	return pq.Array(s)
}
