package database

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/siherrmann/docgrapher/helper"
	"github.com/siherrmann/docgrapher/model"
)

// GraphDBHandler combines the nodes and edges handlers into one graph store.
type GraphDBHandler struct {
	*NodesDBHandler
	*EdgesDBHandler
}

// NewGraphDBHandler creates the nodes table first and the edges table referencing it.
func NewGraphDBHandler(db *helper.Database, embeddingDim int, force bool) (*GraphDBHandler, error) {
	nodes, err := NewNodesDBHandler(db, embeddingDim, force)
	if err != nil {
		return nil, err
	}

	edges, err := NewEdgesDBHandler(db, force)
	if err != nil {
		return nil, err
	}

	return &GraphDBHandler{
		NodesDBHandler: nodes,
		EdgesDBHandler: edges,
	}, nil
}

// DeleteDocument deletes the edges written by a document and the nodes it owns.
// Shared entity, concept and knowledge base nodes are kept.
func (h *GraphDBHandler) DeleteDocument(ctx context.Context, documentID uuid.UUID) (int, error) {
	edges, err := h.DeleteEdgesByDocument(ctx, documentID)
	if err != nil {
		return 0, err
	}

	nodes, err := h.DeleteNodesByDocument(ctx, documentID)
	if err != nil {
		return edges, err
	}

	return edges + nodes, nil
}

// ListDocumentIDs returns the ids of all documents owning nodes or edges, sorted.
func (h *GraphDBHandler) ListDocumentIDs(ctx context.Context) ([]uuid.UUID, error) {
	nodeIDs, err := h.NodesDBHandler.SelectDocumentIDs(ctx)
	if err != nil {
		return nil, err
	}

	edgeIDs, err := h.EdgesDBHandler.SelectDocumentIDs(ctx)
	if err != nil {
		return nil, err
	}

	seen := map[uuid.UUID]bool{}
	ids := []uuid.UUID{}
	for _, id := range append(nodeIDs, edgeIDs...) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})

	return ids, nil
}

// SelectRelationshipEdges returns the edges of a document node restricted to relationship types.
// Used by traversal, structural edges to entities and concepts are excluded.
func (h *GraphDBHandler) SelectRelationshipEdges(ctx context.Context, nodeID uuid.UUID, edgeTypes []model.RelationshipType) ([]*model.EdgeConnection, error) {
	connections, err := h.SelectEdgesConnectedToNode(ctx, nodeID, edgeTypes)
	if err != nil {
		return nil, err
	}

	filtered := connections[:0]
	for _, c := range connections {
		if c.Edge.Type == model.RelationshipContainsConcept || c.Edge.Type == model.RelationshipMentionsEntity {
			continue
		}
		filtered = append(filtered, c)
	}

	return filtered, nil
}
