package graph

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/siherrmann/docgrapher/helper"
	"github.com/siherrmann/docgrapher/model"
)

// GraphReader defines the reads needed for traversal.
// FilterCommitted reduces document ids to the ones with a metadata record.
type GraphReader interface {
	SelectNode(ctx context.Context, id uuid.UUID) (*model.Node, error)
	SelectRelationshipEdges(ctx context.Context, nodeID uuid.UUID, edgeTypes []model.RelationshipType) ([]*model.EdgeConnection, error)
	FilterCommitted(ctx context.Context, documentIDs []uuid.UUID) ([]uuid.UUID, error)
}

// TraversalResult contains a node, its distance from the source and the edge it was reached by
type TraversalResult struct {
	Node     *model.Node
	Distance int
	Path     []uuid.UUID // Path from source to this node
	Edge     *model.Edge // nil for the source
}

// BFS performs breadth-first search from a source node, only visiting committed documents.
// Outgoing edges are always followed, incoming ones only if bidirectional and followBidirectional is set.
func BFS(ctx context.Context, db GraphReader, sourceID uuid.UUID, maxHops int, edgeTypes []model.RelationshipType, followBidirectional bool) ([]*TraversalResult, error) {
	source, err := selectSource(ctx, db, sourceID)
	if err != nil {
		return nil, err
	}

	visited := map[uuid.UUID]bool{sourceID: true}
	queue := []*TraversalResult{{
		Node:     source,
		Distance: 0,
		Path:     []uuid.UUID{sourceID},
	}}

	var results []*TraversalResult
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		results = append(results, current)

		// Stop if we've reached max hops
		if current.Distance >= maxHops {
			continue
		}

		next, err := expand(ctx, db, current, edgeTypes, followBidirectional, visited)
		if err != nil {
			return nil, err
		}
		queue = append(queue, next...)
	}

	return results, nil
}

// DFS performs depth-first search from a source node
func DFS(ctx context.Context, db GraphReader, sourceID uuid.UUID, maxHops int, edgeTypes []model.RelationshipType, followBidirectional bool) ([]*TraversalResult, error) {
	source, err := selectSource(ctx, db, sourceID)
	if err != nil {
		return nil, err
	}

	visited := map[uuid.UUID]bool{sourceID: true}
	var results []*TraversalResult

	err = dfsRecursive(ctx, db, &TraversalResult{Node: source, Path: []uuid.UUID{sourceID}}, maxHops, edgeTypes, followBidirectional, visited, &results)
	if err != nil {
		return nil, err
	}

	return results, nil
}

func dfsRecursive(
	ctx context.Context,
	db GraphReader,
	current *TraversalResult,
	maxHops int,
	edgeTypes []model.RelationshipType,
	followBidirectional bool,
	visited map[uuid.UUID]bool,
	results *[]*TraversalResult,
) error {
	*results = append(*results, current)

	if current.Distance >= maxHops {
		return nil
	}

	next, err := expand(ctx, db, current, edgeTypes, followBidirectional, visited)
	if err != nil {
		return err
	}

	for _, n := range next {
		err := dfsRecursive(ctx, db, n, maxHops, edgeTypes, followBidirectional, visited, results)
		if err != nil {
			return err
		}
	}

	return nil
}

// GetNeighbors retrieves immediate neighbors (1-hop) of a node
func GetNeighbors(ctx context.Context, db GraphReader, nodeID uuid.UUID, edgeTypes []model.RelationshipType, followBidirectional bool) ([]*TraversalResult, error) {
	results, err := BFS(ctx, db, nodeID, 1, edgeTypes, followBidirectional)
	if err != nil {
		return nil, err
	}

	// Skip the source node itself (first result)
	return results[1:], nil
}

func selectSource(ctx context.Context, db GraphReader, sourceID uuid.UUID) (*model.Node, error) {
	source, err := db.SelectNode(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	if source.Kind == model.CategoryDocument {
		committed, err := isCommitted(ctx, db, []uuid.UUID{sourceID})
		if err != nil {
			return nil, err
		}
		if !committed[sourceID] {
			return nil, helper.NewError("select source", helper.ErrNotFound)
		}
	}

	return source, nil
}

// expand returns the unvisited, committed neighbors of current and marks them visited.
func expand(ctx context.Context, db GraphReader, current *TraversalResult, edgeTypes []model.RelationshipType, followBidirectional bool, visited map[uuid.UUID]bool) ([]*TraversalResult, error) {
	connections, err := db.SelectRelationshipEdges(ctx, current.Node.ID, edgeTypes)
	if err != nil {
		return nil, err
	}

	type step struct {
		node *model.Node
		edge *model.Edge
	}
	var steps []step
	var documentIDs []uuid.UUID

	for _, c := range connections {
		var targetID uuid.UUID

		// Determine target based on edge direction
		if c.IsOutgoing {
			targetID = c.Edge.TargetID
		} else if followBidirectional && c.Edge.Bidirectional {
			targetID = c.Edge.SourceID
		} else {
			continue
		}

		if visited[targetID] {
			continue
		}

		node, err := db.SelectNode(ctx, targetID)
		if errors.Is(err, helper.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		visited[targetID] = true
		steps = append(steps, step{node: node, edge: c.Edge})
		if node.Kind == model.CategoryDocument {
			documentIDs = append(documentIDs, node.ID)
		}
	}

	committed, err := isCommitted(ctx, db, documentIDs)
	if err != nil {
		return nil, err
	}

	var next []*TraversalResult
	for _, s := range steps {
		if s.node.Kind == model.CategoryDocument && !committed[s.node.ID] {
			continue
		}

		// Create new path
		path := make([]uuid.UUID, len(current.Path), len(current.Path)+1)
		copy(path, current.Path)
		path = append(path, s.node.ID)

		next = append(next, &TraversalResult{
			Node:     s.node,
			Distance: current.Distance + 1,
			Path:     path,
			Edge:     s.edge,
		})
	}

	return next, nil
}

func isCommitted(ctx context.Context, db GraphReader, documentIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	committed := map[uuid.UUID]bool{}
	if len(documentIDs) == 0 {
		return committed, nil
	}

	ids, err := db.FilterCommitted(ctx, documentIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		committed[id] = true
	}

	return committed, nil
}
