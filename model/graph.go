package model

import (
	"time"

	"github.com/google/uuid"
)

// Node is a node of the knowledge graph.
// Document nodes share the id of their document and carry DocumentID,
// knowledge base nodes (features, roadmap items) and entity/concept nodes do not.
type Node struct {
	ID         uuid.UUID  `json:"id"`
	Kind       Category   `json:"kind"`
	Name       string     `json:"name"`
	ExternalID string     `json:"external_id,omitempty"`
	DocumentID *uuid.UUID `json:"document_id,omitempty"`
	Embedding  []float32  `json:"embedding,omitempty"`
	Metadata   Metadata   `json:"metadata,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	// Results
	Similarity float64 `json:"similarity,omitempty"`
}

// Edge is a typed, directed edge between two nodes.
// DocumentID is the document whose commit wrote the edge and owns it.
type Edge struct {
	ID            uuid.UUID        `json:"id"`
	SourceID      uuid.UUID        `json:"source_id"`
	TargetID      uuid.UUID        `json:"target_id"`
	Type          RelationshipType `json:"edge_type"`
	Category      Category         `json:"category"`
	Confidence    float64          `json:"confidence"`
	Description   string           `json:"description,omitempty"`
	Bidirectional bool             `json:"bidirectional"`
	DocumentID    uuid.UUID        `json:"document_id"`
	Metadata      Metadata         `json:"metadata,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// EdgeConnection represents an edge with directional information
type EdgeConnection struct {
	Edge       *Edge `json:"edge"`
	IsOutgoing bool  `json:"is_outgoing"`
}

// EdgeFromRelationship converts an accepted relationship into a graph edge owned by documentID.
func EdgeFromRelationship(r *Relationship, documentID uuid.UUID) *Edge {
	return &Edge{
		ID:            EdgeID(documentID, r.SourceID, r.TargetID, r.Type),
		SourceID:      r.SourceID,
		TargetID:      r.TargetID,
		Type:          r.Type,
		Category:      r.Category,
		Confidence:    r.Confidence,
		Description:   r.Description,
		Bidirectional: r.Bidirectional,
		DocumentID:    documentID,
	}
}
