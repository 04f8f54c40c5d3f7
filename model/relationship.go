package model

import (
	"time"

	"github.com/google/uuid"
)

// Category is the kind of target a relationship points to.
type Category string

const (
	CategoryDocument    Category = "document"
	CategoryFeature     Category = "feature"
	CategoryRoadmapItem Category = "roadmap_item"
	CategoryEntity      Category = "entity"
	CategoryConcept     Category = "concept"
)

// CandidateSource names how a candidate was discovered.
type CandidateSource string

const (
	CandidateSourceVector    CandidateSource = "vector"
	CandidateSourceOverlap   CandidateSource = "overlap"
	CandidateSourceReference CandidateSource = "reference"
)

// RelationshipType is a relationship label from the vocabulary of a category.
type RelationshipType string

const (
	RelationshipReferences    RelationshipType = "references"
	RelationshipExtends       RelationshipType = "extends"
	RelationshipUpdates       RelationshipType = "updates"
	RelationshipContradicts   RelationshipType = "contradicts"
	RelationshipSimilarTo     RelationshipType = "similar_to"
	RelationshipImplements    RelationshipType = "implements"
	RelationshipDescribes     RelationshipType = "describes"
	RelationshipPlans         RelationshipType = "plans"
	RelationshipMentions      RelationshipType = "mentions"
	RelationshipExplains      RelationshipType = "explains"
	RelationshipRelatedTo     RelationshipType = "related_to"
	RelationshipReferencedBy  RelationshipType = "referenced_by"
	RelationshipExtendedBy    RelationshipType = "extended_by"
	RelationshipUpdatedBy     RelationshipType = "updated_by"
	RelationshipImplementedBy RelationshipType = "implemented_by"
	RelationshipDescribedBy   RelationshipType = "described_by"
	RelationshipPlannedBy     RelationshipType = "planned_by"
	RelationshipMentionedBy   RelationshipType = "mentioned_by"
	RelationshipExplainedBy   RelationshipType = "explained_by"

	// Structural edges written by the storage orchestrator, never characterized.
	RelationshipContainsConcept RelationshipType = "contains_concept"
	RelationshipMentionsEntity  RelationshipType = "mentions_entity"
)

var vocabulary = map[Category][]RelationshipType{
	CategoryDocument:    {RelationshipReferences, RelationshipExtends, RelationshipUpdates, RelationshipContradicts, RelationshipSimilarTo},
	CategoryFeature:     {RelationshipImplements, RelationshipDescribes, RelationshipReferences, RelationshipUpdates, RelationshipRelatedTo},
	CategoryRoadmapItem: {RelationshipPlans, RelationshipDescribes, RelationshipReferences, RelationshipUpdates, RelationshipRelatedTo},
	CategoryEntity:      {RelationshipMentions, RelationshipDescribes, RelationshipRelatedTo},
	CategoryConcept:     {RelationshipExplains, RelationshipDescribes, RelationshipRelatedTo},
}

var inverses = map[RelationshipType]RelationshipType{
	RelationshipReferences:  RelationshipReferencedBy,
	RelationshipExtends:     RelationshipExtendedBy,
	RelationshipUpdates:     RelationshipUpdatedBy,
	RelationshipContradicts: RelationshipContradicts,
	RelationshipSimilarTo:   RelationshipSimilarTo,
	RelationshipImplements:  RelationshipImplementedBy,
	RelationshipDescribes:   RelationshipDescribedBy,
	RelationshipPlans:       RelationshipPlannedBy,
	RelationshipMentions:    RelationshipMentionedBy,
	RelationshipExplains:    RelationshipExplainedBy,
	RelationshipRelatedTo:   RelationshipRelatedTo,
}

// Vocabulary returns the allowed relationship types for a category.
func Vocabulary(category Category) []RelationshipType {
	types := vocabulary[category]
	c := make([]RelationshipType, len(types))
	copy(c, types)
	return c
}

// Valid reports whether the category is known.
func (c Category) Valid() bool {
	_, ok := vocabulary[c]
	return ok
}

// Allows reports whether t belongs to the vocabulary of the category.
func (c Category) Allows(t RelationshipType) bool {
	for _, v := range vocabulary[c] {
		if v == t {
			return true
		}
	}
	return false
}

// Inverse returns the inverse type. Unknown types fall back to related_to.
func (t RelationshipType) Inverse() RelationshipType {
	if inv, ok := inverses[t]; ok {
		return inv
	}
	return RelationshipRelatedTo
}

// Candidate is a possible relationship before characterization.
type Candidate struct {
	SourceID    uuid.UUID       `json:"source_id"`
	TargetID    uuid.UUID       `json:"target_id"`
	TargetTitle string          `json:"target_title,omitempty"`
	Category    Category        `json:"category"`
	Score       float64         `json:"score"`
	Source      CandidateSource `json:"source"`
	Evidence    string          `json:"evidence,omitempty"`
}

// Relationship is a characterized, accepted relationship.
// Relationships are never mutated, a new characterization supersedes them.
type Relationship struct {
	ID            uuid.UUID        `json:"id"`
	SourceID      uuid.UUID        `json:"source_id"`
	TargetID      uuid.UUID        `json:"target_id"`
	Category      Category         `json:"category"`
	Type          RelationshipType `json:"type"`
	Confidence    float64          `json:"confidence"`
	Description   string           `json:"description"`
	Bidirectional bool             `json:"bidirectional"`
	Inverse       *Relationship    `json:"inverse,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// RelationshipID returns the deterministic id of the relationship (source, target, type).
func RelationshipID(sourceID uuid.UUID, targetID uuid.UUID, t RelationshipType) uuid.UUID {
	return uuid.NewSHA1(sourceID, []byte(targetID.String()+":"+string(t)))
}

// EdgeID returns the deterministic id of the edge (source, target, type) written by documentID.
// Two documents asserting the same relationship own separate edges.
func EdgeID(documentID uuid.UUID, sourceID uuid.UUID, targetID uuid.UUID, t RelationshipType) uuid.UUID {
	return uuid.NewSHA1(documentID, []byte(sourceID.String()+":"+targetID.String()+":"+string(t)))
}

// Invert synthesizes the inverse relationship: swapped ends, inverse type,
// same confidence and a derived description.
func (r *Relationship) Invert() *Relationship {
	t := r.Type.Inverse()
	return &Relationship{
		ID:            RelationshipID(r.TargetID, r.SourceID, t),
		SourceID:      r.TargetID,
		TargetID:      r.SourceID,
		Category:      r.Category,
		Type:          t,
		Confidence:    r.Confidence,
		Description:   "Inverse of: " + r.Description,
		Bidirectional: true,
		CreatedAt:     r.CreatedAt,
	}
}
