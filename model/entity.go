package model

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// EntityKind separates named entities from abstract concepts.
type EntityKind string

const (
	EntityKindEntity  EntityKind = "entity"
	EntityKindConcept EntityKind = "concept"
)

// Occurrence locates an entity or concept inside a document.
type Occurrence struct {
	DocumentID uuid.UUID `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Position   int       `json:"position"`
}

// Entity represents a named entity or a concept mentioned by a document.
// NodeID links it to an existing knowledge graph node if known.
type Entity struct {
	Name        string       `json:"name"`
	Kind        EntityKind   `json:"kind"`
	Type        string       `json:"entity_type"`
	Description string       `json:"description,omitempty"`
	Occurrences []Occurrence `json:"occurrences,omitempty"`
	NodeID      *uuid.UUID   `json:"node_id,omitempty"`
}

// NormalizeName lowercases a name and collapses whitespace.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// MergeEntities merges entities with the same kind and normalized name.
// The longest description wins, occurrences are unioned and the first
// known node link is kept. First-seen order is preserved.
func MergeEntities(entities []*Entity) []*Entity {
	type key struct {
		kind EntityKind
		name string
	}

	merged := []*Entity{}
	byKey := map[key]*Entity{}
	for _, e := range entities {
		if e == nil || NormalizeName(e.Name) == "" {
			continue
		}

		k := key{kind: e.Kind, name: NormalizeName(e.Name)}
		existing, ok := byKey[k]
		if !ok {
			c := *e
			c.Occurrences = appendOccurrences(nil, e.Occurrences)
			byKey[k] = &c
			merged = append(merged, &c)
			continue
		}

		if len(e.Description) > len(existing.Description) {
			existing.Description = e.Description
		}
		if existing.Type == "" {
			existing.Type = e.Type
		}
		if existing.NodeID == nil && e.NodeID != nil {
			id := *e.NodeID
			existing.NodeID = &id
		}
		existing.Occurrences = appendOccurrences(existing.Occurrences, e.Occurrences)
	}

	return merged
}

func appendOccurrences(dst []Occurrence, src []Occurrence) []Occurrence {
	for _, o := range src {
		duplicate := false
		for _, d := range dst {
			if d == o {
				duplicate = true
				break
			}
		}
		if !duplicate {
			dst = append(dst, o)
		}
	}
	return dst
}

// EntityNodeMetadata returns the metadata stored on the graph node of an entity or concept.
func EntityNodeMetadata(e *Entity) Metadata {
	return Metadata{
		"entity_type": e.Type,
		"description": e.Description,
		"occurrences": appendOccurrences([]Occurrence{}, e.Occurrences),
	}
}

// MergeEntityNodeMetadata merges the metadata of a repeated entity or concept
// into the stored node's metadata with the same rules as MergeEntities.
func MergeEntityNodeMetadata(existing Metadata, incoming Metadata) Metadata {
	merged := existing.Merge(incoming)

	description, _ := existing.GetString("description")
	if other, _ := incoming.GetString("description"); len(other) > len(description) {
		description = other
	}
	merged["description"] = description

	if entityType, _ := existing.GetString("entity_type"); entityType != "" {
		merged["entity_type"] = entityType
	}

	merged["occurrences"] = appendOccurrences(occurrencesOf(existing), occurrencesOf(incoming))
	return merged
}

// occurrencesOf reads occurrences from metadata built in memory or decoded from JSON.
func occurrencesOf(m Metadata) []Occurrence {
	switch v := m["occurrences"].(type) {
	case nil:
		return []Occurrence{}
	case []Occurrence:
		return appendOccurrences([]Occurrence{}, v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return []Occurrence{}
		}
		occurrences := []Occurrence{}
		if json.Unmarshal(raw, &occurrences) != nil {
			return []Occurrence{}
		}
		return occurrences
	}
}

// Analysis is the externally supplied semantic analysis of a document.
type Analysis struct {
	Summary  string    `json:"summary,omitempty"`
	Entities []*Entity `json:"entities,omitempty"`
	Concepts []*Entity `json:"concepts,omitempty"`
}

// All returns the merged entities and concepts of the analysis.
func (a *Analysis) All() []*Entity {
	if a == nil {
		return nil
	}
	all := make([]*Entity, 0, len(a.Entities)+len(a.Concepts))
	for _, e := range a.Entities {
		if e != nil && e.Kind == "" {
			c := *e
			c.Kind = EntityKindEntity
			e = &c
		}
		all = append(all, e)
	}
	for _, c := range a.Concepts {
		if c != nil && c.Kind == "" {
			cc := *c
			cc.Kind = EntityKindConcept
			c = &cc
		}
		all = append(all, c)
	}
	return MergeEntities(all)
}
