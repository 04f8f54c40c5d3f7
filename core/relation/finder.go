package relation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/siherrmann/docgrapher/helper"
	"github.com/siherrmann/docgrapher/model"
)

var knowledgeBaseKinds = []model.Category{model.CategoryFeature, model.CategoryRoadmapItem}

// KnowledgeBase is the lookup side of the graph store used to resolve candidates.
type KnowledgeBase interface {
	SelectNode(ctx context.Context, id uuid.UUID) (*model.Node, error)
	SelectNodeByExternalID(ctx context.Context, kind model.Category, externalID string) (*model.Node, error)
	SelectNodesByName(ctx context.Context, kinds []model.Category, names []string) ([]*model.Node, error)
	SelectNodesBySimilarity(ctx context.Context, embedding []float32, kinds []model.Category, limit int, threshold float64) ([]*model.Node, error)
}

// VectorIndex is the query side of the vector store.
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, topK int, minScore float64, exclude *uuid.UUID) ([]*model.VectorHit, error)
}

// CommittedFilter reduces document ids to the committed ones.
// Implemented by the metadata store, readers always join against it.
type CommittedFilter interface {
	FilterCommitted(ctx context.Context, documentIDs []uuid.UUID) ([]uuid.UUID, error)
}

// Finder discovers relationship candidates of a document.
type Finder struct {
	vectors   VectorIndex
	knowledge KnowledgeBase
	committed CommittedFilter
	config    model.RelationsConfig
	logger    *slog.Logger
}

// NewFinder creates a candidate finder.
// TopK must be positive and MinSimilarity within [0,1].
func NewFinder(vectors VectorIndex, knowledge KnowledgeBase, committed CommittedFilter, config model.RelationsConfig, logger *slog.Logger) (*Finder, error) {
	if vectors == nil || knowledge == nil || committed == nil {
		return nil, fmt.Errorf("%w: vector index, knowledge base and committed filter are required", model.ErrInvalidConfig)
	}
	if config.TopK <= 0 {
		return nil, fmt.Errorf("%w: top k must be positive, got %d", model.ErrInvalidConfig, config.TopK)
	}
	if config.MinSimilarity < 0 || config.MinSimilarity > 1 {
		return nil, fmt.Errorf("%w: min similarity must be within [0,1], got %v", model.ErrInvalidConfig, config.MinSimilarity)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Finder{
		vectors:   vectors,
		knowledge: knowledge,
		committed: committed,
		config:    config,
		logger:    logger.With("component", "finder"),
	}, nil
}

// Find returns the deduplicated candidates of doc sorted by score (desc) and target id.
// Candidates come from similarity of the first embedded chunk, from entity and concept
// names shared with knowledge base nodes and from explicit references in the content.
func (f *Finder) Find(ctx context.Context, doc *model.Document, chunks []*model.Chunk, analysis *model.Analysis) ([]*model.Candidate, error) {
	candidates := []*model.Candidate{}

	similar, err := f.similarityCandidates(ctx, doc, chunks)
	if err != nil {
		return nil, helper.NewError("similarity candidates", err)
	}
	candidates = append(candidates, similar...)

	overlapping, err := f.overlapCandidates(ctx, doc, analysis)
	if err != nil {
		return nil, helper.NewError("overlap candidates", err)
	}
	candidates = append(candidates, overlapping...)

	referenced, err := f.referenceCandidates(ctx, doc)
	if err != nil {
		return nil, helper.NewError("reference candidates", err)
	}
	candidates = append(candidates, referenced...)

	result := Deduplicate(doc.ID, candidates)

	f.logger.Debug("Found candidates",
		"document_id", doc.ID,
		"similarity", len(similar),
		"overlap", len(overlapping),
		"reference", len(referenced),
		"total", len(result),
	)

	return result, nil
}

func (f *Finder) similarityCandidates(ctx context.Context, doc *model.Document, chunks []*model.Chunk) ([]*model.Candidate, error) {
	var vector []float32
	for _, c := range chunks {
		if c.Embedding != nil && !c.Failed && len(c.Embedding.Vector) > 0 {
			vector = c.Embedding.Vector
			break
		}
	}
	if vector == nil {
		return []*model.Candidate{}, nil
	}

	exclude := doc.ID
	hits, err := f.vectors.Query(ctx, vector, f.config.TopK, f.config.MinSimilarity, &exclude)
	if err != nil {
		return nil, err
	}

	best := map[uuid.UUID]*model.VectorHit{}
	ids := []uuid.UUID{}
	for _, hit := range hits {
		if hit.Similarity < f.config.MinSimilarity || hit.DocumentID == doc.ID {
			continue
		}
		current, ok := best[hit.DocumentID]
		if !ok {
			ids = append(ids, hit.DocumentID)
		}
		if !ok || hit.Similarity > current.Similarity {
			best[hit.DocumentID] = hit
		}
	}

	candidates := []*model.Candidate{}
	if len(ids) > 0 {
		committed, err := f.committed.FilterCommitted(ctx, ids)
		if err != nil {
			return nil, err
		}

		for _, id := range committed {
			hit, ok := best[id]
			if !ok {
				continue
			}
			title, ok := hit.Metadata.GetString("document")
			if !ok {
				title, _ = hit.Metadata.GetString("title")
			}
			preview, _ := hit.Metadata.GetString("preview")
			candidates = append(candidates, &model.Candidate{
				SourceID:    doc.ID,
				TargetID:    id,
				TargetTitle: title,
				Category:    model.CategoryDocument,
				Score:       hit.Similarity,
				Source:      model.CandidateSourceVector,
				Evidence:    preview,
			})
		}
	}

	nodes, err := f.knowledge.SelectNodesBySimilarity(ctx, vector, knowledgeBaseKinds, f.config.TopK, f.config.MinSimilarity)
	if err != nil {
		return nil, err
	}
	for _, node := range nodes {
		if node.Similarity < f.config.MinSimilarity {
			continue
		}
		candidates = append(candidates, &model.Candidate{
			SourceID:    doc.ID,
			TargetID:    node.ID,
			TargetTitle: node.Name,
			Category:    node.Kind,
			Score:       node.Similarity,
			Source:      model.CandidateSourceVector,
		})
	}

	return candidates, nil
}

func (f *Finder) overlapCandidates(ctx context.Context, doc *model.Document, analysis *model.Analysis) ([]*model.Candidate, error) {
	entities := analysis.All()
	if len(entities) == 0 {
		return []*model.Candidate{}, nil
	}

	names := []string{}
	nameSet := map[string]bool{}
	linked := map[uuid.UUID]map[string]bool{}
	for _, e := range entities {
		name := model.NormalizeName(e.Name)
		if !nameSet[name] {
			nameSet[name] = true
			names = append(names, name)
		}
		if e.NodeID != nil {
			if linked[*e.NodeID] == nil {
				linked[*e.NodeID] = map[string]bool{}
			}
			linked[*e.NodeID][name] = true
		}
	}

	nodes, err := f.knowledge.SelectNodesByName(ctx, knowledgeBaseKinds, names)
	if err != nil {
		return nil, err
	}

	matches := map[uuid.UUID]map[string]bool{}
	byID := map[uuid.UUID]*model.Node{}
	for _, node := range nodes {
		name := model.NormalizeName(node.Name)
		if !nameSet[name] {
			continue
		}
		byID[node.ID] = node
		if matches[node.ID] == nil {
			matches[node.ID] = map[string]bool{}
		}
		matches[node.ID][name] = true
	}

	for id, linkedNames := range linked {
		node, ok := byID[id]
		if !ok {
			node, err = f.knowledge.SelectNode(ctx, id)
			if errors.Is(err, helper.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			if node.Kind != model.CategoryFeature && node.Kind != model.CategoryRoadmapItem {
				continue
			}
			byID[id] = node
		}
		if matches[id] == nil {
			matches[id] = map[string]bool{}
		}
		for name := range linkedNames {
			matches[id][name] = true
		}
	}

	candidates := []*model.Candidate{}
	for id, matched := range matches {
		node := byID[id]
		shared := make([]string, 0, len(matched))
		for name := range matched {
			shared = append(shared, name)
		}
		sort.Strings(shared)

		candidates = append(candidates, &model.Candidate{
			SourceID:    doc.ID,
			TargetID:    id,
			TargetTitle: node.Name,
			Category:    node.Kind,
			Score:       float64(len(matched)) / float64(len(names)),
			Source:      model.CandidateSourceOverlap,
			Evidence:    "shared names: " + strings.Join(shared, ", "),
		})
	}

	return candidates, nil
}

func (f *Finder) referenceCandidates(ctx context.Context, doc *model.Document) ([]*model.Candidate, error) {
	candidates := []*model.Candidate{}

	for _, ref := range FindReferences(doc.Content) {
		if ref.ExternalID != "" {
			node, err := f.knowledge.SelectNodeByExternalID(ctx, ref.Category, ref.ExternalID)
			if errors.Is(err, helper.ErrNotFound) {
				f.logger.Debug("Unresolved reference", "document_id", doc.ID, "reference", ref.Text)
				continue
			}
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, referenceCandidate(doc.ID, node, ref))
			continue
		}

		nodes, err := f.knowledge.SelectNodesByName(
			ctx,
			[]model.Category{model.CategoryDocument, model.CategoryFeature, model.CategoryRoadmapItem},
			[]string{ref.Title},
		)
		if err != nil {
			return nil, err
		}

		var documentIDs []uuid.UUID
		for _, node := range nodes {
			if node.Kind == model.CategoryDocument {
				documentIDs = append(documentIDs, node.ID)
			}
		}
		committed := map[uuid.UUID]bool{}
		if len(documentIDs) > 0 {
			ids, err := f.committed.FilterCommitted(ctx, documentIDs)
			if err != nil {
				return nil, err
			}
			for _, id := range ids {
				committed[id] = true
			}
		}

		for _, node := range nodes {
			if node.Kind == model.CategoryDocument && !committed[node.ID] {
				continue
			}
			candidates = append(candidates, referenceCandidate(doc.ID, node, ref))
		}
	}

	return candidates, nil
}

func referenceCandidate(sourceID uuid.UUID, node *model.Node, ref Reference) *model.Candidate {
	return &model.Candidate{
		SourceID:    sourceID,
		TargetID:    node.ID,
		TargetTitle: node.Name,
		Category:    node.Kind,
		Score:       1.0,
		Source:      model.CandidateSourceReference,
		Evidence:    ref.Text,
	}
}

// Deduplicate keeps the highest scoring candidate per (target, category), drops
// references of the document to itself and sorts by score (desc), then target id and category.
func Deduplicate(documentID uuid.UUID, candidates []*model.Candidate) []*model.Candidate {
	type key struct {
		target   uuid.UUID
		category model.Category
	}

	best := map[key]*model.Candidate{}
	for _, c := range candidates {
		if c == nil || c.TargetID == documentID {
			continue
		}
		k := key{target: c.TargetID, category: c.Category}
		if current, ok := best[k]; !ok || c.Score > current.Score {
			best[k] = c
		}
	}

	result := make([]*model.Candidate, 0, len(best))
	for _, c := range best {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		if result[i].TargetID != result[j].TargetID {
			return result[i].TargetID.String() < result[j].TargetID.String()
		}
		return result[i].Category < result[j].Category
	})

	return result
}
