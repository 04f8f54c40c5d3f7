package relation

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/siherrmann/docgrapher/helper"
	"github.com/siherrmann/docgrapher/model"
)

// fakeVectorIndex returns all hits regardless of the requested threshold, like a
// store ignoring minScore would.
type fakeVectorIndex struct {
	hits      []*model.VectorHit
	err       error
	calls     int
	lastTopK  int
	lastScore float64
}

func (f *fakeVectorIndex) Query(ctx context.Context, vector []float32, topK int, minScore float64, exclude *uuid.UUID) ([]*model.VectorHit, error) {
	f.calls++
	f.lastTopK = topK
	f.lastScore = minScore
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

type fakeKnowledgeBase struct {
	nodes   []*model.Node
	similar []*model.Node
	err     error
}

func (f *fakeKnowledgeBase) SelectNode(ctx context.Context, id uuid.UUID) (*model.Node, error) {
	for _, n := range f.nodes {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, helper.NewError("select node", helper.ErrNotFound)
}

func (f *fakeKnowledgeBase) SelectNodeByExternalID(ctx context.Context, kind model.Category, externalID string) (*model.Node, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, n := range f.nodes {
		if n.Kind == kind && n.ExternalID == externalID {
			return n, nil
		}
	}
	return nil, helper.NewError("select node by external id", helper.ErrNotFound)
}

func (f *fakeKnowledgeBase) SelectNodesByName(ctx context.Context, kinds []model.Category, names []string) ([]*model.Node, error) {
	if f.err != nil {
		return nil, f.err
	}
	wanted := map[string]bool{}
	for _, n := range names {
		wanted[model.NormalizeName(n)] = true
	}
	nodes := []*model.Node{}
	for _, n := range f.nodes {
		if containsKind(kinds, n.Kind) && wanted[model.NormalizeName(n.Name)] {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

func (f *fakeKnowledgeBase) SelectNodesBySimilarity(ctx context.Context, embedding []float32, kinds []model.Category, limit int, threshold float64) ([]*model.Node, error) {
	if f.err != nil {
		return nil, f.err
	}
	nodes := []*model.Node{}
	for _, n := range f.similar {
		if containsKind(kinds, n.Kind) {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

func containsKind(kinds []model.Category, kind model.Category) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

type fakeCommitted struct {
	committed map[uuid.UUID]bool
}

func (f *fakeCommitted) FilterCommitted(ctx context.Context, documentIDs []uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	for _, id := range documentIDs {
		if f.committed[id] {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// scriptedInference answers per target id with a fixed response or error.
type scriptedInference struct {
	mu        sync.Mutex
	responses map[uuid.UUID]string
	errs      map[uuid.UUID]error
	prompts   []PromptContext
}

func (s *scriptedInference) Infer(ctx context.Context, prompt PromptContext) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, prompt)
	if err, ok := s.errs[prompt.Candidate.TargetID]; ok {
		return nil, err
	}
	response, ok := s.responses[prompt.Candidate.TargetID]
	if !ok {
		return nil, fmt.Errorf("no scripted response for %s", prompt.Candidate.TargetID)
	}
	return []byte(response), nil
}

func judgmentJSON(t model.RelationshipType, confidence float64, bidirectional bool) string {
	return fmt.Sprintf(`{"type":%q,"confidence":%v,"description":"test relationship","bidirectional":%v}`, t, confidence, bidirectional)
}

func testCandidate(sourceID uuid.UUID, category model.Category, score float64) *model.Candidate {
	return &model.Candidate{
		SourceID:    sourceID,
		TargetID:    uuid.New(),
		TargetTitle: "Target",
		Category:    category,
		Score:       score,
		Source:      model.CandidateSourceVector,
	}
}
