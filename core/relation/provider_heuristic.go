package relation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/siherrmann/docgrapher/model"
)

// HeuristicInference judges candidates without a model: the candidate score becomes
// the confidence and the type follows from how the candidate was found.
// Used when inference is disabled.
type HeuristicInference struct{}

// Infer returns a judgment in the same JSON format a model would produce.
func (HeuristicInference) Infer(ctx context.Context, prompt PromptContext) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := prompt.Candidate
	t, bidirectional := heuristicType(c)

	description := fmt.Sprintf("%s %s by %s", c.Category, c.TargetTitle, c.Source)
	if c.Evidence != "" && c.Source != model.CandidateSourceVector {
		description += ": " + c.Evidence
	}

	return json.Marshal(map[string]any{
		"type":          string(t),
		"confidence":    min(max(c.Score, 0), 1),
		"description":   description,
		"bidirectional": bidirectional,
	})
}

func heuristicType(c *model.Candidate) (model.RelationshipType, bool) {
	if c.Source == model.CandidateSourceReference && c.Category.Allows(model.RelationshipReferences) {
		return model.RelationshipReferences, true
	}

	switch c.Category {
	case model.CategoryDocument:
		return model.RelationshipSimilarTo, true
	case model.CategoryFeature, model.CategoryRoadmapItem:
		return model.RelationshipRelatedTo, true
	case model.CategoryEntity:
		return model.RelationshipMentions, false
	case model.CategoryConcept:
		return model.RelationshipExplains, false
	}

	return model.RelationshipRelatedTo, false
}
