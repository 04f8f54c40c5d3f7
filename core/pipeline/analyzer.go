package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/siherrmann/docgrapher/helper"
	"github.com/siherrmann/docgrapher/model"
)

// NERAnalyzer finds named entities in chunks with a token classification model.
// It produces entities only, summary and concepts stay empty.
type NERAnalyzer struct {
	mu       sync.Mutex
	session  *hugot.Session
	pipeline *pipelines.TokenClassificationPipeline
	minScore float32
}

var _ Analyzer = (*NERAnalyzer)(nil)

// NewNERAnalyzer creates an analyzer using distilbert-NER.
// Detects: PER, ORG, LOC, MISC entities with a score of at least minScore.
func NewNERAnalyzer(minScore float32) (*NERAnalyzer, error) {
	modelName := "KnightsAnalytics/distilbert-NER"
	modelPath, err := helper.PrepareModel(modelName, "model.onnx")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.TokenClassificationConfig{
		ModelPath: modelPath,
		Name:      "ner-pipeline",
		Options: []hugot.TokenClassificationOption{
			pipelines.WithSimpleAggregation(),
			pipelines.WithIgnoreLabels([]string{"O"}),
		},
	}
	nerPipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create NER pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create NER pipeline: %w", err)
	}

	return &NERAnalyzer{
		session:  session,
		pipeline: nerPipeline,
		minScore: minScore,
	}, nil
}

// Analyze runs NER over every chunk and merges the entities found.
// Occurrence positions are offsets in the document content.
func (a *NERAnalyzer) Analyze(ctx context.Context, doc *model.Document, chunks []*model.Chunk) (*model.Analysis, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var entities []*model.Entity
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.TrimSpace(chunk.Content) == "" {
			continue
		}

		result, err := a.pipeline.RunPipeline([]string{chunk.Content})
		if err != nil {
			return nil, fmt.Errorf("failed to run NER: %w", err)
		}
		if len(result.Entities) == 0 {
			continue
		}

		for _, found := range result.Entities[0] {
			name := strings.TrimSpace(found.Word)
			if name == "" || found.Score < a.minScore {
				continue
			}
			entities = append(entities, &model.Entity{
				Name: name,
				Kind: model.EntityKindEntity,
				Type: normalizeEntityType(found.Entity),
				Occurrences: []model.Occurrence{{
					DocumentID: doc.ID,
					ChunkIndex: chunk.Index,
					Position:   chunk.StartPos + int(found.Start),
				}},
			})
		}
	}

	return &model.Analysis{Entities: model.MergeEntities(entities)}, nil
}

// Close destroys the hugot session.
func (a *NERAnalyzer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.Destroy()
}

// normalizeEntityType removes B- and I- prefixes from NER labels
func normalizeEntityType(label string) string {
	if strings.HasPrefix(label, "B-") || strings.HasPrefix(label, "I-") {
		return label[2:]
	}
	return label
}
