package relation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/siherrmann/docgrapher/model"
)

// PromptContext is everything an inference provider gets to judge one candidate.
type PromptContext struct {
	DocumentTitle   string
	DocumentSummary string
	DocumentPreview string
	Candidate       *model.Candidate
	AllowedTypes    []model.RelationshipType
}

// InferenceProvider returns a JSON judgment for one candidate.
type InferenceProvider interface {
	Infer(ctx context.Context, prompt PromptContext) ([]byte, error)
}

// Judgment is a parsed and validated inference result.
type Judgment struct {
	Type          model.RelationshipType
	Confidence    float64
	Description   string
	Bidirectional bool
}

// judgment mirrors the wire format, pointers detect missing fields.
type judgment struct {
	Type          *string  `json:"type"`
	Confidence    *float64 `json:"confidence"`
	Description   *string  `json:"description"`
	Bidirectional *bool    `json:"bidirectional"`
}

// ParseJudgment strictly decodes a judgment for a candidate of category.
// Unknown, missing or mistyped fields, trailing data, a type outside the
// vocabulary of the category and confidences outside [0,1] are rejected
// with ErrMalformedJudgment.
func ParseJudgment(data []byte, category model.Category) (*Judgment, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	var j judgment
	err := decoder.Decode(&j)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJudgment, err)
	}
	if decoder.Decode(&struct{}{}) != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after judgment", ErrMalformedJudgment)
	}

	switch {
	case j.Type == nil:
		return nil, fmt.Errorf("%w: missing field \"type\"", ErrMalformedJudgment)
	case j.Confidence == nil:
		return nil, fmt.Errorf("%w: missing field \"confidence\"", ErrMalformedJudgment)
	case j.Description == nil:
		return nil, fmt.Errorf("%w: missing field \"description\"", ErrMalformedJudgment)
	case j.Bidirectional == nil:
		return nil, fmt.Errorf("%w: missing field \"bidirectional\"", ErrMalformedJudgment)
	}

	t := model.RelationshipType(*j.Type)
	if !category.Allows(t) {
		return nil, fmt.Errorf("%w: %w: %q for category %s", ErrMalformedJudgment, ErrUnknownType, t, category)
	}
	if *j.Confidence < 0 || *j.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %v outside [0,1]", ErrMalformedJudgment, *j.Confidence)
	}

	return &Judgment{
		Type:          t,
		Confidence:    *j.Confidence,
		Description:   *j.Description,
		Bidirectional: *j.Bidirectional,
	}, nil
}

// DropReason says why a candidate did not become a relationship.
type DropReason string

const (
	DropReasonProvider      DropReason = "provider_error"
	DropReasonMalformed     DropReason = "malformed_judgment"
	DropReasonLowConfidence DropReason = "low_confidence"
)

// DroppedCandidate is a candidate discarded during characterization.
// Confidence is only set for DropReasonLowConfidence.
type DroppedCandidate struct {
	Candidate  *model.Candidate
	Reason     DropReason
	Confidence float64
	Err        error
}

// Characterization is the outcome of characterizing all candidates of a document.
type Characterization struct {
	Accepted []*model.Relationship
	Dropped  []DroppedCandidate
}

// Relationships returns the accepted relationships followed by their inverses.
func (c *Characterization) Relationships() []*model.Relationship {
	all := append([]*model.Relationship{}, c.Accepted...)
	for _, r := range c.Accepted {
		if r.Inverse != nil {
			all = append(all, r.Inverse)
		}
	}
	return all
}

// Characterizer turns candidates into confidence scored relationships.
type Characterizer struct {
	provider InferenceProvider
	config   model.RelationsConfig
	logger   *slog.Logger
}

// NewCharacterizer creates a characterizer. MinConfidence must be within [0,1].
func NewCharacterizer(provider InferenceProvider, config model.RelationsConfig, logger *slog.Logger) (*Characterizer, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: inference provider is nil", model.ErrInvalidConfig)
	}
	if config.MinConfidence < 0 || config.MinConfidence > 1 {
		return nil, fmt.Errorf("%w: min confidence must be within [0,1], got %v", model.ErrInvalidConfig, config.MinConfidence)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Characterizer{
		provider: provider,
		config:   config,
		logger:   logger.With("component", "characterizer"),
	}, nil
}

// Characterize asks the provider for a judgment per candidate, one at a time.
// Judgments with confidence >= MinConfidence are accepted, bidirectional ones get
// their inverse. Failed calls are not retried, the candidate is dropped.
// If every candidate failed at the provider, ErrProviderUnavailable is returned.
func (c *Characterizer) Characterize(ctx context.Context, doc *model.Document, analysis *model.Analysis, candidates []*model.Candidate) (*Characterization, error) {
	result := &Characterization{
		Accepted: []*model.Relationship{},
		Dropped:  []DroppedCandidate{},
	}

	var lastProviderErr error
	providerFailures := 0
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		prompt := NewPromptContext(doc, analysis, candidate, c.config.MaxPromptChars)
		data, err := c.provider.Infer(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("Inference failed", "document_id", doc.ID, "target_id", candidate.TargetID, "error", err)
			providerFailures++
			lastProviderErr = err
			result.Dropped = append(result.Dropped, DroppedCandidate{Candidate: candidate, Reason: DropReasonProvider, Err: err})
			continue
		}

		j, err := ParseJudgment(data, candidate.Category)
		if err != nil {
			c.logger.Warn("Dropping malformed judgment", "document_id", doc.ID, "target_id", candidate.TargetID, "error", err)
			result.Dropped = append(result.Dropped, DroppedCandidate{Candidate: candidate, Reason: DropReasonMalformed, Err: err})
			continue
		}

		if j.Confidence < c.config.MinConfidence {
			result.Dropped = append(result.Dropped, DroppedCandidate{Candidate: candidate, Reason: DropReasonLowConfidence, Confidence: j.Confidence})
			continue
		}

		relationship := &model.Relationship{
			ID:            model.RelationshipID(candidate.SourceID, candidate.TargetID, j.Type),
			SourceID:      candidate.SourceID,
			TargetID:      candidate.TargetID,
			Category:      candidate.Category,
			Type:          j.Type,
			Confidence:    j.Confidence,
			Description:   j.Description,
			Bidirectional: j.Bidirectional,
			CreatedAt:     time.Now().UTC(),
		}
		if relationship.Bidirectional {
			relationship.Inverse = relationship.Invert()
		}
		result.Accepted = append(result.Accepted, relationship)
	}

	c.logger.Debug("Characterized candidates",
		"document_id", doc.ID,
		"accepted", len(result.Accepted),
		"dropped", len(result.Dropped),
	)

	if len(candidates) > 0 && providerFailures == len(candidates) {
		return result, fmt.Errorf("%w: %d of %d calls failed: %w", ErrProviderUnavailable, providerFailures, len(candidates), lastProviderErr)
	}

	return result, nil
}
