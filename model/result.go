package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage names a step of the document pipeline.
type Stage string

const (
	StageConvert      Stage = "convert"
	StagePlan         Stage = "plan"
	StageChunk        Stage = "chunk"
	StageEmbed        Stage = "embed"
	StageRelate       Stage = "relate"
	StageCharacterize Stage = "characterize"
	StageStore        Stage = "store"
	StageDelete       Stage = "delete"
)

// StageStatus is the outcome carried by a StageEvent.
type StageStatus string

const (
	StageStatusStarted   StageStatus = "started"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
)

// StageEvent is emitted to an Observer when a stage starts or ends.
type StageEvent struct {
	DocumentID uuid.UUID     `json:"document_id"`
	Stage      Stage         `json:"stage"`
	Status     StageStatus   `json:"status"`
	Duration   time.Duration `json:"duration,omitempty"`
	Err        error         `json:"-"`
}

// Observer receives stage events of a pipeline run. It may be nil.
type Observer func(StageEvent)

// Notify calls the observer if it is set.
func (o Observer) Notify(event StageEvent) {
	if o != nil {
		o(event)
	}
}

// StageError is a failure attributed to a pipeline stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with its stage. A nil err stays nil.
func NewStageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// ProcessingResult is the per-document outcome reported to callers.
// Success is only true if the metadata record was committed.
type ProcessingResult struct {
	Success           bool      `json:"success"`
	DocumentID        uuid.UUID `json:"document_id"`
	ChunkCount        int       `json:"chunk_count"`
	RelationshipCount int       `json:"relationship_count"`
	DroppedCandidates int       `json:"dropped_candidates"`
	Stage             Stage     `json:"stage,omitempty"`
	Message           string    `json:"message,omitempty"`
	Orphaned          bool      `json:"orphaned,omitempty"`
}

// NewFailedResult builds the result of a run that failed with err.
// The stage is taken from a StageError in the chain, fallback is used otherwise.
func NewFailedResult(documentID uuid.UUID, fallback Stage, err error) *ProcessingResult {
	stage := fallback
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		stage = stageErr.Stage
	}
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ProcessingResult{
		Success:    false,
		DocumentID: documentID,
		Stage:      stage,
		Message:    message,
	}
}
