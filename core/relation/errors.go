package relation

import "errors"

var (
	// ErrMalformedJudgment is returned for inference output that is not a valid judgment.
	ErrMalformedJudgment = errors.New("malformed judgment")
	// ErrUnknownType marks a judgment whose type is outside the vocabulary of the candidate category.
	ErrUnknownType = errors.New("relationship type not in vocabulary")
	// ErrProviderUnavailable is returned when no candidate could be characterized because every provider call failed.
	ErrProviderUnavailable = errors.New("inference provider unavailable")
)
