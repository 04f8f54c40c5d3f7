package relation

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedInference limits the request rate of an inference provider with a token bucket.
type RateLimitedInference struct {
	provider InferenceProvider
	limiter  *rate.Limiter
}

// NewRateLimitedInference wraps provider. A non-positive requestsPerSecond disables limiting,
// a non-positive burst is raised to 1.
func NewRateLimitedInference(provider InferenceProvider, requestsPerSecond float64, burst int) *RateLimitedInference {
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}

	return &RateLimitedInference{
		provider: provider,
		limiter:  rate.NewLimiter(limit, burst),
	}
}

// Infer waits for a token, then calls the wrapped provider.
func (r *RateLimitedInference) Infer(ctx context.Context, prompt PromptContext) ([]byte, error) {
	err := r.limiter.Wait(ctx)
	if err != nil {
		return nil, err
	}
	return r.provider.Infer(ctx, prompt)
}
