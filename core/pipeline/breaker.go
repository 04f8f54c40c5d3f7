package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/siherrmann/docgrapher/model"
	"github.com/sony/gobreaker"
)

// BreakerProvider guards an embedding provider with a circuit breaker.
// After BreakerMaxFailures consecutive failures calls fail fast with
// gobreaker.ErrOpenState until BreakerTimeout passed.
type BreakerProvider struct {
	next    EmbeddingProvider
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerProvider wraps next with a circuit breaker configured from config.
func NewBreakerProvider(next EmbeddingProvider, config model.EmbeddingConfig, logger *slog.Logger) *BreakerProvider {
	if logger == nil {
		logger = slog.Default()
	}
	maxFailures := config.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 1
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "embedding-" + next.Model(),
		MaxRequests: 1,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &BreakerProvider{
		next:    next,
		breaker: breaker,
	}
}

// Embed calls the wrapped provider unless the breaker is open.
func (p *BreakerProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.next.Embed(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return result.([][]float32), nil
}

// Model returns the model of the wrapped provider.
func (p *BreakerProvider) Model() string {
	return p.next.Model()
}

// Dimension returns the dimension of the wrapped provider.
func (p *BreakerProvider) Dimension() int {
	return p.next.Dimension()
}

// State returns the current breaker state.
func (p *BreakerProvider) State() gobreaker.State {
	return p.breaker.State()
}
