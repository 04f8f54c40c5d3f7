package docgrapher

import (
	"log/slog"

	"github.com/siherrmann/docgrapher/core/pipeline"
	"github.com/siherrmann/docgrapher/core/relation"
	"github.com/siherrmann/docgrapher/helper"
)

// Option configures a DocGrapher.
type Option func(*DocGrapher) error

// WithLogger sets a custom logger.
// Default is a pretty handler on stdout at info level.
func WithLogger(logger *slog.Logger) Option {
	return func(g *DocGrapher) error {
		if logger != nil {
			g.log = logger
		}
		return nil
	}
}

// WithEmbeddingProvider replaces the provider built from the embedding config.
// The provider is still wrapped by the circuit breaker.
func WithEmbeddingProvider(provider pipeline.EmbeddingProvider) Option {
	return func(g *DocGrapher) error {
		g.embeddingProvider = provider
		return nil
	}
}

// WithInferenceProvider replaces the provider built from the relations config.
// The provider is still rate limited.
func WithInferenceProvider(provider relation.InferenceProvider) Option {
	return func(g *DocGrapher) error {
		g.inferenceProvider = provider
		return nil
	}
}

// WithAnalyzer sets an analyzer used for documents processed without an analysis.
func WithAnalyzer(analyzer pipeline.Analyzer) Option {
	return func(g *DocGrapher) error {
		g.analyzer = analyzer
		return nil
	}
}

// WithCollector sets the metrics collector.
// Default is a new collector in the "docgrapher" namespace.
func WithCollector(collector *helper.Collector) Option {
	return func(g *DocGrapher) error {
		if collector != nil {
			g.Metrics = collector
		}
		return nil
	}
}
