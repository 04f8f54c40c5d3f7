package pipeline

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"strconv"

	"github.com/siherrmann/docgrapher/model"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

var statusCodePattern = regexp.MustCompile(`status code:? (\d{3})`)

// OpenAIProvider embeds texts through any OpenAI-compatible embeddings endpoint.
type OpenAIProvider struct {
	embedder  embeddings.Embedder
	model     string
	dimension int
	logger    *slog.Logger
}

// NewOpenAIProvider creates a provider from the embedding configuration.
// The token is read from the environment variable named by APIKeyEnv, "none" for
// local services without authentication.
func NewOpenAIProvider(config model.EmbeddingConfig, logger *slog.Logger) (*OpenAIProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	token := os.Getenv(config.APIKeyEnv)
	if token == "" {
		token = "none"
	}

	options := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(config.Model),
	}
	if config.BaseURL != "" {
		options = append(options, openai.WithBaseURL(config.BaseURL))
	}

	client, err := openai.New(options...)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(
		client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(config.BatchSize),
	)
	if err != nil {
		return nil, err
	}

	return &OpenAIProvider{
		embedder:  embedder,
		model:     config.Model,
		dimension: config.Dimension,
		logger:    logger.With("component", "openai-embedder"),
	}, nil
}

// Embed embeds texts in one request. Failures carrying a status code are
// returned as *StatusError so that 5xx responses are retried.
func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	p.logger.Debug("Generating embeddings", "count", len(texts))

	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		p.logger.Error("Failed to generate embeddings", "count", len(texts), "error", err)
		return nil, classifyStatus(err)
	}
	return vectors, nil
}

// Model returns the embedding model name.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Dimension returns the declared embedding dimension.
func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}

func classifyStatus(err error) error {
	match := statusCodePattern.FindStringSubmatch(err.Error())
	if match == nil {
		return err
	}
	code, convErr := strconv.Atoi(match[1])
	if convErr != nil {
		return err
	}
	return &StatusError{StatusCode: code, Err: err}
}
