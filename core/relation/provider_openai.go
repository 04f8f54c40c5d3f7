package relation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/siherrmann/docgrapher/helper"
	"github.com/siherrmann/docgrapher/model"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIInference judges candidates through an OpenAI-compatible chat endpoint in JSON mode.
type OpenAIInference struct {
	client llms.Model
	logger *slog.Logger
}

// NewOpenAIInference creates a chat client from the relations configuration.
// The token is read from the environment variable named by APIKeyEnv, "none" for
// local services without authentication.
func NewOpenAIInference(config model.RelationsConfig, logger *slog.Logger) (*OpenAIInference, error) {
	token := os.Getenv(config.APIKeyEnv)
	if token == "" {
		token = "none"
	}

	options := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(config.InferenceModel),
	}
	if config.BaseURL != "" {
		options = append(options, openai.WithBaseURL(config.BaseURL))
	}

	client, err := openai.New(options...)
	if err != nil {
		return nil, helper.NewError("openai client", err)
	}

	return NewOpenAIInferenceWithModel(client, logger), nil
}

// NewOpenAIInferenceWithModel wraps an existing langchaingo model.
func NewOpenAIInferenceWithModel(client llms.Model, logger *slog.Logger) *OpenAIInference {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIInference{
		client: client,
		logger: logger.With("component", "openai-inference"),
	}
}

// Infer requests one judgment at temperature 0 and returns the raw JSON
// with surrounding markdown fences removed. The output is not repaired.
func (i *OpenAIInference) Infer(ctx context.Context, prompt PromptContext) ([]byte, error) {
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(BuildSystemPrompt())},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(BuildUserPrompt(prompt))},
		},
	}

	response, err := i.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
	if err != nil {
		i.logger.Error("Failed to generate content", "target_id", prompt.Candidate.TargetID, "error", err)
		return nil, helper.NewError("generate content", err)
	}
	if len(response.Choices) < 1 {
		return nil, helper.NewError("generate content", fmt.Errorf("no choices returned from model"))
	}

	return []byte(stripCodeFences(response.Choices[0].Content)), nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
