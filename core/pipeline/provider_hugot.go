package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/siherrmann/docgrapher/helper"
	"github.com/siherrmann/docgrapher/model"
)

// HugotProvider embeds texts with a local sentence transformer model.
// The default all-MiniLM-L6-v2 model produces 384-dimensional embeddings.
type HugotProvider struct {
	mu        sync.Mutex
	session   *hugot.Session
	pipeline  *pipelines.FeatureExtractionPipeline
	model     string
	dimension int
}

// NewHugotProvider downloads the configured model if needed and starts a hugot session with the Go backend.
func NewHugotProvider(config model.EmbeddingConfig) (*HugotProvider, error) {
	modelPath, err := helper.PrepareModel(config.Model, config.OnnxFile)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	pipelineConfig := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, pipelineConfig)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	return &HugotProvider{
		session:   session,
		pipeline:  sentencePipeline,
		model:     config.Model,
		dimension: config.Dimension,
	}, nil
}

// Embed runs the sentence pipeline on all texts at once.
func (p *HugotProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	result, err := p.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	return result.Embeddings, nil
}

// Model returns the model name.
func (p *HugotProvider) Model() string {
	return p.model
}

// Dimension returns the declared embedding dimension.
func (p *HugotProvider) Dimension() int {
	return p.dimension
}

// Close destroys the hugot session.
func (p *HugotProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session.Destroy()
}
