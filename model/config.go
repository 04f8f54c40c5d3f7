package model

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned for configurations rejected at startup.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	ProviderHugot  = "hugot"
	ProviderOpenAI = "openai"
)

// ChunkingConfig controls chunk boundaries. Budgets are in estimated tokens.
type ChunkingConfig struct {
	MaxTokens      int     `yaml:"max_tokens"`
	SubChunkTokens int     `yaml:"sub_chunk_tokens"`
	ChunkTokens    int     `yaml:"chunk_tokens"`
	OverlapTokens  int     `yaml:"overlap_tokens"`
	CharsPerToken  int     `yaml:"chars_per_token"`
	BoundaryWindow float64 `yaml:"boundary_window"`
}

// EmbeddingConfig controls batching, retries and the embedding provider.
type EmbeddingConfig struct {
	Provider           string        `yaml:"provider"`
	Model              string        `yaml:"model"`
	OnnxFile           string        `yaml:"onnx_file"`
	Dimension          int           `yaml:"dimension"`
	BaseURL            string        `yaml:"base_url"`
	APIKeyEnv          string        `yaml:"api_key_env"`
	BatchSize          int           `yaml:"batch_size"`
	MaxAttempts        int           `yaml:"max_attempts"`
	InitialBackoff     time.Duration `yaml:"initial_backoff"`
	MaxBackoff         time.Duration `yaml:"max_backoff"`
	BreakerMaxFailures uint32        `yaml:"breaker_max_failures"`
	BreakerTimeout     time.Duration `yaml:"breaker_timeout"`
}

// RelationsConfig controls candidate discovery and characterization.
type RelationsConfig struct {
	TopK             int     `yaml:"top_k"`
	MinSimilarity    float64 `yaml:"min_similarity"`
	MinConfidence    float64 `yaml:"min_confidence"`
	InferenceModel   string  `yaml:"inference_model"`
	BaseURL          string  `yaml:"base_url"`
	APIKeyEnv        string  `yaml:"api_key_env"`
	MaxPromptChars   int     `yaml:"max_prompt_chars"`
	RequestsPerSec   float64 `yaml:"requests_per_second"`
	Burst            int     `yaml:"burst"`
	DisableInference bool    `yaml:"disable_inference"`
}

// StorageConfig controls the backing stores.
// An empty VectorIndex.Type keeps the index created with the vectors table.
type StorageConfig struct {
	BadgerDir     string            `yaml:"badger_dir"`
	ForceSQL      bool              `yaml:"force_sql"`
	SweepInterval time.Duration     `yaml:"sweep_interval"`
	VectorIndex   VectorIndexConfig `yaml:"vector_index"`
}

// PipelineConfig is the complete configuration of a docgrapher instance.
type PipelineConfig struct {
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Relations RelationsConfig `yaml:"relations"`
	Storage   StorageConfig   `yaml:"storage"`
	Workers   int             `yaml:"workers"`
}

// DefaultPipelineConfig returns the default configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Chunking: ChunkingConfig{
			MaxTokens:      1000,
			SubChunkTokens: 800,
			ChunkTokens:    1000,
			OverlapTokens:  200,
			CharsPerToken:  4,
			BoundaryWindow: 0.3,
		},
		Embedding: EmbeddingConfig{
			Provider:           ProviderHugot,
			Model:              "sentence-transformers/all-MiniLM-L6-v2",
			OnnxFile:           "onnx/model.onnx",
			Dimension:          384,
			APIKeyEnv:          "OPENAI_API_KEY",
			BatchSize:          20,
			MaxAttempts:        3,
			InitialBackoff:     500 * time.Millisecond,
			MaxBackoff:         10 * time.Second,
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
		},
		Relations: RelationsConfig{
			TopK:           10,
			MinSimilarity:  0.7,
			MinConfidence:  0.6,
			InferenceModel: "gpt-4o-mini",
			APIKeyEnv:      "OPENAI_API_KEY",
			MaxPromptChars: 2000,
			RequestsPerSec: 5,
			Burst:          5,
		},
		Storage: StorageConfig{
			BadgerDir:     "./data/content",
			SweepInterval: 0,
		},
		Workers: 4,
	}
}

// LoadPipelineConfig reads a YAML config on top of the defaults.
// A missing file yields the defaults.
func LoadPipelineConfig(path string) (PipelineConfig, error) {
	config := DefaultPipelineConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config, nil
		}
		return config, err
	}

	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return config, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return config, config.Validate()
}

// Validate rejects non-positive budgets and sizes and thresholds outside [0,1].
func (c PipelineConfig) Validate() error {
	var errs []error
	positive := map[string]int{
		"chunking.max_tokens":       c.Chunking.MaxTokens,
		"chunking.sub_chunk_tokens": c.Chunking.SubChunkTokens,
		"chunking.chunk_tokens":     c.Chunking.ChunkTokens,
		"chunking.chars_per_token":  c.Chunking.CharsPerToken,
		"embedding.dimension":       c.Embedding.Dimension,
		"embedding.batch_size":      c.Embedding.BatchSize,
		"embedding.max_attempts":    c.Embedding.MaxAttempts,
		"relations.top_k":           c.Relations.TopK,
		"workers":                   c.Workers,
	}
	for _, name := range sortedKeys(positive) {
		if positive[name] <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, name, positive[name]))
		}
	}

	if c.Chunking.OverlapTokens < 0 || (c.Chunking.ChunkTokens > 0 && c.Chunking.OverlapTokens >= c.Chunking.ChunkTokens) {
		errs = append(errs, fmt.Errorf("%w: chunking.overlap_tokens must be in [0, chunk_tokens)", ErrInvalidConfig))
	}
	if c.Chunking.SubChunkTokens > c.Chunking.MaxTokens {
		errs = append(errs, fmt.Errorf("%w: chunking.sub_chunk_tokens must not exceed max_tokens", ErrInvalidConfig))
	}

	unit := map[string]float64{
		"chunking.boundary_window": c.Chunking.BoundaryWindow,
		"relations.min_similarity": c.Relations.MinSimilarity,
		"relations.min_confidence": c.Relations.MinConfidence,
	}
	for _, name := range sortedKeys(unit) {
		if unit[name] < 0 || unit[name] > 1 {
			errs = append(errs, fmt.Errorf("%w: %s must be within [0,1], got %v", ErrInvalidConfig, name, unit[name]))
		}
	}

	if c.Embedding.Provider != ProviderHugot && c.Embedding.Provider != ProviderOpenAI {
		errs = append(errs, fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidConfig, c.Embedding.Provider))
	}
	if c.Embedding.InitialBackoff < 0 || c.Embedding.MaxBackoff < c.Embedding.InitialBackoff {
		errs = append(errs, fmt.Errorf("%w: embedding backoff must satisfy 0 <= initial_backoff <= max_backoff", ErrInvalidConfig))
	}
	if c.Relations.RequestsPerSec < 0 || c.Relations.Burst < 0 {
		errs = append(errs, fmt.Errorf("%w: relations rate limit must not be negative", ErrInvalidConfig))
	}
	if c.Storage.SweepInterval < 0 {
		errs = append(errs, fmt.Errorf("%w: storage.sweep_interval must not be negative", ErrInvalidConfig))
	}
	if c.Storage.VectorIndex.Type != "" {
		err := c.Storage.VectorIndex.Validate()
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
