// Package embeddings generates query and chunk embeddings through an
// OpenAI-compatible endpoint.
package embeddings

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"buildrag/internal/config"
	"buildrag/internal/logging"
	"buildrag/internal/retry"
)

// Service generates embeddings.
type Service interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// OpenAIService talks to an OpenAI-compatible embeddings endpoint. Transient
// failures are retried with backoff.
type OpenAIService struct {
	client    *openai.Client
	model     string
	dimension int
	timeout   time.Duration
	logger    logging.Logger
}

// NewOpenAIService builds the service from config.
func NewOpenAIService(cfg *config.EmbeddingConfig) (*OpenAIService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := 30 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &OpenAIService{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		dimension: cfg.Dimension,
		timeout:   timeout,
		logger:    logging.WithComponent("embeddings"),
	}, nil
}

// Embed generates one embedding.
func (s *OpenAIService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for all texts in one request, preserving
// input order.
func (s *OpenAIService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var resp openai.EmbeddingResponse
	err := retry.Do(ctx, retry.DefaultConfig(), func(ctx context.Context) error {
		var callErr error
		resp, callErr = s.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: texts,
			Model: openai.EmbeddingModel(s.model),
		})
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding response index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	for i, v := range vectors {
		if s.dimension > 0 && len(v) != s.dimension {
			return nil, fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(v), s.dimension)
		}
	}

	s.logger.Debug("embeddings generated", "count", len(vectors), "model", s.model)
	return vectors, nil
}

// Dimension returns the configured vector size.
func (s *OpenAIService) Dimension() int {
	return s.dimension
}
