// Package embedding converts tender descriptions and search queries into
// fixed-length vectors.
package embedding

import (
	"context"
	"fmt"
)

// Embedder turns text into a vector. Implementations must be deterministic
// for identical input and always return Dimensions() floats.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// BatchEmbedder is implemented by embedders that can embed many texts at once.
type BatchEmbedder interface {
	Embedder
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Provider names accepted by New.
const (
	ProviderHash   = "hash"
	ProviderOllama = "ollama"
)

// Config selects and parameterises an embedder.
type Config struct {
	Provider      string
	Dimensions    int
	OllamaBaseURL string
	OllamaModel   string
}

// New builds the embedder named by cfg.Provider.
func New(cfg Config) (BatchEmbedder, error) {
	switch cfg.Provider {
	case "", ProviderHash:
		return NewHashEmbedder(cfg.Dimensions), nil
	case ProviderOllama:
		if cfg.OllamaModel == "" {
			return nil, fmt.Errorf("ollama embedder: model is required")
		}
		return NewOllamaEmbedder(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// EmbedAll embeds texts with e, using EmbedBatch when available.
func EmbedAll(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	if be, ok := e.(BatchEmbedder); ok {
		return be.EmbedBatch(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
