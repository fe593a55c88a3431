package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/tenderscope/internal/ollama"
	"github.com/kalambet/tenderscope/internal/tender"
)

const ollamaBatchSize = 32

// OllamaEmbedder embeds text with a model served by a local Ollama instance.
type OllamaEmbedder struct {
	client *ollama.Client
	model  string
	dims   int
}

// NewOllamaEmbedder creates an embedder for model at baseURL. dims is the
// vector size the model produces; every response is checked against it.
func NewOllamaEmbedder(baseURL, model string, dims int) *OllamaEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &OllamaEmbedder{client: ollama.New(baseURL), model: model, dims: dims}
}

// Client exposes the underlying Ollama client for readiness checks.
func (e *OllamaEmbedder) Client() *ollama.Client { return e.client }

// Model returns the configured embedding model.
func (e *OllamaEmbedder) Model() string { return e.model }

func (e *OllamaEmbedder) Dimensions() int { return e.dims }

// Embed returns the embedding vector for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.client.Embed(ctx, e.model, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(vec) != e.dims {
		return nil, fmt.Errorf("model %s: %w", e.model, &tender.DimensionMismatchError{Want: e.dims, Got: len(vec)})
	}
	return vec, nil
}

// EmbedBatch embeds texts in sub-batches concurrently. Returns nil (not
// error) for empty input.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to avoid overwhelming Ollama.

	for start := 0; start < len(texts); start += ollamaBatchSize {
		end := min(start+ollamaBatchSize, len(texts))
		g.Go(func() error {
			vecs, err := e.client.EmbedMany(gCtx, e.model, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding texts %d-%d: %w", start, end-1, err)
			}
			for i, v := range vecs {
				if len(v) != e.dims {
					return fmt.Errorf("model %s: %w", e.model, &tender.DimensionMismatchError{Want: e.dims, Got: len(v)})
				}
				results[start+i] = v
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
