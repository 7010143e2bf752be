package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/tmc/langchaingo/embeddings"
)

// EmbeddingCache stores vectors per model and text. GetMany returns one entry
// per text, nil for misses.
type EmbeddingCache interface {
	GetMany(ctx context.Context, model string, texts []string) ([][]float32, error)
	SetMany(ctx context.Context, model string, texts []string, vectors [][]float32) error
}

// Embedder wraps a langchaingo embedder and serves repeated texts from an
// optional cache.
type Embedder struct {
	client embeddings.Embedder
	model  string
	cache  EmbeddingCache
}

var _ embedding.Embedder = (*Embedder)(nil)

func NewEmbedder(client embeddings.Embedder, model string, cache EmbeddingCache) *Embedder {
	return &Embedder{
		client: client,
		model:  model,
		cache:  cache,
	}
}

func (e *Embedder) Model() string {
	return e.model
}

func (e *Embedder) GetType() string {
	return "LangChainGo"
}

// EmbedStrings implements eino's embedding.Embedder.
func (e *Embedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	vectors, err := e.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}

	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		out[i] = make([]float64, len(v))
		for j, f := range v {
			out[i][j] = float64(f)
		}
	}
	return out, nil
}

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	result := make([][]float32, len(texts))
	if e.cache != nil {
		cached, err := e.cache.GetMany(ctx, e.model, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to read embedding cache: %w", err)
		}
		copy(result, cached)
	}

	var (
		missTexts []string
		missIdx   []int
	)
	for i, v := range result {
		if v == nil {
			missTexts = append(missTexts, texts[i])
			missIdx = append(missIdx, i)
		}
	}
	if len(missTexts) == 0 {
		return result, nil
	}

	fresh, err := e.client.EmbedDocuments(ctx, missTexts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(fresh), len(missTexts))
	}
	for i, v := range fresh {
		result[missIdx[i]] = v
	}

	if e.cache != nil {
		if err := e.cache.SetMany(ctx, e.model, missTexts, fresh); err != nil {
			return nil, fmt.Errorf("failed to write embedding cache: %w", err)
		}
	}

	return result, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
