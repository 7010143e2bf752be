package store_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/agentic/internal/models"
	"github.com/xhad/agentic/pkg/store"
)

// keywordEmbedder maps texts onto two axes by keyword.
type keywordEmbedder struct{}

func (keywordEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = keywordEmbedder{}.EmbedQuery(ctx, t)
	}
	return out, nil
}

func (keywordEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.Contains(text, "cat") {
		return []float32{1, 0.1}, nil
	}
	return []float32{0.1, 1}, nil
}

func TestChromaIndex(t *testing.T) {
	addr := os.Getenv("AGENTIC_TEST_CHROMA_URL")
	if addr == "" {
		t.Skip("AGENTIC_TEST_CHROMA_URL not set")
	}
	ctx := context.Background()

	idx, err := store.NewChromaIndex(ctx, addr, "test-"+uuid.NewString()[:8], keywordEmbedder{})
	require.NoError(t, err)
	defer idx.Close()

	require.NoError(t, idx.Add(ctx, []models.Chunk{
		{ID: "c1", DocumentID: "d1", Source: "pets.md", Title: "Pets", Text: "the cat sleeps", Embedding: []float32{1, 0.1}},
		{ID: "c2", DocumentID: "d1", Source: "pets.md", Title: "Pets", Text: "the dog runs", Index: 1, Embedding: []float32{0.1, 1}},
	}))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	results, err := idx.Search(ctx, store.Query{Text: "where is the cat"}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ID)
	assert.Equal(t, "pets.md", results[0].Source)
	assert.Equal(t, "the cat sleeps", results[0].Text)

	require.NoError(t, idx.Add(ctx, []models.Chunk{
		{ID: "c1", DocumentID: "d1", Source: "pets.md", Title: "Pets", Text: "the cat naps", Embedding: []float32{1, 0.1}},
	}))
	results, err = idx.Search(ctx, store.Query{Text: "where is the cat"}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "the cat naps", results[0].Text)

	require.NoError(t, idx.DeleteDocument(ctx, "d1"))
	n, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
