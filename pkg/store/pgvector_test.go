package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/agentic/internal/models"
	"github.com/xhad/agentic/pkg/store"
)

func getTestConfig(t *testing.T) store.VectorStoreConfig {
	url := os.Getenv("AGENTIC_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("AGENTIC_TEST_DATABASE_URL not set")
	}
	return store.VectorStoreConfig{
		ConnString: url,
		TableName:  "test_chunks",
		VectorDim:  3,
	}
}

func TestPGVectorIndex(t *testing.T) {
	ctx := context.Background()
	config := getTestConfig(t)

	s, err := store.NewPGVectorIndex(ctx, config)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Reset(ctx))

	chunks := []models.Chunk{
		{ID: "c1", DocumentID: "d1", Source: "https://example.com/1", Title: "One", Text: "This is chunk 1", Embedding: []float32{1, 0, 0}},
		{ID: "c2", DocumentID: "d1", Source: "https://example.com/1", Title: "One", Text: "This is chunk 2", Index: 1, Embedding: []float32{0, 1, 0}},
		{ID: "c3", DocumentID: "d2", Source: "https://example.com/2", Title: "Two", Text: "This is chunk 3", Embedding: []float32{0, 0, 1}},
	}
	require.NoError(t, s.Add(ctx, chunks))
	require.NoError(t, s.Add(ctx, chunks[:1]), "re-adding must upsert")

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	results, err := s.Search(ctx, store.Query{Vector: []float32{0.9, 0.1, 0}}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ID)
	assert.Equal(t, "One", results[0].Title)
	assert.Greater(t, results[0].Score, float32(0.9))

	require.NoError(t, s.DeleteDocument(ctx, "d1"))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPGVectorIndexDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	config := getTestConfig(t)

	s, err := store.NewPGVectorIndex(ctx, config)
	require.NoError(t, err)
	defer s.Close()

	err = s.Add(ctx, []models.Chunk{{ID: "bad", Embedding: []float32{1}}})
	assert.ErrorIs(t, err, store.ErrDimensionMismatch)
}

func TestPGVectorIndexRejectsTableName(t *testing.T) {
	_, err := store.NewPGVectorIndex(context.Background(), store.VectorStoreConfig{
		ConnString: "postgres://localhost/none",
		TableName:  "chunks; DROP TABLE users",
	})
	assert.ErrorContains(t, err, "invalid table name")
}
