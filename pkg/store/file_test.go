package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/agentic/internal/models"
	"github.com/xhad/agentic/pkg/config"
	"github.com/xhad/agentic/pkg/store"
)

func testChunks() []models.Chunk {
	return []models.Chunk{
		{ID: "a", DocumentID: "d1", Source: "a.md", Text: "cats purr", Embedding: []float32{1, 0}},
		{ID: "b", DocumentID: "d1", Source: "a.md", Text: "dogs bark", Index: 1, Embedding: []float32{0, 1}},
		{ID: "c", DocumentID: "d2", Source: "b.md", Text: "kittens", Embedding: []float32{0.8, 0.2}},
	}
}

func TestFileIndex(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "index.json")

	idx, err := store.OpenFileIndex(path)
	require.NoError(t, err)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, idx.Add(ctx, testChunks()))

	results, err := idx.Search(ctx, store.Query{Vector: []float32{1, 0}}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "c", results[1].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)

	// persisted state is visible to a fresh handle
	reopened, err := store.OpenFileIndex(path)
	require.NoError(t, err)
	n, err = reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestFileIndexUpsert(t *testing.T) {
	ctx := context.Background()
	idx, err := store.OpenFileIndex(filepath.Join(t.TempDir(), "index.json"))
	require.NoError(t, err)

	require.NoError(t, idx.Add(ctx, testChunks()))
	updated := models.Chunk{ID: "b", Text: "dogs howl", Embedding: []float32{1, 0}}
	require.NoError(t, idx.Add(ctx, []models.Chunk{updated}))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	results, err := idx.Search(ctx, store.Query{Vector: []float32{0, 1}}, 3)
	require.NoError(t, err)
	for _, r := range results {
		if r.ID == "b" {
			assert.Equal(t, "dogs howl", r.Text)
		}
	}
}

func TestFileIndexErrors(t *testing.T) {
	ctx := context.Background()
	idx, err := store.OpenFileIndex(filepath.Join(t.TempDir(), "index.json"))
	require.NoError(t, err)

	results, err := idx.Search(ctx, store.Query{Vector: []float32{1, 0}}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)

	err = idx.Add(ctx, []models.Chunk{{ID: "x"}})
	assert.ErrorContains(t, err, "no embedding")

	require.NoError(t, idx.Add(ctx, testChunks()))
	err = idx.Add(ctx, []models.Chunk{{ID: "y", Embedding: []float32{1, 2, 3}}})
	assert.ErrorIs(t, err, store.ErrDimensionMismatch)

	_, err = idx.Search(ctx, store.Query{Vector: []float32{1}}, 1)
	assert.ErrorIs(t, err, store.ErrDimensionMismatch)
}

func TestFileIndexDeleteDocument(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.json")
	idx, err := store.OpenFileIndex(path)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, testChunks()))

	require.NoError(t, idx.DeleteDocument(ctx, "d1"))
	require.NoError(t, idx.DeleteDocument(ctx, "missing"))

	results, err := idx.Search(ctx, store.Query{Vector: []float32{1, 0}}, 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c", results[0].ID)

	// ids of the remaining chunks still upsert in place
	require.NoError(t, idx.Add(ctx, []models.Chunk{{ID: "c", DocumentID: "d2", Text: "cats", Embedding: []float32{1, 0}}}))
	reopened, err := store.OpenFileIndex(path)
	require.NoError(t, err)
	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFileIndexFailedSaveKeepsState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.json")
	idx, err := store.OpenFileIndex(path)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, testChunks()))

	// a non-empty directory in place of the file makes the rename fail
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.MkdirAll(filepath.Join(path, "blocker"), 0755))

	err = idx.Add(ctx, []models.Chunk{{ID: "d", DocumentID: "d3", Text: "new", Embedding: []float32{1, 0}}})
	require.Error(t, err)
	err = idx.DeleteDocument(ctx, "d1")
	require.Error(t, err)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	results, err := idx.Search(ctx, store.Query{Vector: []float32{1, 0}}, 3)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "d", r.ID)
	}
}

func TestOpenFileIndexCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := store.OpenFileIndex(path)
	assert.ErrorContains(t, err, "failed to parse index file")
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	idx, err := store.Open(ctx, config.StoreConfig{
		Backend: config.BackendFile,
		Path:    filepath.Join(t.TempDir(), "index.json"),
	}, nil)
	require.NoError(t, err)
	assert.IsType(t, &store.FileIndex{}, idx)
	require.NoError(t, idx.Close())

	_, err = store.Open(ctx, config.StoreConfig{Backend: "faiss"}, nil)
	assert.ErrorContains(t, err, "unknown store backend")
}
