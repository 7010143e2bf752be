package store

import (
	"context"
	"errors"

	"github.com/xhad/agentic/internal/models"
)

var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Query carries both forms of a search so that backends embedding on their
// own side (chroma) and backends searching by vector can share one call.
type Query struct {
	Text   string
	Vector []float32
}

// Index is a vector index over chunks. Add upserts by chunk ID. Search
// returns at most k chunks ordered by descending similarity score.
type Index interface {
	Add(ctx context.Context, chunks []models.Chunk) error
	// DeleteDocument removes every chunk of a document. Unknown ids are not
	// an error.
	DeleteDocument(ctx context.Context, documentID string) error
	Search(ctx context.Context, q Query, k int) ([]models.ScoredChunk, error)
	Count(ctx context.Context) (int, error)
	Close() error
}
