package store

import (
	"context"
	"errors"
	"fmt"

	chroma "github.com/amikos-tech/chroma-go"
	"github.com/amikos-tech/chroma-go/types"
	"github.com/xhad/agentic/internal/models"
)

// QueryEmbedder is what the chroma collection needs to embed query texts on
// the client side.
type QueryEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ChromaIndex keeps chunks in a chroma collection using cosine distance.
// Chunks are added with precomputed embeddings; searches go by query text.
type ChromaIndex struct {
	ch   *chroma.Client
	coll *chroma.Collection
}

func NewChromaIndex(ctx context.Context, addr, collection string, emb QueryEmbedder) (*ChromaIndex, error) {
	ch, err := chroma.NewClient(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}

	coll, err := ch.CreateCollection(
		ctx,
		collection,
		map[string]any{},
		/*createOrGet=*/ true,
		newChromaEmbedder(emb),
		types.COSINE,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open chroma collection %s: %w", collection, err)
	}

	return &ChromaIndex{ch: ch, coll: coll}, nil
}

func (c *ChromaIndex) Add(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	embs := make([]*types.Embedding, 0, len(chunks))
	metas := make([]map[string]any, 0, len(chunks))
	texts := make([]string, 0, len(chunks))
	ids := make([]string, 0, len(chunks))

	for _, chunk := range chunks {
		v32 := chunk.Embedding
		embs = append(embs, &types.Embedding{ArrayOfFloat32: &v32})
		metas = append(metas, map[string]any{
			"document_id": chunk.DocumentID,
			"source":      chunk.Source,
			"title":       chunk.Title,
			"chunk_index": chunk.Index,
		})
		texts = append(texts, chunk.Text)
		ids = append(ids, chunk.ID)
	}

	if _, err := c.coll.Upsert(ctx, embs, metas, texts, ids); err != nil {
		return fmt.Errorf("failed to upsert chunks to chroma: %w", err)
	}
	return nil
}

func (c *ChromaIndex) DeleteDocument(ctx context.Context, documentID string) error {
	where := map[string]interface{}{"document_id": map[string]interface{}{"$eq": documentID}}
	if _, err := c.coll.Delete(ctx, nil, where, nil); err != nil {
		return fmt.Errorf("failed to delete document %s from chroma: %w", documentID, err)
	}
	return nil
}

func (c *ChromaIndex) Search(ctx context.Context, q Query, k int) ([]models.ScoredChunk, error) {
	if q.Text == "" {
		return nil, errors.New("chroma search needs query text")
	}

	res, err := c.coll.Query(ctx, []string{q.Text}, int32(k), nil, nil,
		[]types.QueryEnum{types.IDocuments, types.IDistances, types.IMetadatas})
	if err != nil {
		return nil, fmt.Errorf("failed to query chroma: %w", err)
	}

	var results []models.ScoredChunk
	for i := range res.Documents {
		for j := range res.Documents[i] {
			sc := models.ScoredChunk{
				Chunk: models.Chunk{
					ID:   res.Ids[i][j],
					Text: res.Documents[i][j],
				},
			}
			if i < len(res.Distances) && j < len(res.Distances[i]) {
				sc.Score = 1 - float32(res.Distances[i][j])
			}
			if i < len(res.Metadatas) && j < len(res.Metadatas[i]) {
				applyChromaMetadata(&sc.Chunk, res.Metadatas[i][j])
			}
			results = append(results, sc)
		}
	}
	return results, nil
}

func (c *ChromaIndex) Count(ctx context.Context) (int, error) {
	n, err := c.coll.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count chroma collection: %w", err)
	}
	return int(n), nil
}

func (c *ChromaIndex) Close() error {
	return nil
}

func applyChromaMetadata(chunk *models.Chunk, meta map[string]interface{}) {
	if meta == nil {
		return
	}
	if v, ok := meta["document_id"].(string); ok {
		chunk.DocumentID = v
	}
	if v, ok := meta["source"].(string); ok {
		chunk.Source = v
	}
	if v, ok := meta["title"].(string); ok {
		chunk.Title = v
	}
	switch v := meta["chunk_index"].(type) {
	case float64:
		chunk.Index = int(v)
	case int:
		chunk.Index = v
	case int64:
		chunk.Index = int(v)
	}
}

type chromaEmbedder struct {
	emb QueryEmbedder
}

var _ types.EmbeddingFunction = (*chromaEmbedder)(nil)

func newChromaEmbedder(emb QueryEmbedder) types.EmbeddingFunction {
	return &chromaEmbedder{emb: emb}
}

func (e *chromaEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([]*types.Embedding, error) {
	vectors, err := e.emb.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	embs := make([]*types.Embedding, 0, len(vectors))
	for _, v := range vectors {
		v32 := v
		embs = append(embs, &types.Embedding{ArrayOfFloat32: &v32})
	}
	return embs, nil
}

func (e *chromaEmbedder) EmbedQuery(ctx context.Context, text string) (*types.Embedding, error) {
	v32, err := e.emb.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return &types.Embedding{ArrayOfFloat32: &v32}, nil
}

func (e *chromaEmbedder) EmbedRecords(ctx context.Context, records []*types.Record, force bool) error {
	return errors.New("chroma records are not supported")
}
