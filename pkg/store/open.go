package store

import (
	"context"
	"fmt"

	"github.com/xhad/agentic/pkg/config"
)

// Open returns the index selected by cfg.Backend. emb is only used by the
// chroma backend.
func Open(ctx context.Context, cfg config.StoreConfig, emb QueryEmbedder) (Index, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		return OpenFileIndex(cfg.Path)
	case config.BackendPGVector:
		return NewPGVectorIndex(ctx, VectorStoreConfig{
			ConnString: cfg.DatabaseURL,
			TableName:  cfg.TableName,
			VectorDim:  cfg.VectorDim,
			BatchSize:  cfg.BatchSize,
		})
	case config.BackendChroma:
		return NewChromaIndex(ctx, cfg.ChromaURL, cfg.Collection, emb)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}
