package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/agentic/internal/models"
)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
}

// PGVectorIndex stores chunks in a Postgres table with a pgvector column and
// an ivfflat cosine index.
type PGVectorIndex struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewPGVectorIndex(ctx context.Context, config VectorStoreConfig) (*PGVectorIndex, error) {
	if config.TableName == "" {
		config.TableName = "chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if !validIdentifier(config.TableName) {
		return nil, fmt.Errorf("invalid table name: %q", config.TableName)
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &PGVectorIndex{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *PGVectorIndex) initialize(ctx context.Context) error {
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			source TEXT NOT NULL,
			title TEXT,
			content TEXT,
			chunk_index INTEGER,
			embedding vector(%d),
			metadata JSONB
		)`, vs.config.TableName, vs.config.VectorDim)

	if _, err = vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.TableName, vs.config.TableName)

	if _, err = vs.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Add upserts chunks in batches of BatchSize inside a single transaction.
func (vs *PGVectorIndex) Add(ctx context.Context, chunks []models.Chunk) error {
	for _, c := range chunks {
		if len(c.Embedding) != vs.config.VectorDim {
			return fmt.Errorf("%w: chunk %s has %d, table has %d", ErrDimensionMismatch, c.ID, len(c.Embedding), vs.config.VectorDim)
		}
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, document_id, source, title, content, chunk_index, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		vs.config.TableName)

	for start := 0; start < len(chunks); start += vs.config.BatchSize {
		end := min(start+vs.config.BatchSize, len(chunks))

		batch := &pgx.Batch{}
		for _, c := range chunks[start:end] {
			batch.Queue(stmt,
				c.ID,
				c.DocumentID,
				c.Source,
				strings.ToValidUTF8(c.Title, ""),
				strings.ToValidUTF8(c.Text, ""),
				c.Index,
				pgvector.NewVector(c.Embedding),
				c.Metadata,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (vs *PGVectorIndex) DeleteDocument(ctx context.Context, documentID string) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE document_id = $1", vs.config.TableName)
	if _, err := vs.pool.Exec(ctx, stmt, documentID); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", documentID, err)
	}
	return nil
}

func (vs *PGVectorIndex) Search(ctx context.Context, q Query, k int) ([]models.ScoredChunk, error) {
	query := fmt.Sprintf(`
		SELECT id, document_id, source, COALESCE(title, ''), content, chunk_index, metadata,
			1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(q.Vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var results []models.ScoredChunk
	for rows.Next() {
		var (
			sc    models.ScoredChunk
			score float64
		)
		err := rows.Scan(
			&sc.ID,
			&sc.DocumentID,
			&sc.Source,
			&sc.Title,
			&sc.Text,
			&sc.Index,
			&sc.Metadata,
			&score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		sc.Score = float32(score)
		results = append(results, sc)
	}

	return results, rows.Err()
}

func (vs *PGVectorIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := vs.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", vs.config.TableName)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// Reset drops every stored chunk.
func (vs *PGVectorIndex) Reset(ctx context.Context) error {
	if _, err := vs.pool.Exec(ctx, fmt.Sprintf("TRUNCATE %s", vs.config.TableName)); err != nil {
		return fmt.Errorf("failed to truncate table: %w", err)
	}
	return nil
}

func (vs *PGVectorIndex) Close() error {
	if vs.pool != nil {
		vs.pool.Close()
	}
	return nil
}

func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
