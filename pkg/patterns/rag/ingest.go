// Package rag answers questions from a local knowledge base: documents are
// chunked, embedded and indexed, and each question is answered from the
// retrieved chunks that a relevance check keeps.
package rag

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/xhad/agentic/internal/models"
	"github.com/xhad/agentic/pkg/processor"
	"github.com/xhad/agentic/pkg/store"
)

// Embedder is satisfied by *llm.Embedder.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SiteScraper is satisfied by *scraper.Scraper.
type SiteScraper interface {
	Scrape(ctx context.Context, startURL string) ([]models.Document, error)
}

var textExtensions = map[string]bool{".txt": true, ".md": true}

// LoadDir reads every .txt and .md file below dir, in lexical order. Empty
// files are skipped.
func LoadDir(dir string) ([]models.Document, error) {
	var docs []models.Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !textExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		content := string(data)
		if strings.TrimSpace(content) == "" {
			return nil
		}

		docs = append(docs, models.Document{
			ID:      uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(path))).String(),
			URL:     filepath.ToSlash(path),
			Title:   documentTitle(path, content),
			Content: content,
			Metadata: map[string]interface{}{
				"kind": "file",
			},
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load documents from %s: %w", dir, err)
	}
	return docs, nil
}

// documentTitle is the first markdown heading, or the file name.
func documentTitle(path, content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			if title := strings.TrimSpace(strings.TrimLeft(line, "#")); title != "" {
				return title
			}
		}
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// LoadURLs crawls each start URL with s.
func LoadURLs(ctx context.Context, s SiteScraper, urls []string) ([]models.Document, error) {
	var docs []models.Document
	for _, u := range urls {
		pages, err := s.Scrape(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("failed to scrape %s: %w", u, err)
		}
		docs = append(docs, pages...)
	}
	return docs, nil
}

type IngestConfig struct {
	BatchSize int
	// FixedSize chunks by length with overlap instead of by topic, which
	// saves embedding every sentence.
	FixedSize bool
	Logger    *slog.Logger
	// OnProgress reports how many chunks have been indexed so far.
	OnProgress func(done, total int)
}

type IngestStats struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}

type Ingester struct {
	processor *processor.Processor
	embedder  Embedder
	index     store.Index
	config    IngestConfig
	logger    *slog.Logger
}

func NewIngester(p *processor.Processor, emb Embedder, index store.Index, config IngestConfig) *Ingester {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{
		processor: p,
		embedder:  emb,
		index:     index,
		config:    config,
		logger:    logger,
	}
}

// Ingest chunks docs, embeds the chunks and adds them to the index in
// batches.
func (in *Ingester) Ingest(ctx context.Context, docs []models.Document) (*IngestStats, error) {
	stats := &IngestStats{Documents: len(docs)}

	var chunks []models.Chunk
	if in.config.FixedSize {
		chunks = in.processor.Process(docs)
	} else {
		var err error
		if chunks, err = in.processor.SemanticChunks(ctx, docs, in.embedder); err != nil {
			return nil, err
		}
	}
	in.logger.Info("chunked documents", slog.Int("documents", len(docs)), slog.Int("chunks", len(chunks)))

	// Drop earlier versions first so a shorter document leaves no stale
	// chunks behind.
	seen := make(map[string]bool, len(docs))
	for _, d := range docs {
		if d.ID == "" || seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		if err := in.index.DeleteDocument(ctx, d.ID); err != nil {
			return nil, fmt.Errorf("failed to replace document %s: %w", d.ID, err)
		}
	}

	for start := 0; start < len(chunks); start += in.config.BatchSize {
		end := min(start+in.config.BatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := in.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks: %w", err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}
		for i := range batch {
			batch[i].Embedding = vectors[i]
		}

		if err := in.index.Add(ctx, batch); err != nil {
			return nil, fmt.Errorf("failed to index chunks: %w", err)
		}
		stats.Chunks = end
		if in.config.OnProgress != nil {
			in.config.OnProgress(end, len(chunks))
		}
	}
	return stats, nil
}
