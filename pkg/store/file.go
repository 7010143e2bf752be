package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"github.com/xhad/agentic/internal/models"
	"github.com/xhad/agentic/pkg/vecmath"
)

// FileIndex keeps every chunk in memory and persists them as one JSON file.
// Search is an exact cosine scan.
type FileIndex struct {
	path string

	mu     sync.RWMutex
	chunks []models.Chunk
	byID   map[string]int
}

type fileIndexData struct {
	Version int            `json:"version"`
	Chunks  []models.Chunk `json:"chunks"`
}

func OpenFileIndex(path string) (*FileIndex, error) {
	idx := &FileIndex{path: path, byID: make(map[string]int)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index file: %w", err)
	}

	var stored fileIndexData
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse index file %s: %w", path, err)
	}
	for _, c := range stored.Chunks {
		idx.byID[c.ID] = len(idx.chunks)
		idx.chunks = append(idx.chunks, c)
	}
	return idx, nil
}

// Add upserts chunks by ID and rewrites the file.
func (f *FileIndex) Add(ctx context.Context, chunks []models.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dim := f.dimension()
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", c.ID)
		}
		if dim == 0 {
			dim = len(c.Embedding)
		}
		if len(c.Embedding) != dim {
			return fmt.Errorf("%w: chunk %s has %d, index has %d", ErrDimensionMismatch, c.ID, len(c.Embedding), dim)
		}
	}

	next := slices.Clone(f.chunks)
	byID := maps.Clone(f.byID)
	for _, c := range chunks {
		if i, ok := byID[c.ID]; ok {
			next[i] = c
			continue
		}
		byID[c.ID] = len(next)
		next = append(next, c)
	}
	return f.commit(next, byID)
}

func (f *FileIndex) DeleteDocument(ctx context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := make([]models.Chunk, 0, len(f.chunks))
	for _, c := range f.chunks {
		if c.DocumentID != documentID {
			next = append(next, c)
		}
	}
	if len(next) == len(f.chunks) {
		return nil
	}

	byID := make(map[string]int, len(next))
	for i, c := range next {
		byID[c.ID] = i
	}
	return f.commit(next, byID)
}

// commit writes chunks to disk and only then makes them the live state.
func (f *FileIndex) commit(chunks []models.Chunk, byID map[string]int) error {
	if err := f.save(chunks); err != nil {
		return err
	}
	f.chunks, f.byID = chunks, byID
	return nil
}

func (f *FileIndex) Search(ctx context.Context, q Query, k int) ([]models.ScoredChunk, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if k <= 0 || len(f.chunks) == 0 {
		return nil, nil
	}
	if dim := f.dimension(); len(q.Vector) != dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(q.Vector), dim)
	}

	scored := make([]models.ScoredChunk, len(f.chunks))
	for i, c := range f.chunks {
		scored[i] = models.ScoredChunk{
			Chunk: c,
			Score: float32(vecmath.Cosine(q.Vector, c.Embedding)),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (f *FileIndex) Count(ctx context.Context) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.chunks), nil
}

func (f *FileIndex) Close() error {
	return nil
}

func (f *FileIndex) dimension() int {
	if len(f.chunks) == 0 {
		return 0
	}
	return len(f.chunks[0].Embedding)
}

// save writes to a temporary file next to the index and renames it over the
// old one.
func (f *FileIndex) save(chunks []models.Chunk) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	data, err := json.Marshal(fileIndexData{Version: 1, Chunks: chunks})
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary index file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace index file: %w", err)
	}
	return nil
}
