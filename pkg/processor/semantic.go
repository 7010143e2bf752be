package processor

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
	"github.com/xhad/agentic/internal/models"
	"github.com/xhad/agentic/pkg/vecmath"
)

// SentenceEmbedder embeds a batch of texts, one vector per text.
type SentenceEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// SemanticChunks splits documents where the topic shifts. Neighboring
// sentences are embedded and a chunk boundary is placed wherever their cosine
// distance is above the configured percentile of all distances in the
// document. Chunks longer than ChunkSize are split again by the recursive
// character splitter; chunks shorter than MinChunkLength are merged into the
// previous one.
func (p *Processor) SemanticChunks(ctx context.Context, docs []models.Document, emb SentenceEmbedder) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, doc := range docs {
		texts, err := p.semanticSplit(ctx, p.cleanText(doc.Content), emb)
		if err != nil {
			return nil, fmt.Errorf("failed to chunk %s: %w", doc.URL, err)
		}
		chunks = append(chunks, toChunks(doc, texts)...)
	}
	return chunks, nil
}

func (p *Processor) semanticSplit(ctx context.Context, text string, emb SentenceEmbedder) ([]string, error) {
	sentences := splitIntoSentences(text)
	if len(sentences) == 0 {
		return nil, nil
	}

	var groups []string
	if len(sentences) < 3 {
		groups = []string{strings.Join(sentences, " ")}
	} else {
		vectors, err := emb.EmbedDocuments(ctx, sentences)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(sentences) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d sentences", len(vectors), len(sentences))
		}

		distances := make([]float64, len(sentences)-1)
		for i := range distances {
			distances[i] = 1 - vecmath.Cosine(vectors[i], vectors[i+1])
		}
		threshold := vecmath.Percentile(distances, p.config.BreakpointPercentile)

		start := 0
		for i, d := range distances {
			if d > threshold {
				groups = append(groups, strings.Join(sentences[start:i+1], " "))
				start = i + 1
			}
		}
		groups = append(groups, strings.Join(sentences[start:], " "))
	}

	return p.normalize(groups)
}

// normalize enforces the size bounds on semantic groups.
func (p *Processor) normalize(groups []string) ([]string, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(p.config.ChunkSize),
		textsplitter.WithChunkOverlap(p.config.ChunkOverlap),
	)

	var sized []string
	for _, g := range groups {
		if len(g) <= p.config.ChunkSize {
			sized = append(sized, g)
			continue
		}
		parts, err := splitter.SplitText(g)
		if err != nil {
			return nil, fmt.Errorf("failed to split oversized chunk: %w", err)
		}
		sized = append(sized, parts...)
	}

	var out []string
	for _, s := range sized {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if len(out) > 0 && len(s) < p.config.MinChunkLength {
			out[len(out)-1] += " " + s
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
