package processor

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xhad/agentic/internal/models"
)

type ProcessorConfig struct {
	ChunkSize       int
	ChunkOverlap    int
	MinChunkLength  int
	RemoveStopwords bool
	CustomStopwords []string
	Lowercase       bool
	// BreakpointPercentile is the distance percentile above which semantic
	// chunking starts a new chunk.
	BreakpointPercentile float64
}

type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) *Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}
	if config.MinChunkLength == 0 {
		config.MinChunkLength = 100
	}
	if config.BreakpointPercentile == 0 {
		config.BreakpointPercentile = 95
	}

	return &Processor{
		config: config,
	}
}

// Process splits every document into fixed-size chunks with overlap.
func (p *Processor) Process(docs []models.Document) []models.Chunk {
	var chunks []models.Chunk
	for _, doc := range docs {
		texts := p.splitIntoChunks(p.cleanText(doc.Content))
		chunks = append(chunks, toChunks(doc, texts)...)
	}
	return chunks
}

func (p *Processor) cleanText(text string) string {
	if p.config.Lowercase {
		text = strings.ToLower(text)
	}

	text = strings.Join(strings.Fields(text), " ")

	if p.config.RemoveStopwords {
		text = p.removeStopwords(text)
	}

	return strings.TrimSpace(text)
}

// splitIntoChunks packs whole sentences into chunks of at most ChunkSize
// bytes. Each new chunk opens with the last ChunkOverlap bytes of the one
// before it.
func (p *Processor) splitIntoChunks(text string) []string {
	var (
		chunks []string
		buf    strings.Builder
	)
	flush := func() {
		if buf.Len() >= p.config.MinChunkLength {
			chunks = append(chunks, strings.TrimSpace(buf.String()))
		}
		tail := overlapTail(buf.String(), p.config.ChunkOverlap)
		buf.Reset()
		buf.WriteString(tail)
	}

	for _, sentence := range splitIntoSentences(text) {
		if buf.Len()+len(sentence) > p.config.ChunkSize {
			flush()
		}
		buf.WriteString(sentence)
		buf.WriteByte(' ')
	}
	if buf.Len() >= p.config.MinChunkLength {
		chunks = append(chunks, strings.TrimSpace(buf.String()))
	}
	return chunks
}

// overlapTail returns the last n bytes of s, moved forward to a rune
// boundary. Nothing carries over when s is not longer than n.
func overlapTail(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return ""
	}
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return s[i:]
}

// splitIntoSentences breaks text after '.', '!' or '?' when followed by a
// space or newline.
func splitIntoSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i+1 < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if next := text[i+1]; next == ' ' || next == '\n' {
				if s := strings.TrimSpace(text[start : i+1]); s != "" {
					sentences = append(sentences, s)
				}
				start = i + 2
				i++
			}
		}
	}
	if start < len(text) {
		if s := strings.TrimSpace(text[start:]); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

var defaultStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for",
	"from", "has", "he", "in", "is", "it", "its", "of", "on",
	"that", "the", "to", "was", "were", "will", "with",
}

func (p *Processor) removeStopwords(text string) string {
	skip := make(map[string]bool, len(defaultStopwords)+len(p.config.CustomStopwords))
	for _, w := range defaultStopwords {
		skip[w] = true
	}
	for _, w := range p.config.CustomStopwords {
		skip[strings.ToLower(w)] = true
	}

	var kept []string
	for _, word := range strings.Fields(text) {
		if !skip[strings.ToLower(word)] {
			kept = append(kept, word)
		}
	}
	return strings.Join(kept, " ")
}

func toChunks(doc models.Document, texts []string) []models.Chunk {
	docID := doc.ID
	if docID == "" {
		docID = uuid.NewString()
	}
	source := doc.URL
	if source == "" {
		source = docID
	}

	chunks := make([]models.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, models.Chunk{
			ID:         uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", source, i))).String(),
			DocumentID: docID,
			Source:     source,
			Title:      doc.Title,
			Text:       text,
			Index:      i,
			Metadata:   doc.Metadata,
		})
	}
	return chunks
}
