package models

type Document struct {
	ID       string
	URL      string
	Title    string
	Content  string
	Metadata map[string]interface{}
}

// Chunk is a piece of a document together with its embedding vector.
type Chunk struct {
	ID         string                 `json:"id"`
	DocumentID string                 `json:"document_id"`
	Source     string                 `json:"source"`
	Title      string                 `json:"title,omitempty"`
	Text       string                 `json:"text"`
	Index      int                    `json:"index"`
	Embedding  []float32              `json:"embedding,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

type ScoredChunk struct {
	Chunk
	Score float32 `json:"score"`
}
