package domain

// SourceRef locates a piece of text inside its source document.
type SourceRef struct {
	DocumentID string `json:"document_id"`
	Path       string `json:"path"`
	Page       int    `json:"page"`
	Offset     int    `json:"offset"`
}

// Segment is one ordered unit of loader output, usually a page.
type Segment struct {
	Text     string
	Source   SourceRef
	Metadata map[string]any
}

// Chunk is a bounded text window extracted from a document for indexing.
type Chunk struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Source   SourceRef      `json:"source"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// IndexedVector is a chunk together with its embedding as persisted by a store.
type IndexedVector struct {
	ChunkID   string    `json:"chunk_id"`
	Embedding []float64 `json:"embedding"`
	Chunk     Chunk     `json:"chunk"`
}

// Query describes a single similarity lookup.
type Query struct {
	Text           string
	TopK           int
	ScoreThreshold float64
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievalResult is ordered by descending score.
type RetrievalResult []SearchResult

// Texts returns the chunk texts in result order.
func (r RetrievalResult) Texts() []string {
	out := make([]string, len(r))
	for i, res := range r {
		out[i] = res.Chunk.Text
	}
	return out
}
