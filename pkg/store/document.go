package store

// Document is a retrieved passage together with its provenance.
type Document struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Score    float32                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Metadata keys attached at ingestion time.
const (
	MetaSource     = "source"
	MetaTitle      = "title"
	MetaChunkIndex = "chunk_index"
	MetaIngestedAt = "ingested_at"
	MetaOrigin     = "origin"
)

const (
	OriginIndex      = "index"
	OriginLiveSearch = "live_search"
)

// Source returns the document's source URL, or fallback when none was recorded.
func (d Document) Source(fallback string) string {
	if s, ok := d.Metadata[MetaSource].(string); ok && s != "" {
		return s
	}
	return fallback
}

// Chunk is one ingested segment ready to be upserted into the dense index.
type Chunk struct {
	ID        string
	Content   string
	Metadata  map[string]interface{}
	Embedding []float32
}
