package contract

import (
	"context"
	"time"

	"site-research-be/internal/entity"
)

// ScoredDocumentChunk wraps DocumentChunk with its similarity score
type ScoredDocumentChunk struct {
	Chunk      *entity.DocumentChunk
	Similarity float64 // cosine similarity, 1.0 = identical
}

// DocumentChunkRepository is the dense index. Every call is scoped to a
// collection.
type DocumentChunkRepository interface {
	SearchSimilarWithScore(ctx context.Context, collection string, embedding []float32, limit int) ([]*ScoredDocumentChunk, error)
	FindAllByCollection(ctx context.Context, collection string) ([]*entity.DocumentChunk, error)
	CountByCollection(ctx context.Context, collection string) (int64, error)
	// LastModified returns the time of the newest write to the collection,
	// zero when it holds no chunks.
	LastModified(ctx context.Context, collection string) (time.Time, error)
	// ReplaceSource atomically deletes a page's chunks and writes the new ones.
	ReplaceSource(ctx context.Context, collection, source string, chunks []*entity.DocumentChunk) error
	DeleteByCollection(ctx context.Context, collection string) error
}
