package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"site-research-be/internal/entity"
	"site-research-be/internal/repository/contract"

	"github.com/google/uuid"
)

// DocumentChunkRepository is a process-local dense index for development
// and tests. Search is a linear cosine scan.
type DocumentChunkRepository struct {
	mu          sync.RWMutex
	collections map[string]map[uuid.UUID]*entity.DocumentChunk
	modified    map[string]time.Time
	now         func() time.Time
}

var _ contract.DocumentChunkRepository = &DocumentChunkRepository{}

func NewDocumentChunkRepository() *DocumentChunkRepository {
	return &DocumentChunkRepository{
		collections: make(map[string]map[uuid.UUID]*entity.DocumentChunk),
		modified:    make(map[string]time.Time),
		now:         time.Now,
	}
}

// touchLocked stamps a write; stamps strictly increase even when the clock
// does not.
func (r *DocumentChunkRepository) touchLocked(collection string) {
	t := r.now()
	if prev := r.modified[collection]; !t.After(prev) {
		t = prev.Add(time.Nanosecond)
	}
	r.modified[collection] = t
}

func (r *DocumentChunkRepository) upsertLocked(chunks []*entity.DocumentChunk) {
	for _, c := range chunks {
		col, ok := r.collections[c.Collection]
		if !ok {
			col = make(map[uuid.UUID]*entity.DocumentChunk)
			r.collections[c.Collection] = col
		}
		cp := *c
		col[c.Id] = &cp
	}
}

func (r *DocumentChunkRepository) SearchSimilarWithScore(ctx context.Context, collection string, embedding []float32, limit int) ([]*contract.ScoredDocumentChunk, error) {
	if limit <= 0 {
		limit = 5
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	scored := make([]*contract.ScoredDocumentChunk, 0, len(r.collections[collection]))
	for _, c := range r.collections[collection] {
		cp := *c
		scored = append(scored, &contract.ScoredDocumentChunk{
			Chunk:      &cp,
			Similarity: cosine(embedding, c.Embedding),
		})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return lessChunk(scored[i].Chunk, scored[j].Chunk)
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (r *DocumentChunkRepository) FindAllByCollection(ctx context.Context, collection string) ([]*entity.DocumentChunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.DocumentChunk, 0, len(r.collections[collection]))
	for _, c := range r.collections[collection] {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return lessChunk(out[i], out[j]) })
	return out, nil
}

func (r *DocumentChunkRepository) CountByCollection(ctx context.Context, collection string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.collections[collection])), nil
}

func (r *DocumentChunkRepository) LastModified(ctx context.Context, collection string) (time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.collections[collection]) == 0 {
		return time.Time{}, nil
	}
	return r.modified[collection], nil
}

func (r *DocumentChunkRepository) deleteSourceLocked(collection, source string) {
	for id, c := range r.collections[collection] {
		if c.Source == source {
			delete(r.collections[collection], id)
		}
	}
}

func (r *DocumentChunkRepository) ReplaceSource(ctx context.Context, collection, source string, chunks []*entity.DocumentChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteSourceLocked(collection, source)
	r.upsertLocked(chunks)
	r.touchLocked(collection)
	return nil
}

func (r *DocumentChunkRepository) DeleteByCollection(ctx context.Context, collection string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.collections, collection)
	r.touchLocked(collection)
	return nil
}

func lessChunk(a, b *entity.DocumentChunk) bool {
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	return a.ChunkIndex < b.ChunkIndex
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
