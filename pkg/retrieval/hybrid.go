package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"site-research-be/internal/entity"
	"site-research-be/internal/pkg/logger"
	"site-research-be/internal/repository/contract"
	"site-research-be/pkg/embedding"
	"site-research-be/pkg/store"
)

// HybridRetriever fuses dense similarity search with a lexical index built
// from the same collection.
type HybridRetriever struct {
	repo     contract.DocumentChunkRepository
	embedder embedding.EmbeddingProvider
	cfg      Config
	logger   logger.ILogger

	mu      sync.RWMutex
	lexical *LexicalIndex
	built   bool
	version corpusVersion
}

// corpusVersion identifies a state of the collection. Any write by any
// process changes the chunk count or the newest updated_at.
type corpusVersion struct {
	chunks   int64
	modified int64
}

func NewHybridRetriever(repo contract.DocumentChunkRepository, embedder embedding.EmbeddingProvider, cfg Config, log logger.ILogger) *HybridRetriever {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &HybridRetriever{
		repo:     repo,
		embedder: embedder,
		cfg:      cfg.withDefaults(),
		logger:   log,
	}
}

func (h *HybridRetriever) Config() Config {
	return h.cfg
}

// Retrieve returns at most K results per index, fused and ranked. One
// failing source is logged and skipped; only when both fail is an error
// returned.
func (h *HybridRetriever) Retrieve(ctx context.Context, query string) ([]store.Document, error) {
	semantic, semErr := h.semantic(ctx, query)
	if semErr != nil {
		h.logger.Warn("HybridRetriever", "Semantic search failed", map[string]interface{}{
			"query": query,
			"error": semErr.Error(),
		})
	}

	lexical, lexErr := h.lexicalSearch(ctx, query)
	if lexErr != nil && !errors.Is(lexErr, ErrEmptyCorpus) {
		h.logger.Warn("HybridRetriever", "Lexical search unavailable, using semantic only", map[string]interface{}{
			"query": query,
			"error": lexErr.Error(),
		})
	}

	if semErr != nil && lexErr != nil {
		return nil, errors.Join(semErr, lexErr)
	}
	if lexErr != nil {
		return semantic, nil
	}

	results := Fuse([][]store.Document{semantic, lexical}, []float64{h.cfg.SemanticWeight, h.cfg.LexicalWeight}, h.cfg.RRFConstant)

	h.logger.Debug("HybridRetriever", "Retrieved", map[string]interface{}{
		"query":    query,
		"semantic": len(semantic),
		"lexical":  len(lexical),
		"fused":    len(results),
	})
	return results, nil
}

func (h *HybridRetriever) semantic(ctx context.Context, query string) ([]store.Document, error) {
	resp, err := h.embedder.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	scored, err := h.repo.SearchSimilarWithScore(ctx, h.cfg.Collection, resp.Embedding.Values, h.cfg.K)
	if err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
	}

	docs := make([]store.Document, len(scored))
	for i, s := range scored {
		docs[i] = chunkToDocument(s.Chunk)
		docs[i].Score = float32(s.Similarity)
	}
	return docs, nil
}

func (h *HybridRetriever) currentVersion(ctx context.Context) (corpusVersion, error) {
	n, err := h.repo.CountByCollection(ctx, h.cfg.Collection)
	if err != nil {
		return corpusVersion{}, fmt.Errorf("count corpus: %w", err)
	}
	last, err := h.repo.LastModified(ctx, h.cfg.Collection)
	if err != nil {
		return corpusVersion{}, fmt.Errorf("corpus last modified: %w", err)
	}
	return corpusVersion{chunks: n, modified: last.UnixNano()}, nil
}

// lexicalSearch rebuilds the index when the stored corpus moved since the
// last build, then holds the read lock while searching so a concurrent
// rebuild cannot close the index underneath it.
func (h *HybridRetriever) lexicalSearch(ctx context.Context, query string) ([]store.Document, error) {
	version, err := h.currentVersion(ctx)
	if err != nil {
		return nil, err
	}

	h.mu.RLock()
	if !h.built || h.version != version {
		h.mu.RUnlock()
		h.mu.Lock()
		if !h.built || h.version != version {
			if err := h.rebuildLocked(ctx, version); err != nil {
				h.mu.Unlock()
				return nil, err
			}
		}
		h.mu.Unlock()
		h.mu.RLock()
	}
	defer h.mu.RUnlock()

	if h.lexical == nil {
		return nil, ErrEmptyCorpus
	}
	return h.lexical.Search(query, h.cfg.K)
}

// Refresh rebuilds the lexical index from the current collection.
func (h *HybridRetriever) Refresh(ctx context.Context) error {
	version, err := h.currentVersion(ctx)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rebuildLocked(ctx, version)
}

// Invalidate drops the lexical index; the next Retrieve rebuilds it.
func (h *HybridRetriever) Invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.built = false
}

// rebuildLocked indexes the collection as of version. version is read
// before the chunks, so a write racing the load shows up as a newer
// version on the next search.
func (h *HybridRetriever) rebuildLocked(ctx context.Context, version corpusVersion) error {
	chunks, err := h.repo.FindAllByCollection(ctx, h.cfg.Collection)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}

	docs := make([]store.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chunkToDocument(c)
	}

	idx, err := BuildLexicalIndex(docs)
	if err != nil && !errors.Is(err, ErrEmptyCorpus) {
		return err
	}

	if h.lexical != nil {
		_ = h.lexical.Close()
	}
	h.lexical = idx
	h.built = true
	h.version = version

	h.logger.Info("HybridRetriever", "Lexical index rebuilt", map[string]interface{}{
		"collection": h.cfg.Collection,
		"documents":  len(docs),
	})
	return nil
}

func chunkToDocument(c *entity.DocumentChunk) store.Document {
	metadata := make(map[string]interface{}, len(c.Metadata)+1)
	for k, v := range c.Metadata {
		metadata[k] = v
	}
	if _, ok := metadata[store.MetaSource]; !ok {
		metadata[store.MetaSource] = c.Source
	}
	return store.Document{
		ID:       c.Id.String(),
		Content:  c.Content,
		Metadata: metadata,
	}
}
