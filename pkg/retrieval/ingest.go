package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"site-research-be/internal/entity"
	"site-research-be/internal/pkg/logger"
	"site-research-be/internal/repository/contract"
	"site-research-be/pkg/embedding"
	"site-research-be/pkg/store"
	"site-research-be/pkg/tools"
	"site-research-be/pkg/utils"

	"golang.org/x/sync/errgroup"
)

// Invalidator is notified when the corpus changes.
type Invalidator interface {
	Invalidate()
}

// Ingester is the write path: fetch, split, embed, upsert.
type Ingester struct {
	repo        contract.DocumentChunkRepository
	embedder    embedding.EmbeddingProvider
	fetcher     tools.Fetcher
	invalidator Invalidator
	cfg         Config
	logger      logger.ILogger
	now         func() time.Time
}

func NewIngester(
	repo contract.DocumentChunkRepository,
	embedder embedding.EmbeddingProvider,
	fetcher tools.Fetcher,
	invalidator Invalidator,
	cfg Config,
	log logger.ILogger,
) *Ingester {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Ingester{
		repo:        repo,
		embedder:    embedder,
		fetcher:     fetcher,
		invalidator: invalidator,
		cfg:         cfg.withDefaults(),
		logger:      log,
		now:         time.Now,
	}
}

// Ingest scrapes url and returns the number of chunks written.
func (i *Ingester) Ingest(ctx context.Context, url string) (int, error) {
	if i.fetcher == nil {
		return 0, fmt.Errorf("ingest %s: no fetcher configured", url)
	}
	markdown, err := i.fetcher.Fetch(ctx, url)
	if err != nil {
		return 0, fmt.Errorf("ingest %s: %w", url, err)
	}
	return i.IngestText(ctx, url, markdown)
}

// IngestText splits already-fetched text and replaces every chunk
// previously stored for source.
func (i *Ingester) IngestText(ctx context.Context, source, text string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyDocument
	}

	segments := utils.SplitText(text, i.cfg.ChunkSize, i.cfg.ChunkOverlap)
	title := titleOf(text)
	ingestedAt := i.now().UTC().Format(time.RFC3339)

	chunks := make([]*entity.DocumentChunk, len(segments))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.cfg.EmbedWorkers)
	for idx, seg := range segments {
		g.Go(func() error {
			resp, err := i.embedder.Generate(gctx, seg, embedding.TaskRetrievalDocument)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", idx, err)
			}
			metadata := map[string]interface{}{
				store.MetaSource:     source,
				store.MetaChunkIndex: idx,
				store.MetaIngestedAt: ingestedAt,
			}
			if title != "" {
				metadata[store.MetaTitle] = title
			}
			chunks[idx] = &entity.DocumentChunk{
				Id:         entity.NewChunkID(i.cfg.Collection, source, idx, seg),
				Collection: i.cfg.Collection,
				Source:     source,
				ChunkIndex: idx,
				Content:    seg,
				Metadata:   metadata,
				Embedding:  resp.Embedding.Values,
				CreatedAt:  i.now(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	if err := i.repo.ReplaceSource(ctx, i.cfg.Collection, source, chunks); err != nil {
		return 0, fmt.Errorf("replace chunks: %w", err)
	}
	if i.invalidator != nil {
		i.invalidator.Invalidate()
	}

	i.logger.Info("Ingester", "Document ingested", map[string]interface{}{
		"source":     source,
		"chunks":     len(chunks),
		"collection": i.cfg.Collection,
	})
	return len(chunks), nil
}

// Clear deletes the whole collection.
func (i *Ingester) Clear(ctx context.Context) error {
	if err := i.repo.DeleteByCollection(ctx, i.cfg.Collection); err != nil {
		return fmt.Errorf("clear collection %s: %w", i.cfg.Collection, err)
	}
	if i.invalidator != nil {
		i.invalidator.Invalidate()
	}
	i.logger.Info("Ingester", "Collection cleared", map[string]interface{}{"collection": i.cfg.Collection})
	return nil
}

func titleOf(markdown string) string {
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return ""
}
