package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"
)

// CachedProvider memoizes query embeddings. Researcher fan-out and repeated
// planner queries hit the same strings within a session.
type CachedProvider struct {
	inner  EmbeddingProvider
	cache  *cache.Cache
	maxLen int
}

var _ EmbeddingProvider = &CachedProvider{}

func NewCachedProvider(inner EmbeddingProvider, ttl time.Duration, maxLen int) *CachedProvider {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedProvider{
		inner:  inner,
		cache:  cache.New(ttl, 10*time.Minute),
		maxLen: maxLen,
	}
}

func (p *CachedProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	// passages are embedded once at ingestion; only short queries are cached
	if taskType != TaskRetrievalQuery || (p.maxLen > 0 && len(text) > p.maxLen) {
		return p.inner.Generate(ctx, text, taskType)
	}

	key := cacheKey(taskType, text)
	if x, found := p.cache.Get(key); found {
		return x.(*EmbeddingResponse), nil
	}

	resp, err := p.inner.Generate(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	p.cache.Set(key, resp, cache.DefaultExpiration)
	return resp, nil
}

func (p *CachedProvider) Len() int {
	return p.cache.ItemCount()
}

func cacheKey(taskType, text string) string {
	sum := sha256.Sum256([]byte(taskType + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
