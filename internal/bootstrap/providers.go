package bootstrap

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"site-research-be/internal/config"
	"site-research-be/internal/pkg/logger"
	"site-research-be/internal/repository/contract"
	"site-research-be/internal/repository/implementation"
	"site-research-be/internal/repository/memory"
	"site-research-be/pkg/agent"
	"site-research-be/pkg/embedding"
	"site-research-be/pkg/llm"
	"site-research-be/pkg/llm/factory"
	"site-research-be/pkg/lock"
	pktNats "site-research-be/pkg/nats"
	"site-research-be/pkg/tools"
	"site-research-be/pkg/tools/search"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HashEmbeddingDim is the vector size of the offline hashing embedder.
const HashEmbeddingDim = 256

func noopClose() error { return nil }

func NewEmbeddingProvider(cfg *config.Config) (embedding.EmbeddingProvider, error) {
	var inner embedding.EmbeddingProvider
	switch cfg.Ai.EmbeddingProvider {
	case "openai", "":
		if cfg.Ai.OpenAIKey == "" {
			return nil, fmt.Errorf("openai embeddings require OPENAI_API_KEY")
		}
		inner = embedding.NewOpenAIProvider(cfg.Ai.OpenAIKey, cfg.Ai.EmbeddingModel)
	case "ollama":
		inner = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel)
	case "hash":
		inner = embedding.NewHashingProvider(HashEmbeddingDim)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Ai.EmbeddingProvider)
	}
	return embedding.NewCachedProvider(inner, cfg.Retrieval.EmbeddingTTL, cfg.Retrieval.EmbeddingMaxLen), nil
}

func NewLLMProvider(cfg *config.Config) (llm.LLMProvider, error) {
	return factory.NewLLMProvider(factory.Params{
		Provider:    cfg.Ai.LLMProvider,
		Model:       cfg.Ai.LLMModel,
		Temperature: cfg.Ai.Temperature,
		APIKey:      cfg.Ai.OpenAIKey,
		BaseURL:     cfg.Ai.OllamaBaseURL,
	})
}

// NewDocumentRepository uses pgvector when a database is configured and the
// process-local store otherwise.
func NewDocumentRepository(db *gorm.DB, log logger.ILogger) contract.DocumentChunkRepository {
	if db != nil {
		return implementation.NewDocumentChunkRepository(db)
	}
	log.Warn("Bootstrap", "No database configured, document index is in-memory", nil)
	return memory.NewDocumentChunkRepository()
}

// NewCheckpointStore picks the store named by Checkpoint.Backend. The
// returned closer releases file handles for the sqlite backend.
func NewCheckpointStore(cfg *config.Config, db *gorm.DB) (agent.CheckpointStore, func() error, error) {
	switch cfg.Checkpoint.Backend {
	case "postgres":
		if db == nil {
			return nil, nil, fmt.Errorf("checkpoint backend postgres requires DB_CONNECTION_STRING")
		}
		return implementation.NewPostgresCheckpointRepository(db), noopClose, nil
	case "sqlite", "":
		repo, err := implementation.NewSQLiteCheckpointRepository(cfg.Checkpoint.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	case "memory":
		return memory.NewCheckpointRepository(), noopClose, nil
	default:
		return nil, nil, fmt.Errorf("unsupported checkpoint backend: %s", cfg.Checkpoint.Backend)
	}
}

// NewRedisClient returns nil when no Redis URL is configured.
func NewRedisClient(rawURL string, log logger.ILogger) *redis.Client {
	if rawURL == "" {
		return nil
	}
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		log.Warn("Bootstrap", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: rawURL}
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("Bootstrap", "Failed to connect to Redis", map[string]interface{}{"error": err.Error()})
	}
	return rdb
}

func NewLocker(rdb *redis.Client) agent.Locker {
	if rdb == nil {
		return lock.NewLocalLocker()
	}
	return lock.NewRedisLocker(rdb, "")
}

// NewToolRegistry registers the page fetcher and, with a Tavily key, a web
// search restricted to the organization's domain.
func NewToolRegistry(cfg *config.Config) (*tools.Registry, error) {
	registry := tools.NewRegistry()

	if err := registry.Register(tools.Tool{
		Name:        tools.NameFetch,
		Description: "Fetch a web page and return it as markdown",
		Fetcher:     tools.NewScraper(),
	}); err != nil {
		return nil, err
	}

	if cfg.Search.TavilyKey != "" {
		var domains []string
		if host := hostOf(cfg.Agent.WebsiteURL); host != "" {
			domains = append(domains, host)
		}
		if err := registry.Register(tools.Tool{
			Name:        tools.NameWebSearch,
			Description: "Search the live web for pages on the organization's site",
			Searcher:    search.NewTavilyClient(cfg.Search.TavilyKey, cfg.Search.MaxResults, cfg.Search.RequestsPerSecond, domains...),
		}); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// NewEventPublisher connects to NATS when a URL is configured.
func NewEventPublisher(natsURL string, log logger.ILogger) *pktNats.Publisher {
	if natsURL == "" {
		return nil
	}
	pub, err := pktNats.NewPublisher(natsURL)
	if err != nil {
		log.Warn("Bootstrap", "Failed to connect to NATS Publisher", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return pub
}
