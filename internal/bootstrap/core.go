package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"site-research-be/internal/config"
	"site-research-be/internal/pkg/logger"
	"site-research-be/internal/repository/contract"
	"site-research-be/internal/tracer"
	"site-research-be/pkg/agent"
	"site-research-be/pkg/database"
	"site-research-be/pkg/guardrail"
	"site-research-be/pkg/observability"
	"site-research-be/pkg/retrieval"
	"site-research-be/pkg/tools"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Core is everything the agent needs, shared by the REST server and the CLI.
type Core struct {
	Config *config.Config
	Logger logger.ILogger

	DB    *gorm.DB
	Redis *redis.Client

	Documents   contract.DocumentChunkRepository
	Checkpoints agent.CheckpointStore
	Retriever   *retrieval.HybridRetriever
	Ingester    *retrieval.Ingester
	Tools       *tools.Registry

	Registry *prometheus.Registry
	Metrics  *observability.Metrics
	Events   *observability.EventSink

	Agent *agent.Agent

	closers []func() error
}

func NewCore(cfg *config.Config, log logger.ILogger) (*Core, error) {
	c := &Core{Config: cfg, Logger: log}
	if err := c.init(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// warmLexicalIndex builds the lexical index up front. A failure is not
// fatal: the first search retries the build.
func (c *Core) warmLexicalIndex() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.Retriever.Refresh(ctx); err != nil {
		c.Logger.Warn("Core", "Lexical index warm-up failed", map[string]interface{}{"error": err.Error()})
	}
}

func (c *Core) init() (err error) {
	cfg, log := c.Config, c.Logger

	if cfg.Database.Connection != "" {
		c.DB, err = database.NewGormDBFromDSN(cfg.Database.Connection, !cfg.IsProduction())
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
	}

	c.Redis = NewRedisClient(cfg.App.RedisURL, log)
	if c.Redis != nil {
		c.closers = append(c.closers, c.Redis.Close)
	}

	embedder, err := NewEmbeddingProvider(cfg)
	if err != nil {
		return err
	}
	provider, err := NewLLMProvider(cfg)
	if err != nil {
		return err
	}

	c.Tools, err = NewToolRegistry(cfg)
	if err != nil {
		return err
	}

	retrievalCfg := retrieval.DefaultConfig()
	retrievalCfg.Collection = cfg.Retrieval.Collection
	retrievalCfg.K = cfg.Retrieval.K
	retrievalCfg.SemanticWeight = cfg.Retrieval.SemanticWeight
	retrievalCfg.LexicalWeight = cfg.Retrieval.LexicalWeight
	retrievalCfg.ChunkSize = cfg.Retrieval.ChunkSize
	retrievalCfg.ChunkOverlap = cfg.Retrieval.ChunkOverlap

	c.Documents = NewDocumentRepository(c.DB, log)
	c.Retriever = retrieval.NewHybridRetriever(c.Documents, embedder, retrievalCfg, log)
	c.warmLexicalIndex()
	fetcher, _ := c.Tools.Fetcher()
	c.Ingester = retrieval.NewIngester(c.Documents, embedder, fetcher, c.Retriever, retrievalCfg, log)

	var closeCheckpoints func() error
	c.Checkpoints, closeCheckpoints, err = NewCheckpointStore(cfg, c.DB)
	if err != nil {
		return err
	}
	c.closers = append(c.closers, closeCheckpoints)

	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.Metrics = observability.NewMetrics(c.Registry)

	var publisher observability.Publisher
	if pub := NewEventPublisher(cfg.App.NatsURL, log); pub != nil {
		publisher = pub
		c.closers = append(c.closers, func() error { pub.Close(); return nil })
	}
	c.Events = observability.NewEventSink(log, publisher, c.Metrics)

	c.Agent, err = agent.New(provider, c.Retriever, c.Checkpoints, AgentConfig(cfg),
		agent.WithLogger(log),
		agent.WithGuardrail(guardrail.New(log)),
		agent.WithTools(c.Tools),
		agent.WithLocker(NewLocker(c.Redis)),
		agent.WithEventSink(c.Events),
		agent.WithMiddleware(
			observability.NodeLogging(log),
			observability.NodeTracing(tracer.Tracer()),
			observability.NodeMetrics(c.Metrics),
		),
	)
	if err != nil {
		return err
	}

	log.Info("Bootstrap", "Agent ready", map[string]interface{}{
		"organization":      cfg.Agent.OrganizationName,
		"llm_provider":      cfg.Ai.LLMProvider,
		"llm_model":         cfg.Ai.LLMModel,
		"embedding":         cfg.Ai.EmbeddingProvider,
		"checkpoint":        cfg.Checkpoint.Backend,
		"tools":             c.Tools.Names(),
		"distributed_locks": c.Redis != nil,
	})
	return nil
}

func AgentConfig(cfg *config.Config) agent.Config {
	return agent.Config{
		OrganizationName:        cfg.Agent.OrganizationName,
		WebsiteURL:              cfg.Agent.WebsiteURL,
		IterationCeiling:        cfg.Agent.IterationCeiling,
		UsageLimit:              cfg.Agent.UsageLimit,
		UsageAction:             agent.UsageAction(cfg.Agent.UsageAction),
		StallPolicy:             agent.StallPolicy(cfg.Agent.StallPolicy),
		StallMinEvidence:        cfg.Agent.StallMinEvidence,
		SkipResearchOnEmptyPlan: cfg.Agent.SkipResearchOnEmptyPlan,
		LiveSearchFallback:      cfg.Agent.LiveSearchFallback,
		CriticModel:             cfg.Ai.CriticModel,
		ComposerEvidenceChars:   cfg.Agent.ComposerEvidenceChars,
		PlannerPreviewChars:     cfg.Agent.PlannerPreviewChars,
		LockTTL:                 cfg.Agent.LockTTL,
	}
}

// Close releases resources in reverse order of acquisition.
func (c *Core) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
