package agent

import (
	"context"
	"fmt"

	"site-research-be/internal/pkg/logger"
	"site-research-be/pkg/store"
	"site-research-be/pkg/tools"

	"golang.org/x/sync/errgroup"
)

// StallPolicy decides what the researcher does when a pass adds no new
// evidence after the first iteration.
type StallPolicy string

const (
	// StallPolicySufficient marks the research sufficient, letting the
	// critic override it.
	StallPolicySufficient StallPolicy = "sufficient"
	// StallPolicyContinue leaves the verdict to the critic.
	StallPolicyContinue StallPolicy = "continue"
)

// Retriever is the hybrid search capability the researcher consumes.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]store.Document, error)
}

type ResearcherConfig struct {
	StallPolicy StallPolicy
	// StallMinEvidence keeps the stall shortcut from firing while the
	// evidence set is smaller than this.
	StallMinEvidence   int
	LiveSearchFallback bool
	// DefaultSource labels documents that carry no source metadata.
	DefaultSource string
}

// NewResearcher returns the node that runs every planned query against the
// retriever concurrently and merges the results into the evidence set.
// Retrieval errors count as zero results.
func NewResearcher(retriever Retriever, registry *tools.Registry, cfg ResearcherConfig, log logger.ILogger) NodeFunc {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if cfg.StallPolicy == "" {
		cfg.StallPolicy = StallPolicySufficient
	}

	return func(ctx context.Context, state SessionState) (Update, error) {
		queries := state.Plan
		if len(queries) == 0 {
			queries = []string{state.Query}
		}

		results := make([][]Evidence, len(queries))
		var g errgroup.Group
		for i, q := range queries {
			g.Go(func() error {
				results[i] = research(ctx, retriever, registry, cfg, log, state.ThreadID, q)
				return nil
			})
		}
		_ = g.Wait()

		var incoming []Evidence
		steps := make([]string, 0, len(queries))
		for i, q := range queries {
			incoming = append(incoming, results[i]...)
			steps = append(steps, "Retrieved context for: "+q)
		}
		added := MergeEvidence(state.Evidence, incoming)

		update := Update{
			AddEvidence: added,
			AppendSteps: steps,
			ClearPlan:   true,
		}

		if len(added) == 0 && state.Iterations > 0 {
			stalled := cfg.StallPolicy == StallPolicySufficient && len(state.Evidence) >= cfg.StallMinEvidence
			log.Info("Researcher", "No new evidence", map[string]interface{}{
				"thread_id":    state.ThreadID,
				"iterations":   state.Iterations,
				"evidence":     len(state.Evidence),
				"policy":       string(cfg.StallPolicy),
				"marked_ready": stalled,
			})
			if stalled {
				update.IsSufficient = ptr(true)
			}
		}
		return update, nil
	}
}

func research(ctx context.Context, retriever Retriever, registry *tools.Registry, cfg ResearcherConfig, log logger.ILogger, threadID, query string) []Evidence {
	docs, err := retriever.Retrieve(ctx, query)
	if err != nil {
		log.Warn("Researcher", "Retrieval failed", map[string]interface{}{
			"thread_id": threadID,
			"query":     query,
			"error":     err.Error(),
		})
		docs = nil
	}

	out := make([]Evidence, 0, len(docs))
	for _, d := range docs {
		metadata := make(map[string]interface{}, len(d.Metadata)+1)
		for k, v := range d.Metadata {
			metadata[k] = v
		}
		if _, ok := metadata[store.MetaOrigin]; !ok {
			metadata[store.MetaOrigin] = store.OriginIndex
		}
		out = append(out, Evidence{
			Source:   d.Source(cfg.DefaultSource),
			Content:  d.Content,
			Metadata: metadata,
		})
	}

	if len(out) > 0 || !cfg.LiveSearchFallback || registry == nil {
		return out
	}
	searcher, ok := registry.Searcher()
	if !ok {
		return out
	}

	hits, err := searcher.Search(ctx, query)
	if err != nil {
		log.Warn("Researcher", "Live search failed", map[string]interface{}{
			"thread_id": threadID,
			"query":     query,
			"error":     err.Error(),
		})
		return out
	}
	for _, h := range hits {
		if h.Snippet == "" {
			continue
		}
		out = append(out, Evidence{
			Source:  h.URL,
			Content: fmt.Sprintf("%s\n%s", h.Title, h.Snippet),
			Metadata: map[string]interface{}{
				store.MetaSource: h.URL,
				store.MetaTitle:  h.Title,
				store.MetaOrigin: store.OriginLiveSearch,
			},
		})
	}
	return out
}
