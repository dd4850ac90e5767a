package agent_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"site-research-be/internal/repository/memory"
	"site-research-be/pkg/agent"
	"site-research-be/pkg/embedding"
	"site-research-be/pkg/llm"
	"site-research-be/pkg/retrieval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// siteModel plans one lookup, accepts whatever was found and answers from
// the last user message.
type siteModel struct{}

func (siteModel) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	opts := llm.ApplyOptions(options...)
	last := history[len(history)-1].Content
	if opts.Schema != nil {
		switch opts.Schema.Name {
		case "ReflectionPlan":
			if strings.Contains(last, "Retrieved Context: No info") {
				return mustJSON(agent.ReflectionPlan{Reflection: "nothing yet", Plan: []string{"Monte Azul Group overview"}}), nil
			}
			return mustJSON(agent.ReflectionPlan{Reflection: "covered", Plan: []string{}}), nil
		default:
			return mustJSON(agent.ResearchSufficiency{IsSufficient: true, Reasoning: "one source is enough"}), nil
		}
	}
	if strings.Contains(last, "Guatemalan corporation") {
		return "Monte Azul Group is a Guatemalan corporation.", nil
	}
	return "That is not available in the official records.", nil
}

func (m siteModel) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return m.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}

func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func TestAgentEndToEndSeededCorpus(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewDocumentChunkRepository()
	embedder := embedding.NewHashingProvider(256)
	hybrid := retrieval.NewHybridRetriever(repo, embedder, retrieval.Config{}, nil)
	ingester := retrieval.NewIngester(repo, embedder, nil, hybrid, retrieval.Config{}, nil)

	const site = "https://www.monteazulgroup.com/es"
	_, err := ingester.IngestText(ctx, site,
		"# Monte Azul Group\n\nMonte Azul Group is a Guatemalan corporation with businesses in agriculture, energy and real estate.")
	require.NoError(t, err)

	cfg := agent.DefaultConfig()
	cfg.OrganizationName = "Monte Azul Group"
	cfg.WebsiteURL = site
	checkpoints := memory.NewCheckpointRepository()

	a, err := agent.New(siteModel{}, hybrid, checkpoints, cfg)
	require.NoError(t, err)

	res, err := a.Run(ctx, "What is Monte Azul Group?", "e2e")
	require.NoError(t, err)
	assert.Equal(t, "Monte Azul Group is a Guatemalan corporation.", res.Answer)
	assert.GreaterOrEqual(t, res.Iterations, 1)
	require.NotEmpty(t, res.Evidence)
	assert.Equal(t, site, res.Evidence[0].Source)

	stored, err := checkpoints.Load(ctx, "e2e")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, agent.PhaseDone, stored.Phase)
	require.Len(t, stored.History, 2)
	assert.Equal(t, "What is Monte Azul Group?", stored.History[0].Content)

	t.Run("follow up sees the first question", func(t *testing.T) {
		res, err := a.Run(ctx, "What was my last question?", "e2e")
		require.NoError(t, err)
		assert.NotEmpty(t, res.Answer)

		stored, err := checkpoints.Load(ctx, "e2e")
		require.NoError(t, err)
		assert.Len(t, stored.History, 4)
	})
}
