package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"site-research-be/pkg/llm"
	"site-research-be/pkg/store"
	"site-research-be/pkg/tools"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAgent(t *testing.T, provider llm.LLMProvider, retriever Retriever, checkpoints CheckpointStore, cfg Config, opts ...Option) *Agent {
	t.Helper()
	if cfg.WebsiteURL == "" {
		cfg.WebsiteURL = "https://acme.example"
	}
	if cfg.OrganizationName == "" {
		cfg.OrganizationName = "Acme Group"
	}
	a, err := New(provider, retriever, checkpoints, cfg, opts...)
	require.NoError(t, err)
	return a
}

func defaultTestConfig() Config {
	cfg := DefaultConfig()
	cfg.CriticModel = "gpt-4o-mini"
	return cfg
}

func TestNewValidatesDependencies(t *testing.T) {
	_, err := New(nil, &fakeRetriever{}, newMapCheckpoints(), Config{})
	assert.Error(t, err)
	_, err = New(newScriptedLLM(), nil, newMapCheckpoints(), Config{})
	assert.Error(t, err)
	_, err = New(newScriptedLLM(), &fakeRetriever{}, nil, Config{})
	assert.Error(t, err)
}

func TestRunIterationCeiling(t *testing.T) {
	tests := []struct {
		name    string
		ceiling int
		want    int
	}{
		{"default ceiling", 0, DefaultIterationCeiling},
		{"custom ceiling", 3, 3},
		{"single pass", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llmFake := newScriptedLLM()
			llmFake.plans = []ReflectionPlan{{Reflection: "dig", Plan: []string{"history"}}}
			llmFake.verdicts = []ResearchSufficiency{{IsSufficient: false, Reasoning: "never enough"}}
			retriever := &fakeRetriever{fresh: true}

			cfg := defaultTestConfig()
			cfg.IterationCeiling = tt.ceiling
			a := newTestAgent(t, llmFake, retriever, newMapCheckpoints(), cfg)

			res, err := a.Run(context.Background(), "Tell me everything", "t-ceiling")
			require.NoError(t, err)

			assert.Equal(t, tt.want, res.Iterations)
			assert.Equal(t, tt.want, llmFake.count(NodePlanner))
			assert.Equal(t, tt.want, llmFake.count(NodeCritic))
			assert.Equal(t, 1, llmFake.count(NodeComposer))
			assert.Equal(t, "composed answer", res.Answer)
		})
	}
}

func TestRunSufficientOnFirstIteration(t *testing.T) {
	llmFake := newScriptedLLM()
	llmFake.plans = []ReflectionPlan{{Reflection: "look it up", Plan: []string{"about acme"}}}
	llmFake.verdicts = []ResearchSufficiency{{IsSufficient: true, Reasoning: "covered"}}
	retriever := &fakeRetriever{docs: map[string][]store.Document{
		"about acme": {doc("https://acme.example/about", "Acme Group exports coffee.")},
	}}

	a := newTestAgent(t, llmFake, retriever, newMapCheckpoints(), defaultTestConfig())
	res, err := a.Run(context.Background(), "What does Acme do?", "t1")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 1, llmFake.count(NodePlanner))
	assert.Equal(t, []string{"about acme"}, retriever.calls())
	assert.Equal(t, 1, llmFake.count(NodeCritic))
	assert.Equal(t, 1, llmFake.count(NodeComposer))
	require.Len(t, res.Evidence, 1)
	assert.Equal(t, "https://acme.example/about", res.Evidence[0].Source)
	assert.Equal(t, store.OriginIndex, res.Evidence[0].Metadata[store.MetaOrigin])
}

func TestRunDeduplicatesEvidence(t *testing.T) {
	prefix := strings.Repeat("a", FingerprintLength)
	llmFake := newScriptedLLM()
	llmFake.plans = []ReflectionPlan{
		{Reflection: "first", Plan: []string{"q", "q", "other"}},
		{Reflection: "again", Plan: []string{"q"}},
	}
	llmFake.verdicts = []ResearchSufficiency{{IsSufficient: false}, {IsSufficient: true}}
	retriever := &fakeRetriever{docs: map[string][]store.Document{
		"q":     {doc("s1", "same passage"), doc("s2", prefix+" tail one")},
		"other": {doc("s3", prefix+" tail two"), doc("s1", "same passage")},
	}}

	cfg := defaultTestConfig()
	cfg.StallPolicy = StallPolicyContinue
	a := newTestAgent(t, llmFake, retriever, newMapCheckpoints(), cfg)

	res, err := a.Run(context.Background(), "dedup please", "t-dedup")
	require.NoError(t, err)

	assert.Len(t, res.Evidence, 2)
	seen := map[string]bool{}
	for _, e := range res.Evidence {
		assert.False(t, seen[e.Fingerprint()], "duplicate fingerprint %q", e.Fingerprint())
		seen[e.Fingerprint()] = true
	}
	assert.Equal(t, 2, res.Iterations)
}

func TestRunGreetingSkipsResearch(t *testing.T) {
	llmFake := newScriptedLLM()
	llmFake.plans = []ReflectionPlan{{Reflection: "greeting", Plan: []string{}}}
	llmFake.answer = func([]llm.Message) string { return "¡Hola! ¿En qué puedo ayudarte?" }
	retriever := &fakeRetriever{}
	checkpoints := newMapCheckpoints()

	var snapshots []SessionState
	a := newTestAgent(t, llmFake, retriever, checkpoints, defaultTestConfig())
	res, err := a.Stream(context.Background(), "hola", "t-hola", func(s SessionState) error {
		snapshots = append(snapshots, s)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, snapshots, 2)
	assert.Empty(t, retriever.calls())
	assert.Empty(t, snapshots[0].Plan)
	assert.Equal(t, PhaseResponding, snapshots[0].Phase)
	assert.Equal(t, 0, llmFake.count(NodeCritic))
	assert.Equal(t, 1, llmFake.count(NodeComposer))
	assert.Equal(t, 1, res.Iterations)
	assert.Empty(t, res.Evidence)
	assert.Equal(t, "¡Hola! ¿En qué puedo ayudarte?", res.Answer)
}

func TestRunEmptyPlanWithoutSkipSearchesQuery(t *testing.T) {
	llmFake := newScriptedLLM()
	llmFake.plans = []ReflectionPlan{{Reflection: "nothing to add", Plan: nil}}
	retriever := &fakeRetriever{docs: map[string][]store.Document{
		"Where is Acme?": {doc("https://acme.example/contact", "Acme is in Guatemala City.")},
	}}

	cfg := defaultTestConfig()
	cfg.SkipResearchOnEmptyPlan = false
	a := newTestAgent(t, llmFake, retriever, newMapCheckpoints(), cfg)

	res, err := a.Run(context.Background(), "Where is Acme?", "t-noskip")
	require.NoError(t, err)
	assert.Equal(t, []string{"Where is Acme?"}, retriever.calls())
	assert.Len(t, res.Evidence, 1)
}

func TestRunMultiTurnHistory(t *testing.T) {
	llmFake := newScriptedLLM()
	llmFake.plans = []ReflectionPlan{{Reflection: "chat", Plan: []string{}}}
	checkpoints := newMapCheckpoints()
	a := newTestAgent(t, llmFake, &fakeRetriever{}, checkpoints, defaultTestConfig())
	ctx := context.Background()

	_, err := a.Run(ctx, "Who founded Acme?", "t1")
	require.NoError(t, err)
	_, err = a.Run(ctx, "What was my last question?", "t1")
	require.NoError(t, err)

	require.Len(t, llmFake.composerInput, 2)
	second := joined(llmFake.composerInput[1])
	assert.Contains(t, second, "user: Who founded Acme?")
	assert.Contains(t, second, "assistant: composed answer")

	stored := checkpoints.get("t1")
	require.NotNil(t, stored)
	assert.Len(t, stored.History, 4)
	assert.Equal(t, PhaseDone, stored.Phase)
	assert.Equal(t, "What was my last question?", stored.Query)

	t.Run("other threads are isolated", func(t *testing.T) {
		_, err := a.Run(ctx, "Hi", "t2")
		require.NoError(t, err)
		assert.NotContains(t, joined(llmFake.composerInput[2]), "Who founded Acme?")
	})
}

func TestRunStallPolicy(t *testing.T) {
	tests := []struct {
		name           string
		policy         StallPolicy
		minEvidence    int
		wantIterations int
		wantNote       bool
	}{
		{"sufficient stops on the first empty pass", StallPolicySufficient, 0, 2, true},
		{"sufficient respects the evidence floor", StallPolicySufficient, 3, DefaultIterationCeiling, false},
		{"continue defers to the critic", StallPolicyContinue, 0, DefaultIterationCeiling, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llmFake := newScriptedLLM()
			llmFake.plans = []ReflectionPlan{{Reflection: "repeat", Plan: []string{"same query"}}}
			// a critic that only gives up when told the index is exhausted
			llmFake.judge = func(history []llm.Message) ResearchSufficiency {
				hinted := strings.Contains(history[len(history)-1].Content, stallNote)
				return ResearchSufficiency{IsSufficient: hinted, Reasoning: "sparse"}
			}
			retriever := &fakeRetriever{docs: map[string][]store.Document{
				"same query": {doc("https://acme.example", "the only passage")},
			}}

			cfg := defaultTestConfig()
			cfg.StallPolicy = tt.policy
			cfg.StallMinEvidence = tt.minEvidence
			a := newTestAgent(t, llmFake, retriever, newMapCheckpoints(), cfg)

			res, err := a.Run(context.Background(), "sparse topic", "t-stall")
			require.NoError(t, err)
			assert.Equal(t, tt.wantIterations, res.Iterations)
			assert.Len(t, res.Evidence, 1)

			noted := false
			for _, in := range llmFake.criticInputs {
				noted = noted || strings.Contains(joined(in), stallNote)
			}
			assert.Equal(t, tt.wantNote, noted)
		})
	}
}

func TestCriticOverridesStallFlag(t *testing.T) {
	llmFake := newScriptedLLM()
	llmFake.plans = []ReflectionPlan{{Reflection: "repeat", Plan: []string{"same query"}}}
	llmFake.verdicts = []ResearchSufficiency{{IsSufficient: false, Reasoning: "keep going"}}
	retriever := &fakeRetriever{docs: map[string][]store.Document{
		"same query": {doc("https://acme.example", "the only passage")},
	}}

	var afterResearch []bool
	a := newTestAgent(t, llmFake, retriever, newMapCheckpoints(), defaultTestConfig())
	res, err := a.Stream(context.Background(), "sparse topic", "t-override", func(s SessionState) error {
		if s.Phase == PhaseCritiquing {
			afterResearch = append(afterResearch, s.IsSufficient)
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []bool{false, true, true, true, true}, afterResearch)
	assert.Equal(t, DefaultIterationCeiling, res.Iterations)
}

func TestRunRetrievalFailureIsNotFatal(t *testing.T) {
	llmFake := newScriptedLLM()
	llmFake.plans = []ReflectionPlan{{Reflection: "r", Plan: []string{"x"}}}
	retriever := &fakeRetriever{err: errors.New("index unavailable")}

	a := newTestAgent(t, llmFake, retriever, newMapCheckpoints(), defaultTestConfig())
	res, err := a.Run(context.Background(), "anything", "t-retrfail")
	require.NoError(t, err)
	assert.Empty(t, res.Evidence)
	assert.NotEmpty(t, res.Answer)
}

func TestRunNodeErrorPropagates(t *testing.T) {
	tests := []struct {
		name string
		node string
		err  error
	}{
		{"planner", NodePlanner, errBoom},
		{"critic", NodeCritic, context.DeadlineExceeded},
		{"composer", NodeComposer, errBoom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llmFake := newScriptedLLM()
			llmFake.plans = []ReflectionPlan{{Reflection: "r", Plan: []string{"q"}}}
			llmFake.errs[tt.node] = tt.err
			retriever := &fakeRetriever{docs: map[string][]store.Document{"q": {doc("s", "passage")}}}
			checkpoints := newMapCheckpoints()
			sink := &recordingSink{}

			a := newTestAgent(t, llmFake, retriever, checkpoints, defaultTestConfig(), WithEventSink(sink))
			res, err := a.Run(context.Background(), "question", "t-err")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)

			var nodeErr *NodeError
			require.True(t, errors.As(err, &nodeErr))
			assert.Equal(t, tt.node, nodeErr.Node)

			require.NotNil(t, res)
			assert.NotEmpty(t, res.Error)
			assert.Empty(t, res.Answer)

			stored := checkpoints.get("t-err")
			require.NotNil(t, stored)
			require.NotNil(t, stored.Error)
			assert.Contains(t, sink.events, EventError)
			assert.NotContains(t, sink.events, EventSessionEnd)
		})
	}
}

func TestRunMalformedStructuredOutput(t *testing.T) {
	llmFake := newScriptedLLM()
	llmFake.raw[NodePlanner] = "I am not JSON"
	a := newTestAgent(t, llmFake, &fakeRetriever{}, newMapCheckpoints(), defaultTestConfig())

	_, err := a.Run(context.Background(), "q", "t-malformed")
	assert.ErrorIs(t, err, llm.ErrMalformedOutput)
}

func TestRunCheckpointFailuresAreFatal(t *testing.T) {
	t.Run("load", func(t *testing.T) {
		checkpoints := newMapCheckpoints()
		checkpoints.loadErr = errBoom
		llmFake := newScriptedLLM()
		a := newTestAgent(t, llmFake, &fakeRetriever{}, checkpoints, defaultTestConfig())

		_, err := a.Run(context.Background(), "q", "t")
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, 0, llmFake.count(NodePlanner))
	})

	t.Run("save", func(t *testing.T) {
		checkpoints := newMapCheckpoints()
		checkpoints.saveErr = errBoom
		llmFake := newScriptedLLM()
		llmFake.plans = []ReflectionPlan{{Reflection: "r", Plan: []string{"q"}}}
		a := newTestAgent(t, llmFake, &fakeRetriever{}, checkpoints, defaultTestConfig())

		_, err := a.Run(context.Background(), "q", "t")
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, 0, llmFake.count(NodeComposer))
	})
}

func TestRunRedactsPII(t *testing.T) {
	llmFake := newScriptedLLM()
	llmFake.plans = []ReflectionPlan{{Reflection: "contact", Plan: []string{}}}
	llmFake.answer = func([]llm.Message) string { return "Write to info@acme.example or call +50212345678." }
	checkpoints := newMapCheckpoints()
	a := newTestAgent(t, llmFake, &fakeRetriever{}, checkpoints, defaultTestConfig())

	res, err := a.Run(context.Background(), "My mail is test@example.com, who do I contact?", "t-pii")
	require.NoError(t, err)

	plannerInput := joined(llmFake.plannerInputs[0])
	assert.NotContains(t, plannerInput, "test@example.com")
	assert.Contains(t, plannerInput, "[REDACTED_EMAIL]")

	assert.NotContains(t, res.Answer, "info@acme.example")
	assert.Contains(t, res.Answer, "[REDACTED_EMAIL]")
	assert.Contains(t, res.Answer, "[REDACTED_PHONE]")

	stored := checkpoints.get("t-pii")
	require.NotNil(t, stored)
	assert.NotContains(t, joined(stored.History), "@")
}

func TestRunUsageThreshold(t *testing.T) {
	seed := func(checkpoints *mapCheckpoints, n int) {
		s := NewSessionState("busy", "old")
		s.Phase = PhaseDone
		s.Answer = ptr("old answer")
		for i := 0; i < n; i++ {
			s.History = append(s.History, llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf("m%d", i)})
		}
		require.NoError(t, checkpoints.Save(context.Background(), "busy", s))
	}

	t.Run("reject", func(t *testing.T) {
		checkpoints := newMapCheckpoints()
		seed(checkpoints, 21)
		cfg := defaultTestConfig()
		cfg.UsageAction = UsageActionReject
		sink := &recordingSink{}
		a := newTestAgent(t, newScriptedLLM(), &fakeRetriever{}, checkpoints, cfg, WithEventSink(sink))

		_, err := a.Run(context.Background(), "one more", "busy")
		assert.ErrorIs(t, err, ErrUsageLimitExceeded)
		assert.Contains(t, sink.events, EventUsageThresholdExceeded)
	})

	t.Run("warn", func(t *testing.T) {
		checkpoints := newMapCheckpoints()
		seed(checkpoints, 21)
		a := newTestAgent(t, newScriptedLLM(), &fakeRetriever{}, checkpoints, defaultTestConfig())

		res, err := a.Run(context.Background(), "one more", "busy")
		require.NoError(t, err)
		assert.NotEmpty(t, res.Answer)
	})

	t.Run("at the limit", func(t *testing.T) {
		checkpoints := newMapCheckpoints()
		seed(checkpoints, 20)
		cfg := defaultTestConfig()
		cfg.UsageAction = UsageActionReject
		a := newTestAgent(t, newScriptedLLM(), &fakeRetriever{}, checkpoints, cfg)

		_, err := a.Run(context.Background(), "one more", "busy")
		assert.NoError(t, err)
	})
}

func TestRunResumesInterruptedQuery(t *testing.T) {
	checkpoints := newMapCheckpoints()
	s := NewSessionState("t-resume", "What is Acme?")
	s.Iterations = 2
	s.Phase = PhaseResponding
	s.Evidence = []Evidence{{Source: "https://acme.example", Content: "Acme grows coffee."}}
	s.Error = ptr("composer timed out")
	require.NoError(t, checkpoints.Save(context.Background(), "t-resume", s))

	llmFake := newScriptedLLM()
	a := newTestAgent(t, llmFake, &fakeRetriever{}, checkpoints, defaultTestConfig())

	res, err := a.Run(context.Background(), "What is Acme?", "t-resume")
	require.NoError(t, err)
	assert.Equal(t, 0, llmFake.count(NodePlanner))
	assert.Equal(t, 1, llmFake.count(NodeComposer))
	assert.Equal(t, 2, res.Iterations)
	assert.Len(t, res.Evidence, 1)
	assert.Empty(t, res.Error)

	t.Run("a different query starts fresh", func(t *testing.T) {
		s.Query = "old question"
		require.NoError(t, checkpoints.Save(context.Background(), "t-resume", s))
		llmFake := newScriptedLLM()
		a := newTestAgent(t, llmFake, &fakeRetriever{}, checkpoints, defaultTestConfig())

		res, err := a.Run(context.Background(), "new question", "t-resume")
		require.NoError(t, err)
		assert.Equal(t, 1, llmFake.count(NodePlanner))
		assert.Empty(t, res.Evidence)
	})
}

func TestStreamEmitsAfterEveryNode(t *testing.T) {
	llmFake := newScriptedLLM()
	llmFake.plans = []ReflectionPlan{{Reflection: "r", Plan: []string{"q"}}}
	llmFake.verdicts = []ResearchSufficiency{{IsSufficient: false}, {IsSufficient: true}}
	retriever := &fakeRetriever{fresh: true}
	sink := &recordingSink{}
	a := newTestAgent(t, llmFake, retriever, newMapCheckpoints(), defaultTestConfig(), WithEventSink(sink))

	var snapshots []SessionState
	res, err := a.Stream(context.Background(), "stream it", "t-stream", func(s SessionState) error {
		snapshots = append(snapshots, s)
		return nil
	})
	require.NoError(t, err)

	// two planner/researcher/critic cycles, then the composer
	require.Len(t, snapshots, 7)
	assert.Equal(t, PhaseResearching, snapshots[0].Phase)
	assert.NotNil(t, snapshots[0].Plan)
	assert.Equal(t, PhaseCritiquing, snapshots[1].Phase)
	assert.Nil(t, snapshots[1].Plan)
	assert.Equal(t, PhasePlanning, snapshots[2].Phase)
	assert.Equal(t, PhaseResponding, snapshots[5].Phase)
	assert.Equal(t, PhaseDone, snapshots[6].Phase)
	for _, s := range snapshots[:6] {
		assert.Nil(t, s.Answer)
	}
	require.NotNil(t, snapshots[6].Answer)
	assert.Equal(t, res.Answer, *snapshots[6].Answer)

	// snapshots are copies
	snapshots[6].Evidence[0].Content = "mutated"
	assert.NotEqual(t, "mutated", res.Evidence[0].Content)

	assert.Equal(t, []string{EventSessionStart, EventSessionEnd}, sink.events)
}

func TestStreamEmitErrorAborts(t *testing.T) {
	llmFake := newScriptedLLM()
	llmFake.plans = []ReflectionPlan{{Reflection: "r", Plan: []string{"q"}}}
	a := newTestAgent(t, llmFake, &fakeRetriever{}, newMapCheckpoints(), defaultTestConfig())

	_, err := a.Stream(context.Background(), "q", "t", func(SessionState) error { return errBoom })
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, llmFake.count(NodeCritic))
}

func TestRunRejectsEmptyQuery(t *testing.T) {
	a := newTestAgent(t, newScriptedLLM(), &fakeRetriever{}, newMapCheckpoints(), defaultTestConfig())
	_, err := a.Run(context.Background(), "   ", "t")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestRunDefaultThread(t *testing.T) {
	checkpoints := newMapCheckpoints()
	a := newTestAgent(t, newScriptedLLM(), &fakeRetriever{}, checkpoints, defaultTestConfig())
	res, err := a.Run(context.Background(), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultThreadID, res.ThreadID)
	assert.NotNil(t, checkpoints.get(DefaultThreadID))
}

func TestCriticUsesConfiguredModelAndSourcesOnly(t *testing.T) {
	llmFake := newScriptedLLM()
	llmFake.plans = []ReflectionPlan{{Reflection: "r", Plan: []string{"q"}}}
	retriever := &fakeRetriever{docs: map[string][]store.Document{
		"q": {doc("https://acme.example/secret", "confidential passage body")},
	}}
	a := newTestAgent(t, llmFake, retriever, newMapCheckpoints(), defaultTestConfig())

	_, err := a.Run(context.Background(), "q", "t-critic")
	require.NoError(t, err)

	assert.Equal(t, []string{"gpt-4o-mini"}, llmFake.models[NodeCritic])
	assert.Equal(t, []string{""}, llmFake.models[NodePlanner])
	critic := joined(llmFake.criticInputs[0])
	assert.Contains(t, critic, "https://acme.example/secret")
	assert.NotContains(t, critic, "confidential passage body")
}

func TestResearcherLiveSearchFallback(t *testing.T) {
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(tools.Tool{
		Name: tools.NameWebSearch,
		Searcher: fakeSearcher{results: []tools.SearchResult{
			{Title: "Acme news", URL: "https://acme.example/news", Snippet: "Acme opened a new plant."},
			{Title: "Empty", URL: "https://acme.example/empty"},
		}},
	}))

	tests := []struct {
		name     string
		enabled  bool
		wantLive int
	}{
		{"enabled", true, 1},
		{"disabled", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := NewResearcher(&fakeRetriever{}, registry, ResearcherConfig{LiveSearchFallback: tt.enabled}, nil)
			state := NewSessionState("t", "news")
			state.Plan = []string{"latest news"}
			state.Iterations = 1

			u, err := node(context.Background(), *state)
			require.NoError(t, err)
			require.Len(t, u.AddEvidence, tt.wantLive)
			if tt.wantLive > 0 {
				assert.Equal(t, "https://acme.example/news", u.AddEvidence[0].Source)
				assert.Equal(t, store.OriginLiveSearch, u.AddEvidence[0].Metadata[store.MetaOrigin])
			}
		})
	}
}

func TestMiddlewareWrapsEveryNode(t *testing.T) {
	var trace []string
	mw := func(tag string) Middleware {
		return func(node string, next NodeFunc) NodeFunc {
			return func(ctx context.Context, s SessionState) (Update, error) {
				trace = append(trace, tag+">"+node)
				return next(ctx, s)
			}
		}
	}
	llmFake := newScriptedLLM()
	llmFake.plans = []ReflectionPlan{{Reflection: "r", Plan: []string{"q"}}}
	a := newTestAgent(t, llmFake, &fakeRetriever{}, newMapCheckpoints(), defaultTestConfig(),
		WithMiddleware(mw("outer"), mw("inner")))

	_, err := a.Run(context.Background(), "q", "t-mw")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"outer>planner", "inner>planner",
		"outer>researcher", "inner>researcher",
		"outer>critic", "inner>critic",
		"outer>composer", "inner>composer",
	}, trace)
}
