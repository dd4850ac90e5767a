package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"site-research-be/pkg/llm"
	"site-research-be/pkg/store"
	"site-research-be/pkg/tools"
)

// scriptedLLM answers by the structured-output schema requested: planner
// calls ask for ReflectionPlan, critic calls for ResearchSufficiency and
// composer calls for no schema at all.
type scriptedLLM struct {
	mu sync.Mutex

	plans    []ReflectionPlan
	verdicts []ResearchSufficiency
	judge    func(history []llm.Message) ResearchSufficiency
	answer   func(history []llm.Message) string
	raw      map[string]string
	errs     map[string]error

	calls         map[string]int
	models        map[string][]string
	plannerInputs [][]llm.Message
	criticInputs  [][]llm.Message
	composerInput [][]llm.Message
}

func newScriptedLLM() *scriptedLLM {
	return &scriptedLLM{
		calls:  make(map[string]int),
		models: make(map[string][]string),
		raw:    make(map[string]string),
		errs:   make(map[string]error),
	}
}

func (s *scriptedLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	opts := llm.ApplyOptions(options...)
	role := NodeComposer
	if opts.Schema != nil {
		switch opts.Schema.Name {
		case "ReflectionPlan":
			role = NodePlanner
		case "ResearchSufficiency":
			role = NodeCritic
		default:
			return "", fmt.Errorf("unexpected schema %s", opts.Schema.Name)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.calls[role]
	s.calls[role]++
	s.models[role] = append(s.models[role], opts.Model)
	copied := append([]llm.Message(nil), history...)

	if err := s.errs[role]; err != nil {
		return "", err
	}
	if raw, ok := s.raw[role]; ok {
		return raw, nil
	}

	switch role {
	case NodePlanner:
		s.plannerInputs = append(s.plannerInputs, copied)
		plan := ReflectionPlan{Reflection: "need more", Plan: []string{}}
		if len(s.plans) > 0 {
			plan = s.plans[min(n, len(s.plans)-1)]
		}
		return marshal(plan), nil
	case NodeCritic:
		s.criticInputs = append(s.criticInputs, copied)
		verdict := ResearchSufficiency{IsSufficient: true, Reasoning: "enough"}
		if s.judge != nil {
			verdict = s.judge(copied)
		} else if len(s.verdicts) > 0 {
			verdict = s.verdicts[min(n, len(s.verdicts)-1)]
		}
		return marshal(verdict), nil
	default:
		s.composerInput = append(s.composerInput, copied)
		if s.answer != nil {
			return s.answer(copied), nil
		}
		return "composed answer", nil
	}
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return s.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}

func (s *scriptedLLM) count(role string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[role]
}

func marshal(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// fakeRetriever serves canned documents per query and records every call.
type fakeRetriever struct {
	mu      sync.Mutex
	docs    map[string][]store.Document
	fresh   bool
	err     error
	queries []string
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string) ([]store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	if f.fresh {
		// every call yields a document never seen before
		content := fmt.Sprintf("fresh passage %03d about %s", len(f.queries), query)
		return []store.Document{{Content: content, Metadata: map[string]interface{}{store.MetaSource: "https://acme.example/p"}}}, nil
	}
	return f.docs[query], nil
}

func (f *fakeRetriever) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// mapCheckpoints keeps JSON copies so callers cannot alias stored state.
type mapCheckpoints struct {
	mu      sync.Mutex
	data    map[string][]byte
	saves   int
	loadErr error
	saveErr error
}

func newMapCheckpoints() *mapCheckpoints {
	return &mapCheckpoints{data: make(map[string][]byte)}
}

func (m *mapCheckpoints) Load(ctx context.Context, threadID string) (*SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	raw, ok := m.data[threadID]
	if !ok {
		return nil, nil
	}
	var s SessionState
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *mapCheckpoints) Save(ctx context.Context, threadID string, state *SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	m.data[threadID] = raw
	m.saves++
	return nil
}

func (m *mapCheckpoints) get(threadID string) *SessionState {
	s, _ := m.Load(context.Background(), threadID)
	return s
}

type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingSink) Emit(ctx context.Context, eventType string, details map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
}

type fakeSearcher struct {
	results []tools.SearchResult
	err     error
}

func (f fakeSearcher) Search(ctx context.Context, query string) ([]tools.SearchResult, error) {
	return f.results, f.err
}

var errBoom = errors.New("boom")

func doc(source, content string) store.Document {
	return store.Document{Content: content, Metadata: map[string]interface{}{store.MetaSource: source}}
}

func joined(messages []llm.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}
