// Package agent implements the bounded retrieve-critique-answer loop that
// answers questions about one organization from its indexed website.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"site-research-be/internal/pkg/logger"
	"site-research-be/pkg/guardrail"
	"site-research-be/pkg/llm"
	"site-research-be/pkg/lock"
	"site-research-be/pkg/tools"
)

const DefaultThreadID = "default-thread"

var (
	ErrEmptyQuery         = errors.New("agent: query is empty")
	ErrUsageLimitExceeded = errors.New("agent: thread usage limit exceeded")
)

type UsageAction string

const (
	UsageActionWarn   UsageAction = "warn"
	UsageActionReject UsageAction = "reject"
)

type Config struct {
	OrganizationName        string
	WebsiteURL              string
	IterationCeiling        int
	UsageLimit              int
	UsageAction             UsageAction
	StallPolicy             StallPolicy
	StallMinEvidence        int
	SkipResearchOnEmptyPlan bool
	LiveSearchFallback      bool
	CriticModel             string
	ComposerEvidenceChars   int
	PlannerPreviewChars     int
	LockTTL                 time.Duration
}

func DefaultConfig() Config {
	return Config{
		OrganizationName:        "the organization",
		IterationCeiling:        DefaultIterationCeiling,
		UsageLimit:              guardrail.DefaultUsageLimit,
		UsageAction:             UsageActionWarn,
		StallPolicy:             StallPolicySufficient,
		SkipResearchOnEmptyPlan: true,
		ComposerEvidenceChars:   DefaultComposerEvidenceChars,
		PlannerPreviewChars:     DefaultPlannerPreviewChars,
		LockTTL:                 5 * time.Minute,
	}
}

// Result is what a caller gets back from a run.
type Result struct {
	ThreadID   string     `json:"thread_id"`
	Answer     string     `json:"answer"`
	Evidence   []Evidence `json:"evidence"`
	Iterations int        `json:"iterations"`
	Error      string     `json:"error,omitempty"`
}

type Option func(*Agent)

func WithGuardrail(f *guardrail.Filter) Option {
	return func(a *Agent) { a.guard = f }
}

func WithTools(r *tools.Registry) Option {
	return func(a *Agent) { a.tools = r }
}

func WithLocker(l Locker) Option {
	return func(a *Agent) { a.locker = l }
}

func WithEventSink(s EventSink) Option {
	return func(a *Agent) { a.events = s }
}

func WithLogger(l logger.ILogger) Option {
	return func(a *Agent) { a.logger = l }
}

// WithMiddleware appends node middlewares; earlier ones wrap later ones.
func WithMiddleware(m ...Middleware) Option {
	return func(a *Agent) { a.middlewares = append(a.middlewares, m...) }
}

// WithNodes replaces the default reasoning nodes. Nil fields keep the default.
func WithNodes(n Nodes) Option {
	return func(a *Agent) { a.override = n }
}

type Agent struct {
	cfg         Config
	provider    llm.LLMProvider
	retriever   Retriever
	checkpoints CheckpointStore
	guard       *guardrail.Filter
	tools       *tools.Registry
	locker      Locker
	events      EventSink
	logger      logger.ILogger
	middlewares []Middleware
	override    Nodes
	engine      *Engine
}

func New(provider llm.LLMProvider, retriever Retriever, checkpoints CheckpointStore, cfg Config, opts ...Option) (*Agent, error) {
	if provider == nil {
		return nil, errors.New("agent: llm provider is required")
	}
	if retriever == nil {
		return nil, errors.New("agent: retriever is required")
	}
	if checkpoints == nil {
		return nil, errors.New("agent: checkpoint store is required")
	}

	a := &Agent{
		cfg:         withDefaults(cfg),
		provider:    provider,
		retriever:   retriever,
		checkpoints: checkpoints,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logger.NewNopLogger()
	}
	if a.guard == nil {
		a.guard = guardrail.New(a.logger)
	}
	if a.locker == nil {
		a.locker = lock.NewLocalLocker()
	}

	prompts := NewPrompts(a.cfg.OrganizationName, a.cfg.WebsiteURL)
	nodes := Nodes{
		Planner: NewPlanner(provider, prompts.Planner, a.cfg.PlannerPreviewChars),
		Researcher: NewResearcher(retriever, a.tools, ResearcherConfig{
			StallPolicy:        a.cfg.StallPolicy,
			StallMinEvidence:   a.cfg.StallMinEvidence,
			LiveSearchFallback: a.cfg.LiveSearchFallback,
			DefaultSource:      a.cfg.WebsiteURL,
		}, a.logger),
		Critic:   NewCritic(provider, prompts.Critic, a.cfg.CriticModel),
		Composer: NewComposer(provider, prompts.Composer, a.cfg.ComposerEvidenceChars),
	}
	if a.override.Planner != nil {
		nodes.Planner = a.override.Planner
	}
	if a.override.Researcher != nil {
		nodes.Researcher = a.override.Researcher
	}
	if a.override.Critic != nil {
		nodes.Critic = a.override.Critic
	}
	if a.override.Composer != nil {
		nodes.Composer = a.override.Composer
	}

	a.engine = NewEngine(nodes, EngineConfig{
		IterationCeiling:        a.cfg.IterationCeiling,
		SkipResearchOnEmptyPlan: a.cfg.SkipResearchOnEmptyPlan,
	}, a.middlewares...)
	return a, nil
}

func withDefaults(c Config) Config {
	d := DefaultConfig()
	if c.OrganizationName == "" {
		c.OrganizationName = d.OrganizationName
	}
	if c.IterationCeiling <= 0 {
		c.IterationCeiling = d.IterationCeiling
	}
	if c.UsageLimit <= 0 {
		c.UsageLimit = d.UsageLimit
	}
	if c.UsageAction == "" {
		c.UsageAction = d.UsageAction
	}
	if c.StallPolicy == "" {
		c.StallPolicy = d.StallPolicy
	}
	if c.ComposerEvidenceChars <= 0 {
		c.ComposerEvidenceChars = d.ComposerEvidenceChars
	}
	if c.PlannerPreviewChars <= 0 {
		c.PlannerPreviewChars = d.PlannerPreviewChars
	}
	if c.LockTTL <= 0 {
		c.LockTTL = d.LockTTL
	}
	return c
}

// Run answers query within the conversation identified by threadID. When a
// node fails, the returned Result carries the partial evidence and the
// error text alongside the error.
func (a *Agent) Run(ctx context.Context, query, threadID string) (*Result, error) {
	return a.run(ctx, query, threadID, nil)
}

// Stream behaves like Run and hands emit a snapshot of the state after every
// node. An error from emit aborts the run.
func (a *Agent) Stream(ctx context.Context, query, threadID string, emit func(SessionState) error) (*Result, error) {
	return a.run(ctx, query, threadID, emit)
}

func (a *Agent) run(ctx context.Context, query, threadID string, emit func(SessionState) error) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if threadID == "" {
		threadID = DefaultThreadID
	}
	mode := "sync"
	if emit != nil {
		mode = "streaming"
	}

	safeQuery := a.guard.SanitizeInput(strings.TrimSpace(query))

	unlock, err := a.locker.Lock(ctx, "agent:thread:"+threadID, a.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("lock thread %s: %w", threadID, err)
	}
	defer unlock()

	prev, err := a.checkpoints.Load(ctx, threadID)
	if err != nil {
		a.emit(ctx, EventError, map[string]interface{}{"thread_id": threadID, "error": err.Error()})
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	state := hydrate(prev, safeQuery, threadID)

	if a.guard.ExceedsUsageThreshold(threadID, len(state.History), a.cfg.UsageLimit) {
		a.emit(ctx, EventUsageThresholdExceeded, map[string]interface{}{
			"thread_id":      threadID,
			"history_length": len(state.History),
			"limit":          a.cfg.UsageLimit,
		})
		if a.cfg.UsageAction == UsageActionReject {
			return nil, ErrUsageLimitExceeded
		}
	}

	a.emit(ctx, EventSessionStart, map[string]interface{}{
		"thread_id": threadID,
		"query":     safeQuery,
		"mode":      mode,
		"resumed":   state.Iterations > 0,
	})

	started := time.Now()
	observe := func(node string, s *SessionState) error {
		switch node {
		case NodeCritic:
			if err := a.save(ctx, threadID, s); err != nil {
				return err
			}
		case NodeComposer:
			a.sanitizeAnswer(s)
		}
		if emit != nil {
			return emit(s.Clone())
		}
		return nil
	}

	if err := a.engine.Execute(ctx, state, observe); err != nil {
		msg := err.Error()
		state.Error = &msg

		details := map[string]interface{}{
			"thread_id":  threadID,
			"error":      msg,
			"elapsed_ms": time.Since(started).Milliseconds(),
		}
		var nodeErr *NodeError
		if errors.As(err, &nodeErr) {
			details["node"] = nodeErr.Node
			if serr := a.save(ctx, threadID, state); serr != nil {
				a.logger.Error("Agent", "Failed to checkpoint failed run", map[string]interface{}{
					"thread_id": threadID,
					"error":     serr,
				})
			}
		}
		a.logger.Error("Agent", "Run failed", details)
		a.emit(ctx, EventError, details)
		return toResult(state), err
	}

	if err := a.save(ctx, threadID, state); err != nil {
		a.emit(ctx, EventError, map[string]interface{}{"thread_id": threadID, "error": err.Error()})
		return nil, err
	}

	a.emit(ctx, EventSessionEnd, map[string]interface{}{
		"thread_id":  threadID,
		"status":     "success",
		"mode":       mode,
		"iterations": state.Iterations,
		"evidence":   len(state.Evidence),
		"elapsed_ms": time.Since(started).Milliseconds(),
	})
	return toResult(state), nil
}

// hydrate builds the state for a new query. Only the conversation history
// carries over, unless prev is an interrupted run of the same query, which
// is resumed where it stopped.
func hydrate(prev *SessionState, query, threadID string) *SessionState {
	state := NewSessionState(threadID, query)
	if prev == nil {
		return state
	}
	if prev.InFlight() && prev.Query == query {
		resumed := prev.Clone()
		resumed.ThreadID = threadID
		resumed.Error = nil
		return &resumed
	}
	state.History = append([]llm.Message(nil), prev.History...)
	return state
}

func (a *Agent) save(ctx context.Context, threadID string, s *SessionState) error {
	s.UpdatedAt = time.Now().UTC()
	if err := a.checkpoints.Save(ctx, threadID, s); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// sanitizeAnswer redacts the answer and the assistant turn recorded with it.
func (a *Agent) sanitizeAnswer(s *SessionState) {
	if s.Answer == nil {
		return
	}
	clean := a.guard.SanitizeOutput(*s.Answer)
	s.Answer = &clean
	if n := len(s.History); n > 0 && s.History[n-1].Role == llm.RoleAssistant {
		s.History[n-1].Content = clean
	}
}

func (a *Agent) emit(ctx context.Context, eventType string, details map[string]interface{}) {
	if a.events == nil {
		a.logger.Info("Agent", eventType, details)
		return
	}
	a.events.Emit(ctx, eventType, details)
}

func toResult(s *SessionState) *Result {
	r := &Result{
		ThreadID:   s.ThreadID,
		Evidence:   s.Evidence,
		Iterations: s.Iterations,
	}
	if s.Answer != nil {
		r.Answer = *s.Answer
	}
	if s.Error != nil {
		r.Error = *s.Error
	}
	return r
}
