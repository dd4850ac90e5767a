package agent

import (
	"context"
	"fmt"
	"strings"

	"site-research-be/pkg/llm"
)

const DefaultPlannerPreviewChars = 300

// ReflectionPlan is the planner's structured output.
type ReflectionPlan struct {
	Reflection string   `json:"reflection" jsonschema:"description=Self-critique of the knowledge gathered so far."`
	Plan       []string `json:"plan" jsonschema:"description=Specific search queries to run against the local index next. Empty for greetings."`
}

// NewPlanner returns the node that reflects on the evidence and proposes
// the next search queries. It increments the iteration counter.
func NewPlanner(provider llm.LLMProvider, prompt string, previewChars int) NodeFunc {
	if previewChars <= 0 {
		previewChars = DefaultPlannerPreviewChars
	}
	return func(ctx context.Context, state SessionState) (Update, error) {
		var summary strings.Builder
		for _, e := range state.Evidence {
			fmt.Fprintf(&summary, "Chunk: %s...\nSource: %s\n\n", truncateRunes(e.Content, previewChars), e.Source)
		}
		retrieved := summary.String()
		if retrieved == "" {
			retrieved = "No info retrieved yet."
		}

		userMsg := fmt.Sprintf("User Query: %s\nContext:\nCurrent Iteration: %d\nRetrieved Context: %s",
			state.Query, state.Iterations, retrieved)

		out, err := llm.ChatStructured[ReflectionPlan](ctx, provider, []llm.Message{
			{Role: llm.RoleSystem, Content: prompt},
			{Role: llm.RoleUser, Content: userMsg},
		})
		if err != nil {
			return Update{}, fmt.Errorf("plan: %w", err)
		}

		plan := make([]string, 0, len(out.Plan))
		for _, q := range out.Plan {
			if q = strings.TrimSpace(q); q != "" {
				plan = append(plan, q)
			}
		}

		return Update{
			Reflection: ptr(out.Reflection),
			Plan:       &plan,
			Iterations: ptr(state.Iterations + 1),
		}, nil
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
