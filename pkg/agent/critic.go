package agent

import (
	"context"
	"fmt"
	"strings"

	"site-research-be/pkg/llm"
)

// stallNote is appended to the critic's input when the researcher flagged
// the evidence as exhausted in the current pass.
const stallNote = "Researcher note: the latest research pass found no new evidence; the index looks exhausted for this query."

// ResearchSufficiency is the critic's structured output.
type ResearchSufficiency struct {
	IsSufficient bool   `json:"is_sufficient" jsonschema:"description=True if the gathered information answers the query."`
	Reasoning    string `json:"reasoning" jsonschema:"description=Why the research is or is not sufficient."`
}

// NewCritic returns the node that judges whether the evidence suffices. It
// only sees source identifiers, never full content. model may name a
// cheaper model than the provider default. Its verdict always replaces the
// researcher's.
func NewCritic(provider llm.LLMProvider, prompt, model string) NodeFunc {
	return func(ctx context.Context, state SessionState) (Update, error) {
		var sources strings.Builder
		for _, e := range state.Evidence {
			fmt.Fprintf(&sources, "- %s\n", e.Source)
		}
		if sources.Len() == 0 {
			sources.WriteString("(none)\n")
		}

		var opts []llm.Option
		if model != "" {
			opts = append(opts, llm.WithModel(model))
		}

		userMsg := fmt.Sprintf("Query: %s\nEvidence entries: %d\nSources available:\n%s",
			state.Query, len(state.Evidence), sources.String())
		if state.IsSufficient {
			userMsg += "\n" + stallNote
		}

		out, err := llm.ChatStructured[ResearchSufficiency](ctx, provider, []llm.Message{
			{Role: llm.RoleSystem, Content: prompt},
			{Role: llm.RoleUser, Content: userMsg},
		}, opts...)
		if err != nil {
			return Update{}, fmt.Errorf("critique: %w", err)
		}

		return Update{
			IsSufficient: ptr(out.IsSufficient),
			Reflection:   ptr("Critic Evaluation: " + out.Reasoning),
		}, nil
	}
}
