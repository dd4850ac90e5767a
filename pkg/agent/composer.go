package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"site-research-be/pkg/llm"
)

const DefaultComposerEvidenceChars = 8000

type composerContext struct {
	Source  string `json:"url"`
	Content string `json:"content"`
}

// NewComposer returns the node that writes the final answer from the
// evidence and the conversation history, and records the turn.
func NewComposer(provider llm.LLMProvider, prompt string, evidenceChars int) NodeFunc {
	if evidenceChars <= 0 {
		evidenceChars = DefaultComposerEvidenceChars
	}
	return func(ctx context.Context, state SessionState) (Update, error) {
		contextData := make([]composerContext, len(state.Evidence))
		for i, e := range state.Evidence {
			contextData[i] = composerContext{Source: e.Source, Content: truncateRunes(e.Content, evidenceChars)}
		}
		raw, err := json.Marshal(contextData)
		if err != nil {
			return Update{}, fmt.Errorf("encode evidence: %w", err)
		}

		messages := make([]llm.Message, 0, len(state.History)+2)
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: prompt})
		messages = append(messages, state.History...)
		messages = append(messages, llm.Message{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("Question: %s\n\nContext and Query Details: %s", state.Query, raw),
		})

		answer, err := provider.Chat(ctx, messages)
		if err != nil {
			return Update{}, fmt.Errorf("compose: %w", err)
		}

		return Update{
			Answer: ptr(answer),
			AppendHistory: []llm.Message{
				{Role: llm.RoleUser, Content: state.Query},
				{Role: llm.RoleAssistant, Content: answer},
			},
		}, nil
	}
}
