package factory

import (
	"fmt"

	"site-research-be/pkg/llm"
	"site-research-be/pkg/llm/ollama"
	"site-research-be/pkg/llm/openai"
)

type Params struct {
	Provider    string
	Model       string
	Temperature float64
	APIKey      string
	BaseURL     string
}

func NewLLMProvider(p Params) (llm.LLMProvider, error) {
	switch p.Provider {
	case "openai", "":
		if p.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return openai.NewOpenAIProvider(p.APIKey, p.Model, p.Temperature), nil
	case "ollama":
		return ollama.NewOllamaProvider(p.BaseURL, p.Model, p.Temperature), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", p.Provider)
	}
}
