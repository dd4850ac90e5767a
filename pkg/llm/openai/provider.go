package openai

import (
	"context"
	"fmt"

	"site-research-be/pkg/llm"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

type OpenAIProvider struct {
	client      sdk.Client
	ModelName   string
	Temperature float64
}

// Ensure OpenAIProvider implements LLMProvider
var _ llm.LLMProvider = &OpenAIProvider{}

// NewOpenAIProvider builds a chat client; transport retries are handled by the SDK.
func NewOpenAIProvider(apiKey, modelName string, temperature float64, opts ...option.RequestOption) *OpenAIProvider {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(3)}, opts...)
	return &OpenAIProvider{
		client:      sdk.NewClient(opts...),
		ModelName:   modelName,
		Temperature: temperature,
	}
}

func (p *OpenAIProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	options := llm.ApplyOptions(opts...)

	model := p.ModelName
	if options.Model != "" {
		model = options.Model
	}
	temperature := p.Temperature
	if options.Temperature != nil {
		temperature = *options.Temperature
	}

	messages := make([]sdk.ChatCompletionMessageParamUnion, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case llm.RoleSystem:
			messages = append(messages, sdk.SystemMessage(msg.Content))
		case llm.RoleAssistant, "model":
			messages = append(messages, sdk.AssistantMessage(msg.Content))
		default:
			messages = append(messages, sdk.UserMessage(msg.Content))
		}
	}

	params := sdk.ChatCompletionNewParams{
		Model:       sdk.ChatModel(model),
		Messages:    messages,
		Temperature: sdk.Float(temperature),
	}
	if options.MaxTokens > 0 {
		params.MaxCompletionTokens = sdk.Int(int64(options.MaxTokens))
	}
	if options.Schema != nil {
		params.ResponseFormat = sdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &sdk.ResponseFormatJSONSchemaParam{
				JSONSchema: sdk.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   options.Schema.Name,
					Schema: options.Schema.Definition,
					Strict: sdk.Bool(true),
				},
			},
		}
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("openai error: no choices returned")
	}

	return completion.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}
