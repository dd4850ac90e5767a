package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
)

var ErrMalformedOutput = errors.New("llm: malformed structured output")

// SchemaFor reflects a strict JSON schema from T.
func SchemaFor[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// ChatStructured asks provider for a response matching T's schema and decodes it.
func ChatStructured[T any](ctx context.Context, provider LLMProvider, history []Message, options ...Option) (T, error) {
	var out T

	name := reflect.TypeOf(out).Name()
	if name == "" {
		name = "response"
	}
	options = append(options, WithSchema(name, SchemaFor[T]()))

	raw, err := provider.Chat(ctx, history, options...)
	if err != nil {
		return out, err
	}

	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return out, nil
}

// ExtractJSON strips markdown fences and surrounding prose from a JSON object reply.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
