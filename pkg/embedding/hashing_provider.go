package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// HashingProvider embeds text as a hashed bag of lowercase words. It needs
// no model, so it backs offline development and tests; similarity tracks
// word overlap.
type HashingProvider struct {
	Dim int
}

var _ EmbeddingProvider = &HashingProvider{}

func NewHashingProvider(dim int) *HashingProvider {
	if dim <= 0 {
		dim = 256
	}
	return &HashingProvider{Dim: dim}
}

func (p *HashingProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	values := make([]float32, p.Dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		values[h.Sum32()%uint32(p.Dim)]++
	}
	return &EmbeddingResponse{
		Embedding: EmbeddingResponseEmbedding{Values: normalizeVector(values)},
	}, nil
}
