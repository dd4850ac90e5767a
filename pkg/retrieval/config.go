// Package retrieval implements hybrid (dense + lexical) search over the
// ingested website corpus and the ingestion write path that feeds it.
package retrieval

import "errors"

var (
	ErrEmptyDocument = errors.New("retrieval: document has no text")
	ErrEmptyCorpus   = errors.New("retrieval: corpus is empty")
)

type Config struct {
	Collection     string
	K              int // results per underlying index
	SemanticWeight float64
	LexicalWeight  float64
	RRFConstant    float64
	ChunkSize      int
	ChunkOverlap   int
	EmbedWorkers   int
}

func DefaultConfig() Config {
	return Config{
		Collection:     "site_docs",
		K:              5,
		SemanticWeight: 0.6,
		LexicalWeight:  0.4,
		RRFConstant:    60,
		ChunkSize:      1000,
		ChunkOverlap:   200,
		EmbedWorkers:   4,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Collection == "" {
		c.Collection = d.Collection
	}
	if c.K <= 0 {
		c.K = d.K
	}
	if c.SemanticWeight == 0 && c.LexicalWeight == 0 {
		c.SemanticWeight, c.LexicalWeight = d.SemanticWeight, d.LexicalWeight
	}
	if c.RRFConstant <= 0 {
		c.RRFConstant = d.RRFConstant
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = 0
	}
	if c.EmbedWorkers <= 0 {
		c.EmbedWorkers = d.EmbedWorkers
	}
	return c
}
