package retrieval

import (
	"fmt"

	"site-research-be/pkg/store"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
)

// LexicalIndex is an in-memory bleve index over chunk contents. It is
// rebuilt from the dense index whenever the corpus changes.
type LexicalIndex struct {
	index bleve.Index
	docs  map[string]store.Document
}

func BuildLexicalIndex(docs []store.Document) (*LexicalIndex, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyCorpus
	}

	contentMapping := bleve.NewTextFieldMapping()
	contentMapping.Analyzer = standard.Name
	contentMapping.Store = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("content", contentMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name

	idx, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("create lexical index: %w", err)
	}

	byID := make(map[string]store.Document, len(docs))
	batch := idx.NewBatch()
	for _, d := range docs {
		if err := batch.Index(d.ID, map[string]interface{}{"content": d.Content}); err != nil {
			idx.Close()
			return nil, fmt.Errorf("index %s: %w", d.ID, err)
		}
		byID[d.ID] = d
	}
	if err := idx.Batch(batch); err != nil {
		idx.Close()
		return nil, fmt.Errorf("commit lexical batch: %w", err)
	}

	return &LexicalIndex{index: idx, docs: byID}, nil
}

// Search returns up to k documents ranked by term relevance.
func (l *LexicalIndex) Search(query string, k int) ([]store.Document, error) {
	q := bleve.NewMatchQuery(query)
	q.SetField("content")

	req := bleve.NewSearchRequestOptions(q, k, 0, false)
	res, err := l.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	out := make([]store.Document, 0, len(res.Hits))
	for _, hit := range res.Hits {
		d, ok := l.docs[hit.ID]
		if !ok {
			continue
		}
		d.Score = float32(hit.Score)
		out = append(out, d)
	}
	return out, nil
}

func (l *LexicalIndex) Len() int {
	return len(l.docs)
}

func (l *LexicalIndex) Close() error {
	return l.index.Close()
}
