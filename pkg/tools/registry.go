// Package tools holds the external capabilities the agent may call: page
// fetching for ingestion and live web search for the research fallback.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

const (
	NameFetch     = "fetch_page"
	NameWebSearch = "web_search"
)

type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Fetcher returns a page as markdown.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Searcher runs a live web search.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

type Tool struct {
	Name        string
	Description string
	Fetcher     Fetcher
	Searcher    Searcher
}

// Registry is built once at startup and handed to whoever needs tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if t.Fetcher == nil && t.Searcher == nil {
		return fmt.Errorf("tool %s has no capability", t.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %s already registered", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Searcher returns the registered web search capability, if any.
func (r *Registry) Searcher() (Searcher, bool) {
	t, ok := r.Get(NameWebSearch)
	if !ok || t.Searcher == nil {
		return nil, false
	}
	return t.Searcher, true
}

// Fetcher returns the registered page fetch capability, if any.
func (r *Registry) Fetcher() (Fetcher, bool) {
	t, ok := r.Get(NameFetch)
	if !ok || t.Fetcher == nil {
		return nil, false
	}
	return t.Fetcher, true
}
