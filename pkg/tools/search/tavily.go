package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"site-research-be/pkg/tools"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const defaultEndpoint = "https://api.tavily.com/search"

// TavilyClient calls the Tavily search API.
type TavilyClient struct {
	APIKey     string
	Endpoint   string
	MaxResults int
	// IncludeDomains restricts results, e.g. to the organization's site.
	IncludeDomains []string
	client         *http.Client
	limiter        *rate.Limiter
}

var _ tools.Searcher = &TavilyClient{}

func NewTavilyClient(apiKey string, maxResults int, rps float64, includeDomains ...string) *TavilyClient {
	if maxResults <= 0 {
		maxResults = 5
	}
	if rps <= 0 {
		rps = 1
	}
	return &TavilyClient{
		APIKey:         apiKey,
		Endpoint:       defaultEndpoint,
		MaxResults:     maxResults,
		IncludeDomains: includeDomains,
		client:         &http.Client{Timeout: 15 * time.Second},
		limiter:        rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (t *TavilyClient) Search(ctx context.Context, query string) ([]tools.SearchResult, error) {
	if strings.TrimSpace(t.APIKey) == "" {
		return nil, errors.New("tavily: API key is missing")
	}

	body := map[string]any{
		"query":       query,
		"api_key":     t.APIKey,
		"max_results": t.MaxResults,
	}
	if len(t.IncludeDomains) > 0 {
		body["include_domains"] = t.IncludeDomains
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	var resp *http.Response
	delay := time.Second
	for {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err = t.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("tavily request failed: %w", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		resp.Body.Close()

		// 429: back off, doubling up to 30s
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily http %d: %s", resp.StatusCode, gjson.GetBytes(raw, "detail.error").String())
	}

	results := make([]tools.SearchResult, 0, t.MaxResults)
	gjson.GetBytes(raw, "results").ForEach(func(_, r gjson.Result) bool {
		results = append(results, tools.SearchResult{
			Title:   r.Get("title").String(),
			URL:     r.Get("url").String(),
			Snippet: r.Get("content").String(),
		})
		return len(results) < t.MaxResults
	})
	return results, nil
}
