package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTavilySearch(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "who runs acme", body["query"])
		assert.Equal(t, []interface{}{"acme.example"}, body["include_domains"])

		_, _ = w.Write([]byte(`{"results":[
			{"title":"A","url":"https://acme.example/a","content":"alpha"},
			{"title":"B","url":"https://acme.example/b","content":"beta"},
			{"title":"C","url":"https://acme.example/c","content":"gamma"}
		]}`))
	}))
	defer srv.Close()

	c := NewTavilyClient("key", 2, 100, "acme.example")
	c.Endpoint = srv.URL

	results, err := c.Search(context.Background(), "who runs acme")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://acme.example/a", results[0].URL)
	assert.Equal(t, "beta", results[1].Snippet)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTavilyMissingKey(t *testing.T) {
	_, err := NewTavilyClient("", 5, 1).Search(context.Background(), "x")
	assert.ErrorContains(t, err, "API key")
}

func TestTavilyErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":{"error":"invalid key"}}`))
	}))
	defer srv.Close()

	c := NewTavilyClient("bad", 5, 100)
	c.Endpoint = srv.URL
	_, err := c.Search(context.Background(), "x")
	assert.ErrorContains(t, err, "invalid key")
}
