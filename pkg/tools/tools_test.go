package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><head><title>Acme Group</title><script>var x = 1;</script></head>
<body>
<nav><a href="/">Home</a></nav>
<main>
<h2>About us</h2>
<p>Acme Group builds <strong>bridges</strong> since 1990.</p>
<ul><li>Engineering</li><li>Consulting</li></ul>
</main>
<footer>Copyright</footer>
</body></html>`

func TestScraperFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "site-research-bot")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	out, err := NewScraper().Fetch(context.Background(), srv.URL+"/about")
	require.NoError(t, err)

	assert.Contains(t, out, "# Acme Group")
	assert.Contains(t, out, "## About us")
	assert.Contains(t, out, "**bridges**")
	assert.Contains(t, out, "Engineering")
	assert.NotContains(t, out, "var x")
	assert.NotContains(t, out, "Copyright")
	assert.NotContains(t, out, "Home")
}

func TestScraperFetchStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewScraper().Fetch(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "status 404")
}

type fakeSearcher struct{}

func (fakeSearcher) Search(ctx context.Context, query string) ([]SearchResult, error) {
	return []SearchResult{{Title: query}}, nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(Tool{Name: NameFetch, Fetcher: NewScraper()}))
	require.NoError(t, r.Register(Tool{Name: NameWebSearch, Searcher: fakeSearcher{}}))

	assert.Error(t, r.Register(Tool{Name: NameFetch, Fetcher: NewScraper()}), "duplicate")
	assert.Error(t, r.Register(Tool{Name: "empty"}), "no capability")
	assert.Error(t, r.Register(Tool{Searcher: fakeSearcher{}}), "no name")

	assert.Equal(t, []string{NameFetch, NameWebSearch}, r.Names())

	s, ok := r.Searcher()
	require.True(t, ok)
	res, err := s.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "q", res[0].Title)

	_, ok = r.Fetcher()
	assert.True(t, ok)

	_, ok = NewRegistry().Searcher()
	assert.False(t, ok)
}
