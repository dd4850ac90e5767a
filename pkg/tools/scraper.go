package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

const maxPageBytes = 5 << 20

// Scraper downloads a page and converts its main content to markdown.
type Scraper struct {
	Client    *http.Client
	UserAgent string
}

var _ Fetcher = &Scraper{}

func NewScraper() *Scraper {
	return &Scraper{
		Client:    &http.Client{Timeout: 30 * time.Second},
		UserAgent: "Mozilla/5.0 (compatible; site-research-bot/1.0)",
	}
}

func (s *Scraper) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	return HTMLToMarkdown(doc, url)
}

// HTMLToMarkdown drops page chrome and converts the remaining body.
func HTMLToMarkdown(doc *goquery.Document, url string) (string, error) {
	doc.Find("script, style, noscript, iframe, svg, nav, footer, header, form").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())

	body := doc.Find("main").First()
	if body.Length() == 0 {
		body = doc.Find("body").First()
	}
	html, err := body.Html()
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}

	converter := md.NewConverter(domainOf(url), true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}

	markdown = strings.TrimSpace(markdown)
	if title != "" && !strings.HasPrefix(markdown, "# ") {
		markdown = "# " + title + "\n\n" + markdown
	}
	return markdown, nil
}

func domainOf(url string) string {
	rest := url
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
