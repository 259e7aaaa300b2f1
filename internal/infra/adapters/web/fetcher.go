package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"editorial-pipeline/internal/domain/ports/adapter"
)

var _ adapter.WebFetcher = (*Fetcher)(nil)

const (
	minParagraphRunes = 60
	maxParagraphRunes = 600
	maxParagraphs     = 20
)

// Fetcher downloads a page and extracts its title and readable paragraphs.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher wires an HTTP client; timeout defaults to 15s.
func NewFetcher(client *http.Client, timeout time.Duration, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if userAgent == "" {
		userAgent = "editorial-pipeline/1.0"
	}
	return &Fetcher{client: client, userAgent: userAgent}
}

func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*adapter.Page, error) {
	doc, err := f.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return extractPage(doc, pageURL), nil
}

func (f *Fetcher) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func extractPage(doc *goquery.Document, pageURL string) *adapter.Page {
	doc.Find("script, style, noscript, nav, header, footer, aside, form").Remove()

	title := cleanText(doc.Find(`meta[property="og:title"]`).AttrOr("content", ""))
	if title == "" {
		title = cleanText(doc.Find("title").First().Text())
	}
	if title == "" {
		title = cleanText(doc.Find("h1").First().Text())
	}

	root := doc.Find("article, main").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}

	seen := map[string]struct{}{}
	var paragraphs []string
	root.Find("p, li").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := cleanText(s.Text())
		if utf8.RuneCountInString(text) < minParagraphRunes {
			return true
		}
		if _, ok := seen[text]; ok {
			return true
		}
		seen[text] = struct{}{}
		paragraphs = append(paragraphs, truncateRunes(text, maxParagraphRunes))
		return len(paragraphs) < maxParagraphs
	})

	return &adapter.Page{URL: pageURL, Title: title, Paragraphs: paragraphs}
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "…"
}
