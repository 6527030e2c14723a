package profile

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// maxPageBytes limits the amount of HTML downloaded per page.
const maxPageBytes = 512 * 1024 // 512 KB

var pageClient = &http.Client{Timeout: 10 * time.Second}

// PageSummary is the extracted skeleton of a landing page.
type PageSummary struct {
	URL         string
	Title       string
	Description string
	Headings    []string
	Text        string // visible text sample
}

// CombinedText returns title, description, headings, and body text joined for
// similarity scoring.
func (p *PageSummary) CombinedText() string {
	parts := []string{p.Title, p.Description}
	parts = append(parts, p.Headings...)
	parts = append(parts, p.Text)
	return strings.Join(parts, " ")
}

// FetchPage downloads a homepage and extracts title, meta description,
// headings, and a visible text sample.
func FetchPage(ctx context.Context, domain string) (*PageSummary, error) {
	pageURL := domain
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		pageURL = "https://" + pageURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "page: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; market-intel/1.0)")

	resp, err := pageClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "page: fetch")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("page: %s returned %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, eris.Wrap(err, "page: parse html")
	}

	return summarize(pageURL, doc), nil
}

func summarize(pageURL string, doc *goquery.Document) *PageSummary {
	s := &PageSummary{
		URL:   pageURL,
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		s.Description = strings.TrimSpace(desc)
	}

	doc.Find("h1, h2").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if h := strings.TrimSpace(sel.Text()); h != "" {
			s.Headings = append(s.Headings, h)
		}
		return len(s.Headings) < 10
	})

	// Strip non-content nodes before sampling visible text.
	doc.Find("script, style, noscript, nav, footer").Remove()
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if len(text) > 4000 {
		text = text[:4000]
	}
	s.Text = text

	return s
}
