// Package seodata is a client for the SEO metrics provider: domain authority
// and traffic, ranked keywords, keyword ideas, and SERP composition with
// per-result authority. Endpoints use HTTP basic auth.
package seodata

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.seodata.io/v3"

// Client defines the SEO metrics provider operations.
type Client interface {
	// DomainMetrics returns authority/traffic metrics for a domain.
	DomainMetrics(ctx context.Context, domain string) (*DomainMetrics, error)
	// RankedKeywords returns the keywords a domain ranks for, by traffic.
	RankedKeywords(ctx context.Context, domain string, limit int) ([]Keyword, error)
	// KeywordIdeas expands seed keywords into related keyword suggestions.
	KeywordIdeas(ctx context.Context, seeds []string, limit int) ([]Keyword, error)
	// SERP returns the top ranking pages for a keyword in a market.
	SERP(ctx context.Context, keyword, market string) (*SERPResult, error)
}

// DomainMetrics holds domain-level SEO metrics.
type DomainMetrics struct {
	Domain          string `json:"domain"`
	AuthorityRating int    `json:"authority_rating"` // 0-100
	OrganicTraffic  int64  `json:"organic_traffic"`
	OrganicKeywords int    `json:"organic_keywords"`
	Backlinks       int64  `json:"backlinks"`
}

// Keyword is a keyword row with provider metrics.
type Keyword struct {
	Keyword      string  `json:"keyword"`
	SearchVolume int     `json:"search_volume"`
	Difficulty   float64 `json:"difficulty"` // 0-100
	CPC          float64 `json:"cpc"`
	Intent       string  `json:"intent"`
	Position     int     `json:"position,omitempty"` // only for ranked keywords
}

// SERPEntry is one ranking page in a SERP.
type SERPEntry struct {
	Position       int    `json:"position"`
	URL            string `json:"url"`
	Domain         string `json:"domain"`
	Authority      int    `json:"authority"` // 0-100
	WordCount      int    `json:"word_count"`
	ContentAgeDays int    `json:"content_age_days"`
}

// SERPResult is the SERP composition for a keyword.
type SERPResult struct {
	Keyword       string      `json:"keyword"`
	Market        string      `json:"market"`
	Intent        string      `json:"intent"`
	HasAIOverview bool        `json:"has_ai_overview"`
	Results       []SERPEntry `json:"results"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	login    string
	password string
	baseURL  string
	http     *http.Client
}

// NewClient creates an SEO data client with basic-auth credentials.
func NewClient(login, password string, opts ...Option) Client {
	c := &httpClient{
		login:    login,
		password: password,
		baseURL:  defaultBaseURL,
		http: &http.Client{
			Timeout: 45 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) DomainMetrics(ctx context.Context, domain string) (*DomainMetrics, error) {
	var out DomainMetrics
	err := c.post(ctx, "/domain/metrics", map[string]any{"domain": domain}, &out)
	if err != nil {
		return nil, eris.Wrapf(err, "seodata: domain metrics %s", domain)
	}
	return &out, nil
}

func (c *httpClient) RankedKeywords(ctx context.Context, domain string, limit int) ([]Keyword, error) {
	var out struct {
		Keywords []Keyword `json:"keywords"`
	}
	err := c.post(ctx, "/domain/ranked_keywords", map[string]any{"domain": domain, "limit": limit}, &out)
	if err != nil {
		return nil, eris.Wrapf(err, "seodata: ranked keywords %s", domain)
	}
	return out.Keywords, nil
}

func (c *httpClient) KeywordIdeas(ctx context.Context, seeds []string, limit int) ([]Keyword, error) {
	var out struct {
		Keywords []Keyword `json:"keywords"`
	}
	err := c.post(ctx, "/keywords/ideas", map[string]any{"seeds": seeds, "limit": limit}, &out)
	if err != nil {
		return nil, eris.Wrap(err, "seodata: keyword ideas")
	}
	return out.Keywords, nil
}

func (c *httpClient) SERP(ctx context.Context, keyword, market string) (*SERPResult, error) {
	var out SERPResult
	err := c.post(ctx, "/serp/organic", map[string]any{"keyword": keyword, "market": market}, &out)
	if err != nil {
		return nil, eris.Wrapf(err, "seodata: serp %q", keyword)
	}
	return &out, nil
}

func (c *httpClient) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.SetBasicAuth(c.login, c.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response")
	}

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "unmarshal response")
	}
	return nil
}
