// Package altfeed is a client for the optional business-intel "alternatives"
// feed, which maps a domain to structured alternative/competitor listings.
package altfeed

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the alternatives feed operations.
type Client interface {
	// Alternatives returns structured alternative listings for a domain.
	Alternatives(ctx context.Context, domain string) ([]Alternative, error)
}

// Alternative is one structured alternative listing.
type Alternative struct {
	CompanyName string  `json:"company_name"`
	Domain      string  `json:"domain"`
	Category    string  `json:"category,omitempty"`
	Description string  `json:"description,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	ReviewCount int     `json:"review_count,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates an alternatives feed client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.altfeed.io/v1",
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Alternatives(ctx context.Context, domain string) ([]Alternative, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/alternatives?domain="+url.QueryEscape(domain), nil)
	if err != nil {
		return nil, eris.Wrap(err, "altfeed: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "altfeed: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "altfeed: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("altfeed: status %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Alternatives []Alternative `json:"alternatives"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "altfeed: unmarshal response")
	}

	return out.Alternatives, nil
}
