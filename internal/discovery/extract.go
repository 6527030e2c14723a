package discovery

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/pkg/anthropic"
)

// Extractor turns AI prose into structured candidate tuples. It is modeled as
// an external oracle so tests and provider outages can swap in the
// deterministic citation-based fallback.
type Extractor interface {
	Extract(ctx context.Context, prose string, citations []string) ([]model.RawCandidate, error)
}

// extractPrompt asks Claude to pull company/domain tuples out of prose.
const extractPrompt = `Extract every company mentioned as a competitor or alternative in the text. Ignore the subject business itself.

Respond with ONLY valid JSON, no other text:
{"companies": [{"company_name": "", "domain": "", "context": "one-line why it was mentioned"}]}`

type extractResponse struct {
	Companies []struct {
		CompanyName string `json:"company_name"`
		Domain      string `json:"domain"`
		Context     string `json:"context"`
	} `json:"companies"`
}

// ClaudeExtractor uses Claude to structure prose, falling back to citation
// domains when the oracle fails.
type ClaudeExtractor struct {
	ai    anthropic.Client
	model string
}

// NewClaudeExtractor creates the extraction oracle.
func NewClaudeExtractor(ai anthropic.Client, model string) *ClaudeExtractor {
	return &ClaudeExtractor{ai: ai, model: model}
}

func (e *ClaudeExtractor) Extract(ctx context.Context, prose string, citations []string) ([]model.RawCandidate, error) {
	if strings.TrimSpace(prose) == "" {
		return CitationFallback{}.Extract(ctx, prose, citations)
	}

	resp, err := e.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: 1024,
		System:    extractPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: prose}},
	})
	if err != nil {
		// Oracle outage degrades to citation domains, not to failure.
		return CitationFallback{}.Extract(ctx, prose, citations)
	}
	resp.Usage.LogCost(e.model, "extract")

	text := resp.Text()
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, eris.Errorf("extract: no JSON in response: %s", text)
	}

	var parsed extractResponse
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return nil, eris.Wrap(err, "extract: parse response JSON")
	}

	out := make([]model.RawCandidate, 0, len(parsed.Companies))
	for _, c := range parsed.Companies {
		if c.CompanyName == "" && c.Domain == "" {
			continue
		}
		out = append(out, model.RawCandidate{
			CompanyName: c.CompanyName,
			Domain:      c.Domain,
			Context:     c.Context,
		})
	}
	return out, nil
}

// CitationFallback derives candidates from citation URLs alone. Deterministic,
// used for tests and oracle outages.
type CitationFallback struct{}

func (CitationFallback) Extract(_ context.Context, _ string, citations []string) ([]model.RawCandidate, error) {
	var out []model.RawCandidate
	seen := make(map[string]bool)
	for _, c := range citations {
		domain := citationDomain(c)
		if domain == "" || seen[domain] {
			continue
		}
		seen[domain] = true
		out = append(out, model.RawCandidate{
			Domain:  domain,
			Context: "cited by search synthesis",
		})
	}
	return out, nil
}

func citationDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
