package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/pkg/altfeed"
	"github.com/sells-group/market-intel/pkg/perplexity"
	"github.com/sells-group/market-intel/pkg/seodata"
)

// Provider is one independent competitor discovery source. Each call is an
// isolated failure domain: an error costs coverage, never the run.
type Provider interface {
	Name() string
	Discover(ctx context.Context, bc model.BusinessContext) ([]model.RawCandidate, error)
}

// --- AI search synthesis provider ---

// aiSearchQueries are the query templates fanned out to the synthesis provider.
var aiSearchQueries = []string{
	"Who are the main competitors of a %s business? List company names and their website domains.",
	"What are the best alternatives to %s products aimed at %s customers? List companies and domains.",
	"Which companies rank well in search for %s? List their names and website domains.",
}

// AISearchProvider discovers candidates by asking an AI web-search synthesis
// model and extracting structured tuples from the prose answer.
type AISearchProvider struct {
	client    perplexity.Client
	extractor Extractor
	queries   int
}

// NewAISearchProvider creates the synthesis-backed provider. queries bounds
// how many templates are used per run.
func NewAISearchProvider(client perplexity.Client, extractor Extractor, queries int) *AISearchProvider {
	if queries <= 0 || queries > len(aiSearchQueries) {
		queries = len(aiSearchQueries)
	}
	return &AISearchProvider{client: client, extractor: extractor, queries: queries}
}

func (p *AISearchProvider) Name() string { return "ai_search" }

func (p *AISearchProvider) Discover(ctx context.Context, bc model.BusinessContext) ([]model.RawCandidate, error) {
	category := bc.OfferingCategory
	if category == "" {
		category = bc.Industry
	}
	customer := string(bc.CustomerType)

	var out []model.RawCandidate
	var lastErr error
	for i := 0; i < p.queries; i++ {
		query := aiSearchQueries[i]
		prompt := fmt.Sprintf(query, category)
		if strings.Count(query, "%s") == 2 {
			prompt = fmt.Sprintf(query, category, customer)
		}

		resp, err := p.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
			Messages: []perplexity.Message{{Role: "user", Content: prompt}},
		})
		if err != nil {
			lastErr = err
			continue
		}

		cands, err := p.extractor.Extract(ctx, resp.Answer(), resp.Citations)
		if err != nil {
			lastErr = err
			continue
		}
		for j := range cands {
			cands[j].Source = p.Name()
		}
		out = append(out, cands...)
	}

	if len(out) == 0 && lastErr != nil {
		return nil, eris.Wrap(lastErr, "discovery: ai search")
	}
	return out, nil
}

// --- SERP analysis provider ---

// SERPProvider discovers candidates from the domains ranking for the seed
// keywords.
type SERPProvider struct {
	client seodata.Client
	market string
	topN   int
}

// NewSERPProvider creates the SERP-analysis provider.
func NewSERPProvider(client seodata.Client, market string, topN int) *SERPProvider {
	if topN <= 0 {
		topN = 10
	}
	return &SERPProvider{client: client, market: market, topN: topN}
}

func (p *SERPProvider) Name() string { return "seodata" }

func (p *SERPProvider) Discover(ctx context.Context, bc model.BusinessContext) ([]model.RawCandidate, error) {
	if len(bc.SeedKeywords) == 0 {
		return nil, nil
	}

	var out []model.RawCandidate
	var lastErr error
	for _, kw := range bc.SeedKeywords {
		serp, err := p.client.SERP(ctx, kw, p.market)
		if err != nil {
			lastErr = err
			continue
		}
		for _, entry := range serp.Results {
			if entry.Position > p.topN {
				break
			}
			out = append(out, model.RawCandidate{
				Domain:  entry.Domain,
				Source:  p.Name(),
				Context: fmt.Sprintf("ranks #%d for %q", entry.Position, kw),
				Rank:    entry.Position,
			})
		}
	}

	if len(out) == 0 && lastErr != nil {
		return nil, eris.Wrap(lastErr, "discovery: serp analysis")
	}
	return out, nil
}

// --- Business-intel alternatives provider ---

// AltFeedProvider discovers candidates from structured alternative listings.
type AltFeedProvider struct {
	client altfeed.Client
}

// NewAltFeedProvider creates the alternatives-feed provider.
func NewAltFeedProvider(client altfeed.Client) *AltFeedProvider {
	return &AltFeedProvider{client: client}
}

func (p *AltFeedProvider) Name() string { return "altfeed" }

func (p *AltFeedProvider) Discover(ctx context.Context, bc model.BusinessContext) ([]model.RawCandidate, error) {
	if bc.TargetDomain == "" {
		return nil, nil
	}

	alts, err := p.client.Alternatives(ctx, bc.TargetDomain)
	if err != nil {
		return nil, eris.Wrap(err, "discovery: altfeed")
	}

	out := make([]model.RawCandidate, 0, len(alts))
	for i, alt := range alts {
		out = append(out, model.RawCandidate{
			Domain:      alt.Domain,
			CompanyName: alt.CompanyName,
			Source:      p.Name(),
			Context:     alt.Description,
			Rank:        i + 1,
		})
	}
	return out, nil
}

// --- Self-mentioned rivals ---

// MentionedProvider surfaces the competitors the target's own materials name.
// It never fails and never needs the network.
type MentionedProvider struct{}

func (MentionedProvider) Name() string { return "self_mentioned" }

func (MentionedProvider) Discover(_ context.Context, bc model.BusinessContext) ([]model.RawCandidate, error) {
	out := make([]model.RawCandidate, 0, len(bc.MentionedRivals))
	for _, rival := range bc.MentionedRivals {
		cand := model.RawCandidate{Source: "self_mentioned", Context: "named in target's own materials"}
		if strings.Contains(rival, ".") {
			cand.Domain = rival
		} else {
			cand.CompanyName = rival
		}
		out = append(out, cand)
	}
	return out, nil
}
