package enrich

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/discovery"
	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/pkg/seodata"
)

type stubSEO struct {
	metrics map[string]*seodata.DomainMetrics
	serps   map[string]*seodata.SERPResult
}

func (s stubSEO) DomainMetrics(_ context.Context, domain string) (*seodata.DomainMetrics, error) {
	if m, ok := s.metrics[domain]; ok {
		return m, nil
	}
	return nil, eris.New("status 404: no data")
}

func (s stubSEO) RankedKeywords(context.Context, string, int) ([]seodata.Keyword, error) {
	return nil, eris.New("not implemented")
}

func (s stubSEO) KeywordIdeas(context.Context, []string, int) ([]seodata.Keyword, error) {
	return nil, eris.New("not implemented")
}

func (s stubSEO) SERP(_ context.Context, keyword, _ string) (*seodata.SERPResult, error) {
	if r, ok := s.serps[keyword]; ok {
		return r, nil
	}
	return nil, eris.New("status 404: no serp")
}

func serpWith(domains ...string) *seodata.SERPResult {
	r := &seodata.SERPResult{}
	for i, d := range domains {
		r.Results = append(r.Results, seodata.SERPEntry{Position: i + 1, Domain: d, Authority: 50})
	}
	return r
}

func TestEnricher_OverlapAndMetrics(t *testing.T) {
	seo := stubSEO{
		metrics: map[string]*seodata.DomainMetrics{
			"rival.com": {AuthorityRating: 44, OrganicTraffic: 12000, OrganicKeywords: 900, Backlinks: 300},
		},
		serps: map[string]*seodata.SERPResult{
			"crm software": serpWith("rival.com", "big.com"),
			"sales tool":   serpWith("other.com"),
		},
	}
	e := NewEnricher(&config.EnrichConfig{SERPTopN: 10, SimilarityThreshold: 0.9}, seo, nil, "en-US")

	bc := model.BusinessContext{
		RunID:        "r1",
		SeedKeywords: []string{"crm software", "sales tool"},
	}
	out, err := e.Run(context.Background(), bc, []discovery.Candidate{
		{Domain: "rival.com", Sources: []string{"ai_search"}},
		{Domain: "unknown.io", Sources: []string{"ai_search"}},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, 44, out[0].Metrics.AuthorityRating)
	assert.InDelta(t, 0.5, out[0].SERPOverlap, 1e-9) // in 1 of 2 seed SERPs

	// Missing metrics default to zero, never error.
	assert.Zero(t, out[1].Metrics.AuthorityRating)
	assert.Zero(t, out[1].SERPOverlap)
}

func TestEnricher_NameOnlyCandidateCarriesZeroMetrics(t *testing.T) {
	e := NewEnricher(&config.EnrichConfig{}, stubSEO{}, nil, "en-US")

	out, err := e.Run(context.Background(), model.BusinessContext{RunID: "r1"}, []discovery.Candidate{
		{CompanyName: "Stealth Rival", Sources: []string{"ai_search"}},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Empty(t, out[0].Domain)
	assert.Zero(t, out[0].Metrics.AuthorityRating)
	assert.Equal(t, []string{"ai_search"}, out[0].DiscoverySources)
}

func TestEnrichOne_UsesCuratorSource(t *testing.T) {
	seo := stubSEO{
		metrics: map[string]*seodata.DomainMetrics{
			"added.com": {AuthorityRating: 30},
		},
	}
	e := NewEnricher(&config.EnrichConfig{SimilarityThreshold: 0.9}, seo, nil, "en-US")

	ec := e.EnrichOne(context.Background(), model.BusinessContext{}, "https://www.Added.com", "Added Inc")
	assert.Equal(t, "added.com", ec.Domain)
	assert.Equal(t, []string{"curator"}, ec.DiscoverySources)
	assert.Equal(t, 30, ec.Metrics.AuthorityRating)
}
