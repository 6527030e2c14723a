package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/market-intel/internal/keywords"
	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/internal/winnability"
	"github.com/sells-group/market-intel/pkg/seodata"
)

// completerSEO serves deterministic keyword and SERP data.
type completerSEO struct{}

func (s completerSEO) DomainMetrics(_ context.Context, domain string) (*seodata.DomainMetrics, error) {
	return &seodata.DomainMetrics{Domain: domain, AuthorityRating: 12}, nil
}

func (s completerSEO) RankedKeywords(_ context.Context, _ string, _ int) ([]seodata.Keyword, error) {
	return []seodata.Keyword{
		{Keyword: "crm software", SearchVolume: 4000, Difficulty: 25, CPC: 2.5},
		{Keyword: "crm pricing", SearchVolume: 900, Difficulty: 15, CPC: 3.0},
	}, nil
}

func (s completerSEO) KeywordIdeas(context.Context, []string, int) ([]seodata.Keyword, error) {
	return nil, eris.New("status 404: no ideas")
}

func (s completerSEO) SERP(_ context.Context, _, _ string) (*seodata.SERPResult, error) {
	return &seodata.SERPResult{
		Results: []seodata.SERPEntry{
			{Position: 1, Authority: 30, WordCount: 1500},
			{Position: 2, Authority: 18, WordCount: 900},
		},
	}, nil
}

// failingSEO errors on every call; used to prove cached stages never reach
// the provider.
type failingSEO struct{}

func (failingSEO) DomainMetrics(context.Context, string) (*seodata.DomainMetrics, error) {
	return nil, eris.New("status 500: provider down")
}

func (failingSEO) RankedKeywords(context.Context, string, int) ([]seodata.Keyword, error) {
	return nil, eris.New("status 500: provider down")
}

func (failingSEO) KeywordIdeas(context.Context, []string, int) ([]seodata.Keyword, error) {
	return nil, eris.New("status 500: provider down")
}

func (failingSEO) SERP(context.Context, string, string) (*seodata.SERPResult, error) {
	return nil, eris.New("status 500: provider down")
}

func newCompleter(seo seodata.Client, st *memStore) *Completer {
	cfg := testPipelineConfig()
	return NewCompleter(cfg, st,
		keywords.NewMiner(&cfg.Keywords, seo),
		winnability.NewScorer(&cfg.Winnability, seo, winnability.DefaultCoefficients(), "en-US"),
		seo,
	)
}

func curatedSession() *model.Session {
	return &model.Session{
		ID:           "sess-1",
		RunID:        "r1",
		TargetDomain: "target.com",
		State:        model.StateCurated,
		Context: model.BusinessContext{
			RunID:            "r1",
			TargetDomain:     "target.com",
			OfferingCategory: "crm software",
		},
		Final: []model.FinalCompetitor{
			{Domain: "rival.com", Purpose: model.PurposeKeywordSource,
				Metrics: model.SEOMetrics{OrganicTraffic: 8000}},
		},
	}
}

func TestCompleter_BuildsAllStages(t *testing.T) {
	st := newMemStore()
	c := newCompleter(completerSEO{}, st)

	sess := curatedSession()
	require.NoError(t, c.BuildOpportunity(context.Background(), sess))

	for _, stage := range []model.StageName{model.StageKeywordUniverse, model.StageWinnability, model.StageMarket} {
		payload, err := st.GetArtifact(context.Background(), sess.ID, stage)
		require.NoError(t, err)
		assert.NotNil(t, payload, string(stage))
	}

	var artifact MarketArtifact
	payload, _ := st.GetArtifact(context.Background(), sess.ID, model.StageMarket)
	require.NoError(t, json.Unmarshal(payload, &artifact))
	assert.Equal(t, int64(4900), artifact.Opportunity.TAM.SearchVolume)
	assert.Len(t, artifact.Projections.Expected, 12)
}

func TestCompleter_ResumesFromCachedStages(t *testing.T) {
	st := newMemStore()
	c := newCompleter(completerSEO{}, st)

	sess := curatedSession()
	require.NoError(t, c.BuildOpportunity(context.Background(), sess))

	// A retry with a dead provider must succeed purely from the cache.
	retry := newCompleter(failingSEO{}, st)
	require.NoError(t, retry.BuildOpportunity(context.Background(), sess))
}

func TestCompleter_TargetMetricsMissDoesNotBlock(t *testing.T) {
	st := newMemStore()
	seo := completerSEO{}

	// Swap in a completer whose metrics lookup fails but keyword data works.
	cfg := testPipelineConfig()
	c := NewCompleter(cfg, st,
		keywords.NewMiner(&cfg.Keywords, seo),
		winnability.NewScorer(&cfg.Winnability, seo, winnability.DefaultCoefficients(), "en-US"),
		failingSEO{},
	)

	require.NoError(t, c.BuildOpportunity(context.Background(), curatedSession()))
}
