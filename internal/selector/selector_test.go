package selector

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/model"
)

func testConfig() *config.SelectorConfig {
	return &config.SelectorConfig{
		TargetCount: 15,
		MaxCount:    15,
		Quotas: map[string]float64{
			"benchmark_peer": 0.40,
			"keyword_source": 0.33,
			"content_model":  0.13,
			"aspirational":   0.13,
		},
	}
}

func synthCandidates(faker *gofakeit.Faker, purpose model.Purpose, n int, score float64) []model.ClassifiedCandidate {
	out := make([]model.ClassifiedCandidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.ClassifiedCandidate{
			EnrichedCandidate: model.EnrichedCandidate{
				Domain:           faker.DomainName(),
				CompanyName:      faker.Company(),
				DiscoverySources: []string{"ai_search"},
			},
			Purpose:        purpose,
			CompositeScore: score - float64(i),
		})
	}
	return out
}

func TestSelect_HonorsQuotasWithExactSupply(t *testing.T) {
	faker := gofakeit.New(1)

	// Exactly the quota count per category: 6/5/2/2 for target 15.
	var cands []model.ClassifiedCandidate
	cands = append(cands, synthCandidates(faker, model.PurposeBenchmarkPeer, 6, 90)...)
	cands = append(cands, synthCandidates(faker, model.PurposeKeywordSource, 5, 80)...)
	cands = append(cands, synthCandidates(faker, model.PurposeContentModel, 2, 70)...)
	cands = append(cands, synthCandidates(faker, model.PurposeAspirational, 2, 60)...)

	out := Select(cands, testConfig())
	require.Len(t, out, 15)

	counts := map[model.Purpose]int{}
	for _, sc := range out {
		counts[sc.Purpose]++
		assert.False(t, sc.Backfilled)
	}
	assert.Equal(t, 6, counts[model.PurposeBenchmarkPeer])
	assert.Equal(t, 5, counts[model.PurposeKeywordSource])
	assert.Equal(t, 2, counts[model.PurposeContentModel])
	assert.Equal(t, 2, counts[model.PurposeAspirational])
}

func TestSelect_NotRelevantNeverSelected(t *testing.T) {
	faker := gofakeit.New(2)

	cands := synthCandidates(faker, model.PurposeBenchmarkPeer, 3, 50)
	irrelevant := synthCandidates(faker, model.PurposeNotRelevant, 3, 99)
	cands = append(cands, irrelevant...)

	out := Select(cands, testConfig())
	require.Len(t, out, 3)
	for _, sc := range out {
		assert.NotEqual(t, model.PurposeNotRelevant, sc.Purpose)
	}
}

func TestSelect_BackfillsUnderSuppliedBuckets(t *testing.T) {
	faker := gofakeit.New(3)

	// Only peers exist, far more than their quota.
	cands := synthCandidates(faker, model.PurposeBenchmarkPeer, 20, 95)

	out := Select(cands, testConfig())
	require.Len(t, out, 15)

	backfilled := 0
	for _, sc := range out {
		if sc.Backfilled {
			backfilled++
		}
	}
	// 6 fill the peer quota; the remaining 9 are backfill.
	assert.Equal(t, 9, backfilled)
}

func TestSelect_NeverExceedsMax(t *testing.T) {
	faker := gofakeit.New(4)

	var cands []model.ClassifiedCandidate
	for _, p := range model.Purposes {
		cands = append(cands, synthCandidates(faker, p, 30, 88)...)
	}

	out := Select(cands, &config.SelectorConfig{
		TargetCount: 20,
		MaxCount:    15,
		Quotas:      testConfig().Quotas,
	})
	assert.Len(t, out, 15)
}

func TestSelect_FewerCandidatesThanTarget(t *testing.T) {
	faker := gofakeit.New(5)

	cands := synthCandidates(faker, model.PurposeKeywordSource, 4, 70)
	out := Select(cands, testConfig())
	assert.Len(t, out, 4)
}

func TestSelect_RanksByScoreWithinBucket(t *testing.T) {
	cands := []model.ClassifiedCandidate{
		{EnrichedCandidate: model.EnrichedCandidate{Domain: "low.com"}, Purpose: model.PurposeBenchmarkPeer, CompositeScore: 10},
		{EnrichedCandidate: model.EnrichedCandidate{Domain: "high.com"}, Purpose: model.PurposeBenchmarkPeer, CompositeScore: 90},
	}

	out := Select(cands, &config.SelectorConfig{
		TargetCount: 1,
		MaxCount:    1,
		Quotas:      map[string]float64{"benchmark_peer": 1.0},
	})
	require.Len(t, out, 1)
	assert.Equal(t, "high.com", out[0].Domain)
}
