package winnability

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/pkg/seodata"
)

type stubSEO struct {
	serps map[string]*seodata.SERPResult
}

func (s stubSEO) DomainMetrics(context.Context, string) (*seodata.DomainMetrics, error) {
	return nil, eris.New("not implemented")
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

func testScorer() *Scorer {
	return NewScorer(&config.WinnabilityConfig{}, nil, DefaultCoefficients(), "en-US")
}

func serpOf(authorities ...int) *seodata.SERPResult {
	r := &seodata.SERPResult{}
	for i, a := range authorities {
		r.Results = append(r.Results, seodata.SERPEntry{Position: i + 1, Authority: a, WordCount: 1200})
	}
	return r
}

func TestScore_LowAuthorityTargetAgainstSoftSERP(t *testing.T) {
	s := testScorer()
	kw := model.KeywordCandidate{Keyword: "niche query", Difficulty: 18}
	// Average authority 22 with one page ranking at 15.
	serp := serpOf(15, 22, 29)

	rec := s.Score(kw, serp, 8, DefaultCoefficients().Default)

	assert.Equal(t, model.CompletenessFull, rec.Completeness)
	assert.True(t, rec.SERP.HasLowAuthorityRank)
	// The weak ranker pulls personalized difficulty below the base KD.
	assert.Less(t, rec.PersonalizedDifficulty, 18.0)
	assert.GreaterOrEqual(t, rec.WinnabilityScore, 70.0)
}

func TestScore_FallbackWithoutSERP(t *testing.T) {
	s := testScorer()
	kw := model.KeywordCandidate{Keyword: "unknown", Difficulty: 50}

	first := s.Score(kw, nil, 30, DefaultCoefficients().Default)
	second := s.Score(kw, nil, 30, DefaultCoefficients().Default)

	assert.Equal(t, model.CompletenessFallback, first.Completeness)
	assert.Equal(t, 0.4, first.ConfidenceAdjustment)
	// KD-derived estimate: 50*0.7 + 20.
	assert.InDelta(t, 55.0, first.SERP.AvgAuthority, 1e-9)
	assert.Equal(t, first, second) // deterministic
}

func TestScore_PartialBlendsSampleWithEstimate(t *testing.T) {
	s := testScorer()
	kw := model.KeywordCandidate{Keyword: "mixed", Difficulty: 40}
	serp := serpOf(40, 60, 0) // one entry has no authority data

	rec := s.Score(kw, serp, 30, DefaultCoefficients().Default)

	assert.Equal(t, model.CompletenessPartial, rec.Completeness)
	assert.Equal(t, 0.7, rec.ConfidenceAdjustment)
	assert.Equal(t, 2, rec.SERP.SampledResults)
	// 0.7 * sampled avg 50 + 0.3 * estimate (40*0.7+20).
	assert.InDelta(t, 49.4, rec.SERP.AvgAuthority, 1e-9)
}

func TestScore_StrongerSERPScoresLower(t *testing.T) {
	s := testScorer()
	kw := model.KeywordCandidate{Keyword: "contested", Difficulty: 25}
	coeffs := DefaultCoefficients().Default

	soft := s.Score(kw, serpOf(30, 35, 40), 30, coeffs)
	hard := s.Score(kw, serpOf(70, 80, 90), 30, coeffs)

	assert.Greater(t, soft.WinnabilityScore, hard.WinnabilityScore)
	assert.Greater(t, hard.PersonalizedDifficulty, soft.PersonalizedDifficulty)
}

func TestScore_AIOverviewPenalty(t *testing.T) {
	s := testScorer()
	kw := model.KeywordCandidate{Keyword: "answered", Difficulty: 20}
	coeffs := DefaultCoefficients().Default

	plain := serpOf(40, 45, 50)
	withOverview := serpOf(40, 45, 50)
	withOverview.HasAIOverview = true

	base := s.Score(kw, plain, 30, coeffs)
	penalized := s.Score(kw, withOverview, 30, coeffs)

	assert.InDelta(t, coeffs.AIOverviewPenalty, base.WinnabilityScore-penalized.WinnabilityScore, 1e-9)
}

func TestScore_WeakContentBonusCapped(t *testing.T) {
	s := testScorer()
	kw := model.KeywordCandidate{Keyword: "thin serp", Difficulty: 20}
	coeffs := DefaultCoefficients().Default

	// Five thin pages would be worth 25 uncapped; the bonus tops out at 15.
	thin := &seodata.SERPResult{}
	for i := 0; i < 5; i++ {
		thin.Results = append(thin.Results, seodata.SERPEntry{Position: i + 1, Authority: 50, WordCount: 200})
	}
	solid := serpOf(50, 50, 50, 50, 50)

	bonus := s.Score(kw, thin, 30, coeffs).WinnabilityScore - s.Score(kw, solid, 30, coeffs).WinnabilityScore
	assert.InDelta(t, coeffs.ContentBonusMax, bonus, 1e-9)
}

func TestScore_ScoreStaysInBounds(t *testing.T) {
	s := testScorer()
	coeffs := DefaultCoefficients().Default

	crushing := s.Score(model.KeywordCandidate{Difficulty: 95}, serpOf(95, 96, 97), 5, coeffs)
	assert.GreaterOrEqual(t, crushing.WinnabilityScore, 0.0)

	trivial := s.Score(model.KeywordCandidate{Difficulty: 5}, serpOf(10, 10, 12), 80, coeffs)
	assert.LessOrEqual(t, trivial.WinnabilityScore, 100.0)
}

func TestScoreUniverse_FailedSERPDegradesToFallback(t *testing.T) {
	seo := stubSEO{
		serps: map[string]*seodata.SERPResult{
			"covered": serpOf(30, 40),
		},
	}
	s := NewScorer(&config.WinnabilityConfig{}, seo, DefaultCoefficients(), "en-US")

	out, err := s.ScoreUniverse(context.Background(), model.BusinessContext{RunID: "r1"}, 25, []model.KeywordCandidate{
		{Keyword: "covered", Difficulty: 20},
		{Keyword: "missing", Difficulty: 20},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, model.CompletenessFull, out[0].Completeness)
	assert.Equal(t, model.CompletenessFallback, out[1].Completeness)
}

func TestCoefficients_IndustryFallback(t *testing.T) {
	table := &CoefficientTable{
		Version: 1,
		Default: Coefficients{DRWeight: 1.0, LowDRBonus: 8},
		Industries: map[string]Coefficients{
			"saas": {DRWeight: 1.2, LowDRBonus: 10},
		},
	}

	assert.Equal(t, 1.2, table.For("SaaS").DRWeight) // case-insensitive lookup
	assert.Equal(t, 1.0, table.For("forestry").DRWeight)
	assert.Equal(t, 1.0, table.For("").DRWeight)
}

func TestLoadCoefficients(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coefficients.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: 2
default:
  dr_weight: 0.9
  low_dr_bonus: 6
industries:
  ecommerce:
    dr_weight: 1.1
`), 0o644))

	table, err := LoadCoefficients(path)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Version)
	assert.Equal(t, 0.9, table.Default.DRWeight)
	assert.Equal(t, 1.1, table.For("ecommerce").DRWeight)

	_, err = LoadCoefficients(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
