package winnability

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/pkg/seodata"
)

// Weak-content thresholds for SERP results.
const (
	thinContentWords   = 500
	staleContentDays   = 730
	weakRankerDiscount = 0.85
)

// Scorer computes winnability and personalized difficulty for keywords.
type Scorer struct {
	cfg    *config.WinnabilityConfig
	seo    seodata.Client
	coeffs *CoefficientTable
	market string
}

// NewScorer creates a winnability scorer.
func NewScorer(cfg *config.WinnabilityConfig, seo seodata.Client, coeffs *CoefficientTable, market string) *Scorer {
	if coeffs == nil {
		coeffs = DefaultCoefficients()
	}
	return &Scorer{cfg: cfg, seo: seo, coeffs: coeffs, market: market}
}

// ScoreUniverse fetches SERP composition for every keyword with bounded
// concurrency and scores each one. A failed SERP fetch degrades that keyword
// to FALLBACK scoring; it never fails the batch.
func (s *Scorer) ScoreUniverse(ctx context.Context, bc model.BusinessContext, targetAuthority int, universe []model.KeywordCandidate) ([]model.WinnabilityRecord, error) {
	log := zap.L().With(zap.String("phase", "winnability"), zap.String("run_id", bc.RunID))
	coeffs := s.coeffs.For(bc.Industry)

	out := make([]model.WinnabilityRecord, len(universe))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent())

	for i, kw := range universe {
		g.Go(func() error {
			serp, err := s.seo.SERP(gCtx, kw.Keyword, s.market)
			if err != nil {
				log.Debug("serp unavailable, fallback scoring",
					zap.String("keyword", kw.Keyword),
					zap.Error(err),
				)
				serp = nil
			}
			out[i] = s.Score(kw, serp, targetAuthority, coeffs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	tiers := map[model.DataCompleteness]int{}
	for _, rec := range out {
		tiers[rec.Completeness]++
	}
	log.Info("universe scored",
		zap.Int("keywords", len(out)),
		zap.Int("full", tiers[model.CompletenessFull]),
		zap.Int("partial", tiers[model.CompletenessPartial]),
		zap.Int("fallback", tiers[model.CompletenessFallback]),
	)
	return out, nil
}

// Score computes the winnability record for one keyword. Pure given its
// inputs: identical keyword, SERP, and authority always produce the same
// record.
func (s *Scorer) Score(kw model.KeywordCandidate, serp *seodata.SERPResult, targetAuthority int, coeffs Coefficients) model.WinnabilityRecord {
	comp, completeness := s.compose(kw, serp)

	score := 100.0
	gapTerm := (comp.AvgAuthority - float64(targetAuthority)) * 1.5 * coeffs.DRWeight
	if gapTerm >= 0 {
		score -= clamp(0, 40, gapTerm)
	} else {
		// The SERP is weaker than the target; a small bonus, not a mirror
		// of the penalty.
		score += clamp(0, 5, -gapTerm*0.25)
	}
	if comp.HasLowAuthorityRank {
		score += coeffs.LowDRBonus
	}
	contentBonus := float64(comp.WeakSignalCount) * 5
	if contentBonus > coeffs.ContentBonusMax {
		contentBonus = coeffs.ContentBonusMax
	}
	score += contentBonus
	if comp.HasAIOverview {
		score -= coeffs.AIOverviewPenalty
	}
	if kw.Difficulty > 30 {
		score -= (kw.Difficulty - 30) * 0.3 * coeffs.KDMultiplier
	}
	score = clamp(0, 100, score)

	pd := kw.Difficulty * clamp(0.5, 2.0, 1+(comp.AvgAuthority-float64(targetAuthority))/100)
	if comp.HasLowAuthorityRank {
		// A low-authority page already ranking is direct evidence the SERP
		// is softer than its average authority suggests.
		pd *= weakRankerDiscount
	}
	pd = clamp(0, 100, pd)

	return model.WinnabilityRecord{
		Keyword:                kw,
		SERP:                   comp,
		WinnabilityScore:       score,
		PersonalizedDifficulty: pd,
		Completeness:           completeness,
		ConfidenceAdjustment:   completeness.ConfidenceAdjustment(),
	}
}

// compose summarizes SERP data into a composition, degrading by tier: full
// sample, partial sample blended with a KD-derived estimate, or a pure KD
// fallback when no SERP data exists.
func (s *Scorer) compose(kw model.KeywordCandidate, serp *seodata.SERPResult) (model.SERPComposition, model.DataCompleteness) {
	kdEstimate := kw.Difficulty*0.7 + 20

	if serp == nil || len(serp.Results) == 0 {
		return model.SERPComposition{
			AvgAuthority: kdEstimate,
			MinAuthority: kdEstimate,
		}, model.CompletenessFallback
	}

	sample := serp.Results
	if len(sample) > s.sampleSize() {
		sample = sample[:s.sampleSize()]
	}

	var sum float64
	minAuth := -1.0
	sampled := 0
	weakSignals := 0
	hasLowRanker := false
	for _, entry := range sample {
		if entry.Authority <= 0 {
			continue
		}
		auth := float64(entry.Authority)
		sum += auth
		sampled++
		if minAuth < 0 || auth < minAuth {
			minAuth = auth
		}
		if entry.Authority < s.lowAuthorityCutoff() {
			hasLowRanker = true
		}
		if (entry.WordCount > 0 && entry.WordCount < thinContentWords) ||
			entry.ContentAgeDays > staleContentDays {
			weakSignals++
		}
	}

	if sampled == 0 {
		return model.SERPComposition{
			AvgAuthority:  kdEstimate,
			MinAuthority:  kdEstimate,
			HasAIOverview: serp.HasAIOverview,
		}, model.CompletenessFallback
	}

	avg := sum / float64(sampled)
	completeness := model.CompletenessFull
	if sampled < len(sample) {
		// Partial authority coverage: blend the sampled average with the
		// KD-derived estimate 70/30.
		avg = avg*0.7 + kdEstimate*0.3
		completeness = model.CompletenessPartial
	}

	return model.SERPComposition{
		AvgAuthority:        avg,
		MinAuthority:        minAuth,
		SampledResults:      sampled,
		HasLowAuthorityRank: hasLowRanker,
		HasAIOverview:       serp.HasAIOverview,
		WeakSignalCount:     weakSignals,
	}, completeness
}

func (s *Scorer) sampleSize() int {
	if s.cfg.SERPSampleSize > 0 {
		return s.cfg.SERPSampleSize
	}
	return 10
}

func (s *Scorer) lowAuthorityCutoff() int {
	if s.cfg.LowAuthorityCutoff > 0 {
		return s.cfg.LowAuthorityCutoff
	}
	return 20
}

func (s *Scorer) maxConcurrent() int {
	if s.cfg.MaxConcurrent > 0 {
		return s.cfg.MaxConcurrent
	}
	return 8
}

func clamp(lo, hi, v float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
