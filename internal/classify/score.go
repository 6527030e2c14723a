package classify

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/model"
)

// purposeBaseScores is the 0-40 base contribution by category.
var purposeBaseScores = map[model.Purpose]float64{
	model.PurposeBenchmarkPeer: 40,
	model.PurposeKeywordSource: 32,
	model.PurposeContentModel:  25,
	model.PurposeAspirational:  18,
	model.PurposeNotRelevant:   0,
}

// Classifier runs the oracle over enriched candidates and computes composite
// scores. The fallback oracle takes over per-candidate when the primary
// errors, so a flaky AI classifier degrades to rules instead of failing.
type Classifier struct {
	oracle         Oracle
	fallback       Oracle
	premiumSources map[string]bool
}

// NewClassifier creates a classifier. fallback must be infallible (RuleOracle).
func NewClassifier(oracle, fallback Oracle, premiumSources []string) *Classifier {
	premium := make(map[string]bool, len(premiumSources))
	for _, s := range premiumSources {
		premium[s] = true
	}
	return &Classifier{oracle: oracle, fallback: fallback, premiumSources: premium}
}

// Run classifies every candidate.
func (c *Classifier) Run(ctx context.Context, bc model.BusinessContext, cands []model.EnrichedCandidate) ([]model.ClassifiedCandidate, error) {
	log := zap.L().With(zap.String("phase", "classify"), zap.String("run_id", bc.RunID))

	out := make([]model.ClassifiedCandidate, 0, len(cands))
	fellBack := 0
	for _, cand := range cands {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		verdict, err := c.oracle.Classify(ctx, cand, bc)
		if err != nil {
			log.Debug("oracle failed, using rules",
				zap.String("domain", cand.Domain),
				zap.Error(err),
			)
			verdict, err = c.fallback.Classify(ctx, cand, bc)
			if err != nil {
				return nil, err
			}
			fellBack++
		}

		out = append(out, model.ClassifiedCandidate{
			EnrichedCandidate: cand,
			Purpose:           verdict.Purpose,
			Threat:            verdict.Threat,
			Confidence:        verdict.Confidence,
			CompositeScore:    c.CompositeScore(cand, verdict.Purpose),
			Rationale:         verdict.Rationale,
		})
	}

	log.Info("classification complete",
		zap.Int("candidates", len(out)),
		zap.Int("rule_fallbacks", fellBack),
	)
	return out, nil
}

// CompositeScore is the weighted evidence formula, clamped to [0,100]:
// purpose base (0-40) + authority bonus (0-20) + SERP overlap (0-15) +
// content similarity (0-15) + multi-source corroboration (0-10) + premium
// source bonus (0 or 5).
func (c *Classifier) CompositeScore(cand model.EnrichedCandidate, purpose model.Purpose) float64 {
	score := purposeBaseScores[purpose]
	score += authorityBonus(cand.Metrics)
	score += cand.SERPOverlap * 15
	score += cand.BusinessSim * 15

	corroboration := float64(len(cand.DiscoverySources)) * 2
	if corroboration > 10 {
		corroboration = 10
	}
	score += corroboration

	for _, src := range cand.DiscoverySources {
		if c.premiumSources[src] {
			score += 5
			break
		}
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// authorityBonus maps a 0-100 authority rating onto the 0-20 bonus band.
func authorityBonus(m model.SEOMetrics) float64 {
	bonus := float64(m.AuthorityRating) * 0.2
	if bonus > 20 {
		return 20
	}
	if bonus < 0 {
		return 0
	}
	return bonus
}
