// Package selector builds the fixed-size, category-balanced shortlist from
// classified candidates.
package selector

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/model"
)

// Select picks a quota-balanced shortlist. Candidates classified not_relevant
// never appear in the output regardless of score. Each purpose bucket is
// filled to its quota by composite score; under-supplied buckets are
// backfilled from the best remaining candidates across all buckets. The
// output never exceeds the configured maximum.
func Select(cands []model.ClassifiedCandidate, cfg *config.SelectorConfig) []model.SelectedCandidate {
	target := cfg.TargetCount
	if target <= 0 {
		target = 15
	}
	if cfg.MaxCount > 0 && target > cfg.MaxCount {
		target = cfg.MaxCount
	}

	// Bucket the eligible candidates by purpose.
	buckets := make(map[model.Purpose][]model.ClassifiedCandidate)
	for _, c := range cands {
		if c.Purpose == model.PurposeNotRelevant {
			continue
		}
		buckets[c.Purpose] = append(buckets[c.Purpose], c)
	}
	for p := range buckets {
		sortByScore(buckets[p])
	}

	quotas := bucketQuotas(cfg, target)

	selected := make([]model.SelectedCandidate, 0, target)
	taken := make(map[string]bool)

	// Pass 1: fill each bucket to its quota.
	for _, purpose := range model.Purposes {
		quota := quotas[purpose]
		for _, c := range buckets[purpose] {
			if quota <= 0 || len(selected) >= target {
				break
			}
			selected = append(selected, model.SelectedCandidate{
				ClassifiedCandidate: c,
				QuotaBucket:         purpose,
			})
			taken[candidateKey(c)] = true
			quota--
		}
	}

	// Pass 2: backfill from the highest remaining scores across all buckets.
	if len(selected) < target {
		var rest []model.ClassifiedCandidate
		for _, bucket := range buckets {
			for _, c := range bucket {
				if !taken[candidateKey(c)] {
					rest = append(rest, c)
				}
			}
		}
		sortByScore(rest)
		for _, c := range rest {
			if len(selected) >= target {
				break
			}
			selected = append(selected, model.SelectedCandidate{
				ClassifiedCandidate: c,
				QuotaBucket:         c.Purpose,
				Backfilled:          true,
			})
			taken[candidateKey(c)] = true
		}
	}

	zap.L().Info("shortlist selected",
		zap.Int("eligible", eligibleCount(buckets)),
		zap.Int("selected", len(selected)),
		zap.Int("target", target),
	)
	return selected
}

// bucketQuotas converts the configured fractions into per-purpose counts.
// Rounding never pushes the total above target; the backfill pass absorbs any
// remainder.
func bucketQuotas(cfg *config.SelectorConfig, target int) map[model.Purpose]int {
	quotas := make(map[model.Purpose]int, len(model.Purposes))
	total := 0
	for _, purpose := range model.Purposes {
		fraction := cfg.Quotas[string(purpose)]
		q := int(math.Floor(fraction*float64(target) + 0.5))
		if total+q > target {
			q = target - total
		}
		quotas[purpose] = q
		total += q
	}
	return quotas
}

func sortByScore(cands []model.ClassifiedCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].CompositeScore > cands[j].CompositeScore
	})
}

func candidateKey(c model.ClassifiedCandidate) string {
	if c.Domain != "" {
		return c.Domain
	}
	return "name:" + c.CompanyName
}

func eligibleCount(buckets map[model.Purpose][]model.ClassifiedCandidate) int {
	n := 0
	for _, b := range buckets {
		n += len(b)
	}
	return n
}
