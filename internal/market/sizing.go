package market

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sells-group/market-intel/internal/model"
)

// Relevance and winnability floors for the nested sizing tiers.
const (
	samRelevanceFloor   = 0.6
	somWinnabilityFloor = 50.0
)

// defaultCPC prices keywords whose provider CPC is missing. Dollar math uses
// decimals so tier values never drift with float accumulation order.
var defaultCPC = decimal.NewFromFloat(0.5)

// SizeMarket computes the nested TAM/SAM/SOM opportunity for a scored
// universe. TAM covers every keyword; SAM restricts to business relevance at
// or above the floor; SOM further restricts to winnable keywords. The nesting
// guarantees SOM ≤ SAM ≤ TAM by construction, including for an empty
// universe. Shares are traffic-proportional across the final competitors with
// the remainder labeled "other".
func SizeMarket(records []model.WinnabilityRecord, final []model.FinalCompetitor) model.MarketOpportunity {
	var tam, sam, som tierAccumulator
	for _, rec := range records {
		tam.add(rec.Keyword)
		if rec.Keyword.BusinessRelevance >= samRelevanceFloor {
			sam.add(rec.Keyword)
			if rec.WinnabilityScore >= somWinnabilityFloor {
				som.add(rec.Keyword)
			}
		}
	}

	return model.MarketOpportunity{
		TAM:    tam.tier(),
		SAM:    sam.tier(),
		SOM:    som.tier(),
		Shares: competitorShares(final),
	}
}

type tierAccumulator struct {
	volume   int64
	keywords int
	value    decimal.Decimal
}

func (a *tierAccumulator) add(kw model.KeywordCandidate) {
	a.volume += int64(kw.SearchVolume)
	a.keywords++

	cpc := defaultCPC
	if kw.CPC > 0 {
		cpc = decimal.NewFromFloat(kw.CPC)
	}
	a.value = a.value.Add(cpc.Mul(decimal.NewFromInt(int64(kw.SearchVolume))))
}

func (a *tierAccumulator) tier() model.MarketTier {
	return model.MarketTier{
		SearchVolume: a.volume,
		KeywordCount: a.keywords,
		ValueUSD:     a.value.Round(2).InexactFloat64(),
	}
}

// competitorShares splits the market proportionally to each final
// competitor's organic traffic, reserving a fixed slice for everyone outside
// the tracked set. Percentages are rounded to two decimals with the rounding
// remainder folded into "other" so the breakdown always sums to 100.
func competitorShares(final []model.FinalCompetitor) []model.CompetitorShare {
	if len(final) == 0 {
		return nil
	}

	const trackedPercent = 85.0 // tracked competitors; the tail is "other"

	var totalTraffic int64
	for _, fc := range final {
		totalTraffic += fc.Metrics.OrganicTraffic
	}

	shares := make([]model.CompetitorShare, 0, len(final)+1)
	hundred := decimal.NewFromInt(100)
	allocated := decimal.Zero

	if totalTraffic == 0 {
		// No traffic data: split the tracked slice evenly.
		even := decimal.NewFromFloat(trackedPercent).
			Div(decimal.NewFromInt(int64(len(final)))).Round(2)
		for _, fc := range final {
			shares = append(shares, model.CompetitorShare{
				Domain:       fc.Domain,
				SharePercent: even.InexactFloat64(),
			})
			allocated = allocated.Add(even)
		}
	} else {
		tracked := decimal.NewFromFloat(trackedPercent)
		total := decimal.NewFromInt(totalTraffic)
		for _, fc := range final {
			pct := tracked.
				Mul(decimal.NewFromInt(fc.Metrics.OrganicTraffic)).
				Div(total).Round(2)
			shares = append(shares, model.CompetitorShare{
				Domain:       fc.Domain,
				SharePercent: pct.InexactFloat64(),
			})
			allocated = allocated.Add(pct)
		}
	}

	sort.SliceStable(shares, func(i, j int) bool {
		if shares[i].SharePercent != shares[j].SharePercent {
			return shares[i].SharePercent > shares[j].SharePercent
		}
		return shares[i].Domain < shares[j].Domain
	})

	shares = append(shares, model.CompetitorShare{
		Domain:       "other",
		SharePercent: hundred.Sub(allocated).Round(2).InexactFloat64(),
	})
	return shares
}
