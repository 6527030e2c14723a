package market

import (
	"math"

	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/model"
)

// scenarioParams shape one projection curve: how fast rankings arrive, the
// best average position ultimately reached, and an overall haircut.
type scenarioParams struct {
	rampMonths float64 // months to reach ~63% of terminal ranking probability
	peakProb   float64 // terminal probability of ranking at all
	bestPos    float64 // asymptotic average position once ranking
}

// The three curves are strictly ordered parameter-wise, which makes the
// conservative ≤ expected ≤ aggressive invariant hold at every month.
var scenarios = map[model.Scenario]scenarioParams{
	model.ScenarioConservative: {rampMonths: 9, peakProb: 0.45, bestPos: 8},
	model.ScenarioExpected:     {rampMonths: 6, peakProb: 0.65, bestPos: 5},
	model.ScenarioAggressive:   {rampMonths: 4, peakProb: 0.85, bestPos: 3},
}

// aiOverviewCTRMultiplier discounts clicks on SERPs where an AI answer box
// absorbs them.
const aiOverviewCTRMultiplier = 0.6

// Project builds monthly traffic projections for the beachhead set under the
// three scenarios. Each keyword contributes
// volume x P(ranking by month) x CTR(position) x AI-overview multiplier.
func Project(beachheads []model.BeachheadKeyword, cfg *config.MarketConfig) model.TrafficProjections {
	months := cfg.ProjectionMonths
	if months <= 0 {
		months = 12
	}

	proj := model.TrafficProjections{
		Months:       months,
		Conservative: projectScenario(beachheads, scenarios[model.ScenarioConservative], months),
		Expected:     projectScenario(beachheads, scenarios[model.ScenarioExpected], months),
		Aggressive:   projectScenario(beachheads, scenarios[model.ScenarioAggressive], months),
	}
	return proj
}

func projectScenario(beachheads []model.BeachheadKeyword, p scenarioParams, months int) []model.MonthlyTraffic {
	out := make([]model.MonthlyTraffic, months)
	for m := 1; m <= months; m++ {
		var visits float64
		for _, bh := range beachheads {
			visits += keywordVisits(bh, p, m)
		}
		out[m-1] = model.MonthlyTraffic{Month: m, Visits: math.Round(visits)}
	}
	return out
}

func keywordVisits(bh model.BeachheadKeyword, p scenarioParams, month int) float64 {
	// Ranking probability rises along a saturating curve toward peakProb.
	// Easier keywords ramp faster.
	difficultyDrag := 1 + bh.PersonalizedDifficulty/100
	prob := p.peakProb * (1 - math.Exp(-float64(month)/(p.rampMonths*difficultyDrag)))

	// Average position improves from the bottom of page one toward bestPos
	// along the same ramp.
	pos := 10 - (10-p.bestPos)*(1-math.Exp(-float64(month)/p.rampMonths))

	ctr := ctrForPosition(pos)
	if bh.SERP.HasAIOverview {
		ctr *= aiOverviewCTRMultiplier
	}

	return float64(bh.Keyword.SearchVolume) * prob * ctr
}

// ctrByPosition is the organic click-through curve for page-one positions.
var ctrByPosition = []float64{0.28, 0.15, 0.11, 0.08, 0.07, 0.05, 0.04, 0.03, 0.025, 0.02}

// ctrForPosition interpolates the CTR curve at a fractional position.
func ctrForPosition(pos float64) float64 {
	if pos <= 1 {
		return ctrByPosition[0]
	}
	if pos >= float64(len(ctrByPosition)) {
		return ctrByPosition[len(ctrByPosition)-1]
	}
	lo := int(math.Floor(pos)) - 1
	frac := pos - math.Floor(pos)
	return ctrByPosition[lo] + (ctrByPosition[lo+1]-ctrByPosition[lo])*frac
}
