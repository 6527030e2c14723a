package model

// MarketTier is one nesting level of the TAM/SAM/SOM sizing.
type MarketTier struct {
	SearchVolume int64   `json:"search_volume"` // monthly searches, summed
	KeywordCount int     `json:"keyword_count"`
	ValueUSD     float64 `json:"value_usd"` // volume x CPC estimate
}

// CompetitorShare is one slice of the market share breakdown.
type CompetitorShare struct {
	Domain       string  `json:"domain"`
	SharePercent float64 `json:"share_percent"`
}

// MarketOpportunity is the nested market sizing for a keyword universe.
// Invariant: SOM ≤ SAM ≤ TAM in both volume and keyword count.
type MarketOpportunity struct {
	TAM    MarketTier        `json:"tam"`
	SAM    MarketTier        `json:"sam"`
	SOM    MarketTier        `json:"som"`
	Shares []CompetitorShare `json:"shares"` // sums to ~100, includes "other"
}

// Scenario names one projection curve.
type Scenario string

const (
	ScenarioConservative Scenario = "conservative"
	ScenarioExpected     Scenario = "expected"
	ScenarioAggressive   Scenario = "aggressive"
)

// MonthlyTraffic is the projected organic visits for one month, 1-based.
type MonthlyTraffic struct {
	Month  int     `json:"month"`
	Visits float64 `json:"visits"`
}

// TrafficProjections holds the three projection scenarios.
// Invariant: conservative ≤ expected ≤ aggressive at every month.
type TrafficProjections struct {
	Months       int              `json:"months"`
	Conservative []MonthlyTraffic `json:"conservative"`
	Expected     []MonthlyTraffic `json:"expected"`
	Aggressive   []MonthlyTraffic `json:"aggressive"`
}
