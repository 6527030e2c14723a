package model

// KeywordIntent is the provider-classified search intent of a keyword.
type KeywordIntent string

const (
	IntentInformational KeywordIntent = "informational"
	IntentCommercial    KeywordIntent = "commercial"
	IntentTransactional KeywordIntent = "transactional"
	IntentNavigational  KeywordIntent = "navigational"
	IntentUnknown       KeywordIntent = "unknown"
)

// KeywordCandidate is one keyword in the mined universe for a (domain, run)
// pair. Candidates are deduplicated by normalized text; volume and KD come
// from the first source that supplied them, never summed across sources.
type KeywordCandidate struct {
	Keyword           string        `json:"keyword"`
	Normalized        string        `json:"normalized"`
	SearchVolume      int           `json:"search_volume"`
	Difficulty        float64       `json:"difficulty"` // base KD, 0-100
	CPC               float64       `json:"cpc"`        // USD
	Intent            KeywordIntent `json:"intent"`
	Source            string        `json:"source"`             // competitor domain or "seed_expansion"
	BusinessRelevance float64       `json:"business_relevance"` // 0.0-1.0
}

// DataCompleteness tiers how much SERP evidence backed a winnability score.
type DataCompleteness string

const (
	CompletenessFull     DataCompleteness = "full"
	CompletenessPartial  DataCompleteness = "partial"
	CompletenessFallback DataCompleteness = "fallback"
)

// ConfidenceAdjustment returns the aggregate-weighting multiplier for the
// completeness tier. Downstream consumers must never weight a fallback score
// the same as a full one.
func (d DataCompleteness) ConfidenceAdjustment() float64 {
	switch d {
	case CompletenessFull:
		return 1.0
	case CompletenessPartial:
		return 0.7
	case CompletenessFallback:
		return 0.4
	default:
		return 0.4
	}
}

// SERPComposition summarizes the ranking pages for one keyword.
type SERPComposition struct {
	AvgAuthority        float64 `json:"avg_authority"`
	MinAuthority        float64 `json:"min_authority"`
	SampledResults      int     `json:"sampled_results"`
	HasLowAuthorityRank bool    `json:"has_low_authority_ranker"`
	HasAIOverview       bool    `json:"has_ai_overview"`
	WeakSignalCount     int     `json:"weak_signal_count"` // thin/stale content signals
}

// WinnabilityRecord is the scored outcome for one keyword.
type WinnabilityRecord struct {
	Keyword                KeywordCandidate `json:"keyword"`
	SERP                   SERPComposition  `json:"serp"`
	WinnabilityScore       float64          `json:"winnability_score"`       // 0-100
	PersonalizedDifficulty float64          `json:"personalized_difficulty"` // 0-100
	Completeness           DataCompleteness `json:"data_completeness"`
	ConfidenceAdjustment   float64          `json:"confidence_adjustment"`
}

// BeachheadKeyword is a prioritized early-target keyword.
type BeachheadKeyword struct {
	WinnabilityRecord

	Topic    string `json:"topic"`    // topical cluster label
	Priority int    `json:"priority"` // 1-based rank within the beachhead set
}
