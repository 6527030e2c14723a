package model

import "time"

// Purpose classifies why a competitor matters to the target business.
type Purpose string

const (
	PurposeBenchmarkPeer Purpose = "benchmark_peer"
	PurposeKeywordSource Purpose = "keyword_source"
	PurposeContentModel  Purpose = "content_model"
	PurposeAspirational  Purpose = "aspirational"
	PurposeNotRelevant   Purpose = "not_relevant"
)

// Purposes lists the selectable purpose categories in quota order.
// NotRelevant is intentionally absent: it never reaches selection.
var Purposes = []Purpose{
	PurposeBenchmarkPeer,
	PurposeKeywordSource,
	PurposeContentModel,
	PurposeAspirational,
}

// ThreatLevel grades how directly a competitor contests the target's market.
type ThreatLevel string

const (
	ThreatHigh   ThreatLevel = "high"
	ThreatMedium ThreatLevel = "medium"
	ThreatLow    ThreatLevel = "low"
	ThreatNone   ThreatLevel = "none"
)

// RawCandidate is an unvalidated competitor surfaced by a discovery provider.
// At least one of Domain or CompanyName is set.
type RawCandidate struct {
	Domain      string `json:"domain,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	Source      string `json:"discovery_source"`
	Context     string `json:"context,omitempty"` // free-text discovery context
	Rank        int    `json:"rank,omitempty"`    // provider-supplied rank, 1-based, 0 if none
}

// SEOMetrics holds provider-supplied quantitative signals for a domain.
// Missing metrics are zero, never an error.
type SEOMetrics struct {
	AuthorityRating int   `json:"authority_rating"` // 0-100
	OrganicTraffic  int64 `json:"organic_traffic"`  // est. monthly visits
	OrganicKeywords int   `json:"organic_keywords"`
	Backlinks       int64 `json:"backlinks"`
}

// EnrichedCandidate is a deduplicated candidate with quantitative signals.
type EnrichedCandidate struct {
	Domain           string     `json:"domain"`
	CompanyName      string     `json:"company_name,omitempty"`
	Context          string     `json:"context,omitempty"`
	DiscoverySources []string   `json:"discovery_sources"` // non-empty
	Metrics          SEOMetrics `json:"seo_metrics"`
	SERPOverlap      float64    `json:"serp_overlap_score"`        // 0.0-1.0
	BusinessSim      float64    `json:"business_similarity_score"` // 0.0-1.0
}

// ClassifiedCandidate adds the purpose verdict and composite score.
type ClassifiedCandidate struct {
	EnrichedCandidate

	Purpose        Purpose     `json:"purpose"`
	Threat         ThreatLevel `json:"threat_level"`
	Confidence     float64     `json:"confidence"`      // 0.0-1.0
	CompositeScore float64     `json:"composite_score"` // 0-100
	Rationale      string      `json:"rationale,omitempty"`
}

// SelectedCandidate is a shortlist member awaiting human curation.
type SelectedCandidate struct {
	ClassifiedCandidate

	QuotaBucket Purpose `json:"quota_bucket"`
	Backfilled  bool    `json:"backfilled"` // taken outside its bucket quota
}

// FinalCompetitor is a member of the locked competitor set. Once the session
// completes, the set changes only through an explicit update operation.
type FinalCompetitor struct {
	Domain         string      `json:"domain"`
	CompanyName    string      `json:"company_name,omitempty"`
	Purpose        Purpose     `json:"purpose"`
	Threat         ThreatLevel `json:"threat_level"`
	CompositeScore float64     `json:"composite_score"`
	Metrics        SEOMetrics  `json:"seo_metrics"`
	AddedByUser    bool        `json:"added_by_user"`
	LockedAt       time.Time   `json:"locked_at"`
}

// RemovalReason codes why a curator dropped a shortlisted competitor.
type RemovalReason string

const (
	RemovalNotCompetitor   RemovalReason = "not_a_competitor"
	RemovalWrongMarket     RemovalReason = "wrong_market"
	RemovalTooAspirational RemovalReason = "too_aspirational"
	RemovalDuplicate       RemovalReason = "duplicate"
	RemovalOther           RemovalReason = "other"
)
