// Package model defines the data types shared across the market intelligence
// pipeline, from discovery candidates through the scored keyword universe.
package model

import "time"

// ContextQuality tiers the reliability of an acquired business context.
type ContextQuality string

const (
	ContextQualityHigh   ContextQuality = "high"
	ContextQualityMedium ContextQuality = "medium"
	ContextQualityLow    ContextQuality = "low"
)

// CustomerType describes who the target business sells to.
type CustomerType string

const (
	CustomerTypeB2B     CustomerType = "b2b"
	CustomerTypeB2C     CustomerType = "b2c"
	CustomerTypeB2B2C   CustomerType = "b2b2c"
	CustomerTypeUnknown CustomerType = "unknown"
)

// PriceTier buckets the target's price positioning.
type PriceTier string

const (
	PriceTierBudget     PriceTier = "budget"
	PriceTierMidMarket  PriceTier = "mid_market"
	PriceTierPremium    PriceTier = "premium"
	PriceTierEnterprise PriceTier = "enterprise"
	PriceTierUnknown    PriceTier = "unknown"
)

// BusinessContext is the structured profile of the target business that seeds
// a run. It is immutable once acquired; downstream stages only read it.
type BusinessContext struct {
	RunID            string         `json:"run_id"`
	TargetDomain     string         `json:"target_domain,omitempty"`
	OfferingCategory string         `json:"offering_category"`
	ValueProposition string         `json:"value_proposition,omitempty"`
	CustomerType     CustomerType   `json:"customer_type"`
	CompanySizeTiers []string       `json:"company_size_tiers,omitempty"`
	PriceTier        PriceTier      `json:"price_tier"`
	GeographicFocus  []string       `json:"geographic_focus,omitempty"`
	Industry         string         `json:"industry,omitempty"`
	SeedKeywords     []string       `json:"seed_keywords,omitempty"`
	MentionedRivals  []string       `json:"mentioned_rivals,omitempty"`
	ConfidenceScore  float64        `json:"confidence_score"` // 0.0-1.0
	Quality          ContextQuality `json:"quality"`
	AcquiredAt       time.Time      `json:"acquired_at"`
}

// QualityFromConfidence maps a confidence score to a quality tier.
func QualityFromConfidence(confidence float64) ContextQuality {
	switch {
	case confidence >= 0.75:
		return ContextQualityHigh
	case confidence >= 0.45:
		return ContextQualityMedium
	default:
		return ContextQualityLow
	}
}
