// Package classify assigns each enriched candidate a purpose category and a
// composite score. Purpose verdicts come from an oracle interface so the AI
// classifier can be swapped for the deterministic rule set in tests and
// during provider outages.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/pkg/anthropic"
)

// Verdict is an oracle's purpose assignment for one candidate.
type Verdict struct {
	Purpose    model.Purpose     `json:"purpose"`
	Threat     model.ThreatLevel `json:"threat_level"`
	Confidence float64           `json:"confidence"`
	Rationale  string            `json:"rationale"`
}

// Oracle classifies a candidate's purpose relative to the target business.
type Oracle interface {
	Classify(ctx context.Context, cand model.EnrichedCandidate, bc model.BusinessContext) (*Verdict, error)
}

// classifyPrompt is the system prompt for the AI purpose classifier.
const classifyPrompt = `You are categorizing a competitor for a competitive SEO analysis. Categories:
- benchmark_peer: similar size and market, the target competes with them head-on
- keyword_source: ranks for many keywords the target should pursue
- content_model: their content strategy is worth emulating
- aspirational: a much larger player the target may grow toward
- not_relevant: not actually a competitor in this market

Respond with ONLY valid JSON, no other text:
{"purpose": "", "threat_level": "high|medium|low|none", "confidence": 0.0, "rationale": "one line"}`

// ClaudeOracle classifies via Claude.
type ClaudeOracle struct {
	ai    anthropic.Client
	model string
}

// NewClaudeOracle creates the AI classifier.
func NewClaudeOracle(ai anthropic.Client, model string) *ClaudeOracle {
	return &ClaudeOracle{ai: ai, model: model}
}

func (o *ClaudeOracle) Classify(ctx context.Context, cand model.EnrichedCandidate, bc model.BusinessContext) (*Verdict, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Target business: %s (%s, %s customers)\n",
		bc.OfferingCategory, bc.ValueProposition, bc.CustomerType)
	fmt.Fprintf(&sb, "\nCandidate: %s %s\nDiscovered via: %s\nContext: %s\n",
		cand.CompanyName, cand.Domain, strings.Join(cand.DiscoverySources, ", "), cand.Context)
	fmt.Fprintf(&sb, "Authority: %d, organic traffic: %d, organic keywords: %d\n",
		cand.Metrics.AuthorityRating, cand.Metrics.OrganicTraffic, cand.Metrics.OrganicKeywords)
	fmt.Fprintf(&sb, "SERP overlap with seed keywords: %.2f, content similarity: %.2f\n",
		cand.SERPOverlap, cand.BusinessSim)

	resp, err := o.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     o.model,
		MaxTokens: 256,
		System:    classifyPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: sb.String()}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "classify: claude request")
	}
	resp.Usage.LogCost(o.model, "classify")

	text := resp.Text()
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, eris.Errorf("classify: no JSON in response: %s", text)
	}

	var v Verdict
	if err := json.Unmarshal([]byte(text[start:end+1]), &v); err != nil {
		return nil, eris.Wrap(err, "classify: parse response JSON")
	}
	if !validPurpose(v.Purpose) {
		return nil, eris.Errorf("classify: unknown purpose %q", v.Purpose)
	}
	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 1 {
		v.Confidence = 1
	}
	return &v, nil
}

func validPurpose(p model.Purpose) bool {
	switch p {
	case model.PurposeBenchmarkPeer, model.PurposeKeywordSource,
		model.PurposeContentModel, model.PurposeAspirational, model.PurposeNotRelevant:
		return true
	}
	return false
}

// RuleOracle is the deterministic fallback classifier built on the enrichment
// evidence alone.
type RuleOracle struct {
	// TargetAuthority is the target domain's own authority rating.
	TargetAuthority int
}

func (o RuleOracle) Classify(_ context.Context, cand model.EnrichedCandidate, _ model.BusinessContext) (*Verdict, error) {
	authority := cand.Metrics.AuthorityRating
	gap := authority - o.TargetAuthority

	switch {
	case cand.SERPOverlap == 0 && cand.BusinessSim < 0.1 &&
		len(cand.DiscoverySources) <= 1 && cand.Metrics.OrganicKeywords == 0:
		return &Verdict{
			Purpose:    model.PurposeNotRelevant,
			Threat:     model.ThreatNone,
			Confidence: 0.6,
			Rationale:  "no keyword overlap, no content similarity, single weak source",
		}, nil

	case gap >= 30 && authority >= 60:
		return &Verdict{
			Purpose:    model.PurposeAspirational,
			Threat:     threatFromOverlap(cand.SERPOverlap),
			Confidence: 0.7,
			Rationale:  "authority far above target",
		}, nil

	case cand.SERPOverlap >= 0.3 && gap > -20 && gap < 30:
		return &Verdict{
			Purpose:    model.PurposeBenchmarkPeer,
			Threat:     model.ThreatHigh,
			Confidence: 0.8,
			Rationale:  "comparable authority contesting the same SERPs",
		}, nil

	case cand.Metrics.OrganicKeywords >= 1000:
		return &Verdict{
			Purpose:    model.PurposeKeywordSource,
			Threat:     threatFromOverlap(cand.SERPOverlap),
			Confidence: 0.7,
			Rationale:  "large ranked-keyword footprint to mine",
		}, nil

	case cand.BusinessSim >= 0.4:
		return &Verdict{
			Purpose:    model.PurposeContentModel,
			Threat:     model.ThreatLow,
			Confidence: 0.6,
			Rationale:  "closely aligned positioning and content",
		}, nil

	default:
		return &Verdict{
			Purpose:    model.PurposeKeywordSource,
			Threat:     model.ThreatLow,
			Confidence: 0.5,
			Rationale:  "partial evidence only",
		}, nil
	}
}

func threatFromOverlap(overlap float64) model.ThreatLevel {
	switch {
	case overlap >= 0.5:
		return model.ThreatHigh
	case overlap >= 0.2:
		return model.ThreatMedium
	default:
		return model.ThreatLow
	}
}
