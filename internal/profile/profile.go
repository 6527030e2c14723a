// Package profile builds the structured business context that seeds an
// analysis run, from a free-text description and optionally the target's own
// homepage.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/pkg/anthropic"
)

// SeedInput is everything the caller knows about the target business.
type SeedInput struct {
	Description  string
	Domain       string
	Industry     string
	SeedKeywords []string
}

// contextPrompt asks Claude to synthesize a structured business profile.
const contextPrompt = `You are profiling a business for competitive analysis. From the description and homepage content, produce a structured profile.

Respond with ONLY valid JSON, no other text:
{"offering_category": "", "value_proposition": "", "customer_type": "b2b|b2c|b2b2c|unknown", "company_size_tiers": [], "price_tier": "budget|mid_market|premium|enterprise|unknown", "geographic_focus": [], "mentioned_competitors": [], "confidence": 0.0}`

type contextResponse struct {
	OfferingCategory     string   `json:"offering_category"`
	ValueProposition     string   `json:"value_proposition"`
	CustomerType         string   `json:"customer_type"`
	CompanySizeTiers     []string `json:"company_size_tiers"`
	PriceTier            string   `json:"price_tier"`
	GeographicFocus      []string `json:"geographic_focus"`
	MentionedCompetitors []string `json:"mentioned_competitors"`
	Confidence           float64  `json:"confidence"`
}

// Acquirer builds business contexts. The AI synthesis step is optional; with
// a nil client the deterministic fallback is used.
type Acquirer struct {
	ai    anthropic.Client
	model string
}

// NewAcquirer creates a context acquirer.
func NewAcquirer(ai anthropic.Client, model string) *Acquirer {
	return &Acquirer{ai: ai, model: model}
}

// Acquire builds a BusinessContext for a new run. The context is immutable
// once returned; downstream stages only read it.
func (a *Acquirer) Acquire(ctx context.Context, seed SeedInput) (*model.BusinessContext, error) {
	if seed.Description == "" && seed.Domain == "" {
		return nil, eris.New("profile: need a description or a domain")
	}

	log := zap.L().With(zap.String("phase", "profile"), zap.String("domain", seed.Domain))

	var page *PageSummary
	if seed.Domain != "" {
		p, err := FetchPage(ctx, seed.Domain)
		if err != nil {
			// A dead homepage degrades confidence, it does not abort the run.
			log.Warn("homepage fetch failed", zap.Error(err))
		} else {
			page = p
		}
	}

	bc := &model.BusinessContext{
		RunID:        uuid.New().String(),
		TargetDomain: seed.Domain,
		Industry:     seed.Industry,
		SeedKeywords: seed.SeedKeywords,
		AcquiredAt:   time.Now().UTC(),
	}

	synthesized := false
	if a.ai != nil {
		if err := a.synthesize(ctx, seed, page, bc); err != nil {
			log.Warn("context synthesis failed, using heuristics", zap.Error(err))
		} else {
			synthesized = true
		}
	}
	if !synthesized {
		deriveHeuristics(seed, page, bc)
	}

	bc.Quality = model.QualityFromConfidence(bc.ConfidenceScore)

	log.Info("business context acquired",
		zap.String("run_id", bc.RunID),
		zap.String("offering_category", bc.OfferingCategory),
		zap.Float64("confidence", bc.ConfidenceScore),
		zap.String("quality", string(bc.Quality)),
	)

	return bc, nil
}

func (a *Acquirer) synthesize(ctx context.Context, seed SeedInput, page *PageSummary, bc *model.BusinessContext) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Business description: %s\n", seed.Description)
	if seed.Industry != "" {
		fmt.Fprintf(&sb, "Industry: %s\n", seed.Industry)
	}
	if page != nil {
		fmt.Fprintf(&sb, "\nHomepage title: %s\nMeta description: %s\nHeadings: %s\n\nPage text:\n%s\n",
			page.Title, page.Description, strings.Join(page.Headings, " | "), page.Text)
	}

	resp, err := a.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: 1024,
		System:    contextPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: sb.String()}},
	})
	if err != nil {
		return eris.Wrap(err, "profile: claude request")
	}
	resp.Usage.LogCost(a.model, "profile")

	parsed, err := parseContextJSON(resp.Text())
	if err != nil {
		return err
	}

	bc.OfferingCategory = parsed.OfferingCategory
	bc.ValueProposition = parsed.ValueProposition
	bc.CustomerType = model.CustomerType(parsed.CustomerType)
	bc.CompanySizeTiers = parsed.CompanySizeTiers
	bc.PriceTier = model.PriceTier(parsed.PriceTier)
	bc.GeographicFocus = parsed.GeographicFocus
	bc.MentionedRivals = normalizeRivals(parsed.MentionedCompetitors)
	bc.ConfidenceScore = clamp01(parsed.Confidence)

	// Thin inputs cap confidence regardless of what the model claims.
	if seed.Domain == "" || page == nil {
		if bc.ConfidenceScore > 0.7 {
			bc.ConfidenceScore = 0.7
		}
	}
	return nil
}

// parseContextJSON finds and parses the JSON object in an oracle response.
func parseContextJSON(text string) (*contextResponse, error) {
	if text == "" {
		return nil, eris.New("profile: empty claude response")
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, eris.Errorf("profile: no JSON in response: %s", text)
	}
	var parsed contextResponse
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return nil, eris.Wrap(err, "profile: parse response JSON")
	}
	return &parsed, nil
}

// deriveHeuristics fills the context from the description and page without an
// oracle. Confidence stays low so downstream consumers know it is a guess.
func deriveHeuristics(seed SeedInput, page *PageSummary, bc *model.BusinessContext) {
	desc := strings.ToLower(seed.Description)
	if page != nil {
		desc += " " + strings.ToLower(page.Title+" "+page.Description)
	}

	bc.OfferingCategory = seed.Industry
	if bc.OfferingCategory == "" {
		bc.OfferingCategory = firstSentence(seed.Description)
	}
	bc.ValueProposition = firstSentence(seed.Description)
	if page != nil && bc.ValueProposition == "" {
		bc.ValueProposition = page.Description
	}

	bc.CustomerType = model.CustomerTypeUnknown
	switch {
	case strings.Contains(desc, "b2b") || strings.Contains(desc, "enterprise") || strings.Contains(desc, "teams"):
		bc.CustomerType = model.CustomerTypeB2B
	case strings.Contains(desc, "b2c") || strings.Contains(desc, "consumer"):
		bc.CustomerType = model.CustomerTypeB2C
	}

	bc.PriceTier = model.PriceTierUnknown
	switch {
	case strings.Contains(desc, "enterprise"):
		bc.PriceTier = model.PriceTierEnterprise
	case strings.Contains(desc, "premium"):
		bc.PriceTier = model.PriceTierPremium
	case strings.Contains(desc, "affordable") || strings.Contains(desc, "cheap") || strings.Contains(desc, "free"):
		bc.PriceTier = model.PriceTierBudget
	}

	conf := 0.3
	if seed.Description != "" {
		conf += 0.1
	}
	if page != nil {
		conf += 0.1
	}
	if seed.Industry != "" {
		conf += 0.05
	}
	bc.ConfidenceScore = conf
}

func normalizeRivals(rivals []string) []string {
	out := make([]string, 0, len(rivals))
	seen := make(map[string]bool)
	for _, r := range rivals {
		r = strings.TrimSpace(r)
		if r == "" || seen[strings.ToLower(r)] {
			continue
		}
		seen[strings.ToLower(r)] = true
		out = append(out, r)
	}
	return out
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ".!?\n"); i > 0 {
		return s[:i]
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
