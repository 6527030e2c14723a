package discovery

import (
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/model"
)

// defaultExclusions are generic platforms and media sites that surface in
// every vertical's discovery results but are never competitors. A vertical
// can whitelist individual entries back in via config.
var defaultExclusions = map[string]bool{
	"wikipedia.org":       true,
	"youtube.com":         true,
	"facebook.com":        true,
	"instagram.com":       true,
	"x.com":               true,
	"twitter.com":         true,
	"linkedin.com":        true,
	"reddit.com":          true,
	"quora.com":           true,
	"medium.com":          true,
	"forbes.com":          true,
	"techcrunch.com":      true,
	"businessinsider.com": true,
	"nytimes.com":         true,
	"crunchbase.com":      true,
	"g2.com":              true,
	"capterra.com":        true,
	"trustpilot.com":      true,
	"amazon.com":          true,
	"github.com":          true,
}

// Candidate is a normalized, deduplicated discovery candidate.
type Candidate struct {
	Domain      string   `json:"domain,omitempty"`
	CompanyName string   `json:"company_name,omitempty"`
	Context     string   `json:"context,omitempty"`
	Sources     []string `json:"discovery_sources"`
	BestRank    int      `json:"best_rank,omitempty"` // lowest provider rank seen, 0 if none
}

// heuristicScore is the cheap pre-enrichment relevance used to cap the list.
func (c Candidate) heuristicScore() int {
	score := len(c.Sources) * 2
	if c.BestRank > 0 && c.BestRank <= 10 {
		score += 11 - c.BestRank
	}
	return score
}

// Process normalizes, deduplicates, and filters raw candidates, then caps the
// list by a cheap relevance heuristic to bound enrichment cost.
func Process(raw []model.RawCandidate, targetDomain string, cfg *config.DiscoveryConfig) []Candidate {
	target := NormalizeDomain(targetDomain)
	whitelist := make(map[string]bool, len(cfg.WhitelistDomains))
	for _, d := range cfg.WhitelistDomains {
		whitelist[NormalizeDomain(d)] = true
	}
	extraExcluded := make(map[string]bool, len(cfg.ExcludeDomains))
	for _, d := range cfg.ExcludeDomains {
		extraExcluded[NormalizeDomain(d)] = true
	}

	merged := make(map[string]*Candidate)
	order := make([]string, 0, len(raw))

	dropped := 0
	for _, rc := range raw {
		domain := NormalizeDomain(rc.Domain)
		name := strings.TrimSpace(rc.CompanyName)
		if domain == "" && name == "" {
			dropped++
			continue
		}
		if domain != "" {
			if domain == target {
				dropped++
				continue
			}
			if (isExcluded(domain, extraExcluded)) && !whitelist[domain] {
				dropped++
				continue
			}
		}

		key := domain
		if key == "" {
			key = "name:" + strings.ToLower(name)
		}

		existing, ok := merged[key]
		if !ok {
			merged[key] = &Candidate{
				Domain:      domain,
				CompanyName: name,
				Context:     rc.Context,
				Sources:     []string{rc.Source},
				BestRank:    rc.Rank,
			}
			order = append(order, key)
			continue
		}

		// Duplicate: union sources, keep first-seen name/context.
		if !containsString(existing.Sources, rc.Source) {
			existing.Sources = append(existing.Sources, rc.Source)
		}
		if existing.CompanyName == "" {
			existing.CompanyName = name
		}
		if existing.Context == "" {
			existing.Context = rc.Context
		}
		if rc.Rank > 0 && (existing.BestRank == 0 || rc.Rank < existing.BestRank) {
			existing.BestRank = rc.Rank
		}
	}

	out := make([]Candidate, 0, len(merged))
	for _, key := range order {
		out = append(out, *merged[key])
	}

	// Stable rank by the cheap heuristic, then cap.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].heuristicScore() > out[j].heuristicScore()
	})

	maxCandidates := cfg.MaxCandidates
	if maxCandidates <= 0 {
		maxCandidates = 50
	}
	if len(out) > maxCandidates {
		out = out[:maxCandidates]
	}

	zap.L().Info("candidates processed",
		zap.Int("raw", len(raw)),
		zap.Int("dropped", dropped),
		zap.Int("unique", len(merged)),
		zap.Int("kept", len(out)),
	)
	return out
}

// NormalizeDomain lower-cases a domain and strips scheme, www, port, and path.
func NormalizeDomain(raw string) string {
	d := strings.TrimSpace(strings.ToLower(raw))
	if d == "" {
		return ""
	}
	if strings.Contains(d, "://") {
		if u, err := url.Parse(d); err == nil && u.Host != "" {
			d = u.Host
		}
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if i := strings.Index(d, ":"); i >= 0 {
		d = d[:i]
	}
	d = strings.TrimPrefix(d, "www.")
	return strings.TrimSuffix(d, ".")
}

// isExcluded matches the exclusion lists against the domain and its
// registrable parent (so blog.medium.com is excluded with medium.com).
func isExcluded(domain string, extra map[string]bool) bool {
	if defaultExclusions[domain] || extra[domain] {
		return true
	}
	parts := strings.Split(domain, ".")
	if len(parts) > 2 {
		parent := strings.Join(parts[len(parts)-2:], ".")
		return defaultExclusions[parent] || extra[parent]
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
