// Package enrich attaches quantitative signals to discovery candidates:
// provider SEO metrics, seed-keyword SERP overlap, and landing-content
// similarity to the target's value proposition.
package enrich

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/discovery"
	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/pkg/jina"
	"github.com/sells-group/market-intel/pkg/seodata"
)

// Enricher fetches metrics and derived scores for candidates. Missing data
// defaults to zero; a candidate with nothing enrichable is weak, not broken.
type Enricher struct {
	cfg    *config.EnrichConfig
	seo    seodata.Client
	reader jina.Client
	market string
}

// NewEnricher creates an enricher.
func NewEnricher(cfg *config.EnrichConfig, seo seodata.Client, reader jina.Client, market string) *Enricher {
	return &Enricher{cfg: cfg, seo: seo, reader: reader, market: market}
}

// Run enriches all candidates with bounded concurrency. Seed-keyword SERPs
// are fetched once and shared across candidates.
func (e *Enricher) Run(ctx context.Context, bc model.BusinessContext, cands []discovery.Candidate) ([]model.EnrichedCandidate, error) {
	log := zap.L().With(zap.String("phase", "enrich"), zap.String("run_id", bc.RunID))

	serpDomains := e.fetchSeedSERPs(ctx, bc.SeedKeywords, log)

	out := make([]model.EnrichedCandidate, len(cands))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrent())

	for i, cand := range cands {
		g.Go(func() error {
			out[i] = e.enrichOne(gCtx, bc, cand, serpDomains, log)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	log.Info("enrichment complete", zap.Int("candidates", len(out)))
	return out, nil
}

// EnrichOne is the lightweight path used to validate curation additions:
// domain metrics plus content similarity, no SERP overlap.
func (e *Enricher) EnrichOne(ctx context.Context, bc model.BusinessContext, domain, companyName string) model.EnrichedCandidate {
	cand := discovery.Candidate{
		Domain:      discovery.NormalizeDomain(domain),
		CompanyName: companyName,
		Sources:     []string{"curator"},
	}
	log := zap.L().With(zap.String("phase", "enrich"), zap.String("domain", cand.Domain))
	return e.enrichOne(ctx, bc, cand, nil, log)
}

func (e *Enricher) enrichOne(ctx context.Context, bc model.BusinessContext, cand discovery.Candidate, serpDomains map[string]map[string]bool, log *zap.Logger) model.EnrichedCandidate {
	ec := model.EnrichedCandidate{
		Domain:           cand.Domain,
		CompanyName:      cand.CompanyName,
		Context:          cand.Context,
		DiscoverySources: cand.Sources,
	}

	if cand.Domain == "" {
		return ec // name-only candidates carry zero metrics
	}

	if metrics, err := e.seo.DomainMetrics(ctx, cand.Domain); err != nil {
		log.Debug("domain metrics unavailable", zap.String("domain", cand.Domain), zap.Error(err))
	} else {
		ec.Metrics = model.SEOMetrics{
			AuthorityRating: metrics.AuthorityRating,
			OrganicTraffic:  metrics.OrganicTraffic,
			OrganicKeywords: metrics.OrganicKeywords,
			Backlinks:       metrics.Backlinks,
		}
	}

	ec.SERPOverlap = overlapScore(cand.Domain, serpDomains)

	// Content similarity is the expensive signal; only spend it on candidates
	// that already look relevant.
	if e.preliminaryRelevance(ec) >= e.similarityThreshold() {
		ec.BusinessSim = e.contentSimilarity(ctx, cand.Domain, bc, log)
	}

	return ec
}

// fetchSeedSERPs returns keyword -> set of top-N ranking domains.
func (e *Enricher) fetchSeedSERPs(ctx context.Context, seeds []string, log *zap.Logger) map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(seeds))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrent())
	for _, kw := range seeds {
		g.Go(func() error {
			serp, err := e.seo.SERP(gCtx, kw, e.market)
			if err != nil {
				log.Debug("seed serp unavailable", zap.String("keyword", kw), zap.Error(err))
				return nil
			}
			domains := make(map[string]bool)
			for _, entry := range serp.Results {
				if entry.Position > e.serpTopN() {
					break
				}
				domains[discovery.NormalizeDomain(entry.Domain)] = true
			}
			mu.Lock()
			out[kw] = domains
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// overlapScore is the fraction of seed keywords whose top-N SERP contains the
// candidate domain.
func overlapScore(domain string, serpDomains map[string]map[string]bool) float64 {
	if len(serpDomains) == 0 {
		return 0
	}
	hits := 0
	for _, domains := range serpDomains {
		if domains[domain] {
			hits++
		}
	}
	return float64(hits) / float64(len(serpDomains))
}

func (e *Enricher) contentSimilarity(ctx context.Context, domain string, bc model.BusinessContext, log *zap.Logger) float64 {
	if e.reader == nil || bc.ValueProposition == "" {
		return 0
	}
	resp, err := e.reader.Read(ctx, "https://"+domain)
	if err != nil {
		log.Debug("landing content unavailable", zap.String("domain", domain), zap.Error(err))
		return 0
	}
	content := resp.Data.Content
	if len(content) > 8000 {
		content = content[:8000]
	}
	target := bc.ValueProposition + " " + bc.OfferingCategory
	return TextSimilarity(target, resp.Data.Title+" "+content)
}

// preliminaryRelevance is a cheap gate before the similarity fetch.
func (e *Enricher) preliminaryRelevance(ec model.EnrichedCandidate) float64 {
	rel := float64(len(ec.DiscoverySources)) * 0.25
	if rel > 0.5 {
		rel = 0.5
	}
	return rel + ec.SERPOverlap
}

func (e *Enricher) maxConcurrent() int {
	if e.cfg.MaxConcurrent > 0 {
		return e.cfg.MaxConcurrent
	}
	return 6
}

func (e *Enricher) serpTopN() int {
	if e.cfg.SERPTopN > 0 {
		return e.cfg.SERPTopN
	}
	return 10
}

func (e *Enricher) similarityThreshold() float64 {
	if e.cfg.SimilarityThreshold > 0 {
		return e.cfg.SimilarityThreshold
	}
	return 0.3
}
