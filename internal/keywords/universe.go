// Package keywords mines the keyword universe for a curated competitor set:
// ranked keywords per competitor plus seed-keyword expansion, deduplicated by
// normalized text and scored for business relevance.
package keywords

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/pkg/seodata"
)

// seedExpansionSource marks keywords that came from seed-idea expansion
// rather than a competitor's ranked set.
const seedExpansionSource = "seed_expansion"

// Miner builds the keyword universe.
type Miner struct {
	cfg *config.KeywordsConfig
	seo seodata.Client
}

// NewMiner creates a keyword miner.
func NewMiner(cfg *config.KeywordsConfig, seo seodata.Client) *Miner {
	return &Miner{cfg: cfg, seo: seo}
}

// Build mines ranked keywords for every final competitor and expands the seed
// keywords into ideas, with bounded provider concurrency. Duplicates collapse
// onto the first source in competitor order (seed expansion last); a keyword's
// volume and difficulty are never summed across sources, and reruns attribute
// identically. The result is sorted by search volume descending and capped at
// the configured universe size.
func (m *Miner) Build(ctx context.Context, bc model.BusinessContext, final []model.FinalCompetitor) ([]model.KeywordCandidate, error) {
	log := zap.L().With(zap.String("phase", "keywords"), zap.String("run_id", bc.RunID))

	// Fetches run concurrently but land in competitor order, keeping the
	// first-source-wins merge below deterministic.
	sources := make([]string, len(final)+1)
	batches := make([][]seodata.Keyword, len(final)+1)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(m.maxConcurrent())

	for i, fc := range final {
		if fc.Domain == "" {
			continue
		}
		sources[i] = fc.Domain
		g.Go(func() error {
			kws, err := m.seo.RankedKeywords(gCtx, fc.Domain, m.perCompetitorLimit())
			if err != nil {
				// One competitor's keyword fetch failing thins the universe,
				// it does not abort the run.
				log.Warn("ranked keywords unavailable",
					zap.String("domain", fc.Domain),
					zap.Error(err),
				)
				return nil
			}
			batches[i] = kws
			return nil
		})
	}

	if len(bc.SeedKeywords) > 0 {
		idx := len(final)
		sources[idx] = seedExpansionSource
		g.Go(func() error {
			kws, err := m.seo.KeywordIdeas(gCtx, bc.SeedKeywords, m.seedIdeasLimit())
			if err != nil {
				log.Warn("seed expansion unavailable", zap.Error(err))
				return nil
			}
			batches[idx] = kws
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	relevanceTerms := relevanceVocabulary(bc)

	universe := make(map[string]model.KeywordCandidate)
	fetched := 0
	for i, batch := range batches {
		if len(batch) == 0 {
			continue
		}
		fetched++
		for _, kw := range batch {
			normKw := NormalizeKeyword(kw.Keyword)
			if normKw == "" {
				continue
			}
			if _, seen := universe[normKw]; seen {
				continue // first source wins
			}
			universe[normKw] = model.KeywordCandidate{
				Keyword:           kw.Keyword,
				Normalized:        normKw,
				SearchVolume:      kw.SearchVolume,
				Difficulty:        kw.Difficulty,
				CPC:               kw.CPC,
				Intent:            intentFromProvider(kw.Intent),
				Source:            sources[i],
				BusinessRelevance: relevance(normKw, relevanceTerms),
			}
		}
	}

	out := make([]model.KeywordCandidate, 0, len(universe))
	for _, kc := range universe {
		out = append(out, kc)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SearchVolume != out[j].SearchVolume {
			return out[i].SearchVolume > out[j].SearchVolume
		}
		return out[i].Normalized < out[j].Normalized
	})
	if limit := m.universeCap(); len(out) > limit {
		out = out[:limit]
	}

	log.Info("keyword universe built",
		zap.Int("sources", fetched),
		zap.Int("keywords", len(out)),
	)
	return out, nil
}

var keywordCaser = cases.Fold()

// NormalizeKeyword canonicalizes keyword text for deduplication: Unicode NFKC,
// case folding, and whitespace collapse.
func NormalizeKeyword(kw string) string {
	s := norm.NFKC.String(kw)
	s = keywordCaser.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// relevanceVocabulary extracts the comparison terms from the business context.
func relevanceVocabulary(bc model.BusinessContext) map[string]bool {
	terms := make(map[string]bool)
	for _, text := range append([]string{bc.OfferingCategory, bc.ValueProposition, bc.Industry}, bc.SeedKeywords...) {
		for _, tok := range strings.Fields(NormalizeKeyword(text)) {
			if len(tok) >= 3 {
				terms[tok] = true
			}
		}
	}
	return terms
}

// relevance is the fraction of a keyword's tokens that appear in the business
// vocabulary. Deterministic so reruns score identically.
func relevance(normalized string, vocab map[string]bool) float64 {
	toks := strings.Fields(normalized)
	if len(toks) == 0 || len(vocab) == 0 {
		return 0
	}
	hits := 0
	for _, tok := range toks {
		if vocab[tok] {
			hits++
		}
	}
	return float64(hits) / float64(len(toks))
}

func intentFromProvider(intent string) model.KeywordIntent {
	switch strings.ToLower(intent) {
	case "informational":
		return model.IntentInformational
	case "commercial":
		return model.IntentCommercial
	case "transactional":
		return model.IntentTransactional
	case "navigational":
		return model.IntentNavigational
	default:
		return model.IntentUnknown
	}
}

func (m *Miner) maxConcurrent() int {
	if m.cfg.MaxConcurrent > 0 {
		return m.cfg.MaxConcurrent
	}
	return 4
}

func (m *Miner) perCompetitorLimit() int {
	if m.cfg.PerCompetitorLimit > 0 {
		return m.cfg.PerCompetitorLimit
	}
	return 200
}

func (m *Miner) seedIdeasLimit() int {
	if m.cfg.SeedIdeasLimit > 0 {
		return m.cfg.SeedIdeasLimit
	}
	return 100
}

func (m *Miner) universeCap() int {
	if m.cfg.UniverseCap > 0 {
		return m.cfg.UniverseCap
	}
	return 2000
}
