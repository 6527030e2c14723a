package pipeline

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/market-intel/internal/classify"
	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/curation"
	"github.com/sells-group/market-intel/internal/discovery"
	"github.com/sells-group/market-intel/internal/enrich"
	"github.com/sells-group/market-intel/internal/keywords"
	"github.com/sells-group/market-intel/internal/profile"
	"github.com/sells-group/market-intel/internal/store"
	"github.com/sells-group/market-intel/internal/winnability"
	"github.com/sells-group/market-intel/pkg/altfeed"
	"github.com/sells-group/market-intel/pkg/anthropic"
	"github.com/sells-group/market-intel/pkg/jina"
	"github.com/sells-group/market-intel/pkg/perplexity"
	"github.com/sells-group/market-intel/pkg/seodata"
)

// App is the fully wired application: the machine pipeline plus the curation
// gate that drives completion.
type App struct {
	Config   *config.Config
	Store    store.Store
	Pipeline *Pipeline
	Gate     *curation.Gate
}

// OpenStore opens the configured database backend.
func OpenStore(ctx context.Context, cfg *config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.DatabaseURL, nil)
	case "sqlite", "":
		return store.NewSQLite(cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Build wires providers, stages, and the gate from configuration.
func Build(cfg *config.Config, st store.Store) (*App, error) {
	ai := anthropic.NewClient(cfg.Anthropic.Key)
	seo := seodata.NewClient(cfg.SEOData.Login, cfg.SEOData.Password,
		seodata.WithBaseURL(cfg.SEOData.BaseURL))
	reader := jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.BaseURL))

	extractor := discovery.NewClaudeExtractor(ai, cfg.Anthropic.HaikuModel)
	providers := []discovery.Provider{
		discovery.NewAISearchProvider(
			perplexity.NewClient(cfg.Perplexity.Key,
				perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
				perplexity.WithModel(cfg.Perplexity.Model)),
			extractor,
			cfg.Discovery.QueriesPerProvider,
		),
		discovery.NewSERPProvider(seo, cfg.SEOData.Market, cfg.Enrich.SERPTopN),
		discovery.MentionedProvider{},
	}
	if cfg.AltFeed.Key != "" {
		providers = append(providers, discovery.NewAltFeedProvider(
			altfeed.NewClient(cfg.AltFeed.Key, altfeed.WithBaseURL(cfg.AltFeed.BaseURL))))
	}

	acquirer := profile.NewAcquirer(ai, cfg.Anthropic.SonnetModel)
	discoverer := discovery.NewDiscoverer(&cfg.Discovery, providers)
	enricher := enrich.NewEnricher(&cfg.Enrich, seo, reader, cfg.SEOData.Market)
	classifier := classify.NewClassifier(
		classify.NewClaudeOracle(ai, cfg.Anthropic.HaikuModel),
		classify.RuleOracle{},
		cfg.Discovery.PremiumSources,
	)

	coeffs, err := loadCoefficients(cfg.Winnability.CoefficientsFile)
	if err != nil {
		return nil, err
	}

	miner := keywords.NewMiner(&cfg.Keywords, seo)
	scorer := winnability.NewScorer(&cfg.Winnability, seo, coeffs, cfg.SEOData.Market)
	completer := NewCompleter(cfg, st, miner, scorer, seo)
	gate := curation.NewGate(&cfg.Curation, st, enricher, classifier, completer)

	return &App{
		Config:   cfg,
		Store:    st,
		Pipeline: New(cfg, st, acquirer, discoverer, enricher, classifier),
		Gate:     gate,
	}, nil
}

func loadCoefficients(path string) (*winnability.CoefficientTable, error) {
	if path == "" {
		return winnability.DefaultCoefficients(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		zap.L().Warn("coefficients file missing, using defaults", zap.String("path", path))
		return winnability.DefaultCoefficients(), nil
	}
	return winnability.LoadCoefficients(path)
}
