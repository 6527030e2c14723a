package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity  PerplexityConfig  `yaml:"perplexity" mapstructure:"perplexity"`
	Jina        JinaConfig        `yaml:"jina" mapstructure:"jina"`
	SEOData     SEODataConfig     `yaml:"seodata" mapstructure:"seodata"`
	AltFeed     AltFeedConfig     `yaml:"altfeed" mapstructure:"altfeed"`
	Discovery   DiscoveryConfig   `yaml:"discovery" mapstructure:"discovery"`
	Enrich      EnrichConfig      `yaml:"enrich" mapstructure:"enrich"`
	Selector    SelectorConfig    `yaml:"selector" mapstructure:"selector"`
	Curation    CurationConfig    `yaml:"curation" mapstructure:"curation"`
	Keywords    KeywordsConfig    `yaml:"keywords" mapstructure:"keywords"`
	Winnability WinnabilityConfig `yaml:"winnability" mapstructure:"winnability"`
	Market      MarketConfig      `yaml:"market" mapstructure:"market"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// JinaConfig holds Jina AI Reader settings.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SEODataConfig holds the SEO metrics provider settings.
type SEODataConfig struct {
	Login    string `yaml:"login" mapstructure:"login"`
	Password string `yaml:"password" mapstructure:"password"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	Market   string `yaml:"market" mapstructure:"market"` // e.g. "en-US"
}

// AltFeedConfig holds the optional business-intel alternatives feed settings.
type AltFeedConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// DiscoveryConfig configures the multi-source discovery fan-out.
type DiscoveryConfig struct {
	MaxCandidates      int      `yaml:"max_candidates" mapstructure:"max_candidates"`
	MinCandidates      int      `yaml:"min_candidates" mapstructure:"min_candidates"`
	QueriesPerProvider int      `yaml:"queries_per_provider" mapstructure:"queries_per_provider"`
	MaxConcurrent      int      `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	CallTimeoutSecs    int      `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	ProviderRPS        float64  `yaml:"provider_rps" mapstructure:"provider_rps"`
	ExcludeDomains     []string `yaml:"exclude_domains" mapstructure:"exclude_domains"`
	WhitelistDomains   []string `yaml:"whitelist_domains" mapstructure:"whitelist_domains"`
	PremiumSources     []string `yaml:"premium_sources" mapstructure:"premium_sources"`
}

// EnrichConfig configures candidate enrichment.
type EnrichConfig struct {
	MaxConcurrent       int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	SERPTopN            int     `yaml:"serp_top_n" mapstructure:"serp_top_n"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
}

// SelectorConfig configures the quota-balanced shortlist.
type SelectorConfig struct {
	TargetCount int                `yaml:"target_count" mapstructure:"target_count"`
	MaxCount    int                `yaml:"max_count" mapstructure:"max_count"`
	Quotas      map[string]float64 `yaml:"quotas" mapstructure:"quotas"` // purpose -> fraction
}

// CurationConfig configures the curation gate.
type CurationConfig struct {
	MinFinalCount int `yaml:"min_final_count" mapstructure:"min_final_count"`
	MaxFinalCount int `yaml:"max_final_count" mapstructure:"max_final_count"`
}

// KeywordsConfig configures keyword universe mining.
type KeywordsConfig struct {
	PerCompetitorLimit int `yaml:"per_competitor_limit" mapstructure:"per_competitor_limit"`
	SeedIdeasLimit     int `yaml:"seed_ideas_limit" mapstructure:"seed_ideas_limit"`
	MaxConcurrent      int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	UniverseCap        int `yaml:"universe_cap" mapstructure:"universe_cap"`
}

// WinnabilityConfig configures the winnability scorer.
type WinnabilityConfig struct {
	CoefficientsFile   string `yaml:"coefficients_file" mapstructure:"coefficients_file"`
	LowAuthorityCutoff int    `yaml:"low_authority_cutoff" mapstructure:"low_authority_cutoff"`
	SERPSampleSize     int    `yaml:"serp_sample_size" mapstructure:"serp_sample_size"`
	MaxConcurrent      int    `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// MarketConfig configures beachhead selection and projections.
type MarketConfig struct {
	BeachheadVolumeFloor int `yaml:"beachhead_volume_floor" mapstructure:"beachhead_volume_floor"`
	BeachheadPerTopic    int `yaml:"beachhead_per_topic" mapstructure:"beachhead_per_topic"`
	BeachheadLimit       int `yaml:"beachhead_limit" mapstructure:"beachhead_limit"`
	ProjectionMonths     int `yaml:"projection_months" mapstructure:"projection_months"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MARKETINTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "market-intel.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("seodata.base_url", "https://api.seodata.io/v3")
	v.SetDefault("seodata.market", "en-US")
	v.SetDefault("discovery.max_candidates", 50)
	v.SetDefault("discovery.min_candidates", 3)
	v.SetDefault("discovery.queries_per_provider", 3)
	v.SetDefault("discovery.max_concurrent", 4)
	v.SetDefault("discovery.call_timeout_secs", 45)
	v.SetDefault("discovery.provider_rps", 2.0)
	v.SetDefault("discovery.premium_sources", []string{"seodata", "altfeed"})
	v.SetDefault("enrich.max_concurrent", 6)
	v.SetDefault("enrich.serp_top_n", 10)
	v.SetDefault("enrich.similarity_threshold", 0.3)
	v.SetDefault("selector.target_count", 15)
	v.SetDefault("selector.max_count", 15)
	v.SetDefault("selector.quotas", map[string]float64{
		"benchmark_peer": 0.40,
		"keyword_source": 0.33,
		"content_model":  0.13,
		"aspirational":   0.13,
	})
	v.SetDefault("curation.min_final_count", 3)
	v.SetDefault("curation.max_final_count", 15)
	v.SetDefault("keywords.per_competitor_limit", 200)
	v.SetDefault("keywords.seed_ideas_limit", 100)
	v.SetDefault("keywords.max_concurrent", 4)
	v.SetDefault("keywords.universe_cap", 2000)
	v.SetDefault("winnability.coefficients_file", "coefficients.yaml")
	v.SetDefault("winnability.low_authority_cutoff", 20)
	v.SetDefault("winnability.serp_sample_size", 10)
	v.SetDefault("winnability.max_concurrent", 8)
	v.SetDefault("market.beachhead_volume_floor", 50)
	v.SetDefault("market.beachhead_per_topic", 3)
	v.SetDefault("market.beachhead_limit", 25)
	v.SetDefault("market.projection_months", 12)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
