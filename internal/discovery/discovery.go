// Package discovery fans a business context out to independent competitor
// discovery providers and condenses the raw results into a bounded,
// deduplicated candidate list.
package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/market-intel/internal/config"
	"github.com/sells-group/market-intel/internal/model"
	"github.com/sells-group/market-intel/internal/resilience"
)

// ErrDiscoveryFailed means every provider failed; an empty result would be a
// lie, so the stage fails explicitly.
var ErrDiscoveryFailed = eris.New("discovery: all providers failed")

// Result holds the raw candidates and per-provider outcome counts.
type Result struct {
	Candidates []model.RawCandidate
	Succeeded  []string
	Failed     []string
}

// Discoverer runs the multi-source fan-out.
type Discoverer struct {
	cfg       *config.DiscoveryConfig
	providers []Provider
	breakers  *resilience.BreakerSet
	retry     resilience.RetryConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewDiscoverer creates a discoverer over the given providers.
func NewDiscoverer(cfg *config.DiscoveryConfig, providers []Provider) *Discoverer {
	return &Discoverer{
		cfg:       cfg,
		providers: providers,
		breakers:  resilience.NewBreakerSet(resilience.DefaultBreakerConfig()),
		retry:     resilience.DefaultRetryConfig(),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Run queries every provider with bounded concurrency. Provider failures are
// logged and reduce coverage; only a total wipeout is an error.
func (d *Discoverer) Run(ctx context.Context, bc model.BusinessContext) (*Result, error) {
	log := zap.L().With(zap.String("phase", "discovery"), zap.String("run_id", bc.RunID))

	result := &Result{}
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(d.maxConcurrent())

	for _, p := range d.providers {
		g.Go(func() error {
			cands, err := d.callProvider(gCtx, p, bc)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn("provider failed",
					zap.String("provider", p.Name()),
					zap.Error(err),
				)
				result.Failed = append(result.Failed, p.Name())
				return nil // coverage loss only
			}
			result.Succeeded = append(result.Succeeded, p.Name())
			result.Candidates = append(result.Candidates, cands...)
			log.Info("provider returned",
				zap.String("provider", p.Name()),
				zap.Int("candidates", len(cands)),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if len(result.Succeeded) == 0 {
		return nil, ErrDiscoveryFailed
	}

	log.Info("discovery complete",
		zap.Int("raw_candidates", len(result.Candidates)),
		zap.Strings("succeeded", result.Succeeded),
		zap.Strings("failed", result.Failed),
	)
	return result, nil
}

// callProvider applies rate limiting, per-call timeout, retry, and the
// provider's circuit breaker around a single Discover call.
func (d *Discoverer) callProvider(ctx context.Context, p Provider, bc model.BusinessContext) ([]model.RawCandidate, error) {
	if err := d.limiter(p.Name()).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "discovery: rate limit wait")
	}

	breaker := d.breakers.Get(p.Name())
	return resilience.Call(ctx, breaker, func(ctx context.Context) ([]model.RawCandidate, error) {
		return resilience.Retry(ctx, d.retry, p.Name(), func(ctx context.Context) ([]model.RawCandidate, error) {
			callCtx, cancel := context.WithTimeout(ctx, d.callTimeout())
			defer cancel()
			return p.Discover(callCtx, bc)
		})
	})
}

func (d *Discoverer) limiter(provider string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[provider]
	if !ok {
		rps := d.cfg.ProviderRPS
		if rps <= 0 {
			rps = 2.0
		}
		l = rate.NewLimiter(rate.Limit(rps), 1)
		d.limiters[provider] = l
	}
	return l
}

func (d *Discoverer) maxConcurrent() int {
	if d.cfg.MaxConcurrent > 0 {
		return d.cfg.MaxConcurrent
	}
	return 4
}

func (d *Discoverer) callTimeout() time.Duration {
	if d.cfg.CallTimeoutSecs > 0 {
		return time.Duration(d.cfg.CallTimeoutSecs) * time.Second
	}
	return 45 * time.Second
}
