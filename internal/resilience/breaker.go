// Package resilience guards external provider calls with per-provider circuit
// breakers and retry with backoff. A provider that keeps failing is skipped
// for the remainder of the run instead of being retried indefinitely.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrBreakerOpen is returned when a call is rejected because the provider's
// breaker is open.
var ErrBreakerOpen = eris.New("provider breaker is open")

// BreakerState is the state of a provider breaker.
type BreakerState int

const (
	// StateClosed passes calls through.
	StateClosed BreakerState = iota
	// StateOpen rejects calls until the cooldown elapses.
	StateOpen
	// StateHalfOpen allows one probe call to test recovery.
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig controls breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// breaker opens. Default: 3.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before allowing a probe.
	// Default: 60s (roughly "skip for the rest of a discovery run").
	Cooldown time.Duration
}

// DefaultBreakerConfig returns the defaults used for discovery providers.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		Cooldown:         60 * time.Second,
	}
}

// Breaker is a circuit breaker for a single provider.
type Breaker struct {
	provider string
	cfg      BreakerConfig

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
	nowFunc     func() time.Time
}

// NewBreaker creates a breaker for the named provider.
func NewBreaker(provider string, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	return &Breaker{
		provider: provider,
		cfg:      cfg,
		state:    StateClosed,
		nowFunc:  time.Now,
	}
}

// Call runs fn through the breaker. An open breaker rejects immediately with
// ErrBreakerOpen; context cancellations do not count as provider failures.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.allow(); err != nil {
		return zero, err
	}

	val, err := fn(ctx)
	b.record(err, ctx)
	return val, err
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.nowFunc().Sub(b.lastFailure) >= b.cfg.Cooldown {
		return StateHalfOpen
	}
	return b.state
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.nowFunc().Sub(b.lastFailure) >= b.cfg.Cooldown {
			b.state = StateHalfOpen
			return nil // probe
		}
		return ErrBreakerOpen
	default:
		return nil
	}
}

func (b *Breaker) record(err error, ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || ctx.Err() != nil {
		if b.state == StateHalfOpen {
			zap.L().Info("provider breaker recovered", zap.String("provider", b.provider))
		}
		b.state = StateClosed
		b.failures = 0
		return
	}

	b.failures++
	b.lastFailure = b.nowFunc()

	if b.state == StateHalfOpen || b.failures >= b.cfg.FailureThreshold {
		if b.state != StateOpen {
			zap.L().Warn("provider breaker opened",
				zap.String("provider", b.provider),
				zap.Int("consecutive_failures", b.failures),
			)
		}
		b.state = StateOpen
	}
}

// BreakerSet manages one breaker per provider name.
type BreakerSet struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	breakers map[string]*Breaker
}

// NewBreakerSet creates a registry of per-provider breakers.
func NewBreakerSet(cfg BreakerConfig) *BreakerSet {
	return &BreakerSet{
		cfg:      cfg,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for the named provider, creating one if needed.
func (s *BreakerSet) Get(provider string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.breakers[provider]
	if !ok {
		b = NewBreaker(provider, s.cfg)
		s.breakers[provider] = b
	}
	return b
}
