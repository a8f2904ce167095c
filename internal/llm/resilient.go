package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/felixgeelhaar/fortify/retry"
)

// ErrRateLimited is returned when the local rate limiter rejects a call
var ErrRateLimited = errors.New("rate limit exceeded")

// ResilientConfig selects the guards placed in front of a provider
type ResilientConfig struct {
	EnableCircuitBreaker bool
	EnableRetry          bool
	EnableBulkhead       bool
	EnableRateLimit      bool

	// MaxConcurrent bounds in-flight calls when the bulkhead is on (default 5)
	MaxConcurrent int
	// RatePerSecond is the sustained call rate when rate limiting is on (default 2)
	RatePerSecond int
	// BreakerFailures is the consecutive failure count that opens the breaker (default 3)
	BreakerFailures uint32
	// BreakerCooldown is how long an open breaker rejects calls (default 60s)
	BreakerCooldown time.Duration

	Logger *slog.Logger
}

// DefaultResilientConfig returns defaults for tutor traffic. Retry stays off so
// every tutor task maps to exactly one upstream call.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		EnableCircuitBreaker: true,
		EnableBulkhead:       true,
		EnableRateLimit:      true,
		MaxConcurrent:        5,
		RatePerSecond:        2,
		BreakerFailures:      3,
		BreakerCooldown:      60 * time.Second,
	}
}

// ResilientProvider guards a provider with fortify patterns. Guards apply
// outermost first: rate limit, circuit breaker, retry, bulkhead.
type ResilientProvider struct {
	provider Provider
	name     string
	logger   *slog.Logger

	rateLimit      ratelimit.RateLimiter
	circuitBreaker circuitbreaker.CircuitBreaker[*Response]
	retrier        retry.Retry[*Response]
	bulkhead       bulkhead.Bulkhead[*Response]
}

// NewResilientProvider wraps provider with the guards enabled in cfg
func NewResilientProvider(provider Provider, cfg ResilientConfig) *ResilientProvider {
	rp := &ResilientProvider{
		provider: provider,
		name:     provider.Name(),
		logger:   cfg.Logger,
	}
	if rp.logger == nil {
		rp.logger = slog.New(slog.DiscardHandler)
	}

	if cfg.EnableRateLimit {
		rate := positive(cfg.RatePerSecond, 2)
		rp.rateLimit = ratelimit.New(&ratelimit.Config{
			Rate:     rate,
			Burst:    rate * 3,
			Interval: time.Second,
		})
	}

	if cfg.EnableCircuitBreaker {
		failures := cfg.BreakerFailures
		if failures == 0 {
			failures = 3
		}
		cooldown := cfg.BreakerCooldown
		if cooldown <= 0 {
			cooldown = 60 * time.Second
		}
		rp.circuitBreaker = circuitbreaker.New[*Response](circuitbreaker.Config{
			MaxRequests: 2,
			Interval:    10 * time.Second,
			Timeout:     cooldown,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				rp.logger.Warn("tutor provider breaker changed state",
					"provider", rp.name, "from", from.String(), "to", to.String())
			},
		})
	}

	if cfg.EnableRetry {
		rp.retrier = retry.New[*Response](retry.Config{
			MaxAttempts:   3,
			InitialDelay:  2 * time.Second,
			MaxDelay:      30 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   transient,
		})
	}

	if cfg.EnableBulkhead {
		limit := positive(cfg.MaxConcurrent, 5)
		rp.bulkhead = bulkhead.New[*Response](bulkhead.Config{
			MaxConcurrent: limit,
			MaxQueue:      limit * 2,
			QueueTimeout:  30 * time.Second,
		})
	}

	return rp
}

func positive(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func (p *ResilientProvider) Name() string {
	return p.name
}

// Generate runs req through the enabled guards
func (p *ResilientProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	if p.rateLimit != nil && !p.rateLimit.Allow(ctx, p.name) {
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, p.name)
	}

	call := func(ctx context.Context) (*Response, error) {
		return p.provider.Generate(ctx, req)
	}
	if p.bulkhead != nil {
		inner := call
		call = func(ctx context.Context) (*Response, error) {
			return p.bulkhead.Execute(ctx, inner)
		}
	}
	if p.retrier != nil {
		inner := call
		call = func(ctx context.Context) (*Response, error) {
			return p.retrier.Do(ctx, inner)
		}
	}
	if p.circuitBreaker != nil {
		inner := call
		call = func(ctx context.Context) (*Response, error) {
			return p.circuitBreaker.Execute(ctx, inner)
		}
	}

	return call(ctx)
}

// Close stops the rate limiter's background refill
func (p *ResilientProvider) Close() error {
	if p.rateLimit == nil {
		return nil
	}
	return p.rateLimit.Close()
}

// transient reports whether an upstream status is worth retrying
func transient(err error) bool {
	switch statusCode(err) {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
