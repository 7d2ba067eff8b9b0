package gotlive

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/ZaguanLabs/gotlive/clock"
)

// RateLimiter controls the rate of API requests with a token bucket. The
// bucket is a rate.Limiter fed with times from the configured clock, so
// waits can be driven by a fake clock in tests.
type RateLimiter struct {
	limiter *rate.Limiter
	clock   clock.Clock
}

// RateLimitConfig configures the rate limiter.
type RateLimitConfig struct {
	RequestsPerMinute int         // Maximum requests per minute
	BurstSize         int         // Maximum burst size (default: same as RPM)
	Clock             clock.Clock // default: real time
}

// NewRateLimiter creates a new rate limiter. The bucket starts full.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}

	burst := cfg.BurstSize
	if burst <= 0 {
		burst = rpm
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst),
		clock:   clk,
	}
}

// Wait blocks until a token is available or context is cancelled. A
// cancelled wait gives its reserved token back.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := r.clock.Now()
	res := r.limiter.ReserveN(now, 1)
	if !res.OK() {
		return fmt.Errorf("rate limiter: burst %d cannot serve a request", r.limiter.Burst())
	}

	delay := res.DelayFrom(now)
	if delay <= 0 {
		return nil
	}

	ready := make(chan struct{})
	timer := r.clock.AfterFunc(delay, func() { close(ready) })

	select {
	case <-ctx.Done():
		timer.Stop()
		res.CancelAt(r.clock.Now())
		return ctx.Err()
	case <-ready:
		return nil
	}
}

// TryAcquire attempts to acquire a token without blocking.
func (r *RateLimiter) TryAcquire() bool {
	return r.limiter.AllowN(r.clock.Now(), 1)
}

// Available returns the current number of available tokens.
func (r *RateLimiter) Available() float64 {
	return r.limiter.TokensAt(r.clock.Now())
}

// RateLimitedTranslator wraps a Translator with rate limiting.
type RateLimitedTranslator struct {
	translator Translator
	limiter    *RateLimiter
}

// NewRateLimitedTranslator creates a new rate-limited translator.
func NewRateLimitedTranslator(translator Translator, cfg RateLimitConfig) *RateLimitedTranslator {
	return &RateLimitedTranslator{
		translator: translator,
		limiter:    NewRateLimiter(cfg),
	}
}

// Translate waits for a token, then calls the wrapped translator.
func (t *RateLimitedTranslator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", &ProviderError{
			Message:   "rate limit wait cancelled",
			Cause:     err,
			Retryable: false,
		}
	}

	return t.translator.Translate(ctx, text, targetLang)
}

// Limiter returns the underlying rate limiter for inspection.
func (t *RateLimitedTranslator) Limiter() *RateLimiter {
	return t.limiter
}
