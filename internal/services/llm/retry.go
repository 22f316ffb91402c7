package llm

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Defaults sized for Gemini's per-minute quota window
const (
	DefaultMaxRetries        = 5
	DefaultInitialBackoff    = 45 * time.Second
	DefaultMaxBackoff        = 90 * time.Second
	DefaultBackoffMultiplier = 1.5
	DefaultLinearStep        = 2 * time.Second

	// retryDelayPadding is added to a server-suggested delay
	retryDelayPadding = 5 * time.Second
)

// RetryConfig: rate limit errors back off exponentially from
// InitialBackoff, anything else waits LinearStep times the attempt number.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	LinearStep        time.Duration
}

func NewDefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        DefaultMaxRetries,
		InitialBackoff:    DefaultInitialBackoff,
		MaxBackoff:        DefaultMaxBackoff,
		BackoffMultiplier: DefaultBackoffMultiplier,
		LinearStep:        DefaultLinearStep,
	}
}

var rateLimitMarkers = []string{"429", "resource_exhausted", "quota", "rate_limit_error"}

// IsRateLimitError reports whether either provider refused on quota
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Gemini embeds its suggestion as "Please retry in 45.3s" or "retryDelay: 45s"
var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay returns the server-suggested delay, or 0
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}
	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}
	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// CalculateBackoff grows the base by BackoffMultiplier per attempt, capped
// at MaxBackoff. A server-suggested delay replaces InitialBackoff as base.
func (c *RetryConfig) CalculateBackoff(attempt int, apiDelay time.Duration) time.Duration {
	base := c.InitialBackoff
	if apiDelay > 0 {
		base = apiDelay + retryDelayPadding
	}
	backoff := time.Duration(float64(base) * math.Pow(c.BackoffMultiplier, float64(attempt)))
	if backoff > c.MaxBackoff {
		return c.MaxBackoff
	}
	return backoff
}

func (c *RetryConfig) backoffFor(attempt int, err error) time.Duration {
	if IsRateLimitError(err) {
		return c.CalculateBackoff(attempt, ExtractRetryDelay(err))
	}
	return time.Duration(attempt+1) * c.LinearStep
}

// withRetry calls fn until it succeeds, retries run out or ctx ends. Every
// attempt waits on the provider's limiter first.
func (f *ProviderFactory) withRetry(ctx context.Context, provider ProviderType, limiter *rate.Limiter, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
		if attempt >= f.retry.MaxRetries {
			break
		}

		backoff := f.retry.backoffFor(attempt, lastErr)
		f.logger.Warn().
			Str("provider", string(provider)).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(lastErr).
			Msg("Retrying AI provider call")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s API call failed after %d retries: %w", provider, f.retry.MaxRetries, lastErr)
}
