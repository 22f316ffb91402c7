package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/common"
)

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("Error 429, Message: too many requests"), true},
		{errors.New("Status: RESOURCE_EXHAUSTED"), true},
		{errors.New("Quota exceeded for metric"), true},
		{errors.New("connection reset by peer"), false},
	}
	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRateLimitError(tt.err))
		})
	}
}

func TestExtractRetryDelay(t *testing.T) {
	err := errors.New("Error 429, Message: ... Please retry in 45.5s., Status: RESOURCE_EXHAUSTED")
	assert.Equal(t, 45500*time.Millisecond, ExtractRetryDelay(err))
	assert.Equal(t, 12*time.Second, ExtractRetryDelay(errors.New("retryDelay: 12s")))
	assert.Zero(t, ExtractRetryDelay(errors.New("no hint")))
	assert.Zero(t, ExtractRetryDelay(nil))
}

func TestCalculateBackoff(t *testing.T) {
	cfg := NewDefaultRetryConfig()

	assert.Equal(t, 45*time.Second, cfg.CalculateBackoff(0, 0))
	assert.Equal(t, 67500*time.Millisecond, cfg.CalculateBackoff(1, 0))
	assert.Equal(t, 90*time.Second, cfg.CalculateBackoff(4, 0))
	assert.Equal(t, 15*time.Second, cfg.CalculateBackoff(0, 10*time.Second))
}

func TestWithRetry(t *testing.T) {
	factory := NewProviderFactory(&common.GeminiConfig{}, &common.ClaudeConfig{}, &common.LLMConfig{}, nil, arbor.NewLogger())
	factory.SetRetryConfig(&RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2,
		LinearStep:        time.Millisecond,
	})

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := factory.withRetry(context.Background(), ProviderGemini, factory.geminiLimiter, func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("Error 429")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		err := factory.withRetry(context.Background(), ProviderClaude, factory.claudeLimiter, func(context.Context) error {
			calls++
			return errors.New("overloaded")
		})
		assert.ErrorContains(t, err, "after 2 retries")
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := factory.withRetry(ctx, ProviderGemini, factory.geminiLimiter, func(context.Context) error {
			return errors.New("unreachable")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
