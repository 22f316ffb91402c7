// Package llm wraps the Gemini and Claude SDKs behind one provider-agnostic
// content generation call.
package llm

import (
	"context"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/common"
	"github.com/ternarybob/marketdesk/internal/interfaces"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderClaude ProviderType = "claude"
)

// ContentRequest is one generation call. OutputSchema is honoured by
// Gemini only; Claude callers must ask for JSON in the prompt.
type ContentRequest struct {
	Messages          []Message
	Model             string
	Temperature       float32
	MaxTokens         int
	SystemInstruction string
	OutputSchema      map[string]interface{}
}

type ContentResponse struct {
	Text     string
	Provider ProviderType
	Model    string
}

// Generator is the single call the AI collaborators need
type Generator interface {
	GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error)
}

// modelPrefixes maps routing prefixes to providers. Bare "claude-" and
// "gemini-" names are detected but not stripped.
var modelPrefixes = []struct {
	prefix   string
	provider ProviderType
	strip    bool
}{
	{"claude/", ProviderClaude, true},
	{"anthropic/", ProviderClaude, true},
	{"claude-", ProviderClaude, false},
	{"gemini/", ProviderGemini, true},
	{"google/", ProviderGemini, true},
	{"gemini-", ProviderGemini, false},
}

// ProviderFactory lazily builds SDK clients, resolving API keys from the KV
// store before falling back to config
type ProviderFactory struct {
	geminiConfig *common.GeminiConfig
	claudeConfig *common.ClaudeConfig
	llmConfig    *common.LLMConfig
	kvStorage    interfaces.KeyValueStorage
	logger       arbor.ILogger
	retry        *RetryConfig

	mu            sync.Mutex
	gemini        *genai.Client
	claude        *anthropic.Client
	geminiLimiter *rate.Limiter
	claudeLimiter *rate.Limiter
}

func NewProviderFactory(
	geminiConfig *common.GeminiConfig,
	claudeConfig *common.ClaudeConfig,
	llmConfig *common.LLMConfig,
	kvStorage interfaces.KeyValueStorage,
	logger arbor.ILogger,
) *ProviderFactory {
	return &ProviderFactory{
		geminiConfig:  geminiConfig,
		claudeConfig:  claudeConfig,
		llmConfig:     llmConfig,
		kvStorage:     kvStorage,
		logger:        logger,
		retry:         NewDefaultRetryConfig(),
		geminiLimiter: newLimiter(geminiConfig.RateLimit),
		claudeLimiter: newLimiter(claudeConfig.RateLimit),
	}
}

// newLimiter allows one call per interval; empty or zero means unlimited
func newLimiter(interval string) *rate.Limiter {
	if d := common.ParseDuration(interval, 0); d > 0 {
		return rate.NewLimiter(rate.Every(d), 1)
	}
	return rate.NewLimiter(rate.Inf, 1)
}

// SetRetryConfig replaces the retry policy used for both providers
func (f *ProviderFactory) SetRetryConfig(cfg *RetryConfig) {
	f.retry = cfg
}

// DetectProvider routes a model name to a provider. Unknown or empty
// names go to the configured default.
func (f *ProviderFactory) DetectProvider(model string) ProviderType {
	lower := strings.ToLower(model)
	for _, p := range modelPrefixes {
		if strings.HasPrefix(lower, p.prefix) {
			return p.provider
		}
	}
	if f.llmConfig != nil && f.llmConfig.DefaultProvider == common.LLMProviderClaude {
		return ProviderClaude
	}
	return ProviderGemini
}

// NormalizeModel strips a routing prefix such as "anthropic/"
func (f *ProviderFactory) NormalizeModel(model string) string {
	lower := strings.ToLower(model)
	for _, p := range modelPrefixes {
		if p.strip && strings.HasPrefix(lower, p.prefix) {
			return model[len(p.prefix):]
		}
	}
	return model
}

func (f *ProviderFactory) GetDefaultModel(provider ProviderType) string {
	if provider == ProviderClaude {
		return f.claudeConfig.Model
	}
	return f.geminiConfig.Model
}

// GenerateContent dispatches to the provider the model name selects
func (f *ProviderFactory) GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error) {
	provider := f.DetectProvider(request.Model)
	model := f.NormalizeModel(request.Model)
	if model == "" {
		model = f.GetDefaultModel(provider)
	}

	f.logger.Debug().
		Str("provider", string(provider)).
		Str("model", model).
		Int("message_count", len(request.Messages)).
		Msg("Generating content")

	if provider == ProviderClaude {
		return f.generateWithClaude(ctx, request, model)
	}
	return f.generateWithGemini(ctx, request, model)
}

// pickTemperature prefers the request value over the provider default
func pickTemperature(requested, fallback float32) float32 {
	if requested > 0 {
		return requested
	}
	return fallback
}

// Close drops the cached clients; the next call rebuilds them
func (f *ProviderFactory) Close() error {
	f.mu.Lock()
	f.gemini = nil
	f.claude = nil
	f.mu.Unlock()
	return nil
}
