package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/marketdesk/internal/common"
)

func (f *ProviderFactory) claudeClient(ctx context.Context) (*anthropic.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.claude != nil {
		return f.claude, nil
	}

	apiKey, err := common.ResolveAPIKey(ctx, f.kvStorage, "anthropic_api_key", f.claudeConfig.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Anthropic API key: %w", err)
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	f.claude = &client
	return f.claude, nil
}

func (f *ProviderFactory) claudeParams(request *ContentRequest, model string) (anthropic.MessageNewParams, error) {
	messages, system, err := convertMessagesToClaude(request.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("failed to convert messages: %w", err)
	}
	if request.SystemInstruction != "" {
		system = request.SystemInstruction
	}

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = f.claudeConfig.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if temp := pickTemperature(request.Temperature, f.claudeConfig.Temperature); temp > 0 {
		params.Temperature = anthropic.Float(float64(temp))
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params, nil
}

func (f *ProviderFactory) generateWithClaude(ctx context.Context, request *ContentRequest, model string) (*ContentResponse, error) {
	client, err := f.claudeClient(ctx)
	if err != nil {
		return nil, err
	}
	params, err := f.claudeParams(request, model)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, common.ParseDuration(f.claudeConfig.Timeout, 2*time.Minute))
	defer cancel()

	var resp *anthropic.Message
	err = f.withRetry(ctx, ProviderClaude, f.claudeLimiter, func(ctx context.Context) error {
		var callErr error
		resp, callErr = client.Messages.New(ctx, params)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("empty response from Claude API")
	}

	return &ContentResponse{Text: text.String(), Provider: ProviderClaude, Model: model}, nil
}
