package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/marketdesk/internal/common"
	"google.golang.org/genai"
)

func (f *ProviderFactory) geminiClient(ctx context.Context) (*genai.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.gemini != nil {
		return f.gemini, nil
	}

	apiKey, err := common.ResolveAPIKey(ctx, f.kvStorage, "gemini_api_key", f.geminiConfig.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Gemini API key: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	f.gemini = client
	return client, nil
}

func (f *ProviderFactory) generateWithGemini(ctx context.Context, request *ContentRequest, model string) (*ContentResponse, error) {
	client, err := f.geminiClient(ctx)
	if err != nil {
		return nil, err
	}

	contents, system, err := convertMessagesToGemini(request.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to convert messages: %w", err)
	}
	if request.SystemInstruction != "" {
		system = request.SystemInstruction
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(pickTemperature(request.Temperature, f.geminiConfig.Temperature)),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	// A schema switches Gemini to enforced JSON output
	if schema, err := convertToGenaiSchema(request.OutputSchema); err != nil {
		f.logger.Warn().Err(err).Msg("Ignoring unconvertible output schema")
	} else if schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = schema
	}

	ctx, cancel := context.WithTimeout(ctx, common.ParseDuration(f.geminiConfig.Timeout, 2*time.Minute))
	defer cancel()

	var resp *genai.GenerateContentResponse
	err = f.withRetry(ctx, ProviderGemini, f.geminiLimiter, func(ctx context.Context) error {
		var callErr error
		resp, callErr = client.Models.GenerateContent(ctx, model, contents, config)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini API")
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("empty text in Gemini response")
	}
	return &ContentResponse{Text: text, Provider: ProviderGemini, Model: model}, nil
}

var schemaTypes = map[string]genai.Type{
	"object":  genai.TypeObject,
	"array":   genai.TypeArray,
	"string":  genai.TypeString,
	"number":  genai.TypeNumber,
	"integer": genai.TypeInteger,
	"boolean": genai.TypeBoolean,
}

// convertToGenaiSchema turns a JSON schema held as nested maps into the
// genai schema Gemini expects. An empty map yields nil.
func convertToGenaiSchema(m map[string]interface{}) (*genai.Schema, error) {
	if len(m) == 0 {
		return nil, nil
	}

	schema := &genai.Schema{
		Enum:     stringList(m["enum"]),
		Required: stringList(m["required"]),
		Minimum:  numberPtr(m["minimum"]),
		Maximum:  numberPtr(m["maximum"]),
	}
	if t, ok := m["type"].(string); ok {
		schema.Type = schemaTypes[strings.ToLower(t)]
	}
	if desc, ok := m["description"].(string); ok {
		schema.Description = desc
	}
	if nullable, ok := m["nullable"].(bool); ok {
		schema.Nullable = genai.Ptr(nullable)
	}

	if items, ok := m["items"].(map[string]interface{}); ok {
		itemSchema, err := convertToGenaiSchema(items)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		schema.Items = itemSchema
	}

	if props, ok := m["properties"].(map[string]interface{}); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			prop, ok := raw.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("property %q is not an object", name)
			}
			propSchema, err := convertToGenaiSchema(prop)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", name, err)
			}
			schema.Properties[name] = propSchema
		}
	}

	return schema, nil
}

func stringList(v interface{}) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func numberPtr(v interface{}) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return nil
	}
	return &f
}
