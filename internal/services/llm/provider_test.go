package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/marketdesk/internal/common"
	"google.golang.org/genai"
)

func newTestFactory(defaultProvider common.LLMProvider) *ProviderFactory {
	cfg := common.NewDefaultConfig()
	cfg.LLM.DefaultProvider = defaultProvider
	return NewProviderFactory(&cfg.Gemini, &cfg.Claude, &cfg.LLM, nil, arbor.NewLogger())
}

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		model   string
		def     common.LLMProvider
		want    ProviderType
		wantRaw string
	}{
		{"", common.LLMProviderGemini, ProviderGemini, ""},
		{"", common.LLMProviderClaude, ProviderClaude, ""},
		{"claude-haiku-4-5", common.LLMProviderGemini, ProviderClaude, "claude-haiku-4-5"},
		{"anthropic/claude-haiku-4-5", common.LLMProviderGemini, ProviderClaude, "claude-haiku-4-5"},
		{"google/gemini-3-flash-preview", common.LLMProviderClaude, ProviderGemini, "gemini-3-flash-preview"},
		{"Gemini-3-Pro", common.LLMProviderClaude, ProviderGemini, "Gemini-3-Pro"},
		{"mystery-model", common.LLMProviderClaude, ProviderClaude, "mystery-model"},
	}
	for _, tt := range tests {
		t.Run(tt.model+"/"+string(tt.def), func(t *testing.T) {
			f := newTestFactory(tt.def)
			assert.Equal(t, tt.want, f.DetectProvider(tt.model))
			assert.Equal(t, tt.wantRaw, f.NormalizeModel(tt.model))
		})
	}
}

func TestGetDefaultModel(t *testing.T) {
	f := newTestFactory(common.LLMProviderGemini)
	assert.Equal(t, "gemini-3-flash-preview", f.GetDefaultModel(ProviderGemini))
	assert.Equal(t, "claude-haiku-4-5", f.GetDefaultModel(ProviderClaude))
}

func TestConvertMessages(t *testing.T) {
	messages := []Message{
		{Role: RoleSystem, Content: "be terse"},
		UserMessage("hello"),
		{Role: RoleAssistant, Content: "hi"},
		{Role: "tool", Content: "odd"},
	}

	contents, system, err := convertMessagesToGemini(messages)
	require.NoError(t, err)
	assert.Equal(t, "be terse", system)
	require.Len(t, contents, 3)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
	assert.Equal(t, genai.RoleUser, contents[2].Role)

	claudeMessages, system, err := convertMessagesToClaude(messages)
	require.NoError(t, err)
	assert.Equal(t, "be terse", system)
	assert.Len(t, claudeMessages, 3)

	_, _, err = convertMessagesToGemini(nil)
	assert.Error(t, err)
	_, _, err = convertMessagesToClaude([]Message{{Role: RoleAssistant, Content: "x"}})
	assert.Error(t, err)
}

func TestConvertToGenaiSchema(t *testing.T) {
	schema, err := convertToGenaiSchema(map[string]interface{}{
		"type":     "object",
		"required": []string{"summary"},
		"properties": map[string]interface{}{
			"summary":    map[string]interface{}{"type": "string"},
			"confidence": map[string]interface{}{"type": "number", "minimum": 0.0, "maximum": 1.0},
			"stage":      map[string]interface{}{"type": "string", "enum": []string{"L1", "LOA"}, "nullable": true},
			"spans":      map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, genai.TypeObject, schema.Type)
	assert.Equal(t, []string{"summary"}, schema.Required)
	assert.Equal(t, []string{"L1", "LOA"}, schema.Properties["stage"].Enum)
	require.NotNil(t, schema.Properties["stage"].Nullable)
	assert.True(t, *schema.Properties["stage"].Nullable)
	assert.Equal(t, 1.0, *schema.Properties["confidence"].Maximum)
	assert.Equal(t, genai.TypeString, schema.Properties["spans"].Items.Type)

	empty, err := convertToGenaiSchema(nil)
	assert.NoError(t, err)
	assert.Nil(t, empty)
}
