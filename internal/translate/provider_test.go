package translate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		endpoint string
		want     ProviderKind
	}{
		{"https://api.siliconflow.cn/v1/chat/completions", ProviderExtendedReasoning},
		{"https://API.SiliconFlow.com/v1/chat/completions", ProviderExtendedReasoning},
		{"https://api.openai.com/v1/chat/completions", ProviderGenericCompatible},
		{"http://localhost:11434/v1/chat/completions", ProviderGenericCompatible},
		{"https://proxy.example.com/siliconflow/v1/chat", ProviderGenericCompatible},
		{"not a url", ProviderGenericCompatible},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectProvider(tt.endpoint))
		})
	}
}

func TestBuildRequestBody_Generic(t *testing.T) {
	body, err := buildRequestBody(ProviderGenericCompatible, "gpt-test", "hello")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))

	assert.Equal(t, "gpt-test", decoded["model"])
	assert.InDelta(t, DefaultTemperature, decoded["temperature"], 0.0001)
	assert.InDelta(t, float64(DefaultMaxTokens), decoded["max_tokens"], 0.0001)
	assert.NotContains(t, decoded, "enable_thinking")
	assert.NotContains(t, decoded, "thinking_budget")

	messages, ok := decoded["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]any)
	assert.Equal(t, "user", msg["role"])
	assert.Equal(t, "hello", msg["content"])
}

func TestBuildRequestBody_ExtendedReasoning(t *testing.T) {
	body, err := buildRequestBody(ProviderExtendedReasoning, "deepseek-ai/DeepSeek-V3", "hello")
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))

	assert.Equal(t, "deepseek-ai/DeepSeek-V3", decoded["model"])
	assert.Equal(t, false, decoded["stream"])
	assert.Equal(t, true, decoded["enable_thinking"])
	assert.InDelta(t, float64(DefaultThinkingBudget), decoded["thinking_budget"], 0.0001)
	assert.InDelta(t, float64(DefaultMaxTokens), decoded["max_tokens"], 0.0001)
	assert.InDelta(t, DefaultTemperature, decoded["temperature"], 0.0001)

	messages, ok := decoded["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]any)
	assert.Equal(t, "user", msg["role"])
	assert.Equal(t, "hello", msg["content"])
}
