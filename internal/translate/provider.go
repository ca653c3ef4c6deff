package translate

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/openai/openai-go"
)

// ProviderKind selects how the completion request body is shaped
type ProviderKind int

const (
	// ProviderGenericCompatible is any OpenAI-compatible chat completions endpoint
	ProviderGenericCompatible ProviderKind = iota
	// ProviderExtendedReasoning accepts a reasoning budget on top of the OpenAI fields
	ProviderExtendedReasoning
)

func (k ProviderKind) String() string {
	switch k {
	case ProviderExtendedReasoning:
		return "extended-reasoning"
	default:
		return "generic-compatible"
	}
}

// Sampling parameters shared by every provider
const (
	DefaultTemperature    = 0.1
	DefaultMaxTokens      = 4096
	DefaultThinkingBudget = 1024
)

// extendedReasoningHosts are host substrings of providers that take the extended shape
var extendedReasoningHosts = []string{
	"siliconflow",
}

// DetectProvider picks the provider family from the completion endpoint's host
func DetectProvider(endpoint string) ProviderKind {
	host := endpoint
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.ToLower(host)

	for _, h := range extendedReasoningHosts {
		if strings.Contains(host, h) {
			return ProviderExtendedReasoning
		}
	}
	return ProviderGenericCompatible
}

// buildRequestBody serialises the completion request for the given provider family.
// Both shapes share the OpenAI chat parameters; the extended shape adds the reasoning
// fields on top.
func buildRequestBody(kind ProviderKind, model, prompt string) ([]byte, error) {
	params := openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(DefaultTemperature),
		MaxTokens:   openai.Int(DefaultMaxTokens),
	}

	if kind == ProviderExtendedReasoning {
		params.SetExtraFields(map[string]any{
			"stream":          false,
			"enable_thinking": true,
			"thinking_budget": DefaultThinkingBudget,
		})
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", kind, err)
	}
	return body, nil
}
