package translate

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sammcj/mcp-fofa/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func choicesBody(t *testing.T, content string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"index": 0, "message": map[string]any{"role": "assistant", "content": content}},
		},
	})
	require.NoError(t, err)
	return body
}

func newTestClient(url string, opts ...Option) *Client {
	cfg := config.Config{
		CompletionAPIKey: "test-key",
		CompletionAPIURL: url,
		CompletionModel:  "test-model",
	}
	return NewClient(cfg, newTestLogger(), opts...)
}

func TestClient_Translate(t *testing.T) {
	var gotAuth, gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && len(req.Messages) > 0 {
			gotPrompt = req.Messages[0].Content
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(choicesBody(t, "```json\n{\"fofa_query\":\"app=\\\"nginx\\\" && country=\\\"US\\\"\",\"explanation\":\"nginx in the US\"}\n```"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	assert.Equal(t, ProviderGenericCompatible, client.Provider())

	result, err := client.Translate(t.Context(), "find nginx servers in the US")
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Contains(t, gotPrompt, "find nginx servers in the US")
	assert.Contains(t, gotPrompt, "## Query syntax")
	assert.Equal(t, `app="nginx" && country="US"`, result.QueryString())
	assert.Equal(t, "nginx in the US", result.Explanation)
}

func TestClient_TranslateCandidatesEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"fofa_query\": null, \"explanation\": \"ambiguous request\"}"}]}}]}`))
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).Translate(t.Context(), "show me stuff")
	require.NoError(t, err)

	assert.Nil(t, result.Query)
	assert.Equal(t, "ambiguous request", result.Explanation)
	assert.Equal(t, MethodStructured, result.Method)
}

func TestClient_UnparseableCompletionIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(choicesBody(t, "I'm sorry, I can't do that."))
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).Translate(t.Context(), "anything")
	require.NoError(t, err)

	assert.Nil(t, result.Query)
	assert.Equal(t, ParseFailureExplanation, result.Explanation)
	assert.Equal(t, MethodNone, result.Method)
}

func TestClient_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Translate(t.Context(), "anything")
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrTranslationFailed)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestClient_UnrecognisedEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output":"something else"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Translate(t.Context(), "anything")
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrTranslationFailed)
	assert.ErrorIs(t, err, ErrUnrecognizedResponseFormat)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(server.URL, WithTimeout(50*time.Millisecond))
	_, err := client.Translate(t.Context(), "anything")
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrTranslationFailed)
}

func TestClient_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(url).Translate(t.Context(), "anything")
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrTranslationFailed)
}

func TestClient_ExtendedReasoningBody(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write(choicesBody(t, `{"fofa_query":"port=\"22\"","explanation":"ssh"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, WithHTTPClient(server.Client()))
	client.provider = DetectProvider("https://api.siliconflow.cn/v1/chat/completions")

	result, err := client.Translate(t.Context(), "ssh servers")
	require.NoError(t, err)

	assert.Equal(t, `port="22"`, result.QueryString())
	assert.Equal(t, true, body["enable_thinking"])
	assert.InDelta(t, float64(DefaultThinkingBudget), body["thinking_budget"], 0.0001)
	assert.True(t, strings.HasPrefix(body["model"].(string), "test-model"))
}
