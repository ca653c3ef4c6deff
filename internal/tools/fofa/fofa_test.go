package fofa

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-fofa/internal/pipeline"
	"github.com/sammcj/mcp-fofa/internal/registry"
	"github.com/sammcj/mcp-fofa/internal/search"
	"github.com/sammcj/mcp-fofa/internal/tools"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	result   pipeline.ProcessResult
	mode     string
	gotInput string
	gotSize  int
}

func (f *fakeRunner) Run(ctx context.Context, userText string, size int) pipeline.ProcessResult {
	f.mode, f.gotInput, f.gotSize = "run", userText, size
	return f.result
}

func (f *fakeRunner) RunDirect(ctx context.Context, q string, size int) pipeline.ProcessResult {
	f.mode, f.gotInput, f.gotSize = "direct", q, size
	return f.result
}

func (f *fakeRunner) Translate(ctx context.Context, userText string) pipeline.ProcessResult {
	f.mode, f.gotInput = "translate", userText
	return f.result
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestSearchTool_Execute(t *testing.T) {
	runner := &fakeRunner{result: pipeline.ProcessResult{
		Success:     true,
		Query:       `app="nginx" && country="US"`,
		Explanation: "nginx in the US",
		Records:     []search.AssetRecord{{IP: "1.1.1.1", Port: "80", Title: "nginx", Host: "1.1.1.1:80"}},
		Total:       1,
	}}
	tool := &SearchTool{runner: runner}

	result, err := tool.Execute(t.Context(), newTestLogger(), map[string]any{"query": "  nginx servers in the US ", "size": float64(20)})
	require.NoError(t, err)

	assert.False(t, result.IsError)
	assert.Equal(t, "run", runner.mode)
	assert.Equal(t, "nginx servers in the US", runner.gotInput)
	assert.Equal(t, 20, runner.gotSize)

	var decoded pipeline.ProcessResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &decoded))
	assert.Equal(t, runner.result, decoded)
}

func TestSearchTool_DefaultSize(t *testing.T) {
	runner := &fakeRunner{result: pipeline.ProcessResult{Success: true}}

	_, err := (&SearchTool{runner: runner}).Execute(t.Context(), newTestLogger(), map[string]any{"query": "redis"})
	require.NoError(t, err)
	assert.Equal(t, pipeline.DefaultSize, runner.gotSize)
}

func TestSearchTool_FailureSetsIsError(t *testing.T) {
	runner := &fakeRunner{result: pipeline.ProcessResult{Success: false, Error: `could not build a FOFA query for "stuff": ambiguous request`}}

	result, err := (&SearchTool{runner: runner}).Execute(t.Context(), newTestLogger(), map[string]any{"query": "stuff"})
	require.NoError(t, err)

	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "ambiguous request")
}

func TestTools_ArgumentErrors(t *testing.T) {
	runner := &fakeRunner{}
	all := []tools.Tool{&SearchTool{runner: runner}, &QueryTool{runner: runner}, &TranslateTool{runner: runner}}

	for _, tool := range all {
		name := tool.Definition().Name
		_, err := tool.Execute(t.Context(), newTestLogger(), map[string]any{})
		assert.Error(t, err, name)

		_, err = tool.Execute(t.Context(), newTestLogger(), map[string]any{"query": "   "})
		assert.Error(t, err, name)
	}

	for _, size := range []any{float64(0), float64(10001), "ten"} {
		_, err := (&QueryTool{runner: runner}).Execute(t.Context(), newTestLogger(), map[string]any{"query": `port="22"`, "size": size})
		assert.Error(t, err, "size %v", size)
	}
	assert.Empty(t, runner.mode)
}

func TestQueryTool_Execute(t *testing.T) {
	runner := &fakeRunner{result: pipeline.ProcessResult{Success: true, Query: `port="22"`, Explanation: pipeline.DirectQueryExplanation}}

	result, err := (&QueryTool{runner: runner}).Execute(t.Context(), newTestLogger(), map[string]any{"query": `port="22"`, "size": float64(5)})
	require.NoError(t, err)

	assert.False(t, result.IsError)
	assert.Equal(t, "direct", runner.mode)
	assert.Equal(t, `port="22"`, runner.gotInput)
	assert.Equal(t, 5, runner.gotSize)
	assert.Contains(t, resultText(t, result), pipeline.DirectQueryExplanation)
}

func TestTranslateTool_Execute(t *testing.T) {
	runner := &fakeRunner{result: pipeline.ProcessResult{Success: true, Query: `port="3389"`, Explanation: "rdp"}}

	result, err := (&TranslateTool{runner: runner}).Execute(t.Context(), newTestLogger(), map[string]any{"query": "rdp hosts"})
	require.NoError(t, err)

	assert.False(t, result.IsError)
	assert.Equal(t, "translate", runner.mode)
	assert.Contains(t, resultText(t, result), `port=\"3389\"`)
}

func TestDefinitions(t *testing.T) {
	runner := &fakeRunner{}
	for _, tool := range []tools.Tool{&SearchTool{runner: runner}, &QueryTool{runner: runner}, &TranslateTool{runner: runner}} {
		def := tool.Definition()
		assert.Contains(t, def.InputSchema.Required, "query", def.Name)
		require.NotNil(t, def.Annotations.ReadOnlyHint, def.Name)
		assert.True(t, *def.Annotations.ReadOnlyHint, def.Name)
		require.NotNil(t, def.Annotations.OpenWorldHint, def.Name)
		assert.True(t, *def.Annotations.OpenWorldHint, def.Name)
		require.NotNil(t, def.Annotations.DestructiveHint, def.Name)
		assert.False(t, *def.Annotations.DestructiveHint, def.Name)
	}
}

func TestRegisterTools(t *testing.T) {
	t.Setenv(registry.DisabledToolsEnvVar, "fofa_translate")
	registry.Reset()
	registry.Init(nil)
	t.Cleanup(registry.Reset)

	RegisterTools(&fakeRunner{})

	assert.Equal(t, []string{"fofa_query", "fofa_search"}, registry.GetEnabledToolNames())
	assert.Equal(t, []string{"fofa_query", "fofa_search"}, registry.GetToolNamesWithExtendedHelp())
}
