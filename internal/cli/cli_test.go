package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/sammcj/mcp-fofa/internal/pipeline"
	"github.com/sammcj/mcp-fofa/internal/registry"
	"github.com/sammcj/mcp-fofa/internal/search"
	"github.com/sammcj/mcp-fofa/internal/tools/fofa"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type fakePipeline struct {
	result pipeline.ProcessResult
}

func (f *fakePipeline) Run(ctx context.Context, userText string, size int) pipeline.ProcessResult {
	return f.result
}

func (f *fakePipeline) RunDirect(ctx context.Context, q string, size int) pipeline.ProcessResult {
	return f.result
}

func (f *fakePipeline) Translate(ctx context.Context, userText string) pipeline.ProcessResult {
	return f.result
}

func newTestRunner(t *testing.T, result pipeline.ProcessResult, opts Options) (*Runner, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	var out bytes.Buffer
	return NewRunner(logger, &fakePipeline{result: result}, &out, opts), &out
}

var sampleResult = pipeline.ProcessResult{
	Success:     true,
	Query:       `app="nginx" && country="US"`,
	Explanation: "nginx in the US",
	Total:       1234,
	Records: []search.AssetRecord{
		{IP: "1.1.1.1", Port: "80", Title: "Welcome to nginx!", Host: "http://1.1.1.1"},
		{IP: "1.1.1.9", Port: "443", Title: "登录页面 管理系统", Host: "https://1.1.1.9"},
		{IP: "2.2.2.2", Port: "80", Title: "", Host: "2.2.2.2:80"},
	},
}

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": OutputText, "TEXT": OutputText, "json": OutputJSON, " yaml ": OutputYAML} {
		got, err := ParseOutputFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseOutputFormat("xml")
	assert.Error(t, err)
}

func TestRunner_SearchText(t *testing.T) {
	runner, out := newTestRunner(t, sampleResult, Options{})

	require.NoError(t, runner.Search(t.Context(), "nginx in the US", 50))

	text := out.String()
	assert.Contains(t, text, `Query:       app="nginx" && country="US"`)
	assert.Contains(t, text, "Explanation: nginx in the US")
	assert.Contains(t, text, "3 shown, 1234 total")
	assert.Contains(t, text, "Welcome to nginx!")
	assert.NotContains(t, text, "COUNT")

	lines := strings.Split(text, "\n")
	var header string
	for _, l := range lines {
		if strings.HasPrefix(l, "IP") {
			header = l
		}
	}
	require.NotEmpty(t, header)
	assert.Regexp(t, `^IP\s+PORT\s+TITLE\s+HOST$`, header)
}

func TestRunner_SearchTextAlignsWideTitles(t *testing.T) {
	runner, out := newTestRunner(t, sampleResult, Options{})
	require.NoError(t, runner.Search(t.Context(), "x", 50))

	// The HOST column must start at the same display column on every row
	var hostColumns []int
	for _, line := range strings.Split(out.String(), "\n") {
		for _, host := range []string{"HOST", "http://1.1.1.1", "https://1.1.1.9", "2.2.2.2:80"} {
			if idx := strings.Index(line, host); idx > 0 && strings.HasSuffix(line, host) {
				hostColumns = append(hostColumns, displayWidth(line[:idx]))
			}
		}
	}
	require.Len(t, hostColumns, 4)
	for _, c := range hostColumns {
		assert.Equal(t, hostColumns[0], c)
	}
}

func TestRunner_SearchStats(t *testing.T) {
	runner, out := newTestRunner(t, sampleResult, Options{Stats: true, Top: 5})
	require.NoError(t, runner.Search(t.Context(), "x", 50))

	text := out.String()
	assert.Regexp(t, `(?m)^PORT\s+COUNT$`, text)
	assert.Regexp(t, `(?m)^80\s+2$`, text)
	assert.Regexp(t, `(?m)^1\.1\.1\.0/24\s+2$`, text)
}

func TestRunner_SearchJSON(t *testing.T) {
	runner, out := newTestRunner(t, sampleResult, Options{Output: OutputJSON, Stats: true})
	require.NoError(t, runner.Search(t.Context(), "x", 50))

	var decoded struct {
		pipeline.ProcessResult
		Stats *Stats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, sampleResult, decoded.ProcessResult)
	require.NotNil(t, decoded.Stats)
	assert.Equal(t, Bucket{Key: "80", Count: 2}, decoded.Stats.Ports[0])
}

func TestRunner_SearchYAML(t *testing.T) {
	runner, out := newTestRunner(t, sampleResult, Options{Output: OutputYAML})
	require.NoError(t, runner.Search(t.Context(), "x", 50))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, sampleResult.Query, decoded["query"])
	assert.Len(t, decoded["records"], 3)
	assert.NotContains(t, decoded, "stats")
}

func TestRunner_NoRecords(t *testing.T) {
	runner, out := newTestRunner(t, pipeline.ProcessResult{Success: true, Query: `port="1"`, Explanation: pipeline.DirectQueryExplanation}, Options{})
	require.NoError(t, runner.Query(t.Context(), `port="1"`, 10))
	assert.Contains(t, out.String(), "No assets matched the query.")
}

func TestRunner_FailureReturnsError(t *testing.T) {
	failed := pipeline.ProcessResult{Success: false, Error: "FOFA authentication failed (HTTP 401): check FOFA_EMAIL and FOFA_KEY"}

	for _, format := range []OutputFormat{OutputText, OutputJSON, OutputYAML} {
		runner, out := newTestRunner(t, failed, Options{Output: format})
		err := runner.Search(t.Context(), "x", 10)

		require.Error(t, err, format)
		assert.ErrorIs(t, err, ErrUnsuccessful)
		assert.Contains(t, err.Error(), "authentication failed")
		if format != OutputText {
			assert.Contains(t, out.String(), "authentication failed", format)
		}
	}
}

func TestRunner_Translate(t *testing.T) {
	runner, out := newTestRunner(t, pipeline.ProcessResult{Success: true, Query: `port="3389"`, Explanation: "rdp"}, Options{})
	require.NoError(t, runner.Translate(t.Context(), "rdp"))

	assert.Contains(t, out.String(), `Query:       port="3389"`)
	assert.Contains(t, out.String(), "Explanation: rdp")
}

func TestRunner_ListAndHelpTools(t *testing.T) {
	t.Setenv(registry.DisabledToolsEnvVar, "")
	registry.Reset()
	registry.Init(nil)
	t.Cleanup(registry.Reset)
	fofa.RegisterTools(&fakePipeline{})

	runner, out := newTestRunner(t, pipeline.ProcessResult{}, Options{})
	require.NoError(t, runner.ListTools())
	assert.Regexp(t, `(?m)^fofa_query\s+Runs a query`, out.String())
	assert.Contains(t, out.String(), "fofa_search")
	assert.Contains(t, out.String(), "fofa_translate")

	out.Reset()
	require.NoError(t, runner.HelpTool("fofa-search"))
	assert.Contains(t, out.String(), "Tool: fofa_search")
	assert.Regexp(t, `(?m)^\s+query\s+string\s+.*\(required\)$`, out.String())
	assert.Regexp(t, `(?m)^\s+size\s+number\s+`, out.String())

	assert.Error(t, runner.HelpTool("nope"))
}
