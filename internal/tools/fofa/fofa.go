// Package fofa exposes the FOFA pipeline as MCP tools.
package fofa

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-fofa/internal/pipeline"
	"github.com/sammcj/mcp-fofa/internal/registry"
)

const (
	// MaxSize is the largest page FOFA serves per request
	MaxSize = 10000
)

// Runner is the part of the pipeline the tools drive
type Runner interface {
	Run(ctx context.Context, userText string, size int) pipeline.ProcessResult
	RunDirect(ctx context.Context, q string, size int) pipeline.ProcessResult
	Translate(ctx context.Context, userText string) pipeline.ProcessResult
}

// RegisterTools registers fofa_search, fofa_query and fofa_translate backed by runner
func RegisterTools(runner Runner) {
	registry.Register(&SearchTool{runner: runner})
	registry.Register(&QueryTool{runner: runner})
	registry.Register(&TranslateTool{runner: runner})
}

// parseQueryArg returns the trimmed, required query argument
func parseQueryArg(args map[string]any, hint string) (string, error) {
	raw, ok := args["query"].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("missing required parameter 'query': %s", hint)
	}
	return strings.TrimSpace(raw), nil
}

// parseSizeArg returns the optional size argument, defaulting to pipeline.DefaultSize
func parseSizeArg(args map[string]any) (int, error) {
	size := pipeline.DefaultSize

	switch v := args["size"].(type) {
	case nil:
	case float64:
		size = int(v)
	case int:
		size = v
	default:
		return 0, fmt.Errorf("'size' must be a number between 1 and %d", MaxSize)
	}

	if size < 1 || size > MaxSize {
		return 0, fmt.Errorf("'size' must be between 1 and %d (you provided %d)", MaxSize, size)
	}
	return size, nil
}

// newProcessResult renders a ProcessResult as indented JSON and flags failures
func newProcessResult(result pipeline.ProcessResult) (*mcp.CallToolResult, error) {
	responseJSON, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	toolResult := mcp.NewToolResultText(string(responseJSON))
	toolResult.IsError = !result.Success
	return toolResult, nil
}
