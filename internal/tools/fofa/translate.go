package fofa

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
)

// TranslateTool turns a natural-language request into a FOFA query without running it
type TranslateTool struct {
	runner Runner
}

// Definition returns the tool's definition for MCP registration
func (t *TranslateTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"fofa_translate",
		mcp.WithDescription("Translates a plain-language description of network assets into a FOFA query and explains it, without calling FOFA or spending quota."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Description of the assets to find, in any language"),
		),
		mcp.WithReadOnlyHintAnnotation(true),     // Nothing is modified
		mcp.WithDestructiveHintAnnotation(false), // No destructive operations
		mcp.WithIdempotentHintAnnotation(false),  // The model may phrase the query differently each time
		mcp.WithOpenWorldHintAnnotation(true),    // Calls the completion service
	)
}

// Execute executes the fofa_translate tool
func (t *TranslateTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	logger.Info("Executing fofa_translate tool")

	text, err := parseQueryArg(args, "describe the assets to find")
	if err != nil {
		return nil, err
	}

	result := t.runner.Translate(ctx, text)

	logger.WithFields(logrus.Fields{
		"success": result.Success,
		"query":   result.Query,
	}).Info("fofa_translate finished")

	return newProcessResult(result)
}
