package fofa

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-fofa/internal/tools"
	"github.com/sirupsen/logrus"
)

// QueryTool runs a FOFA query as given
type QueryTool struct {
	runner Runner
}

// Definition returns the tool's definition for MCP registration
func (t *QueryTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"fofa_query",
		mcp.WithDescription(`Runs a query written in FOFA syntax against the FOFA cyberspace asset engine and returns the matching assets (ip, port, title, host). Malformed queries (empty, unbalanced quotes or parentheses) are rejected before FOFA is called.`),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description(`FOFA query, e.g. app="nginx" && country="US" or (port="80" || port="443") && title="login"`),
		),
		mcp.WithNumber("size",
			mcp.Description(fmt.Sprintf("Number of records to return (1-%d, default: 50)", MaxSize)),
			mcp.DefaultNumber(50),
			mcp.Min(1),
			mcp.Max(MaxSize),
		),
		mcp.WithReadOnlyHintAnnotation(true),     // Only queries FOFA
		mcp.WithDestructiveHintAnnotation(false), // No destructive operations
		mcp.WithIdempotentHintAnnotation(true),   // Same query returns the same page while the index is unchanged
		mcp.WithOpenWorldHintAnnotation(true),    // Calls FOFA
	)
}

// Execute executes the fofa_query tool
func (t *QueryTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	logger.Info("Executing fofa_query tool")

	q, err := parseQueryArg(args, `provide a FOFA query such as app="nginx"`)
	if err != nil {
		return nil, err
	}
	size, err := parseSizeArg(args)
	if err != nil {
		return nil, err
	}

	result := t.runner.RunDirect(ctx, q, size)

	logger.WithFields(logrus.Fields{
		"success": result.Success,
		"records": len(result.Records),
	}).Info("fofa_query finished")

	return newProcessResult(result)
}

// ProvideExtendedInfo provides detailed usage information for the fofa_query tool
func (t *QueryTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description:    "Redis on its default port in Japan or Korea",
				Arguments:      map[string]any{"query": `app="Redis" && port="6379" && (country="JP" || country="KR")`, "size": 20},
				ExpectedResult: "Up to 20 matching assets",
			},
		},
		CommonPatterns: []string{
			`field="value" is a fuzzy match, field=="value" exact, field!="value" negated, field*="v?l*" wildcard`,
			"Combine conditions with && and ||, group with parentheses",
			"Countries are ISO 3166-1 two-letter codes; dates are YYYY-MM-DD with after= and before=",
		},
		ParameterDetails: map[string]string{
			"query": "Every value must be double-quoted. Escape a literal quote inside a value as \\\".",
			"size":  "FOFA charges per record on some plans; request only what you need.",
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  "invalid FOFA query",
				Solution: "Check that quotes and parentheses are balanced and that the query contains at least one term.",
			},
			{
				Problem:  "FOFA API error",
				Solution: "FOFA rejected the query. The message includes FOFA's own error code and text.",
			},
		},
		WhenToUse:    "Running a query you already know is valid FOFA syntax.",
		WhenNotToUse: "When you only have a plain-language description; use fofa_search.",
	}
}
