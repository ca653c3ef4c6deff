package fofa

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-fofa/internal/tools"
	"github.com/sirupsen/logrus"
)

// SearchTool translates a natural-language request into a FOFA query and runs it
type SearchTool struct {
	runner Runner
}

// Definition returns the tool's definition for MCP registration
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"fofa_search",
		mcp.WithDescription(`Searches the FOFA cyberspace asset engine using a plain-language description of the hosts or services to find. The description is translated into FOFA query syntax and executed; the response contains the generated query, an explanation and the matching assets (ip, port, title, host).

Use fofa_query instead when you already have a FOFA query.`),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Description of the assets to find, in any language (e.g., 'nginx servers in the US', 'exposed Redis on the default port in Japan')"),
		),
		mcp.WithNumber("size",
			mcp.Description(fmt.Sprintf("Number of records to return (1-%d, default: 50). Larger pages consume more FOFA quota.", MaxSize)),
			mcp.DefaultNumber(50),
			mcp.Min(1),
			mcp.Max(MaxSize),
		),
		mcp.WithReadOnlyHintAnnotation(true),     // Only queries FOFA
		mcp.WithDestructiveHintAnnotation(false), // No destructive operations
		mcp.WithIdempotentHintAnnotation(false),  // Translation and live results can differ between calls
		mcp.WithOpenWorldHintAnnotation(true),    // Calls the completion service and FOFA
	)
}

// Execute executes the fofa_search tool
func (t *SearchTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	logger.Info("Executing fofa_search tool")

	text, err := parseQueryArg(args, "describe the assets to find, e.g. 'nginx servers in the US'")
	if err != nil {
		return nil, err
	}
	size, err := parseSizeArg(args)
	if err != nil {
		return nil, err
	}

	result := t.runner.Run(ctx, text, size)

	logger.WithFields(logrus.Fields{
		"success": result.Success,
		"query":   result.Query,
		"records": len(result.Records),
	}).Info("fofa_search finished")

	return newProcessResult(result)
}

// ProvideExtendedInfo provides detailed usage information for the fofa_search tool
func (t *SearchTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		Examples: []tools.ToolExample{
			{
				Description:    "Find nginx servers in the United States",
				Arguments:      map[string]any{"query": "find nginx servers in the US"},
				ExpectedResult: `Generated query app="nginx" && country="US" with up to 50 matching assets`,
			},
			{
				Description:    "Small sample of expired certificates for a domain",
				Arguments:      map[string]any{"query": "hosts with an expired certificate for example.com", "size": 10},
				ExpectedResult: `Generated query cert.domain="example.com" && cert.is_expired="true" with up to 10 assets`,
			},
		},
		CommonPatterns: []string{
			"Name products, ports, countries and certificate details explicitly; vague requests are refused",
			"Check the returned query before relying on the results",
			"Use fofa_translate to preview the query without spending FOFA quota",
		},
		Troubleshooting: []tools.TroubleshootingTip{
			{
				Problem:  "could not build a FOFA query",
				Solution: "The request was too vague or asked for something FOFA cannot express, such as numeric port ranges. Rephrase it using concrete values.",
			},
			{
				Problem:  "FOFA authentication failed (HTTP 401)",
				Solution: "Check FOFA_EMAIL and FOFA_KEY in the server environment.",
			},
			{
				Problem:  "FOFA denied the request (HTTP 403)",
				Solution: "The account has used its quota or lacks access to the requested fields. Reduce size or wait for the quota to reset.",
			},
		},
		WhenToUse:    "Finding internet-facing assets from a plain-language description.",
		WhenNotToUse: "When you already have a FOFA query; use fofa_query to avoid the translation step.",
	}
}
