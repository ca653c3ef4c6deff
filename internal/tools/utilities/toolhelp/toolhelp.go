package toolhelp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sammcj/mcp-fofa/internal/registry"
	"github.com/sammcj/mcp-fofa/internal/tools"
	"github.com/sammcj/mcp-fofa/internal/translate"
	"github.com/sirupsen/logrus"
)

// grammarTopic is the pseudo tool name that returns the FOFA grammar reference
const grammarTopic = "fofa_grammar"

// ToolHelpTool returns usage examples and troubleshooting for the FOFA tools, and the
// FOFA query grammar itself
type ToolHelpTool struct{}

// ToolHelpResponse is the output of get_tool_help
type ToolHelpResponse struct {
	ToolName     string              `json:"tool_name"`
	Description  string              `json:"description,omitempty"`
	InputSchema  any                 `json:"input_schema,omitempty"`
	ExtendedInfo *tools.ExtendedHelp `json:"extended_info,omitempty"`
	Grammar      string              `json:"grammar,omitempty"`
}

// Register adds get_tool_help to the registry. Call it after the tools it documents.
func Register() {
	registry.Register(&ToolHelpTool{})
}

// Definition returns the tool's definition for MCP registration
func (t *ToolHelpTool) Definition() mcp.Tool {
	topics := append(registry.GetToolNamesWithExtendedHelp(), grammarTopic)

	return mcp.NewTool(
		"get_tool_help",
		mcp.WithDescription("Get detailed usage examples and troubleshooting for the FOFA tools, or the full FOFA query grammar with tool_name="+grammarTopic+"."),
		mcp.WithString("tool_name",
			mcp.Required(),
			mcp.Description("Name of the tool to get help for, or "+grammarTopic),
			mcp.Enum(topics...),
		),
		mcp.WithReadOnlyHintAnnotation(true),     // Only provides help information
		mcp.WithDestructiveHintAnnotation(false), // No destructive operations
		mcp.WithIdempotentHintAnnotation(true),   // Same tool name returns same help information
		mcp.WithOpenWorldHintAnnotation(false),   // Local information only
	)
}

// Execute executes the get_tool_help tool
func (t *ToolHelpTool) Execute(ctx context.Context, logger *logrus.Logger, args map[string]any) (*mcp.CallToolResult, error) {
	toolName, ok := args["tool_name"].(string)
	if !ok || strings.TrimSpace(toolName) == "" {
		return nil, fmt.Errorf("missing or invalid required parameter: tool_name")
	}
	toolName = strings.TrimSpace(toolName)

	if toolName == grammarTopic {
		return newToolResult(&ToolHelpResponse{
			ToolName: grammarTopic,
			Grammar:  translate.GrammarReference,
		})
	}

	tool, exists := registry.GetTool(toolName)
	if !exists {
		return nil, fmt.Errorf("tool '%s' not found or disabled. Tools with extended help: %s", toolName, strings.Join(registry.GetToolNamesWithExtendedHelp(), ", "))
	}

	extendedProvider, ok := tool.(tools.ExtendedHelpProvider)
	if !ok {
		return nil, fmt.Errorf("tool '%s' does not provide extended help. Tools with extended help: %s", toolName, strings.Join(registry.GetToolNamesWithExtendedHelp(), ", "))
	}

	definition := tool.Definition()
	response := &ToolHelpResponse{
		ToolName:     toolName,
		Description:  definition.Description,
		ExtendedInfo: extendedProvider.ProvideExtendedInfo(),
	}
	if definition.InputSchema.Type != "" {
		response.InputSchema = definition.InputSchema
	}

	logger.WithField("tool", toolName).Debug("Returning extended tool help")
	return newToolResult(response)
}

func newToolResult(response *ToolHelpResponse) (*mcp.CallToolResult, error) {
	responseJSON, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}
