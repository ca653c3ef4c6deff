package registry

import (
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/sammcj/mcp-fofa/internal/tools"
	"github.com/sirupsen/logrus"
)

// DisabledToolsEnvVar lists comma-separated tool names that must not be exposed
const DisabledToolsEnvVar = "DISABLED_TOOLS"

var (
	mu sync.RWMutex

	// toolRegistry is a map of tool names to tool implementations
	toolRegistry = make(map[string]tools.Tool)

	// disabledTools is a set of tool names to disable
	disabledTools = make(map[string]bool)

	// logger is the shared logger instance
	logger *logrus.Logger
)

// Init initialises the registry and reads DISABLED_TOOLS
func Init(l *logrus.Logger) {
	mu.Lock()
	defer mu.Unlock()

	logger = l
	parseDisabledTools()
}

// parseDisabledTools parses the DISABLED_TOOLS environment variable
func parseDisabledTools() {
	disabledTools = make(map[string]bool)

	disabledEnv := os.Getenv(DisabledToolsEnvVar)
	if disabledEnv == "" {
		return
	}

	for tool := range strings.SplitSeq(disabledEnv, ",") {
		tool = strings.TrimSpace(tool)
		if tool == "" {
			continue
		}
		disabledTools[tool] = true
		if logger != nil {
			logger.WithField("tool", tool).Debug("Tool disabled")
		}
	}
}

// ShouldRegisterTool reports whether a tool is allowed by DISABLED_TOOLS
func ShouldRegisterTool(toolName string) bool {
	mu.RLock()
	defer mu.RUnlock()

	if disabledTools[toolName] {
		if logger != nil {
			logger.WithField("tool", toolName).Debug("Tool disabled via environment variable")
		}
		return false
	}
	return true
}

// Register adds a tool implementation to the registry if it is not disabled
func Register(tool tools.Tool) {
	toolName := tool.Definition().Name

	if !ShouldRegisterTool(toolName) {
		return
	}

	mu.Lock()
	toolRegistry[toolName] = tool
	mu.Unlock()

	if logger != nil {
		logger.WithField("tool", toolName).Debug("Tool successfully registered")
	}
}

// GetTool retrieves a tool by name, returns false if disabled
func GetTool(name string) (tools.Tool, bool) {
	mu.RLock()
	defer mu.RUnlock()

	if disabledTools[name] {
		return nil, false
	}
	tool, ok := toolRegistry[name]
	return tool, ok
}

// GetEnabledTools returns all registered tools, excluding disabled ones
func GetEnabledTools() map[string]tools.Tool {
	mu.RLock()
	defer mu.RUnlock()

	filteredTools := make(map[string]tools.Tool)
	for name, tool := range toolRegistry {
		if disabledTools[name] {
			continue
		}
		filteredTools[name] = tool
	}
	return filteredTools
}

// GetLogger returns the shared logger instance
func GetLogger() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// GetEnabledToolNames returns a sorted list of enabled tool names
func GetEnabledToolNames() []string {
	mu.RLock()
	defer mu.RUnlock()

	var names []string
	for name := range toolRegistry {
		if disabledTools[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetToolNamesWithExtendedHelp returns a sorted list of enabled tool names that provide extended help
func GetToolNamesWithExtendedHelp() []string {
	mu.RLock()
	defer mu.RUnlock()

	var names []string
	for name, tool := range toolRegistry {
		if disabledTools[name] {
			continue
		}
		if _, ok := tool.(tools.ExtendedHelpProvider); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Reset clears every registered tool. Used by tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()

	toolRegistry = make(map[string]tools.Tool)
	disabledTools = make(map[string]bool)
}
