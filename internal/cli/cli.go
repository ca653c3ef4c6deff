// Package cli renders pipeline results and tool metadata for the mcp-fofa command line,
// running the pipeline in-process with no MCP server involved.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/sammcj/mcp-fofa/internal/pipeline"
	"github.com/sammcj/mcp-fofa/internal/registry"
	"github.com/sirupsen/logrus"
)

// OutputFormat controls how results are rendered.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

// DefaultTop is the number of histogram rows shown by default
const DefaultTop = 10

// ErrUnsuccessful is returned when the pipeline reports a failure. The failure has
// already been rendered to the output.
var ErrUnsuccessful = errors.New("request failed")

// ParseOutputFormat validates a user-supplied output format
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON, OutputYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use text, json or yaml)", s)
	}
}

// Pipeline is the part of the coordinator the CLI drives
type Pipeline interface {
	Run(ctx context.Context, userText string, size int) pipeline.ProcessResult
	RunDirect(ctx context.Context, q string, size int) pipeline.ProcessResult
	Translate(ctx context.Context, userText string) pipeline.ProcessResult
}

// Options configure a Runner
type Options struct {
	Output OutputFormat
	Stats  bool
	Top    int
}

// Runner executes CLI commands and writes their results.
type Runner struct {
	logger   *logrus.Logger
	pipeline Pipeline
	out      io.Writer
	opts     Options
}

// NewRunner creates a Runner writing to out. pipeline may be nil for commands that only
// inspect the tool registry.
func NewRunner(logger *logrus.Logger, p Pipeline, out io.Writer, opts Options) *Runner {
	if opts.Output == "" {
		opts.Output = OutputText
	}
	if opts.Top <= 0 {
		opts.Top = DefaultTop
	}
	return &Runner{logger: logger, pipeline: p, out: out, opts: opts}
}

// Search translates text into a FOFA query and runs it
func (r *Runner) Search(ctx context.Context, text string, size int) error {
	return r.render(r.pipeline.Run(ctx, text, size))
}

// Query runs a FOFA query as given
func (r *Runner) Query(ctx context.Context, q string, size int) error {
	return r.render(r.pipeline.RunDirect(ctx, q, size))
}

// Translate prints the FOFA query for text without running it
func (r *Runner) Translate(ctx context.Context, text string) error {
	result := r.pipeline.Translate(ctx, text)

	switch r.opts.Output {
	case OutputJSON:
		if err := writeJSON(r.out, result); err != nil {
			return err
		}
	case OutputYAML:
		if err := writeYAML(r.out, result); err != nil {
			return err
		}
	default:
		if result.Success {
			writeSummary(r.out, result)
		}
	}
	return resultError(result)
}

// ListTools prints all enabled MCP tools with their descriptions.
func (r *Runner) ListTools() error {
	tools := registry.GetEnabledTools()

	type entry struct {
		Name        string `json:"name" yaml:"name"`
		Description string `json:"description" yaml:"description"`
	}
	entries := make([]entry, 0, len(tools))
	for _, t := range tools {
		def := t.Definition()
		entries = append(entries, entry{Name: def.Name, Description: firstLine(def.Description)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	switch r.opts.Output {
	case OutputJSON:
		return writeJSON(r.out, entries)
	case OutputYAML:
		return writeYAML(r.out, entries)
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", e.Name, e.Description)
	}
	return w.Flush()
}

// HelpTool prints the schema and usage information for a single MCP tool.
func (r *Runner) HelpTool(name string) error {
	tool, ok := registry.GetTool(resolveTool(name))
	if !ok {
		return fmt.Errorf("unknown tool: %s (run 'mcp-fofa tools' to see available tools)", name)
	}

	def := tool.Definition()

	switch r.opts.Output {
	case OutputJSON:
		return writeJSON(r.out, def)
	case OutputYAML:
		return writeYAML(r.out, def)
	}

	_, _ = fmt.Fprintf(r.out, "Tool: %s\n\n", def.Name)
	if def.Description != "" {
		_, _ = fmt.Fprintf(r.out, "%s\n\n", def.Description)
	}

	props := def.InputSchema.Properties
	if len(props) == 0 {
		_, _ = fmt.Fprintln(r.out, "No parameters.")
		return nil
	}

	_, _ = fmt.Fprintln(r.out, "Parameters:")

	names := make([]string, 0, len(props))
	for k := range props {
		names = append(names, k)
	}
	slices.Sort(names)

	required := toSet(def.InputSchema.Required)
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	for _, pName := range names {
		pMap, ok := props[pName].(map[string]any)
		if !ok {
			continue
		}

		pType, _ := pMap["type"].(string)
		pDesc, _ := pMap["description"].(string)

		reqMark := ""
		if required[pName] {
			reqMark = " (required)"
		}

		_, _ = fmt.Fprintf(w, "  %s\t%s\t%s%s%s\n", pName, pType, firstLine(pDesc), reqMark, formatEnum(pMap))
	}
	return w.Flush()
}

// resolveTool accepts kebab-case names for snake_case tools
func resolveTool(name string) string {
	if _, ok := registry.GetTool(name); ok {
		return name
	}
	return strings.ReplaceAll(name, "-", "_")
}

// resultError maps an unsuccessful result onto ErrUnsuccessful
func resultError(result pipeline.ProcessResult) error {
	if result.Success {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsuccessful, result.Error)
}

// --- helpers ---

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstLine(s string) string {
	if before, _, found := strings.Cut(s, "\n"); found {
		return before
	}
	return s
}

func toSet(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

func formatEnum(pMap map[string]any) string {
	var vals []string
	switch enum := pMap["enum"].(type) {
	case []string:
		vals = enum
	case []any:
		for _, v := range enum {
			vals = append(vals, fmt.Sprint(v))
		}
	}
	if len(vals) == 0 {
		return ""
	}
	return " [" + strings.Join(vals, "|") + "]"
}
