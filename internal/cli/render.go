package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/sammcj/mcp-fofa/internal/pipeline"
	"github.com/sammcj/mcp-fofa/internal/search"
	"gopkg.in/yaml.v3"
)

const (
	maxTitleWidth = 40
	maxHostWidth  = 60
	columnGap     = "  "
	ellipsis      = "…"
)

var (
	labelColour   = color.New(color.Bold)
	headerColour  = color.New(color.FgCyan, color.Bold)
	successColour = color.New(color.FgGreen)
	mutedColour   = color.New(color.Faint)
)

// report is what json and yaml output serialise: the result plus optional statistics
type report struct {
	pipeline.ProcessResult `yaml:",inline"`
	Stats                  *Stats `json:"stats,omitempty" yaml:"stats,omitempty"`
}

// render writes result in the configured format and returns ErrUnsuccessful on failure
func (r *Runner) render(result pipeline.ProcessResult) error {
	var stats *Stats
	if r.opts.Stats && result.Success {
		stats = &Stats{
			Ports:    PortHistogram(result.Records, r.opts.Top),
			Segments: SegmentHistogram(result.Records, r.opts.Top),
		}
	}

	var err error
	switch r.opts.Output {
	case OutputJSON:
		err = writeJSON(r.out, report{ProcessResult: result, Stats: stats})
	case OutputYAML:
		err = writeYAML(r.out, report{ProcessResult: result, Stats: stats})
	default:
		err = r.renderText(result, stats)
	}
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	return resultError(result)
}

func (r *Runner) renderText(result pipeline.ProcessResult, stats *Stats) error {
	if !result.Success {
		// The failure itself is reported by the caller; show what was attempted
		if result.Query != "" {
			writeSummary(r.out, result)
		}
		return nil
	}

	writeSummary(r.out, result)
	_, _ = labelColour.Fprint(r.out, "Results:     ")
	_, _ = successColour.Fprintf(r.out, "%d shown", len(result.Records))
	if result.Total > 0 {
		_, _ = fmt.Fprintf(r.out, ", %d total", result.Total)
	}
	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintln(r.out)

	if len(result.Records) == 0 {
		_, _ = mutedColour.Fprintln(r.out, "No assets matched the query.")
		return nil
	}

	writeRecordTable(r.out, result.Records)

	if stats != nil {
		_, _ = fmt.Fprintln(r.out)
		writeHistogram(r.out, "PORT", stats.Ports)
		_, _ = fmt.Fprintln(r.out)
		writeHistogram(r.out, "SEGMENT", stats.Segments)
	}
	return nil
}

// writeSummary prints the query and explanation lines
func writeSummary(w io.Writer, result pipeline.ProcessResult) {
	_, _ = labelColour.Fprint(w, "Query:       ")
	_, _ = fmt.Fprintln(w, result.Query)
	if result.Explanation != "" {
		_, _ = labelColour.Fprint(w, "Explanation: ")
		_, _ = fmt.Fprintln(w, result.Explanation)
	}
}

// writeRecordTable prints records as aligned columns. Widths are measured in terminal
// cells so CJK titles line up.
func writeRecordTable(w io.Writer, records []search.AssetRecord) {
	headers := []string{"IP", "PORT", "TITLE", "HOST"}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.IP,
			rec.Port,
			runewidth.Truncate(cleanCell(rec.Title), maxTitleWidth, ellipsis),
			runewidth.Truncate(cleanCell(rec.Host), maxHostWidth, ellipsis),
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	_, _ = headerColour.Fprintln(w, formatRow(headers, widths))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, formatRow(row, widths))
	}
}

func formatRow(cells []string, widths []int) string {
	var b strings.Builder
	for i, cell := range cells {
		if i == len(cells)-1 {
			b.WriteString(cell)
			break
		}
		b.WriteString(runewidth.FillRight(cell, widths[i]))
		b.WriteString(columnGap)
	}
	return strings.TrimRight(b.String(), " ")
}

// cleanCell collapses whitespace so a value stays on one line
func cleanCell(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func writeHistogram(w io.Writer, label string, buckets []Bucket) {
	if len(buckets) == 0 {
		return
	}

	rows := make([][]string, 0, len(buckets))
	widths := []int{runewidth.StringWidth(label), len("COUNT")}
	for _, b := range buckets {
		row := []string{b.Key, fmt.Sprintf("%d", b.Count)}
		widths[0] = max(widths[0], runewidth.StringWidth(row[0]))
		widths[1] = max(widths[1], len(row[1]))
		rows = append(rows, row)
	}

	_, _ = headerColour.Fprintln(w, formatRow([]string{label, "COUNT"}, widths))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, formatRow(row, widths))
	}
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
