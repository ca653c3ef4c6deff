package translate

import (
	"bufio"
	"encoding/json"
	"regexp"
	"strings"
)

var (
	// Opening fence, optionally tagged json, and the closing fence
	fenceOpenRe  = regexp.MustCompile("(?i)^```[ \\t]*(?:json)?[ \\t]*\\r?\\n?")
	fenceCloseRe = regexp.MustCompile("\\r?\\n?[ \\t]*```[ \\t]*$")

	// A JSON string literal value: quotes with escaped characters allowed inside
	queryPatternRe       = regexp.MustCompile(`"fofa_query"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	explanationPatternRe = regexp.MustCompile(`"explanation"\s*:\s*"((?:[^"\\]|\\.)*)"`)

	// A quoted literal that starts right after the colon, so null or a later key never matches
	queryLineRe       = regexp.MustCompile(`(?:^|[^\w])"?fofa_query"?\s*:\s*"((?:[^"\\]|\\.)*)"`)
	explanationLineRe = regexp.MustCompile(`(?:^|[^\w])"?explanation"?\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

const (
	keyQuery       = "fofa_query"
	keyExplanation = "explanation"
)

// Extract recovers a query/explanation pair from raw completion text. It tries a strict
// JSON parse first, then a pattern scrape, then a line-by-line scan, and never fails:
// unusable input yields an absent query with ParseFailureExplanation.
func Extract(raw string) TranslationResult {
	cleaned := stripFences(strings.TrimSpace(raw))

	if result, ok := parseStructured(cleaned); ok {
		return result
	}

	if result, ok := scrapePatterns(raw); ok {
		return result
	}

	if result, ok := scanLines(raw); ok {
		return result
	}

	return TranslationResult{
		Explanation: ParseFailureExplanation,
		Method:      MethodNone,
	}
}

// stripFences removes a surrounding Markdown code fence when text starts with one
func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = fenceOpenRe.ReplaceAllString(text, "")
	text = fenceCloseRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// parseStructured decodes text as an object with exactly the fofa_query and explanation
// keys. Prose around the object is tolerated by retrying on the outermost braces.
func parseStructured(text string) (TranslationResult, bool) {
	if result, ok := decodeObject(text); ok {
		return result, true
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start && (start > 0 || end < len(text)-1) {
		return decodeObject(text[start : end+1])
	}
	return TranslationResult{}, false
}

func decodeObject(text string) (TranslationResult, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return TranslationResult{}, false
	}

	if len(fields) != 2 {
		return TranslationResult{}, false
	}
	rawQuery, hasQuery := fields[keyQuery]
	rawExplanation, hasExplanation := fields[keyExplanation]
	if !hasQuery || !hasExplanation {
		return TranslationResult{}, false
	}

	var q *string
	if err := json.Unmarshal(rawQuery, &q); err != nil {
		return TranslationResult{}, false
	}

	var explanation string
	if string(rawExplanation) != "null" {
		if err := json.Unmarshal(rawExplanation, &explanation); err != nil {
			return TranslationResult{}, false
		}
	}

	return TranslationResult{
		Query:       normaliseQuery(q),
		Explanation: explanation,
		Method:      MethodStructured,
	}, true
}

// scrapePatterns looks for quoted "key": "value" pairs anywhere in the text and only
// succeeds when both values are found
func scrapePatterns(text string) (TranslationResult, bool) {
	qm := queryPatternRe.FindStringSubmatch(text)
	em := explanationPatternRe.FindStringSubmatch(text)
	if qm == nil || em == nil {
		return TranslationResult{}, false
	}

	q := unescapeJSONString(qm[1])
	result := TranslationResult{
		Query:       normaliseQuery(&q),
		Explanation: unescapeJSONString(em[1]),
		Method:      MethodPattern,
	}
	if result.Query == nil {
		return TranslationResult{}, false
	}
	return result, true
}

// scanLines walks the text line by line. A line naming a key followed by a colon yields
// the quoted value directly after the colon; the last match for each key wins.
func scanLines(text string) (TranslationResult, bool) {
	var q *string
	var explanation string

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if value, ok := lineValue(line, queryLineRe); ok {
			if nq := normaliseQuery(&value); nq != nil {
				q = nq
			}
		}
		if value, ok := lineValue(line, explanationLineRe); ok {
			explanation = value
		}
	}
	// A scanner error only means a line was too long; whatever was seen so far still counts

	if q == nil {
		return TranslationResult{}, false
	}
	return TranslationResult{
		Query:       q,
		Explanation: explanation,
		Method:      MethodLine,
	}, true
}

func lineValue(line string, re *regexp.Regexp) (string, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return unescapeJSONString(m[1]), true
}

// unescapeJSONString decodes JSON escapes in s, returning s unchanged if it is not a
// valid JSON string body
func unescapeJSONString(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}
	return out
}

// normaliseQuery trims q and maps blank queries to absent
func normaliseQuery(q *string) *string {
	if q == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*q)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
