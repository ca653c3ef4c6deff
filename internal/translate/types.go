package translate

import "errors"

// ExtractionMethod records which extraction step produced a TranslationResult
type ExtractionMethod string

const (
	// MethodStructured means the response parsed as the expected JSON object
	MethodStructured ExtractionMethod = "structured"
	// MethodPattern means the values were scraped from quoted key/value pairs
	MethodPattern ExtractionMethod = "pattern"
	// MethodLine means the values were recovered by scanning individual lines
	MethodLine ExtractionMethod = "line"
	// MethodNone means nothing usable could be recovered
	MethodNone ExtractionMethod = "none"
)

// ParseFailureExplanation is the explanation attached to results that could not be parsed
const ParseFailureExplanation = "unable to parse response"

// TranslationResult is the outcome of turning a natural-language request into a FOFA query.
// Query is nil when no query could be derived, either because the model declined
// (Method is MethodStructured or a fallback) or because its output was unusable (MethodNone).
type TranslationResult struct {
	Query       *string          `json:"fofa_query"`
	Explanation string           `json:"explanation"`
	Method      ExtractionMethod `json:"-"`
}

// HasQuery reports whether a usable query was produced
func (r TranslationResult) HasQuery() bool {
	return r.Query != nil && *r.Query != ""
}

// QueryString returns the query, or "" when absent
func (r TranslationResult) QueryString() string {
	if r.Query == nil {
		return ""
	}
	return *r.Query
}

var (
	// ErrTranslationFailed wraps every transport, timeout, status or envelope failure
	// while calling the completion service
	ErrTranslationFailed = errors.New("translation failed")
	// ErrUnrecognizedResponseFormat is returned when the completion response matches
	// none of the known envelope shapes
	ErrUnrecognizedResponseFormat = errors.New("unrecognised completion response format")
)
