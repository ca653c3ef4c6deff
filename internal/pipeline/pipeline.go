// Package pipeline sequences translation and search for one request and turns every
// failure into a ProcessResult.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/sammcj/mcp-fofa/internal/search"
	"github.com/sammcj/mcp-fofa/internal/telemetry"
	"github.com/sammcj/mcp-fofa/internal/translate"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultSize is used when the caller asks for zero or fewer records
	DefaultSize = 50
	// DirectQueryExplanation is the explanation attached to caller-supplied queries
	DirectQueryExplanation = "direct query"

	modeNatural   = "natural"
	modeDirect    = "direct"
	modeTranslate = "translate"
)

// Translator turns natural-language text into a FOFA query
type Translator interface {
	Translate(ctx context.Context, userText string) (translate.TranslationResult, error)
}

// Searcher runs a FOFA query
type Searcher interface {
	SearchPage(ctx context.Context, q string, size, page int) (*search.SearchResult, error)
}

// ProcessResult is the outcome of one invocation. Error is set exactly when Success is false.
type ProcessResult struct {
	Success     bool                 `json:"success" yaml:"success"`
	Records     []search.AssetRecord `json:"records,omitempty" yaml:"records,omitempty"`
	Query       string               `json:"query,omitempty" yaml:"query,omitempty"`
	Explanation string               `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	Error       string               `json:"error,omitempty" yaml:"error,omitempty"`
	Total       int                  `json:"total,omitempty" yaml:"total,omitempty"`
}

func failure(format string, args ...any) ProcessResult {
	return ProcessResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Coordinator runs the translate-then-search pipeline
type Coordinator struct {
	translator Translator
	searcher   Searcher
	logger     *logrus.Logger
}

// New creates a Coordinator. logger may be nil.
func New(translator Translator, searcher Searcher, logger *logrus.Logger) *Coordinator {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Coordinator{
		translator: translator,
		searcher:   searcher,
		logger:     logger,
	}
}

// Run translates userText and, if a query comes back, searches it
func (c *Coordinator) Run(ctx context.Context, userText string, size int) ProcessResult {
	ctx, logger := c.begin(ctx, modeNatural)

	if strings.TrimSpace(userText) == "" {
		return failure("no search request given: describe the assets to find")
	}

	translation, err := c.translate(ctx, logger, userText)
	if err != nil {
		return failure("%v", err)
	}
	if !translation.HasQuery() {
		logger.WithField("explanation", translation.Explanation).Info("No query produced, skipping search")
		return failure(`could not build a FOFA query for "%s": %s`, userText, translation.Explanation)
	}

	return c.search(ctx, logger, translation.QueryString(), translation.Explanation, size)
}

// RunDirect searches a caller-supplied FOFA query without translating it
func (c *Coordinator) RunDirect(ctx context.Context, q string, size int) ProcessResult {
	ctx, logger := c.begin(ctx, modeDirect)
	return c.search(ctx, logger, strings.TrimSpace(q), DirectQueryExplanation, size)
}

// Translate converts userText into a FOFA query without searching it
func (c *Coordinator) Translate(ctx context.Context, userText string) ProcessResult {
	ctx, logger := c.begin(ctx, modeTranslate)

	if strings.TrimSpace(userText) == "" {
		return failure("no search request given: describe the assets to find")
	}

	translation, err := c.translate(ctx, logger, userText)
	if err != nil {
		return failure("%v", err)
	}
	if !translation.HasQuery() {
		return failure(`could not build a FOFA query for "%s": %s`, userText, translation.Explanation)
	}

	return ProcessResult{
		Success:     true,
		Query:       translation.QueryString(),
		Explanation: translation.Explanation,
	}
}

// begin tags the invocation with an ID for logs and spans
func (c *Coordinator) begin(ctx context.Context, mode string) (context.Context, *logrus.Entry) {
	id := uuid.NewString()
	logger := c.logger.WithFields(logrus.Fields{
		"invocation_id": id,
		"mode":          mode,
	})
	logger.Debug("Starting invocation")

	ctx = context.WithValue(ctx, invocationKey{}, id)
	return ctx, logger
}

type invocationKey struct{}

// InvocationID returns the ID assigned to the invocation running in ctx, or ""
func InvocationID(ctx context.Context) string {
	id, _ := ctx.Value(invocationKey{}).(string)
	return id
}

func (c *Coordinator) translate(ctx context.Context, logger *logrus.Entry, userText string) (translate.TranslationResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "pipeline.translate",
		attribute.String(telemetry.AttrInvocationID, InvocationID(ctx)),
	)
	result, err := c.translator.Translate(ctx, userText)
	telemetry.EndSpan(span, err)

	if err != nil {
		logger.WithError(err).Warn("Translation failed")
		return translate.TranslationResult{}, err
	}

	logger.WithFields(logrus.Fields{
		"query":  result.QueryString(),
		"method": result.Method,
	}).Debug("Translation complete")
	return result, nil
}

func (c *Coordinator) search(ctx context.Context, logger *logrus.Entry, q, explanation string, size int) ProcessResult {
	if size <= 0 {
		size = DefaultSize
	}

	ctx, span := telemetry.StartSpan(ctx, "pipeline.search",
		attribute.String(telemetry.AttrInvocationID, InvocationID(ctx)),
		attribute.String(telemetry.AttrQuery, q),
	)
	result, err := c.searcher.SearchPage(ctx, q, size, 1)
	telemetry.EndSpan(span, err)

	if err != nil {
		logger.WithError(err).WithField("query", q).Warn("Search failed")
		return ProcessResult{
			Success:     false,
			Query:       q,
			Explanation: explanation,
			Error:       err.Error(),
		}
	}

	logger.WithFields(logrus.Fields{
		"query":   q,
		"records": len(result.Records),
		"total":   result.Total,
	}).Info("Search complete")

	return ProcessResult{
		Success:     true,
		Records:     result.Records,
		Query:       q,
		Explanation: explanation,
		Total:       result.Total,
	}
}
