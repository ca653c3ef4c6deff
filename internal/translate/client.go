package translate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sammcj/mcp-fofa/internal/config"
	"github.com/sammcj/mcp-fofa/internal/telemetry"
	"github.com/sammcj/mcp-fofa/internal/utils/httpclient"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultTimeout bounds one completion call end to end
	DefaultTimeout = 300 * time.Second

	maxResponseBodySize = 10 * 1024 * 1024
	errorBodyPreview    = 512
)

// Client turns natural-language requests into FOFA queries via a chat completion service
type Client struct {
	apiKey     string
	apiURL     string
	model      string
	provider   ProviderKind
	httpClient *http.Client
	timeout    time.Duration
	logger     *logrus.Logger
}

// Option customises a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for completion calls
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout overrides DefaultTimeout
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		client.timeout = d
	}
}

// NewClient creates a translation client from the completion settings in cfg
func NewClient(cfg config.Config, logger *logrus.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	c := &Client{
		apiKey:   cfg.CompletionAPIKey,
		apiURL:   cfg.CompletionAPIURL,
		model:    cfg.CompletionModel,
		provider: DetectProvider(cfg.CompletionAPIURL),
		timeout:  DefaultTimeout,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = httpclient.New(c.timeout, logger)
	}
	return c
}

// Provider returns the provider family the client was configured for
func (c *Client) Provider() ProviderKind {
	return c.provider
}

// Translate sends userText to the completion service and extracts a query from the reply.
// A declined or unparseable reply is not an error: it comes back as a result with an
// absent query. Transport, status and envelope failures wrap ErrTranslationFailed.
func (c *Client) Translate(ctx context.Context, userText string) (TranslationResult, error) {
	text, err := c.complete(ctx, BuildPrompt(userText))
	if err != nil {
		return TranslationResult{}, err
	}

	result := Extract(text)
	c.logger.WithFields(logrus.Fields{
		"method":    result.Method,
		"has_query": result.HasQuery(),
	}).Debug("Extracted translation from completion")

	return result, nil
}

// complete performs one completion call and returns the model's raw text
func (c *Client) complete(ctx context.Context, prompt string) (text string, err error) {
	ctx, span := telemetry.StartSpan(ctx, "translate.complete",
		attribute.String(telemetry.AttrProvider, c.provider.String()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	body, err := buildRequestBody(c.provider, c.model, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranslationFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %w", ErrTranslationFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.WithFields(logrus.Fields{
		"url":      telemetry.SanitiseURL(c.apiURL),
		"model":    c.model,
		"provider": c.provider.String(),
	}).Debug("Sending completion request")

	return c.do(req)
}

func (c *Client) do(req *http.Request) (string, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: completion request timed out after %s: %w", ErrTranslationFailed, c.timeout, err)
		}
		return "", fmt.Errorf("%w: completion request failed: %w", ErrTranslationFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %w", ErrTranslationFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		preview := telemetry.TruncateString(strings.TrimSpace(string(respBody)), errorBodyPreview)
		c.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"body":        preview,
		}).Debug("Completion service returned an error status")
		return "", fmt.Errorf("%w: completion service returned status %d: %s", ErrTranslationFailed, resp.StatusCode, preview)
	}

	text, kind, err := extractEnvelopeText(respBody)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranslationFailed, err)
	}

	c.logger.WithFields(logrus.Fields{
		"envelope": kind.String(),
		"length":   len(text),
	}).Debug("Received completion")

	return text, nil
}
