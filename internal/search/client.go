package search

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sammcj/mcp-fofa/internal/config"
	"github.com/sammcj/mcp-fofa/internal/query"
	"github.com/sammcj/mcp-fofa/internal/telemetry"
	"github.com/sammcj/mcp-fofa/internal/utils/httpclient"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds one FOFA request
	DefaultTimeout = 30 * time.Second
	// DefaultSize is the number of records requested when the caller gives none
	DefaultSize = 50

	// UserAgent for FOFA requests
	UserAgent = "mcp-fofa/1.0"

	maxResponseBodySize = 20 * 1024 * 1024
	errorBodyPreview    = 256
)

// HTTPClientInterface defines the interface for HTTP clients
type HTTPClientInterface interface {
	Do(req *http.Request) (*http.Response, error)
}

// RateLimitedHTTPClient paces requests through a token bucket before sending them
type RateLimitedHTTPClient struct {
	client  HTTPClientInterface
	limiter *rate.Limiter
}

// NewRateLimitedHTTPClient wraps client with a limiter of rps requests per second, burst 1
func NewRateLimitedHTTPClient(client HTTPClientInterface, rps float64) *RateLimitedHTTPClient {
	if rps <= 0 {
		rps = config.DefaultFOFARateLimit
	}
	return &RateLimitedHTTPClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Do waits for the limiter and then sends the request
func (c *RateLimitedHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}
	return c.client.Do(req)
}

// Client executes FOFA queries
type Client struct {
	email      string
	apiKey     string
	baseURL    string
	rateLimit  float64
	timeout    time.Duration
	httpClient HTTPClientInterface
	logger     *logrus.Logger
}

// Option customises a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Rate limiting still applies.
func WithHTTPClient(c HTTPClientInterface) Option {
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

// WithRateLimit overrides the configured requests per second
func WithRateLimit(rps float64) Option {
	return func(client *Client) {
		client.rateLimit = rps
	}
}

// NewClient creates a FOFA client from the search settings in cfg
func NewClient(cfg config.Config, logger *logrus.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	c := &Client{
		email:     cfg.SearchEmail,
		apiKey:    cfg.SearchAPIKey,
		baseURL:   cfg.SearchAPIURL,
		rateLimit: cfg.SearchRateLimit,
		timeout:   DefaultTimeout,
		logger:    logger,
	}
	if c.baseURL == "" {
		c.baseURL = config.DefaultFOFAAPIURL
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = httpclient.New(c.timeout, logger)
	}
	c.httpClient = NewRateLimitedHTTPClient(c.httpClient, c.rateLimit)
	return c
}

// Search runs q and returns the normalised records of the requested page
func (c *Client) Search(ctx context.Context, q string, size, page int) ([]AssetRecord, error) {
	result, err := c.SearchPage(ctx, q, size, page)
	if err != nil {
		return nil, err
	}
	return result.Records, nil
}

// SearchPage runs q and returns the records of the requested page with FOFA's metadata.
// Malformed queries are rejected before any request is made. Every error is an *Error.
func (c *Client) SearchPage(ctx context.Context, q string, size, page int) (*SearchResult, error) {
	if err := query.Check(q); err != nil {
		return nil, newInvalidQueryError(q, err)
	}
	if size <= 0 {
		size = DefaultSize
	}
	if page < 1 {
		page = 1
	}

	reqURL, err := c.buildURL(q, size, page)
	if err != nil {
		return nil, &Error{Kind: ErrSearchFailed, Query: q, Message: "failed to build FOFA request URL", Err: err}
	}

	ctx, span := telemetry.StartSpan(ctx, "search.request",
		attribute.String(telemetry.AttrQuery, q),
	)
	result, err := c.do(ctx, q, reqURL)
	if err == nil {
		span.SetAttributes(attribute.Int(telemetry.AttrResultCount, len(result.Records)))
	}
	telemetry.EndSpan(span, err)

	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) buildURL(q string, size, page int) (string, error) {
	reqURL, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}

	params := reqURL.Query()
	params.Set("email", c.email)
	params.Set("key", c.apiKey)
	params.Set("qbase64", base64.StdEncoding.EncodeToString([]byte(q)))
	params.Set("fields", Fields)
	params.Set("size", strconv.Itoa(size))
	params.Set("page", strconv.Itoa(page))
	reqURL.RawQuery = params.Encode()

	return reqURL.String(), nil
}

func (c *Client) do(ctx context.Context, q, reqURL string) (*SearchResult, error) {
	c.logger.WithFields(logrus.Fields{
		"url":   telemetry.SanitiseURL(reqURL),
		"query": q,
	}).Debug("Making FOFA search request")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &Error{Kind: ErrSearchFailed, Query: q, Message: "failed to create FOFA request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classifyTransportError(ctx, q, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.WithError(closeErr).Warn("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, c.classifyTransportError(ctx, q, err)
	}

	if resp.StatusCode != http.StatusOK {
		preview := telemetry.TruncateString(strings.TrimSpace(string(body)), errorBodyPreview)
		c.logger.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"status":      resp.Status,
		}).Warn("FOFA search request failed")
		return nil, newStatusError(q, resp.StatusCode, preview)
	}

	var payload apiResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &Error{Kind: ErrSearchFailed, Query: q, StatusCode: resp.StatusCode, Message: "failed to parse FOFA response", Err: err}
	}

	if payload.Error {
		msg := strings.TrimSpace(payload.ErrMsg)
		if msg == "" {
			msg = "unknown error"
		}
		c.logger.WithField("errmsg", msg).Warn("FOFA reported an error")
		return nil, &Error{
			Kind:       ErrSearchAPI,
			Query:      q,
			StatusCode: resp.StatusCode,
			Message:    "FOFA API error: " + msg,
		}
	}

	result := &SearchResult{
		Records:        normaliseRows(payload.Results),
		Total:          payload.Size,
		Page:           payload.Page,
		Mode:           payload.Mode,
		Query:          payload.Query,
		ConsumedFpoint: payload.ConsumedFpoint,
	}

	c.logger.WithFields(logrus.Fields{
		"records": len(result.Records),
		"total":   result.Total,
		"fpoint":  result.ConsumedFpoint,
	}).Debug("FOFA search request successful")

	return result, nil
}

// classifyTransportError maps a failed round trip onto ErrRequestTimedOut or ErrSearchFailed
func (c *Client) classifyTransportError(ctx context.Context, q string, err error) *Error {
	if isTimeout(ctx, err) {
		c.logger.WithError(err).Warn("FOFA search request timed out")
		return &Error{
			Kind:    ErrRequestTimedOut,
			Query:   q,
			Message: fmt.Sprintf("FOFA request timed out (limit %s)", c.timeout),
			Err:     err,
		}
	}

	c.logger.WithError(err).Warn("FOFA search request failed")
	return &Error{
		Kind:    ErrSearchFailed,
		Query:   q,
		Message: "FOFA search request failed",
		Err:     err,
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
