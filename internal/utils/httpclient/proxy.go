// Package httpclient builds the HTTP clients used for the completion service and FOFA.
package httpclient

import (
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/sammcj/mcp-fofa/internal/telemetry"
	"github.com/sirupsen/logrus"
)

// ProxyEnvironmentVariables lists the proxy variables in order of preference,
// following the conventions of curl and wget
var ProxyEnvironmentVariables = []string{
	"HTTPS_PROXY",
	"https_proxy",
	"HTTP_PROXY",
	"http_proxy",
}

// New creates an HTTP client with the given overall timeout. A proxy is configured only
// when one of ProxyEnvironmentVariables is set, and the transport is instrumented when
// tracing is enabled. logger may be nil.
func New(timeout time.Duration, logger *logrus.Logger) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL := getProxyURL(); proxyURL != "" {
		if parsedProxy, err := url.Parse(proxyURL); err == nil {
			proxy := http.ProxyURL(parsedProxy)
			transport.Proxy = func(req *http.Request) (*url.URL, error) {
				if isLoopback(req.URL.Hostname()) {
					return nil, nil
				}
				return proxy(req)
			}
			if logger != nil {
				logger.WithField("proxy_url", redactProxyCredentials(proxyURL)).Debug("HTTP client configured with proxy")
			}
		} else if logger != nil {
			logger.WithError(err).WithField("proxy_url", redactProxyCredentials(proxyURL)).Warn("Failed to parse proxy URL, using direct connection")
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: telemetry.WrapHTTPTransport(transport),
	}
}

// getProxyURL returns the first proxy URL found in the environment, or ""
func getProxyURL() string {
	for _, envVar := range ProxyEnvironmentVariables {
		if proxyURL := os.Getenv(envVar); proxyURL != "" {
			// Skip placeholder values that some tools use
			if proxyURL != "$HTTPS_PROXY" && proxyURL != "$HTTP_PROXY" {
				return proxyURL
			}
		}
	}
	return ""
}

// redactProxyCredentials removes credentials from a proxy URL for safe logging
func redactProxyCredentials(proxyURL string) string {
	if parsed, err := url.Parse(proxyURL); err == nil {
		if parsed.User != nil {
			parsed.User = url.UserPassword("***", "***")
		}
		return parsed.String()
	}
	return "[invalid-url]"
}

// isLoopback reports whether host is localhost or a loopback address
func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
