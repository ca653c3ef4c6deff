package telemetry

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// WrapHTTPTransport adds OTEL instrumentation to transport when tracing is enabled,
// keeping its proxy and timeout configuration intact
func WrapHTTPTransport(transport http.RoundTripper) http.RoundTripper {
	if !IsEnabled() {
		return transport
	}
	return otelhttp.NewTransport(transport)
}
