package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/sammcj/mcp-fofa/internal/registry"
	"github.com/sirupsen/logrus"
	ucli "github.com/urfave/cli/v3"
)

const (
	bearerPrefix    = "Bearer "
	shutdownTimeout = 30 * time.Second
)

// serveMCP registers every enabled tool on a new MCP server and serves it over transport
func serveMCP(ctx context.Context, cmd *ucli.Command, transport string, logger *logrus.Logger) error {
	mcpSrv := newMCPServer(transport, logger)

	port := cmd.String("port")
	logger.WithField("transport", transport).Debug("Starting server")
	switch transport {
	case "stdio":
		return mcpserver.ServeStdio(mcpSrv)
	case "sse":
		logger.WithField("port", port).Debug("Starting SSE server")
		sseServer := mcpserver.NewSSEServer(mcpSrv, mcpserver.WithBaseURL(cmd.String("base-url")+"/sse"))
		return sseServer.Start(":" + port)
	case "http":
		return startStreamableHTTPServer(ctx, cmd, mcpSrv, logger)
	default:
		return fmt.Errorf("unsupported transport: %s", transport)
	}
}

func newMCPServer(transport string, logger *logrus.Logger) *mcpserver.MCPServer {
	mcpSrv := mcpserver.NewMCPServer(appName, Version)

	enabledTools := registry.GetEnabledTools()
	logger.WithField("tool_count", len(enabledTools)).Debug("MCP server created, registering tools")

	for name, tool := range enabledTools {
		if transport != "stdio" {
			logger.Infof("Registering tool: %s", name)
		}

		mcpSrv.AddTool(tool.Definition(), func(toolCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			currentTool, ok := registry.GetTool(name)
			if !ok {
				return nil, fmt.Errorf("tool not found: %s", name)
			}

			args, ok := request.Params.Arguments.(map[string]any)
			if !ok {
				if request.Params.Arguments != nil {
					return nil, fmt.Errorf("invalid arguments type: expected map[string]any, got %T", request.Params.Arguments)
				}
				args = map[string]any{}
			}

			result, err := currentTool.Execute(toolCtx, registry.GetLogger(), args)
			if err != nil {
				logger.WithError(err).Errorf("Tool execution failed: %s", name)
				return nil, fmt.Errorf("tool execution failed: %w", err)
			}
			return result, nil
		})
	}

	return mcpSrv
}

// startStreamableHTTPServer serves the Streamable HTTP transport until ctx is cancelled
func startStreamableHTTPServer(ctx context.Context, cmd *ucli.Command, mcpServer *mcpserver.MCPServer, logger *logrus.Logger) error {
	port := cmd.String("port")
	authToken := cmd.String("auth-token")
	endpointPath := cmd.String("endpoint-path")
	sessionTimeout := cmd.Duration("session-timeout")

	logger.Infof("Starting Streamable HTTP server on port %s with endpoint %s", port, endpointPath)

	opts := []mcpserver.StreamableHTTPOption{
		mcpserver.WithEndpointPath(endpointPath),
		mcpserver.WithHTTPContextFunc(protocolHeaders(logger)),
		mcpserver.WithLogger(&logrusAdapter{logger: logger}),
	}

	heartbeatInterval := 30 * time.Second
	if sessionTimeout > 0 {
		opts = append(opts, mcpserver.WithSessionIdManager(NewTimeoutSessionManager(sessionTimeout, logger)))
		heartbeatInterval = sessionTimeout / 4
	}
	opts = append(opts, mcpserver.WithHeartbeatInterval(heartbeatInterval))

	var handler http.Handler = mcpserver.NewStreamableHTTPServer(mcpServer, opts...)
	handler = checkOrigin(handler, logger)
	if authToken != "" {
		handler = requireBearer(handler, authToken, logger)
		logger.Info("Bearer token authentication enabled")
	}

	mux := http.NewServeMux()
	mux.Handle(endpointPath, handler)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case serverErr <- err:
			case <-ctx.Done():
			}
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
		return err
	}

	logger.Info("HTTP server stopped gracefully")
	return nil
}

// requireBearer rejects requests that do not carry the expected bearer token
func requireBearer(next http.Handler, expectedToken string, logger *logrus.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			logger.Warn("Request missing bearer token")
			w.Header().Set("WWW-Authenticate", `Bearer realm="mcp-fofa"`)
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}

		token := strings.TrimPrefix(authHeader, bearerPrefix)
		if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			logger.Warn("Invalid authentication token")
			w.Header().Set("WWW-Authenticate", `Bearer realm="mcp-fofa", error="invalid_token"`)
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// checkOrigin refuses browser requests from non-local origins (DNS rebinding protection)
func checkOrigin(next http.Handler, logger *logrus.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && !isValidOrigin(origin) {
			logger.Warnf("Invalid Origin header: %s", origin)
			http.Error(w, "forbidden origin", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// protocolHeaders logs the negotiated MCP protocol version for each request
func protocolHeaders(logger *logrus.Logger) mcpserver.HTTPContextFunc {
	return func(ctx context.Context, req *http.Request) context.Context {
		protocolVersion := req.Header.Get("MCP-Protocol-Version")
		switch {
		case protocolVersion == "":
			logger.Debug("No MCP-Protocol-Version header, assuming 2025-06-18")
		case !isValidProtocolVersion(protocolVersion):
			logger.Warnf("Unsupported MCP Protocol Version: %s", protocolVersion)
		default:
			logger.Debugf("MCP Protocol Version: %s", protocolVersion)
		}
		return ctx
	}
}

// isValidProtocolVersion checks if the MCP protocol version is supported
func isValidProtocolVersion(version string) bool {
	supportedVersions := []string{
		"2025-06-18",
		"2025-03-26",
		"2024-11-05",
	}
	return slices.Contains(supportedVersions, version)
}

// isValidOrigin allows loopback origins only
func isValidOrigin(origin string) bool {
	allowedOrigins := []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	}

	for _, allowed := range allowedOrigins {
		if origin == allowed || strings.HasPrefix(origin, allowed+":") {
			return true
		}
	}
	return false
}

// TimeoutSessionManager implements mcp-go's SessionIdManager, expiring sessions that
// have been idle for longer than timeout.
type TimeoutSessionManager struct {
	timeout time.Duration
	logger  *logrus.Logger
	now     func() time.Time

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

// NewTimeoutSessionManager creates a session manager with the given idle timeout
func NewTimeoutSessionManager(timeout time.Duration, logger *logrus.Logger) *TimeoutSessionManager {
	return &TimeoutSessionManager{
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
		lastSeen: make(map[string]time.Time),
	}
}

func (t *TimeoutSessionManager) Generate() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for id, seen := range t.lastSeen {
		if now.Sub(seen) > t.timeout {
			delete(t.lastSeen, id)
		}
	}

	sessionID := uuid.NewString()
	t.lastSeen[sessionID] = now
	return sessionID
}

// Validate reports whether sessionID has expired; unknown IDs are an error
func (t *TimeoutSessionManager) Validate(sessionID string) (isTerminated bool, err error) {
	if sessionID == "" {
		return false, errors.New("empty session ID")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	seen, ok := t.lastSeen[sessionID]
	if !ok {
		return false, fmt.Errorf("unknown session ID: %s", sessionID)
	}

	now := t.now()
	if now.Sub(seen) > t.timeout {
		delete(t.lastSeen, sessionID)
		t.logger.Debugf("Session expired: %s", sessionID)
		return true, nil
	}

	t.lastSeen[sessionID] = now
	return false, nil
}

func (t *TimeoutSessionManager) Terminate(sessionID string) (isNotAllowed bool, err error) {
	t.mu.Lock()
	delete(t.lastSeen, sessionID)
	t.mu.Unlock()

	t.logger.Debugf("Session terminated: %s", sessionID)
	return false, nil
}

// logrusAdapter adapts logrus.Logger to the mcp-go util.Logger interface
type logrusAdapter struct {
	logger *logrus.Logger
}

func (l *logrusAdapter) Infof(format string, args ...any) {
	l.logger.Infof(format, args...)
}

func (l *logrusAdapter) Errorf(format string, args ...any) {
	l.logger.Errorf(format, args...)
}
