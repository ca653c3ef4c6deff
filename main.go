package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/sammcj/mcp-fofa/internal/cli"
	"github.com/sammcj/mcp-fofa/internal/config"
	"github.com/sammcj/mcp-fofa/internal/pipeline"
	"github.com/sammcj/mcp-fofa/internal/registry"
	"github.com/sammcj/mcp-fofa/internal/search"
	"github.com/sammcj/mcp-fofa/internal/telemetry"
	"github.com/sammcj/mcp-fofa/internal/tools/fofa"
	"github.com/sammcj/mcp-fofa/internal/tools/utilities/toolhelp"
	"github.com/sammcj/mcp-fofa/internal/translate"
	"github.com/sirupsen/logrus"
	ucli "github.com/urfave/cli/v3"
)

// Version information (set during build)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Global resources that need cleanup
var (
	debugLogFile   atomic.Pointer[os.File]
	isStdioMode    atomic.Bool
	tracerShutdown atomic.Pointer[func() error]
)

const (
	appName = "mcp-fofa"

	// DefaultMemoryLimit is the default memory limit for the Go application (1GB)
	DefaultMemoryLimit = 1024 * 1024 * 1024
)

// parseLogLevel parses the LOG_LEVEL environment variable and returns the appropriate logrus level.
// Defaults to WarnLevel if not set or invalid.
func parseLogLevel() logrus.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.WarnLevel
	}
}

// setMemoryLimit configures the Go runtime memory limit
func setMemoryLimit() {
	var memLimit int64 = DefaultMemoryLimit
	if memLimitStr := os.Getenv("MCP_FOFA_MEMORY_LIMIT"); memLimitStr != "" {
		if parsed, err := strconv.ParseInt(memLimitStr, 10, 64); err == nil && parsed > 0 {
			memLimit = parsed
		}
	}
	debug.SetMemoryLimit(memLimit)
}

func main() {
	setMemoryLimit()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Discard output until we know whether stdio owns stdout
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(parseLogLevel())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	registry.Init(logger)

	app := newApp(logger)
	err := app.Run(ctx, os.Args)
	performCleanup(logger)

	if err != nil {
		// Stdio mode has already reported startup failures and logs everything else to file
		if !isStdioMode.Load() {
			_, _ = color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newApp(logger *logrus.Logger) *ucli.Command {
	outputFlags := []ucli.Flag{
		&ucli.IntFlag{
			Name:    "size",
			Aliases: []string{"s"},
			Value:   pipeline.DefaultSize,
			Usage:   fmt.Sprintf("Number of records to fetch (1-%d)", fofa.MaxSize),
		},
		&ucli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Value:   string(cli.OutputText),
			Usage:   "Output format (text, json or yaml)",
		},
		&ucli.BoolFlag{
			Name:  "stats",
			Usage: "Also print port and /24 segment statistics",
		},
		&ucli.IntFlag{
			Name:  "top",
			Value: cli.DefaultTop,
			Usage: "Number of rows in each statistics table",
		},
	}

	return &ucli.Command{
		Name:    appName,
		Usage:   "Search FOFA in plain language, from the command line or as an MCP server",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		Flags: []ucli.Flag{
			&ucli.StringFlag{
				Name:    "transport",
				Aliases: []string{"t"},
				Value:   "stdio",
				Usage:   "Transport type (stdio, sse, or http)",
				Sources: ucli.EnvVars("MCP_TRANSPORT"),
			},
			&ucli.StringFlag{
				Name:  "port",
				Value: "18080",
				Usage: "Port to use for HTTP transports (SSE and Streamable HTTP)",
			},
			&ucli.StringFlag{
				Name:  "base-url",
				Value: "http://localhost",
				Usage: "Base URL for HTTP transports",
			},
			&ucli.StringFlag{
				Name:    "auth-token",
				Usage:   "Bearer token required by the Streamable HTTP transport (optional)",
				Sources: ucli.EnvVars("MCP_AUTH_TOKEN"),
			},
			&ucli.StringFlag{
				Name:  "endpoint-path",
				Value: "/http",
				Usage: "Endpoint path for Streamable HTTP transport",
			},
			&ucli.DurationFlag{
				Name:  "session-timeout",
				Value: 30 * time.Minute,
				Usage: "Session timeout for Streamable HTTP transport",
			},
		},
		Commands: []*ucli.Command{
			{
				Name:      "search",
				Usage:     "Translate a plain-language request into a FOFA query and run it",
				ArgsUsage: "<description...>",
				Flags:     outputFlags,
				Action: func(ctx context.Context, cmd *ucli.Command) error {
					text, err := joinArgs(cmd, "a description of the assets to find")
					if err != nil {
						return err
					}
					runner, err := newCLIRunner(cmd, logger)
					if err != nil {
						return err
					}
					return runner.Search(ctx, text, cmd.Int("size"))
				},
			},
			{
				Name:      "query",
				Usage:     "Run a FOFA query as given",
				ArgsUsage: "<fofa query...>",
				Flags:     outputFlags,
				Action: func(ctx context.Context, cmd *ucli.Command) error {
					q, err := joinArgs(cmd, "a FOFA query")
					if err != nil {
						return err
					}
					runner, err := newCLIRunner(cmd, logger)
					if err != nil {
						return err
					}
					return runner.Query(ctx, q, cmd.Int("size"))
				},
			},
			{
				Name:      "translate",
				Usage:     "Print the FOFA query for a plain-language request without running it",
				ArgsUsage: "<description...>",
				Flags: []ucli.Flag{
					&ucli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Value:   string(cli.OutputText),
						Usage:   "Output format (text, json or yaml)",
					},
				},
				Action: func(ctx context.Context, cmd *ucli.Command) error {
					text, err := joinArgs(cmd, "a description of the assets to find")
					if err != nil {
						return err
					}
					runner, err := newCLIRunner(cmd, logger)
					if err != nil {
						return err
					}
					return runner.Translate(ctx, text)
				},
			},
			{
				Name:      "tools",
				Usage:     "List the MCP tools, or describe one",
				ArgsUsage: "[tool name]",
				Flags: []ucli.Flag{
					&ucli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Value:   string(cli.OutputText),
						Usage:   "Output format (text, json or yaml)",
					},
				},
				Action: func(ctx context.Context, cmd *ucli.Command) error {
					configureLogging(logger, false)
					output, err := cli.ParseOutputFormat(cmd.String("output"))
					if err != nil {
						return err
					}

					// Definitions only; nothing is executed
					fofa.RegisterTools(nil)
					toolhelp.Register()

					runner := cli.NewRunner(logger, nil, os.Stdout, cli.Options{Output: output})
					if name := cmd.Args().First(); name != "" {
						return runner.HelpTool(name)
					}
					return runner.ListTools()
				},
			},
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(ctx context.Context, cmd *ucli.Command) error {
					fmt.Printf("%s version %s\n", appName, Version)
					fmt.Printf("Commit: %s\n", Commit)
					fmt.Printf("Built: %s\n", BuildDate)
					return nil
				},
			},
		},
		Action: func(ctx context.Context, cmd *ucli.Command) error {
			transport := cmd.String("transport")
			isStdioMode.Store(transport == "stdio")
			configureLogging(logger, isStdioMode.Load())

			coordinator, err := newCoordinator(logger)
			if err != nil {
				logger.WithError(err).Error("Failed to load configuration")
				if isStdioMode.Load() {
					// stdout carries the protocol; MCP clients surface stderr to the operator
					reportStartupError(os.Stderr, err)
				}
				return err
			}

			if transport != "stdio" {
				logger.Infof("Starting %s version %s (commit: %s, built: %s)", appName, Version, Commit, BuildDate)
			}

			fofa.RegisterTools(coordinator)
			toolhelp.Register()

			return serveMCP(ctx, cmd, transport, logger)
		},
	}
}

// joinArgs joins the positional arguments into one request string
func joinArgs(cmd *ucli.Command, what string) (string, error) {
	text := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if text == "" {
		return "", fmt.Errorf("missing argument: expected %s", what)
	}
	return text, nil
}

// newCLIRunner wires a cli.Runner for the search, query and translate commands
func newCLIRunner(cmd *ucli.Command, logger *logrus.Logger) (*cli.Runner, error) {
	configureLogging(logger, false)

	output, err := cli.ParseOutputFormat(cmd.String("output"))
	if err != nil {
		return nil, err
	}
	if cmd.IsSet("size") {
		if size := cmd.Int("size"); size < 1 || size > fofa.MaxSize {
			return nil, fmt.Errorf("--size must be between 1 and %d", fofa.MaxSize)
		}
	}

	coordinator, err := newCoordinator(logger)
	if err != nil {
		return nil, err
	}

	return cli.NewRunner(logger, coordinator, os.Stdout, cli.Options{
		Output: output,
		Stats:  cmd.Bool("stats"),
		Top:    cmd.Int("top"),
	}), nil
}

// newCoordinator loads configuration and builds the translate-then-search pipeline
func newCoordinator(logger *logrus.Logger) (*pipeline.Coordinator, error) {
	if err := config.LoadDotEnv(); err != nil {
		logger.WithError(err).Warn("Ignoring unreadable .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	shutdown, err := telemetry.InitTracer(logger, Version)
	if err != nil {
		logger.WithError(err).Warn("OTEL: Tracing disabled")
	}
	tracerShutdown.Store(&shutdown)

	translator := translate.NewClient(cfg, logger)
	searcher := search.NewClient(cfg, logger)

	logger.WithFields(logrus.Fields{
		"llm_url":  telemetry.SanitiseURL(cfg.CompletionAPIURL),
		"model":    cfg.CompletionModel,
		"provider": translator.Provider().String(),
		"fofa_url": telemetry.SanitiseURL(cfg.SearchAPIURL),
	}).Debug("Pipeline configured")

	return pipeline.New(translator, searcher, logger), nil
}

// reportStartupError writes a single line explaining why the server could not start
func reportStartupError(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "%s: failed to start: %v\n", appName, err)
}

// configureLogging routes logs to a file in stdio mode, where stdout carries the
// protocol, and to stderr otherwise
func configureLogging(logger *logrus.Logger, stdio bool) {
	level := parseLogLevel()
	logger.SetLevel(level)
	logrus.SetLevel(level)

	if !stdio {
		logger.SetOutput(os.Stderr)
		logrus.SetOutput(os.Stderr)
		return
	}

	file, err := openLogFile()
	if err != nil {
		logger.SetOutput(io.Discard)
		logrus.SetOutput(io.Discard)
		return
	}

	debugLogFile.Store(file)
	logger.SetOutput(file)
	logrus.SetOutput(file)
	logger.WithField("level", level.String()).Debug("Logging configured")
}

// openLogFile opens ~/.mcp-fofa/logs/mcp-fofa.log for appending
func openLogFile() (*os.File, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	logDir := filepath.Join(homeDir, "."+appName, "logs")
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return nil, err
	}

	return os.OpenFile(filepath.Join(logDir, appName+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
}

// performCleanup handles cleanup of resources on shutdown
func performCleanup(logger *logrus.Logger) {
	if shutdown := tracerShutdown.Load(); shutdown != nil && *shutdown != nil {
		if err := (*shutdown)(); err != nil {
			logger.WithError(err).Debug("OTEL: Failed to shut down tracer")
		}
	}

	if file := debugLogFile.Load(); file != nil {
		_ = file.Close()
	}
}
