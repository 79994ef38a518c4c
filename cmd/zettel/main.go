// Zettel: knowledge base MCP server for AI experiment notes.
//
// Notes are stored in SQLite, auto-linked by text similarity and shared
// concepts, mirrored to a markdown vault, and scanned for cross-domain
// insights.
//
// Usage:
//
//	zettel serve          # Start MCP server (stdio transport)
//	zettel export [file]  # Dump the knowledge base as JSON
//	zettel import <file>  # Load a previous export
//	zettel version        # Print the version
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/HendryAvila/zettel/internal/config"
	"github.com/HendryAvila/zettel/internal/knowledge"
	zkserver "github.com/HendryAvila/zettel/internal/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "export":
		if err := runExport(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "import":
		if err := runImport(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("zettel v%s\n", zkserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	srv, err := zkserver.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr, srv.MetricsHandler(), logger)
		defer shutdown()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ServeStdio(srv.MCP) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("received shutdown signal")
		return nil
	}
}

// openService builds the full server for one-shot commands.
func openService() (*zkserver.Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return zkserver.New(cfg, logger)
}

func runExport(args []string) error {
	srv, err := openService()
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	data, err := srv.Service.Export()
	if err != nil {
		return fmt.Errorf("exporting: %w", err)
	}
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}

	if len(args) == 0 {
		_, err = os.Stdout.Write(append(out, '\n'))
		return err
	}
	if err := os.WriteFile(args[0], out, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", args[0], err)
	}
	fmt.Fprintf(os.Stderr, "Exported %d notes, %d connections, %d insights to %s\n",
		len(data.Notes), len(data.Connections), len(data.Insights), args[0])
	return nil
}

func runImport(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: zettel import <file>")
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	var data knowledge.ExportData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parsing %s: %w", args[0], err)
	}

	srv, err := openService()
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	res, err := srv.Service.Import(&data)
	if err != nil {
		return fmt.Errorf("importing: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Imported %d notes, %d connections, %d insights\n",
		res.NotesImported, res.ConnectionsImported, res.InsightsImported)
	return nil
}

// newLogger writes to stderr so logs never interfere with MCP's stdio
// transport on stdout.
func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		cfg := zap.NewDevelopmentConfig()
		cfg.OutputPaths = []string{"stderr"}
		return cfg.Build()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// serveMetrics exposes /metrics in the background and returns a function
// that shuts the listener down.
func serveMetrics(addr string, h http.Handler, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	hs := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(ctx)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Zettel v%s, knowledge base MCP server

Usage:
  zettel serve          Start the MCP server (stdio transport)
  zettel export [file]  Dump the knowledge base as JSON (stdout by default)
  zettel import <file>  Load a previous export
  zettel version        Print the version

Environment:
  ZETTEL_DATA_DIR       Data directory (default: ~/.zettel)
  ZETTEL_MIRROR_DIR     Markdown vault directory, or "off" (default: <data dir>/vault)
  ZETTEL_VOCABULARY     Concept vocabulary YAML file (default: built-in)
  ZETTEL_LOG_LEVEL      debug, info, warn or error (default: info)
  ZETTEL_METRICS_ADDR   host:port for the Prometheus /metrics endpoint
  ZETTEL_MAX_FEATURES   TF-IDF vocabulary cap (default: 1000)
  ANTHROPIC_API_KEY     Enables LLM-written insight narratives

Configuration:
  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "zettel": {
        "command": "zettel",
        "args": ["serve"]
      }
    }
  }
`, zkserver.Version)
}
