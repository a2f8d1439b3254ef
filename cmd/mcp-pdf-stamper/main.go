package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/a3tai/mcp-pdf-stamper/internal/config"
	"github.com/a3tai/mcp-pdf-stamper/internal/logging"
	"github.com/a3tai/mcp-pdf-stamper/internal/mcp"
	"github.com/a3tai/mcp-pdf-stamper/internal/render"
	"github.com/a3tai/mcp-pdf-stamper/internal/stamp"
	"github.com/a3tai/mcp-pdf-stamper/internal/store"
	"github.com/a3tai/mcp-pdf-stamper/internal/workspace"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging returns the process logger. Logs always go to stderr so they
// never interleave with the MCP protocol on stdout.
func setupLogging(cfg *config.Config, w io.Writer) *log.Logger {
	logger := logging.New(w, cfg.LogLevel)
	if cfg.IsServerMode() && cfg.IsDebug() {
		logger.SetReportCaller(true)
	}
	return logger
}

// newStore opens the configured document store
func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store {
	case config.StoreRedis:
		rs, err := store.NewRedisStore(ctx, store.RedisConfig{
			Addr:   cfg.RedisAddr,
			DB:     cfg.RedisDB,
			Prefix: cfg.RedisPrefix,
		})
		if err != nil {
			return nil, err
		}
		return rs, nil
	case config.StoreMemory:
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store: %s", cfg.Store)
	}
}

// buildServer wires the store, renderer, service and workspace into an MCP
// server. The returned store must be closed by the caller.
func buildServer(ctx context.Context, cfg *config.Config, logger *log.Logger) (*mcp.Server, store.Store, error) {
	st, err := newStore(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s store: %w", cfg.Store, err)
	}

	renderer := render.NewRenderer(render.Options{
		StrictGeometry: cfg.StrictGeometry,
		Logger:         logger.WithPrefix("render"),
	})

	service, err := stamp.NewService(stamp.Options{
		Store:             st,
		Renderer:          renderer,
		Capturer:          mcp.ContextCapturer(),
		StoreName:         cfg.Store,
		DefaultPageWidth:  cfg.PageWidth,
		DefaultPageHeight: cfg.PageHeight,
		MaxBaseSize:       cfg.MaxFileSize,
		StrictGeometry:    cfg.StrictGeometry,
		VerifyOutput:      cfg.VerifyOutput,
		ServerName:        cfg.ServerName,
		Version:           cfg.Version,
		Logger:            logger.WithPrefix("stamp"),
	})
	if err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("failed to create stamp service: %w", err)
	}

	files, err := workspace.New(cfg.PDFDirectory, cfg.MaxFileSize)
	if err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("failed to open workspace: %w", err)
	}

	server, err := mcp.NewServer(cfg, service, files, logger)
	if err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("failed to create MCP server: %w", err)
	}
	return server, st, nil
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	server, st, err := buildServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("failed to close store", "err", err)
		}
	}()

	if cfg.IsServerMode() {
		logger.Debug("starting with configuration", "config", cfg.String())
	}

	err = server.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("server stopped")
		return nil
	}
	return err
}

func main() {
	// Check for version flag before parsing other flags
	if hasVersionFlag(os.Args[1:]) {
		printVersion(os.Stdout)
		return
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if version != "dev" {
		cfg.Version = version
	}

	logger := setupLogging(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "err", err)
		stop()
		os.Exit(1)
	}
}

func hasVersionFlag(args []string) bool {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return true
		}
	}
	return false
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "MCP PDF Stamper\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
