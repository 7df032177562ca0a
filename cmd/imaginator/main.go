package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dotcommander/imaginator/internal/agent"
	"github.com/dotcommander/imaginator/internal/config"
	"github.com/dotcommander/imaginator/internal/core"
	"github.com/dotcommander/imaginator/internal/export"
	"github.com/dotcommander/imaginator/internal/storage"
	"github.com/dotcommander/imaginator/internal/storage/sqlite"
)

const usage = `Usage: imaginator <command> [flags]

Commands:
  serve         run the HTTP and WebSocket server
  story         develop one story from a concept in the terminal
  config init   write a default config file
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "imaginator: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("no command given")
	}

	switch args[0] {
	case "serve":
		return serve(ctx, args[1:])
	case "story":
		return storyCommand(ctx, args[1:], stdin, stdout)
	case "config":
		if len(args) < 2 || args[1] != "init" {
			return fmt.Errorf("usage: imaginator config init [path]")
		}
		return configInit(args[2:], stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	}
	return fmt.Errorf("unknown command %q", args[0])
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// app is everything a command needs, built from one config
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	engine  *core.Engine
	exports *storage.ExportWriter
	closer  io.Closer
}

func (a *app) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

func setup(configPath string) (*app, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	provider, err := agent.NewFromConfig(cfg.AI, cfg.Limits, logger)
	if err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}
	if err := agent.GetPromptCache().Preload(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, exports: storage.NewExportWriter(cfg.Storage.ExportDir)}

	var store core.Store
	switch cfg.Storage.Driver {
	case "memory":
		store = storage.NewMemoryStore()
	default:
		db, err := sqlite.Open(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		store = db
		a.closer = db
	}

	exporter := export.NewCoordinator(provider,
		export.WithLogger(logger),
		export.WithTimeout(cfg.Limits.ExportTimeout),
		export.WithWorkers(cfg.Limits.ExportWorkers))

	a.engine = core.New(provider, store,
		core.WithLogger(logger),
		core.WithProviderTimeout(cfg.Limits.ProviderTimeout),
		core.WithExporter(exporter))

	logger.Info("imaginator configured",
		"provider", cfg.AI.Provider,
		"model", cfg.AI.Model,
		"storage", cfg.Storage.Driver)
	return a, nil
}

func configInit(args []string, stdout io.Writer) error {
	path := config.Path()
	if len(args) > 0 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := config.Save(config.Default(), path); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %s\nSet IMAGINATOR_API_KEY (or ANTHROPIC_API_KEY / OPENAI_API_KEY) before running.\n", path)
	return nil
}
