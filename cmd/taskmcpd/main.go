// Command taskmcpd is the stdio JSON-RPC task-management daemon: it opens
// the SQLite-backed entity store, compiles the status-workflow config,
// optionally starts the Markdown export pipeline, and serves the tool
// surface spec.md §6 defines over stdin/stdout until the pipe closes or a
// signal arrives.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taskmcp/taskmcp/internal/config"
	"github.com/taskmcp/taskmcp/internal/export"
	"github.com/taskmcp/taskmcp/internal/mcp"
	"github.com/taskmcp/taskmcp/internal/storage"
	"github.com/taskmcp/taskmcp/internal/storage/sqlite"
	"github.com/taskmcp/taskmcp/internal/telemetry"
	"github.com/taskmcp/taskmcp/internal/templates"
	"github.com/taskmcp/taskmcp/internal/workflow"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	if err := run(logger); err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Telemetry output goes to stderr, never stdout: stdout carries the
	// JSON-RPC protocol stream server.Run serves below.
	shutdownTelemetry, err := telemetry.Setup(cfg.TelemetryExporter, os.Stderr)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	store, err := sqlite.New(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	if err := seedBuiltinTemplates(ctx, store); err != nil {
		return fmt.Errorf("seeding built-in templates: %w", err)
	}

	engine, err := workflow.NewEngine(workflow.NewLoader(cfg.AgentConfigDir))
	if err != nil {
		return fmt.Errorf("loading workflow config: %w", err)
	}

	deps := &mcp.Deps{Store: store, Engine: engine, Logger: logger}

	if cfg.ExportEnabled() {
		snap := engine.Snapshot()
		pipeline, err := export.NewPipeline(ctx, store, cfg.VaultPath, export.TerminalStatuses{
			Tasks: snap.Tasks.TerminalStatuses, Features: snap.Features.TerminalStatuses, Projects: snap.Projects.TerminalStatuses,
		}, logger)
		if err != nil {
			return fmt.Errorf("starting export pipeline: %w", err)
		}
		defer func() { cancel(); pipeline.Shutdown() }()
		deps.Store = pipeline.Decorate(store)
		deps.Pipeline = pipeline
	}

	registry := mcp.NewRegistry()
	mcp.RegisterAll(registry, deps)
	server := mcp.NewServer(registry, logger)

	logger.Info("taskmcpd ready", "database", cfg.DatabasePath, "exportEnabled", cfg.ExportEnabled())
	return server.Run(ctx, os.Stdin, os.Stdout)
}

// seedBuiltinTemplates restores the compiled built-in templates on every
// startup, skipping any built-in whose name is already held by a stored
// built-in template, so re-running the daemon
// against an existing database never duplicates them.
func seedBuiltinTemplates(ctx context.Context, store storage.Storage) error {
	builtins, err := templates.Builtins()
	if err != nil {
		return err
	}
	existingRes := store.Templates().FindAll(ctx, 0)
	if !existingRes.Ok() {
		return existingRes.Err()
	}
	present := make(map[string]bool, len(existingRes.Value()))
	for _, tmpl := range existingRes.Value() {
		if tmpl.IsBuiltin {
			present[tmpl.Name] = true
		}
	}
	for _, tmpl := range builtins {
		if present[tmpl.Name] {
			continue
		}
		if res := store.Templates().Create(ctx, tmpl); !res.Ok() {
			return res.Err()
		}
	}
	return nil
}
