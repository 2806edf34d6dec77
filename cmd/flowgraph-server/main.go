// Package main runs the FlowGraph HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/flowgraph/workflow/internal/adapters/functions"
	"github.com/flowgraph/workflow/internal/adapters/httpapi"
	"github.com/flowgraph/workflow/internal/adapters/repository"
	graphrepo "github.com/flowgraph/workflow/internal/adapters/repository/graph"
	"github.com/flowgraph/workflow/internal/app/config"
	"github.com/flowgraph/workflow/internal/app/usecases"
	"github.com/flowgraph/workflow/internal/core/pregel"
	"github.com/flowgraph/workflow/internal/infrastructure/ctxlog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := ctxlog.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = ctxlog.WithLogger(ctx, logger)

	key, err := cfg.History.Key()
	if err != nil {
		return fmt.Errorf("invalid history key: %w", err)
	}
	store, closeStore, err := repository.Open(ctx, repository.Options{
		Backend:     cfg.History.Backend,
		SQLitePath:  cfg.History.SQLitePath,
		DatabaseURL: cfg.History.DatabaseURL,
		TTL:         cfg.History.TTL,
		MaxMemoryMB: cfg.History.MaxMemoryMB,
		EncryptKey:  key,
	})
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("Failed to close history store", "error", err)
		}
	}()

	svc, err := usecases.NewWorkflowService(graphrepo.NewInMemoryGraphRepository(), store, functions.Builtins(), usecases.ServiceConfig{
		MaxSteps: cfg.Engine.MaxSteps,
		Cache:    pregel.NewMemoryCache(),
		CacheTTL: cfg.Engine.CacheTTL,
		Handlers: []pregel.StreamHandler{&pregel.LogStreamHandler{Logger: logger}},
	})
	if err != nil {
		return err
	}

	if cfg.Workflow.Dir != "" {
		names, err := svc.LoadDir(ctx, cfg.Workflow.Dir)
		if err != nil {
			return fmt.Errorf("load workflows: %w", err)
		}
		logger.Info("Workflows loaded", "path", cfg.Workflow.Dir, "workflows", names)
	}

	app := httpapi.New(svc, httpapi.Options{Logger: logger, RequestTimeout: cfg.Server.RequestTimeout})
	wm := newWorkloadManager(svc, logger)
	wm.register(app)

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down FlowGraph server")
		wm.shutdown()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Warn("Shutdown error", "error", err)
		}
	}()

	logger.Info("Starting FlowGraph server", "addr", cfg.Server.Addr, "history", cfg.History.Backend)
	return app.Listen(cfg.Server.Addr, fiber.ListenConfig{DisableStartupMessage: true})
}
