package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/markdave123-py/CodeInsight/internal/api/handlers"
	"github.com/markdave123-py/CodeInsight/internal/app"
	"github.com/markdave123-py/CodeInsight/internal/config"
	"github.com/markdave123-py/CodeInsight/internal/markdown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.LoadConfig()
	logger := cfg.NewLogger(os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	application, err := app.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	agents, err := application.NewAgents(ctx)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	server := app.NewServer(cfg, app.Handlers{
		Auth:      handlers.NewAuthHandler(application.Users, logger),
		Documents: handlers.NewDocumentHandler(application.Collections, application.Ingest, application.Documents, logger),
		Chat:      handlers.NewChatHandler(agents, application.Collections, markdown.NewRenderer(), logger),
		Workspace: handlers.NewWorkspaceHandler(application.Users, application.Collections, application.Documents, logger),
		Verifier:  application.Users,
	}, logger)

	errc := make(chan error, 1)
	go func() { errc <- server.Start() }()
	logger.Info("CodeInsight is running", "port", cfg.Port, "vector_backend", cfg.VectorBackend)

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			logger.Error("server error", "error", err)
		}
		cancel()
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	application.DocProcessor.Wait()
	logger.Info("shutting down...")
}
