// Command server runs the construction knowledge engine: the QA API, the
// analytics agents and document ingestion behind one HTTP listener.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"buildrag/internal/config"
	"buildrag/internal/di"
	"buildrag/internal/logging"
	"buildrag/internal/server"
)

const shutdownGrace = 30 * time.Second

func main() {
	logger := logging.WithComponent("main")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("configuration failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	deps := server.Deps{
		QA:        container.Pipeline,
		Agents:    container.Agents,
		Ingest:    container.Ingest,
		Workflows: container.WorkflowLog,
		Cache:     container.Cache,
	}
	if container.Drawing != nil {
		deps.Drawing = container.Drawing
	}
	srv := server.New(&cfg.Server, deps)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	container.Shutdown()
}
