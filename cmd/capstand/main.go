// Command capstand supervises durable coordination state: it periodically
// sweeps every queue for claims orphaned by crashed consumers and flags dead
// worker heartbeats. Consumer lanes run in the processes that embed the
// workflow manager; capstand keeps the shared state healthy between them.
package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"capstan/internal/config"
	"capstan/internal/daemon"
	"capstan/internal/history"
	"capstan/internal/logging"
	"capstan/internal/preflight"
	"capstan/internal/workflow"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Optional .env next to the working directory; absence is not an error.
	_ = godotenv.Load()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	results := preflight.RunAll(ctx, cfg)
	for _, result := range results {
		if !result.Passed {
			logger.Error("preflight check failed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
		}
	}
	if !preflight.AllPassed(results) {
		log.Fatal("preflight checks failed; refusing to start")
	}

	archive, err := history.Open(cfg.HistoryPath())
	if err != nil {
		log.Fatalf("open outcome archive: %v", err)
	}
	defer archive.Close()

	manager, err := workflow.NewManager(cfg, logger, archive)
	if err != nil {
		log.Fatalf("create workflow manager: %v", err)
	}

	d, err := daemon.New(cfg, logger, manager)
	if err != nil {
		log.Fatalf("create daemon: %v", err)
	}
	if err := d.Start(ctx); err != nil {
		log.Fatal(fmt.Sprintf("start daemon: %v", err))
	}

	<-ctx.Done()
	logger.Info("capstand shutting down")
	d.Stop()
}
