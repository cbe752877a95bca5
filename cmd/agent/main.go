package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/convertly/convertly-agent/internal/api"
	"github.com/convertly/convertly-agent/internal/backend"
	"github.com/convertly/convertly-agent/internal/config"
	"github.com/convertly/convertly-agent/internal/conversion"
	"github.com/convertly/convertly-agent/internal/db"
	"github.com/convertly/convertly-agent/internal/history"
	"github.com/convertly/convertly-agent/internal/logging"
	"github.com/convertly/convertly-agent/internal/preview"
	"github.com/convertly/convertly-agent/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting convertly agent", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	kv := store.NewSQLiteKV(database.Conn())

	backendLogger := logging.WithComponent(logger, "backend")

	var client backend.Client
	if cfg.BackendURL() != "" {
		httpClient := backend.NewHTTPClient(cfg.BackendURL(), backendLogger)
		if cfg.IdentityMode() == config.IdentityModeStatic {
			httpClient.SetResolver(backend.NewStaticResolver(cfg.StaticUserID(), backendLogger))
		}
		client = httpClient
		logger.Info("conversion backend configured", "base_url", cfg.BackendURL(), "identity_mode", cfg.IdentityMode())
	} else {
		client = backend.NewStubClient(backendLogger)
		logger.Warn("no backend URL configured, running against the stub backend")
	}

	session := store.NewSessionStore(kv, client, logger)
	prefs := store.NewPrefsStore(kv, logger)
	workflow := conversion.NewWorkflow(client, session, logger)

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                   CONVERTLY AGENT v0.1.0                  ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:  http://127.0.0.1:%-29d ║\n", cfg.Port())
	fmt.Printf("║  UI origin: %-45s ║\n", cfg.AllowedOrigin())
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	apiServer := api.NewServer(api.ServerConfig{
		Port:          cfg.Port(),
		AllowedOrigin: cfg.AllowedOrigin(),
		Session:       session,
		Prefs:         prefs,
		Workflow:      workflow,
		History:       history.NewView(client, session, logger),
		Preview:       preview.NewServer(workflow, logger),
		Logger:        logger,
		StartTime:     startTime,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)

	// Abandon any in-flight submission before the server goes away.
	workflow.Reset()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
