package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/manthysbr/hostelscout/internal/adapters/duckdb"
	"github.com/manthysbr/hostelscout/internal/adapters/mcp"
	"github.com/manthysbr/hostelscout/internal/adapters/providers"
	"github.com/manthysbr/hostelscout/internal/adapters/resilient"
	appconfig "github.com/manthysbr/hostelscout/internal/config"
	"github.com/manthysbr/hostelscout/internal/core/domain"
	"github.com/manthysbr/hostelscout/internal/core/ports"
	"github.com/manthysbr/hostelscout/internal/core/services"
	"github.com/manthysbr/hostelscout/pkg/kernel"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel()}))
	logger.Info("starting hostelscout")

	if err := run(logger); err != nil {
		logger.Error("hostelscout failed", "error", err)
		os.Exit(1)
	}
}

func logLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appconfig.LoadEnv(logger)
	config, err := appconfig.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Adapters
	client := &http.Client{Timeout: config.Server.ClientTimeout}

	completion, err := providers.Build(config, client, logger)
	if err != nil {
		return fmt.Errorf("failed to build completion provider: %w", err)
	}

	inventory := mcp.NewClient(resilient.New(client, "inventory", logger), config.Inventory.ServerURL, logger)

	searchLog, closeLog, err := openSearchLog(ctx, logger, config.Server.SearchLogPath)
	if err != nil {
		return err
	}
	defer closeLog()

	// Initialize Core Services
	catalog := services.NewToolCatalog(logger, inventory, config.Inventory.ToolCacheTTL)
	gate := services.NewSearchGate(logger, services.GateConfig{
		MaxConcurrentSearches: config.Server.MaxConcurrentSearches,
	})
	orchestrator := services.NewOrchestrator(logger, catalog, completion, inventory, services.OrchestratorConfig{
		CompletionAttempts: config.Retry.CompletionAttempts,
		ToolCallAttempts:   config.Retry.ToolCallAttempts,
		MaxTokens:          config.LLM.MaxTokens,
		SearchTimeout:      config.Server.SearchTimeout,
	}).WithGate(gate)
	if searchLog != nil {
		orchestrator.WithSearchLog(searchLog)
	}

	// Initialize API Server
	apiServer := kernel.NewServer(logger, orchestrator, catalog, inventory, searchLog, kernel.Options{
		AllowedOrigins: config.Server.AllowedOrigins,
	})

	httpServer := &http.Server{
		Addr:              config.Server.Addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("configuration loaded",
		"provider", completion.Name(),
		"model", config.LLM.DefaultModel,
		"mcp_server", config.Inventory.ServerURL,
		"api_key", appconfig.MaskSecret(config.LLM.APIKey),
		"max_concurrent_searches", gate.Limit(),
	)

	// Application Loop
	g, gCtx := errgroup.WithContext(ctx)

	// 1. Warm the tool catalog so the first search skips the tools/list round trip
	g.Go(func() error {
		tools := catalog.GetTools(gCtx)
		logger.Info("tool catalog warmed", "tools", strings.Join(domain.ToolNames(tools), ","))
		return nil
	})

	// 2. Start API Server
	g.Go(func() error {
		logger.Info("starting api server", "addr", config.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	// 3. Graceful Shutdown for API Server
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Server.SearchTimeout+5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openSearchLog opens the DuckDB search log. "off" disables it and an empty
// path keeps it in memory.
func openSearchLog(ctx context.Context, logger *slog.Logger, path string) (ports.SearchLog, func(), error) {
	if strings.EqualFold(path, "off") {
		logger.Info("search log disabled")
		return nil, func() {}, nil
	}
	repo, err := duckdb.NewRepository(ctx, path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init search log: %w", err)
	}
	location := path
	if location == "" {
		location = "memory"
	}
	logger.Info("search log opened", "path", location)
	return repo, func() {
		if err := repo.Close(); err != nil {
			logger.Warn("failed to close search log", "error", err)
		}
	}, nil
}
