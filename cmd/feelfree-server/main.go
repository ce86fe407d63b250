// Package main provides the HTTP and WebSocket API server for FeelFree.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/raphaelgruber/feelfree-go/internal/auth"
	"github.com/raphaelgruber/feelfree-go/internal/config"
	"github.com/raphaelgruber/feelfree-go/internal/db"
	"github.com/raphaelgruber/feelfree-go/internal/llm"
	"github.com/raphaelgruber/feelfree-go/internal/metrics"
	"github.com/raphaelgruber/feelfree-go/internal/server"
	"github.com/raphaelgruber/feelfree-go/internal/service"
	"github.com/raphaelgruber/feelfree-go/internal/store/memory"
)

// store is every port the server persists through.
type store interface {
	auth.UserStore
	service.Store
}

func main() {
	// Parse flags
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	slog.SetDefault(logger)
	defer func() {
		if err := closeLog(); err != nil {
			slog.Error("failed to close log file", "error", err)
		}
	}()

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting feelfree-server", "addr", cfg.ServerAddr, "storage", cfg.Storage, "llm", cfg.LLMProvider)

	mc := metrics.NewCollector()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, closeStore, err := openStore(ctx, cfg, *wipeDB || os.Getenv("FEELFREE_WIPE_DB") == "true", mc, logger)
	cancel()
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	authSvc, err := auth.NewService(st, auth.LogMailer{Logger: logger}, auth.Config{
		Secret:      cfg.JWTSecret,
		Issuer:      "feelfree",
		AccessTTL:   cfg.AccessTTL,
		RefreshTTL:  cfg.RefreshTTL,
		AutoConfirm: cfg.AutoConfirm,
	}, logger)
	if err != nil {
		slog.Error("failed to create auth service", "error", err)
		os.Exit(1)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	gen, err := llm.New(ctx, cfg, mc, logger)
	cancel()
	if err != nil {
		slog.Error("failed to create language model", "error", err)
		os.Exit(1)
	}

	hub := server.NewHub(logger)
	chat := service.NewChatService(st, gen, service.Options{
		Notifier:     hub,
		ComposeDelay: cfg.ComposeDelay,
	}, logger)
	authSvc.Subscribe(chat.HandleAuthEvent)
	authSvc.Subscribe(hub.HandleAuthEvent)

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(server.Config{
		Auth:         authSvc,
		Chat:         chat,
		Events:       hub,
		Metrics:      mc,
		Logger:       logger,
		AllowOrigins: cfg.CORSOrigins,
	})

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second, // Long for model replies
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("API available", "addr", cfg.ServerAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped", "active_chats", chat.ActiveChats())
}

// openStore connects the configured backend. wipe clears SurrealDB data
// after the schema is in place.
func openStore(ctx context.Context, cfg config.Config, wipe bool, mc *metrics.Collector, logger *slog.Logger) (store, func(), error) {
	if cfg.Storage == config.StorageMemory {
		if wipe {
			slog.Warn("wipe ignored for in-memory storage")
		}
		return memory.New(), func() {}, nil
	}

	client, err := db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, mc, logger)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := client.Close(context.Background()); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}

	if err := client.InitSchema(ctx); err != nil {
		closeFn()
		return nil, nil, err
	}
	if wipe {
		slog.Warn("wiping all data")
		if err := client.WipeData(ctx); err != nil {
			closeFn()
			return nil, nil, err
		}
	}
	return client, closeFn, nil
}
