package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"edureg/internal/app"
	"edureg/internal/config"
	"edureg/internal/extract"
	"edureg/internal/httpapi"
	"edureg/internal/logsvc"
	"edureg/internal/metrics"
	"edureg/internal/store"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	std := logsvc.Default()
	logger := logsvc.New(std, cfg.RollbarToken, cfg.Env)
	defer logsvc.Close(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	kv, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return err
	}
	if err := kv.Ping(ctx); err != nil {
		logger.Warn("store not reachable, writes will be local only", err)
	}

	ext, err := extract.New(ctx, cfg.ExtractOptions())
	if err != nil {
		logger.Warn("extraction disabled", err)
		ext = extract.Disabled{}
	} else if err := ext.Health(ctx); err != nil && err != extract.ErrDisabled {
		logger.Warn("extraction service not available", err)
	}

	m := metrics.New(true)
	a, err := app.New(ctx, kv, ext, m, logger, app.Options{SyncDelay: cfg.SyncDelay})
	if err != nil {
		_ = kv.Close()
		return err
	}
	defer a.Close()

	h := httpapi.New(a, m, logger, cfg.RateLimitPerMin)
	r := httpapi.NewRouter(h, cfg.CORSOrigins)

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ExtractTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", map[string]interface{}{"port": cfg.HTTPPort, "store": cfg.StorageBackend, "extract": cfg.ExtractBackend})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", err)
	}

	logger.Info("server exited")
	return nil
}
