package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	"edureg/internal/app"
	"edureg/internal/config"
	"edureg/internal/extract"
	"edureg/internal/logsvc"
	"edureg/internal/store"
)

var closeLogger = logsvc.Close // mockable

// roster manages students and attendance from the terminal, against the
// same store the API uses.
func main() {
	os.Exit(run(config.Load()))
}

// run returns the process exit code so deferred cleanup always happens.
func run(cfg config.App) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	logger := logsvc.New(logsvc.NewStd(os.Stderr, "ROSTER : "), cfg.RollbarToken, cfg.Env)
	defer closeLogger(logger)

	kv, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		logger.Error("store open failed", err)
		return 1
	}

	ext, err := extract.New(ctx, cfg.ExtractOptions())
	if err != nil {
		logger.Warn("extraction disabled", err)
		ext = extract.Disabled{}
	}

	a, err := app.New(ctx, kv, ext, nil, logger, app.Options{})
	if err != nil {
		_ = kv.Close()
		logger.Error("loading roster failed", err)
		return 1
	}
	defer a.Close()

	cli := &commandLine{app: a, out: os.Stdout, in: os.Stdin}
	switch err := cli.run(ctx, os.Args); {
	case err == nil:
		return 0
	case errors.Is(err, errHelp):
		return 2
	default:
		log.Println(err)
		return 1
	}
}
