package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/asyncrace/internal/cli"
	"github.com/okian/asyncrace/internal/config"
	"github.com/okian/asyncrace/pkg/logger"
)

func main() {
	if err := logger.Init(logger.WithWriter(os.Stderr)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.Init(logger.WithWriter(os.Stderr), logger.WithFormat(cfg.LogFormat), logger.WithLevel(cfg.LogLevel)); err != nil {
		logger.Get().Warn(ctx, "invalid logging config; keeping text at info", logger.Error(err))
	}

	if err := cli.Execute(ctx, cfg, os.Stdout, os.Args[1:]); err != nil {
		logger.Get().Error(ctx, "racectl failed", logger.Error(err))
		os.Exit(1)
	}
}
