// Package main starts the shared cart realtime service and handles termination.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	cartcmd "github.com/louisbranch/sharedcart/internal/cmd/cart"
	entrypoint "github.com/louisbranch/sharedcart/internal/platform/cmd"
	"github.com/louisbranch/sharedcart/internal/platform/config"
)

func main() {
	cfg, err := cartcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf(entrypoint.ServiceCart, "parse flags: %v", err)
	}
	logger, err := cartcmd.NewLogger(os.Stderr, cfg)
	if err != nil {
		config.Exitf(entrypoint.ServiceCart, "configure logging: %v", err)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Probe {
		if err := cartcmd.Probe(ctx, cfg, logger); err != nil {
			logger.Error("unhealthy", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := cartcmd.Run(ctx, cfg, logger); err != nil {
		logger.Error("failed to serve", "error", err)
		os.Exit(1)
	}
}
