package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/calibrationiq/calibrationiq/internal/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	watch := flag.Bool("watch", false, "re-run the analysis whenever the config or a tool input changes")
	flag.Parse()

	// Results go to stdout; logs go to stderr.
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("calibrationiq starting", "config", *configPath, "watch", *watch)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Log.SlogLevel())

	report, err := analyze(cfg, os.Stdout)
	if err != nil {
		slog.Error("analysis failed", "err", err)
		os.Exit(1)
	}

	if !*watch {
		if report.Failed > 0 {
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
		level.Set(updated.Log.SlogLevel())
		if _, err := analyze(updated, os.Stdout); err != nil {
			slog.Error("analysis failed", "err", err)
		}
	}); err != nil {
		slog.Error("config watcher stopped", "err", err)
		os.Exit(1)
	}
	slog.Info("calibrationiq shutting down")
}
