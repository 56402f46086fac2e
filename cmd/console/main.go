package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pump-console/internal/channel"
	"pump-console/internal/config"
	"pump-console/internal/console"
	"pump-console/internal/notify"
)

func main() {
	configPath := flag.String("config", ".", "directory containing console.yaml")
	serverURL := flag.String("server", "", "authority base URL (overrides config)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.LoadClient(*configPath)
	if err != nil {
		logger.Error("loading config failed", "error", err)
		os.Exit(1)
	}
	if *serverURL != "" {
		cfg.Server.URL = *serverURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier := &notify.LogNotifier{Logger: logger.With("component", "notify")}
	c := console.New(cfg.Server.URL, notifier, logger)

	go serveMetrics(cfg.Metrics.Port, logger)

	errs := make(chan error, 1)
	go func() {
		errs <- c.Run(ctx)
	}()

	if cfg.Login.EmployeeID != "" {
		if err := c.Login(cfg.Login.EmployeeID, cfg.Login.Password); err != nil {
			// Not connected yet is fine; credentials are replayed
			// once the channel comes up.
			if !errors.Is(err, channel.ErrNotConnected) {
				logger.Error("login failed", "error", err)
			}
		}
	}

	logger.Info("console started", "server", cfg.Server.URL)
	if err := <-errs; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("console stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("console stopped")
}

func serveMetrics(port int, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Info("metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server failed", "error", err)
	}
}
