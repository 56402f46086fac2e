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
	"time"

	"pump-console/internal/auth"
	"pump-console/internal/config"
	"pump-console/internal/simulator"
)

func main() {
	configPath := flag.String("config", ".", "directory containing simulator.yaml")
	port := flag.Int("port", 0, "listen port (overrides config)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.LoadSimulator(*configPath)
	if err != nil {
		logger.Error("loading config failed", "error", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if len(cfg.Auth.Users) == 0 {
		cfg.Auth.Users = defaultUsers(logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim := simulator.New(cfg, logger)
	go sim.Run(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           sim.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("simulator listening", "addr", server.Addr)
		errs <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
		logger.Info("simulator stopped")
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}
}

// defaultUsers provisions the stock operator accounts when none are
// configured. Development only; a real deployment configures users
// with pre-hashed passwords.
func defaultUsers(logger *slog.Logger) []auth.User {
	accounts := []struct {
		id, name, role, department, position, password string
	}{
		{"EMP001", "Sarah Mitchell", "admin", "Operations", "Control Room Supervisor", "admin123"},
		{"EMP002", "James Carter", "operator", "Operations", "Field Operator", "operator123"},
		{"EMP003", "Elena Rodriguez", "engineer", "Maintenance", "Reliability Engineer", "engineer123"},
	}

	users := make([]auth.User, 0, len(accounts))
	for _, a := range accounts {
		hash, err := auth.HashPassword(a.password)
		if err != nil {
			logger.Error("hashing default password failed", "employee_id", a.id, "error", err)
			continue
		}
		users = append(users, auth.User{
			EmployeeID:   a.id,
			Name:         a.name,
			Role:         a.role,
			Department:   a.department,
			Position:     a.position,
			PasswordHash: hash,
		})
	}
	return users
}
