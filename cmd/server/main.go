package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jo-hoe/goqr/internal/backend"
	"github.com/jo-hoe/goqr/internal/backend/database"
	"github.com/jo-hoe/goqr/internal/core"
	"github.com/joho/godotenv"
)

func getConfigPath() (string, bool) {
	// First check if config path is provided via environment variable
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		return configPath, true
	}

	// Default to config.yaml in current working directory
	cwd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	return filepath.Join(cwd, "config.yaml"), false
}

func loadConfig() (*core.ServiceConfig, error) {
	configPath, explicit := getConfigPath()
	if explicit {
		return core.LoadConfig(configPath)
	}
	return core.LoadConfigOrDefault(configPath)
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("main: failed to load .env file", "error", err)
	}

	config, err := loadConfig()
	if err != nil {
		slog.Error("main: failed to load config", "error", err)
		os.Exit(1)
	}

	logCloser, err := core.SetupLogging(config.Logging)
	if err != nil {
		slog.Error("main: failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = logCloser.Close()
	}()

	if err := run(config); err != nil {
		slog.Error("main: server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(config *core.ServiceConfig) error {
	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelInit()

	databaseService, err := database.NewDatabase(initCtx, config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("main: database initialized successfully", "type", config.Database.Type)

	coreService, err := core.NewCoreService(config, databaseService)
	if err != nil {
		_ = databaseService.Close()
		return err
	}

	server := backend.NewServer(config.Upload.BodyLimit)
	backend.NewAPIService(coreService).SetRoutes(server)

	portString := fmt.Sprintf(":%d", config.Port)

	// Start HTTP server in a goroutine to allow graceful shutdown
	go func() {
		slog.Info("main: starting server", "port", config.Port)
		if err := server.Start(portString); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("main: http server error", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	slog.Info("main: shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("main: server shutdown error", "error", err)
	}

	if err := coreService.Close(); err != nil {
		return fmt.Errorf("core service close error: %w", err)
	}
	return nil
}
