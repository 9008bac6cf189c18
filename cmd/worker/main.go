package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/dashworker/internal/infrastructure/config"
	"github.com/GriffinCanCode/dashworker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/dashworker/internal/infrastructure/server"
)

func main() {
	cfg := config.LoadOrDefault()

	// Flags override the environment
	port := flag.String("port", cfg.Server.Port, "Server port")
	script := flag.String("main", cfg.Runtime.MainScript, "Main script path (empty for the bundled dashboard)")
	manifestPath := flag.String("packages", cfg.Packages.Manifest, "Package manifest path (.toml or .yaml)")
	dev := flag.Bool("dev", cfg.Logging.Development, "Development logging")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Runtime.MainScript = *script
	cfg.Packages.Manifest = *manifestPath
	cfg.Logging.Development = *dev

	logger := logging.FromLevel(cfg.Logging.Level, cfg.Logging.Development)

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-sigChan:
		logger.Info("Shutting down gracefully...")
		if err := srv.Close(); err != nil {
			logger.Error("Error during shutdown", zap.Error(err))
		}
	case err := <-errChan:
		if err != nil {
			logger.Fatal("Server error", zap.Error(err))
		}
	}
}
