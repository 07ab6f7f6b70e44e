// Package main runs the Obesity Compass HTTP API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/gyndok/lancet-obesity-compass/internal/app"
	"github.com/gyndok/lancet-obesity-compass/internal/config"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}

	logCfg := configManager.GetLoggingConfig()
	logger := config.NewLogger(logCfg.Level, logCfg.Format, logCfg.Output)

	serverCfg := configManager.GetServerConfig()
	logger.WithFields(logrus.Fields{
		"host": serverCfg.Host,
		"port": serverCfg.Port,
	}).Info("Starting Obesity Compass server")

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.Close()

	if err := application.Run(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		application.Close()
		os.Exit(1)
	}

	logger.Info("Server stopped")
}
