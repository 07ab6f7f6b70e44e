// Package main provides the lightweight MCP entry point for Obesity Compass.
// It requires no external databases: results are cached in memory and
// clinician feedback is stored in SQLite.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/gyndok/lancet-obesity-compass/internal/config"
	"github.com/gyndok/lancet-obesity-compass/internal/mcp"
	"github.com/gyndok/lancet-obesity-compass/internal/setup"
)

func main() {
	cfg := config.LoadLiteConfig()
	// stdout carries the MCP protocol
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat, "stderr")

	// Register with Claude Desktop and exit
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		configPath, err := setup.Configure(setup.Options{DataDir: cfg.DataDir})
		if err != nil {
			logger.WithError(err).Fatal("Setup failed")
		}
		fmt.Fprintf(os.Stderr, "Registered %s in %s\nRestart Claude Desktop to load the server.\n", setup.ServerName, configPath)
		return
	}

	logger.WithField("data_dir", cfg.DataDir).Info("Starting Obesity Compass MCP Server (Lite)")

	server, err := mcp.NewLiteServer(cfg, mcp.WithLogger(logger))
	if err != nil {
		logger.WithError(err).Fatal("Failed to create MCP server")
	}
	defer server.Close()

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil && ctx.Err() == nil {
		logger.WithError(err).Error("MCP server failed")
		server.Close()
		os.Exit(1)
	}

	logger.WithFields(logrus.Fields{"data_dir": cfg.DataDir}).Info("Obesity Compass MCP Server (Lite) stopped")
}
