// Package main is the compass command line: offline evaluation of patient
// files, BMI and reports, feedback backup, and server administration.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gyndok/lancet-obesity-compass/internal/config"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configFile string
	logLevel   string
	logFormat  string
	logger     *logrus.Logger
}

func (o *globalOptions) configManager() (*config.Manager, error) {
	if o.configFile != "" {
		return config.NewManager(o.configFile)
	}
	return config.NewManager()
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:          "compass",
		Short:        "Obesity diagnosis and staging from the Lancet Commission criteria",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.logger = config.NewLogger(opts.logLevel, opts.logFormat, "stderr")
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format: json, text")

	rootCmd.AddCommand(evaluateCmd(opts))
	rootCmd.AddCommand(bmiCmd())
	rootCmd.AddCommand(reportCmd(opts))
	rootCmd.AddCommand(feedbackCmd(opts))
	rootCmd.AddCommand(serveCmd(opts))
	rootCmd.AddCommand(migrateCmd(opts))
	rootCmd.AddCommand(setupCmd())

	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
