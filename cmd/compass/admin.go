package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyndok/lancet-obesity-compass/internal/app"
	"github.com/gyndok/lancet-obesity-compass/internal/feedback"
	"github.com/gyndok/lancet-obesity-compass/internal/setup"
)

func feedbackCmd(opts *globalOptions) *cobra.Command {
	var backend, dbPath string

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Back up and restore clinician feedback",
	}
	cmd.PersistentFlags().StringVar(&backend, "backend", feedback.BackendSQLite, "feedback backend: sqlite or postgres")
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default ~/.obesity-compass/feedback.db)")

	openStore := func() (feedback.Store, error) {
		var databaseURL string
		if backend == feedback.BackendPostgres {
			configManager, err := opts.configManager()
			if err != nil {
				return nil, err
			}
			databaseURL = configManager.GetDatabaseConnectionString()
		}
		return feedback.NewStore(backend, dbPath, databaseURL)
	}

	var output string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export all feedback as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			w := cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating export file: %w", err)
				}
				defer file.Close()
				w = file
			}

			if err := store.ExportJSON(cmd.Context(), w); err != nil {
				return err
			}
			if output != "" {
				count, _ := store.Count(cmd.Context())
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d feedback entries to %s\n", count, output)
			}
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import feedback from a JSON export, skipping visits that already have feedback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening import file: %w", err)
			}
			defer file.Close()

			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			imported, skipped, err := store.ImportJSON(cmd.Context(), file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entries, skipped %d duplicates\n", imported, skipped)
			return nil
		},
	}

	cmd.AddCommand(exportCmd, importCmd)
	return cmd
}

func serveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			configManager, err := opts.configManager()
			if err != nil {
				return err
			}
			if err := configManager.Validate(); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}

			application, err := app.New(cmd.Context(), configManager, opts.logger)
			if err != nil {
				return err
			}
			defer application.Close()

			return application.Run(cmd.Context())
		},
	}
}

func migrateCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	for _, direction := range []app.MigrateDirection{app.MigrateUp, app.MigrateDown} {
		short := "Apply pending migrations"
		if direction == app.MigrateDown {
			short = "Roll back the last migration"
		}
		cmd.AddCommand(&cobra.Command{
			Use:   string(direction),
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				configManager, err := opts.configManager()
				if err != nil {
					return err
				}
				return app.Migrate(cmd.Context(), configManager, opts.logger, direction)
			},
		})
	}

	return cmd
}

func setupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the MCP server with desktop clients",
	}

	var setupOpts setup.Options
	claudeCmd := &cobra.Command{
		Use:   "claude-desktop",
		Short: "Add obesity-compass to Claude Desktop's MCP servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := setup.Configure(setupOpts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s in %s\nRestart Claude Desktop to load the server.\n", setup.ServerName, configPath)
			return nil
		},
	}
	claudeCmd.Flags().StringVar(&setupOpts.BinaryPath, "binary", "", "path to mcp-server-lite (default: search PATH)")
	claudeCmd.Flags().StringVar(&setupOpts.DataDir, "data-dir", "", "data directory passed to the server")
	claudeCmd.Flags().StringVar(&setupOpts.ConfigPath, "client-config", "", "Claude Desktop config file (default: platform location)")

	var statusConfigPath string
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether the MCP server is registered",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := setup.GetStatus(statusConfigPath)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Config file: %s\n", status.ConfigPath)
			fmt.Fprintf(w, "Registered: %t\n", status.Configured)
			if status.Configured {
				fmt.Fprintf(w, "Server binary: %s\n", status.ServerPath)
				fmt.Fprintf(w, "Data directory: %s\n", status.DataDir)
			}
			for _, issue := range status.Issues {
				fmt.Fprintf(w, "Issue: %s\n", issue)
			}
			return nil
		},
	}
	statusCmd.Flags().StringVar(&statusConfigPath, "client-config", "", "Claude Desktop config file (default: platform location)")

	cmd.AddCommand(claudeCmd, statusCmd)
	return cmd
}
