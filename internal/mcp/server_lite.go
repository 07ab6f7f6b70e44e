// Package mcp exposes the obesity classifier to MCP clients over stdio.
// The lite server needs no external databases: results are cached in memory
// and clinician feedback is stored in SQLite.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/gyndok/lancet-obesity-compass/internal/cache"
	litecfg "github.com/gyndok/lancet-obesity-compass/internal/config"
	"github.com/gyndok/lancet-obesity-compass/internal/feedback"
	"github.com/gyndok/lancet-obesity-compass/internal/service"
)

// LiteServer is a lightweight MCP server that requires no external databases.
type LiteServer struct {
	config        *litecfg.LiteConfig
	mcpServer     *mcp.Server
	classifier    *service.ClassifierService
	parser        *service.InputParserService
	reports       *service.ReportGenerator
	feedbackStore feedback.Store
	cache         *cache.MemoryCache
	logger        *logrus.Logger
}

// LiteServerOption is a functional option for LiteServer.
type LiteServerOption func(*LiteServer) error

// WithFeedbackStore sets a custom feedback store.
func WithFeedbackStore(store feedback.Store) LiteServerOption {
	return func(s *LiteServer) error {
		if store == nil {
			return fmt.Errorf("feedback store must not be nil")
		}
		s.feedbackStore = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(s *LiteServer) error {
		s.logger = logger
		return nil
	}
}

// NewLiteServer creates a new lightweight MCP server instance.
func NewLiteServer(cfg *litecfg.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	server := &LiteServer{
		config: cfg,
		// stdout carries the MCP protocol, so logs go to stderr
		logger: litecfg.NewLogger(cfg.LogLevel, cfg.LogFormat, "stderr"),
	}

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	server.cache = cache.NewMemoryCache(cfg.CacheMaxItems, cfg.CacheTTL)

	if server.feedbackStore == nil {
		store, err := feedback.NewSQLiteStore(cfg.FeedbackDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create feedback store: %w", err)
		}
		server.feedbackStore = store
	}

	engine := service.NewObesityRuleEngine(server.logger, nil)
	server.classifier = service.NewClassifierService(server.logger, engine,
		service.WithResultCache(server.cache, cfg.CacheTTL))
	server.parser = service.NewInputParserService()
	server.reports = service.NewReportGenerator()

	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}, nil)
	server.registerTools()

	server.logger.WithFields(logrus.Fields{
		"data_dir":  cfg.DataDir,
		"cache_ttl": cfg.CacheTTL,
	}).Info("Lite server initialized successfully")
	return server, nil
}

// registerTools adds every tool to the MCP server.
func (s *LiteServer) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "evaluate_obesity",
		Description: "Classify a patient as no obesity, preclinical obesity or clinical obesity using anthropometric, clinical, laboratory and functional data. Lengths are in inches and weight in pounds.",
	}, s.handleEvaluateObesity)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "calculate_bmi",
		Description: "Calculate BMI from height (inches, or feet plus inches) and weight (pounds), with the weight needed to reach BMI 25.",
	}, s.handleCalculateBMI)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "generate_report",
		Description: "Evaluate a patient and render a clinician-facing diagnostic report as text, html or json.",
	}, s.handleGenerateReport)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "submit_feedback",
		Description: "Record a clinician's agreement with or correction of a suggested classification for a patient visit. Replaces earlier feedback for the same visit.",
	}, s.handleSubmitFeedback)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "query_feedback",
		Description: "Look up the clinician feedback stored for a patient visit.",
	}, s.handleQueryFeedback)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_feedback",
		Description: "List stored clinician feedback, newest first.",
	}, s.handleListFeedback)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "export_feedback",
		Description: "Export all saved feedback to a JSON file in the data directory.",
	}, s.handleExportFeedback)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "import_feedback",
		Description: "Import feedback from a JSON export file. Visits that already have feedback are skipped.",
	}, s.handleImportFeedback)

	s.logger.WithField("tool_count", 8).Debug("Registered MCP tools")
}

// Start serves MCP over stdio until ctx is cancelled or the client disconnects.
func (s *LiteServer) Start(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}

// Run serves MCP on the given transport.
func (s *LiteServer) Run(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("Starting Obesity Compass MCP Server (Lite)...")
	if err := s.mcpServer.Run(ctx, transport); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Close cleans up server resources.
func (s *LiteServer) Close() error {
	if s.cache != nil {
		s.cache.Close()
	}
	if s.feedbackStore != nil {
		if err := s.feedbackStore.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close feedback store")
			return err
		}
	}
	return nil
}

// GetFeedbackStore returns the feedback store for external access.
func (s *LiteServer) GetFeedbackStore() feedback.Store {
	return s.feedbackStore
}

// GetCache returns the memory cache for external access.
func (s *LiteServer) GetCache() *cache.MemoryCache {
	return s.cache
}

// createErrorResult reports a tool failure to the client without failing the call.
func createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
