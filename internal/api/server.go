package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gyndok/lancet-obesity-compass/internal/domain"
	"github.com/gyndok/lancet-obesity-compass/internal/feedback"
	"github.com/gyndok/lancet-obesity-compass/internal/middleware"
	"github.com/gyndok/lancet-obesity-compass/internal/service"
)

const shutdownTimeout = 30 * time.Second

// HealthCheck probes a dependency; a non-nil error marks the server degraded.
type HealthCheck func(ctx context.Context) error

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	logger        *logrus.Logger
	classifier    *service.ClassifierService
	parser        *service.InputParserService
	reports       *service.ReportGenerator
	feedback      feedback.Store
	limiter       *middleware.RateLimiter
	healthChecks  map[string]HealthCheck
	router        *gin.Engine
	server        *http.Server
}

// ServerOption configures optional server dependencies.
type ServerOption func(*Server)

// WithFeedbackStore enables the /api/v1/feedback routes.
func WithFeedbackStore(store feedback.Store) ServerOption {
	return func(s *Server) {
		s.feedback = store
	}
}

// WithHealthCheck adds a named dependency probe to /health.
func WithHealthCheck(name string, check HealthCheck) ServerOption {
	return func(s *Server) {
		s.healthChecks[name] = check
	}
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, logger *logrus.Logger, classifier *service.ClassifierService, opts ...ServerOption) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if gin.Mode() != gin.TestMode {
		if cfg.Logging.Level == "debug" {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
	}

	server := &Server{
		configManager: configManager,
		logger:        logger,
		classifier:    classifier,
		parser:        service.NewInputParserService(),
		reports:       service.NewReportGenerator(),
		limiter:       middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst),
		healthChecks:  make(map[string]HealthCheck),
		router:        gin.New(),
	}
	for _, opt := range opts {
		opt(server)
	}

	server.router.Use(gin.Recovery())
	server.router.Use(middleware.CorrelationID())
	server.router.Use(middleware.SecurityHeaders())
	server.router.Use(middleware.CORS())
	server.router.Use(middleware.RequestLogger(logger))
	server.router.Use(server.limiter.Middleware())

	server.setupRoutes()

	return server
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.handleHealth)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/evaluate", s.handleEvaluate)
		v1.POST("/bmi", s.handleBMI)
		v1.POST("/report", s.handleReport)

		v1.POST("/feedback", s.handleSubmitFeedback)
		v1.GET("/feedback", s.handleListFeedback)
		v1.GET("/feedback/:patient_ref", s.handleGetFeedback)

		v1.GET("/patients/:patient_ref/assessments", s.handleListAssessments)
		v1.GET("/assessments/:id", s.handleGetAssessment)
		v1.GET("/stats/classifications", s.handleClassificationStats)
	}
}

// respondError maps service errors onto status codes and APIError bodies.
func (s *Server) respondError(c *gin.Context, err error) {
	requestID := c.GetString(middleware.CorrelationIDKey)

	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, domain.NewAPIError(domain.ErrValidation, "Invalid input", validationErr.Error(), requestID))
	case errors.Is(err, domain.ErrInvalidVisitType),
		errors.Is(err, domain.ErrInvalidSex),
		errors.Is(err, domain.ErrInvalidClassification):
		c.JSON(http.StatusBadRequest, domain.NewAPIError(domain.ErrInvalidInput, "Invalid input", err.Error(), requestID))
	case errors.Is(err, domain.ErrInsufficientData):
		c.JSON(http.StatusUnprocessableEntity, domain.NewAPIError(domain.ErrInsufficientDataCode, "Insufficient data for a report", err.Error(), requestID))
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, domain.NewAPIError(domain.ErrNotFoundCode, "Resource not found", err.Error(), requestID))
	case errors.Is(err, service.ErrHistoryUnavailable):
		c.JSON(http.StatusServiceUnavailable, domain.NewAPIError(domain.ErrDatabaseError, "Assessment history unavailable", err.Error(), requestID))
	default:
		s.logger.WithFields(logrus.Fields{
			"correlation_id": requestID,
			"path":           c.FullPath(),
		}).WithError(err).Error("Request failed")
		c.JSON(http.StatusInternalServerError, domain.NewAPIError(domain.ErrInternalServer, "Internal server error", "", requestID))
	}
}

func (s *Server) badRequest(c *gin.Context, details string) {
	c.JSON(http.StatusBadRequest, domain.NewAPIError(
		domain.ErrInvalidInput, "Invalid request", details, c.GetString(middleware.CorrelationIDKey)))
}
