package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gyndok/lancet-obesity-compass/internal/domain"
	"github.com/gyndok/lancet-obesity-compass/internal/feedback"
	"github.com/gyndok/lancet-obesity-compass/internal/middleware"
	"github.com/gyndok/lancet-obesity-compass/internal/service"
)

const (
	healthCheckTimeout = 2 * time.Second
	defaultPageSize    = 50
	maxPageSize        = 500
)

type evaluateRequest struct {
	Patient    map[string]any `json:"patient" binding:"required"`
	PatientRef string         `json:"patient_ref"`
	VisitType  string         `json:"visit_type"`
}

type reportRequest struct {
	evaluateRequest
	Clinician      string `json:"clinician"`
	AssessmentDate string `json:"assessment_date"`
}

type bmiRequest struct {
	Height       *float64 `json:"height"`
	HeightFeet   *float64 `json:"height_feet"`
	HeightInches *float64 `json:"height_inches"`
	Weight       *float64 `json:"weight" binding:"required"`
}

// handleHealth reports overall status and the result of each dependency probe
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	checks := make(map[string]string, len(s.healthChecks))
	for name, check := range s.healthChecks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"version":   s.configManager.GetConfig().MCP.ServerVersion,
		"checks":    checks,
	})
}

// evaluate parses the request patient and runs the classifier
func (s *Server) evaluate(c *gin.Context, req *evaluateRequest) (*service.EvaluatePatientResult, *domain.PatientData, error) {
	patient, err := s.parser.ParsePatientMap(req.Patient)
	if err != nil {
		return nil, nil, err
	}

	visitType := domain.VisitType(req.VisitType)
	out, err := s.classifier.EvaluatePatient(c.Request.Context(), &service.EvaluatePatientParams{
		Patient:    *patient,
		PatientRef: req.PatientRef,
		VisitType:  visitType,
		RequestID:  c.GetString(middleware.CorrelationIDKey),
	})
	if err != nil {
		return nil, nil, err
	}
	return out, patient, nil
}

// handleEvaluate classifies a patient. Insufficient data is a 200 with assessed=false.
func (s *Server) handleEvaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err.Error())
		return
	}

	out, _, err := s.evaluate(c, &req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// handleBMI calculates BMI from inches or feet+inches and pounds
func (s *Server) handleBMI(c *gin.Context) {
	var req bmiRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err.Error())
		return
	}

	var height float64
	switch {
	case req.Height != nil:
		height = *req.Height
	case req.HeightFeet != nil:
		inches := 0.0
		if req.HeightInches != nil {
			inches = *req.HeightInches
		}
		h, err := service.HeightFromFeetInches(*req.HeightFeet, inches)
		if err != nil {
			s.respondError(c, err)
			return
		}
		height = h
	default:
		s.badRequest(c, "height or height_feet is required")
		return
	}

	summary, err := service.CalculateBMI(height, *req.Weight)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// handleReport evaluates and renders a clinician report as json, html or text
func (s *Server) handleReport(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err.Error())
		return
	}

	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "html" && format != "text" {
		s.badRequest(c, "format must be one of json, html, text")
		return
	}

	out, patient, err := s.evaluate(c, &req.evaluateRequest)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !out.Assessed {
		s.respondError(c, domain.NewMissingDataError(patient.Anthropometrics))
		return
	}

	report := s.reports.BuildReport(out.Result, patient, req.Clinician, req.AssessmentDate)
	switch format {
	case "html":
		body, err := s.reports.RenderHTML(report)
		if err != nil {
			s.respondError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", body)
	case "text":
		c.String(http.StatusOK, s.reports.RenderText(report))
	default:
		c.JSON(http.StatusOK, report)
	}
}

func (s *Server) requireFeedback(c *gin.Context) bool {
	if s.feedback != nil {
		return true
	}
	c.JSON(http.StatusServiceUnavailable, domain.NewAPIError(
		domain.ErrDatabaseError, "Feedback storage unavailable", "", c.GetString(middleware.CorrelationIDKey)))
	return false
}

// handleSubmitFeedback stores or replaces clinician feedback for a patient visit
func (s *Server) handleSubmitFeedback(c *gin.Context) {
	if !s.requireFeedback(c) {
		return
	}

	var entry feedback.Feedback
	if err := c.ShouldBindJSON(&entry); err != nil {
		s.badRequest(c, err.Error())
		return
	}
	entry.ID = 0

	if err := s.feedback.Save(c.Request.Context(), &entry); err != nil {
		s.respondError(c, err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"correlation_id": c.GetString(middleware.CorrelationIDKey),
		"visit_type":     entry.VisitType,
		"overridden":     entry.Overridden(),
	}).Info("Clinician feedback saved")

	c.JSON(http.StatusCreated, entry)
}

// handleGetFeedback returns feedback for one patient visit
func (s *Server) handleGetFeedback(c *gin.Context) {
	if !s.requireFeedback(c) {
		return
	}

	visitType := domain.VisitType(c.DefaultQuery("visit_type", string(domain.INITIAL_VISIT)))
	if !visitType.IsValid() {
		s.respondError(c, domain.ErrInvalidVisitType)
		return
	}

	entry, err := s.feedback.Get(c.Request.Context(), c.Param("patient_ref"), visitType)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if entry == nil {
		s.respondError(c, domain.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// handleListFeedback pages through stored feedback, newest first
func (s *Server) handleListFeedback(c *gin.Context) {
	if !s.requireFeedback(c) {
		return
	}

	limit, offset, ok := s.pagination(c)
	if !ok {
		return
	}

	entries, err := s.feedback.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}
	total, err := s.feedback.Count(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	if entries == nil {
		entries = []*feedback.Feedback{}
	}

	c.JSON(http.StatusOK, gin.H{
		"feedback": entries,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// handleListAssessments returns a patient's stored assessments, newest first
func (s *Server) handleListAssessments(c *gin.Context) {
	limit, _, ok := s.pagination(c)
	if !ok {
		return
	}

	records, err := s.classifier.History(c.Request.Context(), c.Param("patient_ref"), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if records == nil {
		records = []*domain.AssessmentRecord{}
	}
	c.JSON(http.StatusOK, gin.H{
		"patient_ref": c.Param("patient_ref"),
		"assessments": records,
	})
}

// handleGetAssessment returns one stored assessment
func (s *Server) handleGetAssessment(c *gin.Context) {
	record, err := s.classifier.Assessment(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleClassificationStats(c *gin.Context) {
	counts, err := s.classifier.ClassificationCounts(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{
		"counts": counts,
		"total":  total,
	})
}

// pagination reads limit and offset query parameters
func (s *Server) pagination(c *gin.Context) (limit, offset int, ok bool) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || limit <= 0 {
		s.badRequest(c, "limit must be a positive integer")
		return 0, 0, false
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		s.badRequest(c, "offset must be a non-negative integer")
		return 0, 0, false
	}
	return limit, offset, true
}
