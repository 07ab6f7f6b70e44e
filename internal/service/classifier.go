package service

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gyndok/lancet-obesity-compass/internal/domain"
)

const insufficientDataMessage = "Enter basic anthropometric data (height, weight) to begin diagnostic evaluation."

// ErrHistoryUnavailable is returned when no assessment repository is configured.
var ErrHistoryUnavailable = errors.New("assessment history is not configured")

// ClassifierService runs obesity evaluations with optional result caching and
// assessment history.
type ClassifierService struct {
	logger     *logrus.Logger
	ruleEngine *ObesityRuleEngine
	cache      domain.ResultCache
	cacheTTL   time.Duration
	repository domain.AssessmentRepository
}

// ClassifierOption configures a ClassifierService.
type ClassifierOption func(*ClassifierService)

// WithResultCache memoizes results by input hash.
func WithResultCache(cache domain.ResultCache, ttl time.Duration) ClassifierOption {
	return func(c *ClassifierService) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// WithAssessmentRepository persists every successful evaluation that carries
// a patient reference.
func WithAssessmentRepository(repo domain.AssessmentRepository) ClassifierOption {
	return func(c *ClassifierService) {
		c.repository = repo
	}
}

// NewClassifierService creates a new classifier service
func NewClassifierService(logger *logrus.Logger, engine *ObesityRuleEngine, opts ...ClassifierOption) *ClassifierService {
	if engine == nil {
		engine = NewObesityRuleEngine(logger, nil)
	}
	c := &ClassifierService{
		logger:     logger,
		ruleEngine: engine,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Engine returns the underlying rule engine.
func (c *ClassifierService) Engine() *ObesityRuleEngine {
	return c.ruleEngine
}

// EvaluatePatientParams are the inputs of an evaluation request.
type EvaluatePatientParams struct {
	Patient    domain.PatientData `json:"patient"`
	PatientRef string             `json:"patient_ref,omitempty"`
	VisitType  domain.VisitType   `json:"visit_type,omitempty"`
	RequestID  string             `json:"request_id,omitempty"`
}

// EvaluatePatientResult wraps the engine output. Assessed is false when the
// input lacks minimum data; Result is then nil and Message explains why.
type EvaluatePatientResult struct {
	Assessed       bool                     `json:"assessed"`
	Result         *domain.DiagnosticResult `json:"result,omitempty"`
	BMI            *domain.BMISummary       `json:"bmi,omitempty"`
	Message        string                   `json:"message,omitempty"`
	AssessmentID   string                   `json:"assessment_id,omitempty"`
	Cached         bool                     `json:"cached"`
	ProcessingTime time.Duration            `json:"processing_time"`
}

// EvaluatePatient performs the complete classification workflow.
func (c *ClassifierService) EvaluatePatient(ctx context.Context, params *EvaluatePatientParams) (*EvaluatePatientResult, error) {
	startTime := time.Now()

	if params == nil {
		return nil, fmt.Errorf("invalid input parameters: %w", domain.NewValidationError("patient", "is required", nil))
	}
	if err := params.Patient.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input parameters: %w", err)
	}
	if params.VisitType == "" {
		params.VisitType = domain.INITIAL_VISIT
	}
	if !params.VisitType.IsValid() {
		return nil, fmt.Errorf("invalid input parameters: %w", domain.ErrInvalidVisitType)
	}

	c.logger.WithFields(logrus.Fields{
		"patient_ref": params.PatientRef,
		"visit_type":  params.VisitType,
		"request_id":  params.RequestID,
	}).Info("Starting obesity classification")

	output := &EvaluatePatientResult{
		BMI: c.bmiSummary(&params.Patient.Anthropometrics),
	}

	result, cached := c.lookupCache(ctx, &params.Patient)
	if !cached {
		var ok bool
		result, ok = c.ruleEngine.Evaluate(&params.Patient)
		if !ok {
			output.Message = insufficientDataMessage
			output.ProcessingTime = time.Since(startTime)
			c.logger.WithField("patient_ref", params.PatientRef).Info("Classification skipped: insufficient data")
			return output, nil
		}
		c.storeCache(ctx, &params.Patient, result)
	}

	output.Assessed = true
	output.Result = result
	output.Cached = cached
	output.ProcessingTime = time.Since(startTime)

	if c.repository != nil && params.PatientRef != "" {
		record := &domain.AssessmentRecord{
			ID:               uuid.New().String(),
			PatientRef:       params.PatientRef,
			VisitType:        params.VisitType,
			RequestID:        params.RequestID,
			Input:            params.Patient,
			Result:           *result,
			ProcessingTimeMs: int(output.ProcessingTime.Milliseconds()),
			CreatedAt:        time.Now().UTC(),
		}
		if err := c.repository.SaveAssessment(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to save assessment: %w", err)
		}
		output.AssessmentID = record.ID
	}

	fields := logrus.Fields{
		"patient_ref":     params.PatientRef,
		"confidence":      result.Confidence,
		"cached":          cached,
		"processing_time": output.ProcessingTime,
	}
	for k, v := range result.Classification.LogFields() {
		fields[k] = v
	}
	c.logger.WithFields(fields).Info("Obesity classification completed")

	return output, nil
}

// History lists stored assessments for a patient, newest first.
func (c *ClassifierService) History(ctx context.Context, patientRef string, limit int) ([]*domain.AssessmentRecord, error) {
	if c.repository == nil {
		return nil, ErrHistoryUnavailable
	}
	if patientRef == "" {
		return nil, domain.NewValidationError("patient_ref", "is required", patientRef)
	}
	return c.repository.ListAssessments(ctx, patientRef, limit)
}

// Assessment fetches one stored assessment by ID.
func (c *ClassifierService) Assessment(ctx context.Context, id string) (*domain.AssessmentRecord, error) {
	if c.repository == nil {
		return nil, ErrHistoryUnavailable
	}
	return c.repository.GetAssessment(ctx, id)
}

// ClassificationCounts tallies stored assessments per classification.
func (c *ClassifierService) ClassificationCounts(ctx context.Context) (map[domain.Classification]int, error) {
	if c.repository == nil {
		return nil, ErrHistoryUnavailable
	}
	return c.repository.ClassificationCounts(ctx)
}

func (c *ClassifierService) bmiSummary(a *domain.AnthropometricData) *domain.BMISummary {
	if a.Height == nil || a.Weight == nil {
		return nil
	}
	summary, err := CalculateBMI(*a.Height, *a.Weight)
	if err != nil {
		return nil
	}
	return summary
}

// CacheKey derives the memoization key for a patient payload.
func CacheKey(data *domain.PatientData) (string, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", sha256.Sum256(encoded)), nil
}

func (c *ClassifierService) lookupCache(ctx context.Context, data *domain.PatientData) (*domain.DiagnosticResult, bool) {
	if c.cache == nil {
		return nil, false
	}
	key, err := CacheKey(data)
	if err != nil {
		return nil, false
	}
	return c.cache.Get(ctx, key)
}

func (c *ClassifierService) storeCache(ctx context.Context, data *domain.PatientData, result *domain.DiagnosticResult) {
	if c.cache == nil {
		return
	}
	key, err := CacheKey(data)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, result, c.cacheTTL); err != nil {
		c.logger.WithError(err).Warn("Failed to cache classification result")
	}
}
