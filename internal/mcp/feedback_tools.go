package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/gyndok/lancet-obesity-compass/internal/domain"
	"github.com/gyndok/lancet-obesity-compass/internal/feedback"
)

const defaultListLimit = 20

// SubmitFeedbackParams defines parameters for the submit_feedback tool
type SubmitFeedbackParams struct {
	PatientRef              string `json:"patient_ref" jsonschema:"patient reference"`
	VisitType               string `json:"visit_type,omitempty" jsonschema:"initial (default) or return"`
	SuggestedClassification string `json:"suggested_classification" jsonschema:"no-obesity, preclinical-obesity or clinical-obesity as suggested by the engine"`
	ClinicianClassification string `json:"clinician_classification,omitempty" jsonschema:"the clinician's classification; omit to confirm the suggestion"`
	Reasoning               string `json:"reasoning,omitempty" jsonschema:"engine reasoning at the time of the decision"`
	Notes                   string `json:"notes,omitempty" jsonschema:"clinician notes"`
	Clinician               string `json:"clinician,omitempty" jsonschema:"clinician name"`
}

// SubmitFeedbackResult defines the result of submit_feedback
type SubmitFeedbackResult struct {
	Success  bool               `json:"success"`
	Message  string             `json:"message"`
	Feedback *feedback.Feedback `json:"feedback,omitempty"`
}

// QueryFeedbackParams defines parameters for the query_feedback tool
type QueryFeedbackParams struct {
	PatientRef string `json:"patient_ref" jsonschema:"patient reference"`
	VisitType  string `json:"visit_type,omitempty" jsonschema:"initial (default) or return"`
}

// QueryFeedbackResult defines the result of query_feedback
type QueryFeedbackResult struct {
	Found    bool               `json:"found"`
	Feedback *feedback.Feedback `json:"feedback,omitempty"`
	Message  string             `json:"message"`
}

// ListFeedbackParams defines parameters for the list_feedback tool
type ListFeedbackParams struct {
	Limit  int `json:"limit,omitempty" jsonschema:"maximum entries to return, default 20"`
	Offset int `json:"offset,omitempty" jsonschema:"entries to skip"`
}

// ListFeedbackResult defines the result of list_feedback
type ListFeedbackResult struct {
	Total    int64                `json:"total"`
	Count    int                  `json:"count"`
	Feedback []*feedback.Feedback `json:"feedback"`
}

// ExportFeedbackParams has no fields; exports always go to the data directory.
type ExportFeedbackParams struct{}

// ExportFeedbackResult defines the result of export_feedback
type ExportFeedbackResult struct {
	Success  bool   `json:"success"`
	FilePath string `json:"file_path"`
	Count    int64  `json:"count"`
	Message  string `json:"message"`
}

// ImportFeedbackParams defines parameters for the import_feedback tool
type ImportFeedbackParams struct {
	FilePath string `json:"file_path" jsonschema:"path to a JSON export file"`
}

// ImportFeedbackResult defines the result of import_feedback
type ImportFeedbackResult struct {
	Success  bool   `json:"success"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Message  string `json:"message"`
}

// handleSubmitFeedback handles the submit_feedback tool invocation
func (s *LiteServer) handleSubmitFeedback(ctx context.Context, req *mcp.CallToolRequest, params SubmitFeedbackParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "submit_feedback").Info("Tool invoked")

	clinicianClassification := params.ClinicianClassification
	if clinicianClassification == "" {
		clinicianClassification = params.SuggestedClassification
	}
	agreed := clinicianClassification == params.SuggestedClassification

	fb := &feedback.Feedback{
		PatientRef:              params.PatientRef,
		VisitType:               domain.VisitType(params.VisitType),
		SuggestedClassification: domain.Classification(params.SuggestedClassification),
		ClinicianClassification: domain.Classification(clinicianClassification),
		ClinicianAgreed:         agreed,
		Reasoning:               params.Reasoning,
		Notes:                   params.Notes,
		Clinician:               params.Clinician,
	}

	if err := s.feedbackStore.Save(ctx, fb); err != nil {
		s.logger.WithError(err).Error("Failed to save feedback")
		return createErrorResult("Failed to save feedback", err), nil, nil
	}

	msg := fmt.Sprintf("Feedback saved: clinician confirmed %s", fb.ClinicianClassification.Label())
	if !agreed {
		msg = fmt.Sprintf("Feedback saved: classification corrected from %s to %s",
			fb.SuggestedClassification.Label(), fb.ClinicianClassification.Label())
	}

	s.logger.WithFields(logrus.Fields{
		"visit_type": fb.VisitType,
		"overridden": fb.Overridden(),
	}).Info("Clinician feedback saved")

	return textResult(msg), SubmitFeedbackResult{Success: true, Message: msg, Feedback: fb}, nil
}

// handleQueryFeedback handles the query_feedback tool invocation
func (s *LiteServer) handleQueryFeedback(ctx context.Context, req *mcp.CallToolRequest, params QueryFeedbackParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "query_feedback").Info("Tool invoked")

	if params.PatientRef == "" {
		return createErrorResult("Missing required parameter", fmt.Errorf("patient_ref is required")), nil, nil
	}
	visitType := domain.VisitType(params.VisitType)
	if visitType == "" {
		visitType = domain.INITIAL_VISIT
	}
	if !visitType.IsValid() {
		return createErrorResult("Invalid parameter", fmt.Errorf("%w: %s", domain.ErrInvalidVisitType, params.VisitType)), nil, nil
	}

	fb, err := s.feedbackStore.Get(ctx, params.PatientRef, visitType)
	if err != nil {
		s.logger.WithError(err).Error("Failed to query feedback")
		return createErrorResult("Failed to query feedback", err), nil, nil
	}

	result := QueryFeedbackResult{
		Message: fmt.Sprintf("No previous feedback found for %s (%s visit)", params.PatientRef, visitType),
	}
	if fb != nil {
		result.Found = true
		result.Feedback = fb
		if fb.Overridden() {
			result.Message = fmt.Sprintf("Found previous feedback: clinician corrected to %s (was suggested %s)",
				fb.ClinicianClassification.Label(), fb.SuggestedClassification.Label())
		} else {
			result.Message = fmt.Sprintf("Found previous feedback: clinician agreed with %s",
				fb.ClinicianClassification.Label())
		}
	}

	return textResult(result.Message), result, nil
}

// handleListFeedback handles the list_feedback tool invocation
func (s *LiteServer) handleListFeedback(ctx context.Context, req *mcp.CallToolRequest, params ListFeedbackParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "list_feedback").Info("Tool invoked")

	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	entries, err := s.feedbackStore.List(ctx, limit, offset)
	if err != nil {
		return createErrorResult("Failed to list feedback", err), nil, nil
	}
	total, err := s.feedbackStore.Count(ctx)
	if err != nil {
		return createErrorResult("Failed to count feedback", err), nil, nil
	}
	if entries == nil {
		entries = []*feedback.Feedback{}
	}

	result := ListFeedbackResult{Total: total, Count: len(entries), Feedback: entries}
	return textResult(fmt.Sprintf("Showing %d of %d feedback entries", result.Count, total)), result, nil
}

// handleExportFeedback handles the export_feedback tool invocation
func (s *LiteServer) handleExportFeedback(ctx context.Context, req *mcp.CallToolRequest, params ExportFeedbackParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "export_feedback").Info("Tool invoked")

	exportDir := s.config.ExportDir()
	if err := os.MkdirAll(exportDir, 0755); err != nil {
		return createErrorResult("Failed to create export directory", err), nil, nil
	}

	filename := fmt.Sprintf("feedback_export_%s.json", time.Now().Format("20060102_150405"))
	filePath := filepath.Join(exportDir, filename)

	file, err := os.Create(filePath)
	if err != nil {
		return createErrorResult("Failed to create export file", err), nil, nil
	}
	defer file.Close()

	if err := s.feedbackStore.ExportJSON(ctx, file); err != nil {
		s.logger.WithError(err).Error("Failed to export feedback")
		return createErrorResult("Failed to export feedback", err), nil, nil
	}

	count, _ := s.feedbackStore.Count(ctx)
	result := ExportFeedbackResult{
		Success:  true,
		FilePath: filePath,
		Count:    count,
		Message:  fmt.Sprintf("Exported %d feedback entries to %s", count, filePath),
	}
	return textResult(result.Message), result, nil
}

// handleImportFeedback handles the import_feedback tool invocation
func (s *LiteServer) handleImportFeedback(ctx context.Context, req *mcp.CallToolRequest, params ImportFeedbackParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "import_feedback").Info("Tool invoked")

	if params.FilePath == "" {
		return createErrorResult("Missing required parameter", fmt.Errorf("file_path is required")), nil, nil
	}

	file, err := os.Open(params.FilePath)
	if err != nil {
		return createErrorResult("Failed to open file", err), nil, nil
	}
	defer file.Close()

	imported, skipped, err := s.feedbackStore.ImportJSON(ctx, file)
	if err != nil {
		s.logger.WithError(err).Error("Failed to import feedback")
		return createErrorResult("Failed to import feedback", err), nil, nil
	}

	result := ImportFeedbackResult{
		Success:  true,
		Imported: imported,
		Skipped:  skipped,
		Message:  fmt.Sprintf("Imported %d entries, skipped %d duplicates", imported, skipped),
	}
	return textResult(result.Message), result, nil
}
