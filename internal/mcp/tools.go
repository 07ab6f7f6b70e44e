package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/gyndok/lancet-obesity-compass/internal/domain"
	"github.com/gyndok/lancet-obesity-compass/internal/service"
)

// EvaluateObesityParams defines parameters for the evaluate_obesity tool
type EvaluateObesityParams struct {
	Patient    map[string]any `json:"patient" jsonschema:"patient data with anthropometrics, clinical, laboratory and functional sections"`
	PatientRef string         `json:"patient_ref,omitempty" jsonschema:"optional patient reference used to key feedback"`
	VisitType  string         `json:"visit_type,omitempty" jsonschema:"initial or return"`
}

// CalculateBMIParams defines parameters for the calculate_bmi tool
type CalculateBMIParams struct {
	Height       *float64 `json:"height,omitempty" jsonschema:"height in inches"`
	HeightFeet   *float64 `json:"height_feet,omitempty" jsonschema:"height feet component, used when height is absent"`
	HeightInches *float64 `json:"height_inches,omitempty" jsonschema:"height inches component"`
	Weight       float64  `json:"weight" jsonschema:"weight in pounds"`
}

// GenerateReportParams defines parameters for the generate_report tool
type GenerateReportParams struct {
	Patient        map[string]any `json:"patient" jsonschema:"patient data with anthropometrics, clinical, laboratory and functional sections"`
	Clinician      string         `json:"clinician,omitempty" jsonschema:"clinician named on the report"`
	AssessmentDate string         `json:"assessment_date,omitempty" jsonschema:"assessment date shown on the report, defaults to today"`
	Format         string         `json:"format,omitempty" jsonschema:"text (default), html or json"`
}

// handleEvaluateObesity handles the evaluate_obesity tool invocation
func (s *LiteServer) handleEvaluateObesity(ctx context.Context, req *mcp.CallToolRequest, params EvaluateObesityParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "evaluate_obesity").Info("Tool invoked")

	patient, err := s.parser.ParsePatientMap(params.Patient)
	if err != nil {
		return createErrorResult("Invalid patient data", err), nil, nil
	}

	out, err := s.classifier.EvaluatePatient(ctx, &service.EvaluatePatientParams{
		Patient:    *patient,
		PatientRef: params.PatientRef,
		VisitType:  domain.VisitType(params.VisitType),
	})
	if err != nil {
		return createErrorResult("Classification failed", err), nil, nil
	}

	if !out.Assessed {
		return textResult(out.Message), out, nil
	}

	var sb strings.Builder
	sb.WriteString(service.Summarize(out.Result))
	if out.BMI != nil {
		fmt.Fprintf(&sb, "\nBMI: %.1f (%s)", out.BMI.BMI, out.BMI.Category)
	}
	if len(out.Result.Recommendations) > 0 {
		sb.WriteString("\nRecommendations:")
		for _, r := range out.Result.Recommendations {
			sb.WriteString("\n  - " + r)
		}
	}
	return textResult(sb.String()), out, nil
}

// handleCalculateBMI handles the calculate_bmi tool invocation
func (s *LiteServer) handleCalculateBMI(ctx context.Context, req *mcp.CallToolRequest, params CalculateBMIParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "calculate_bmi").Info("Tool invoked")

	var height float64
	switch {
	case params.Height != nil:
		height = *params.Height
	case params.HeightFeet != nil:
		inches := 0.0
		if params.HeightInches != nil {
			inches = *params.HeightInches
		}
		h, err := service.HeightFromFeetInches(*params.HeightFeet, inches)
		if err != nil {
			return createErrorResult("Invalid height", err), nil, nil
		}
		height = h
	default:
		return createErrorResult("Missing required parameter", fmt.Errorf("height or height_feet is required")), nil, nil
	}

	summary, err := service.CalculateBMI(height, params.Weight)
	if err != nil {
		return createErrorResult("BMI calculation failed", err), nil, nil
	}

	text := fmt.Sprintf("BMI %.1f (%s).", summary.BMI, summary.Category)
	if summary.WeightToLose != nil {
		text += fmt.Sprintf(" Target weight %.0f lb: %.1f lb to lose, about %d weeks at 1.5 lb per week.",
			*summary.TargetWeight, *summary.WeightToLose, *summary.WeeksToGoal)
	}
	return textResult(text), summary, nil
}

// handleGenerateReport handles the generate_report tool invocation
func (s *LiteServer) handleGenerateReport(ctx context.Context, req *mcp.CallToolRequest, params GenerateReportParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithFields(logrus.Fields{
		"tool":   "generate_report",
		"format": params.Format,
	}).Info("Tool invoked")

	format := params.Format
	if format == "" {
		format = "text"
	}
	if format != "text" && format != "html" && format != "json" {
		return createErrorResult("Invalid parameter", fmt.Errorf("format must be one of text, html, json")), nil, nil
	}

	patient, err := s.parser.ParsePatientMap(params.Patient)
	if err != nil {
		return createErrorResult("Invalid patient data", err), nil, nil
	}

	out, err := s.classifier.EvaluatePatient(ctx, &service.EvaluatePatientParams{Patient: *patient})
	if err != nil {
		return createErrorResult("Classification failed", err), nil, nil
	}
	if !out.Assessed {
		return createErrorResult("Insufficient data for a report", domain.NewMissingDataError(patient.Anthropometrics)), nil, nil
	}

	report := s.reports.BuildReport(out.Result, patient, params.Clinician, params.AssessmentDate)

	var text string
	switch format {
	case "html":
		body, err := s.reports.RenderHTML(report)
		if err != nil {
			return createErrorResult("Report rendering failed", err), nil, nil
		}
		text = string(body)
	case "json":
		body, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return createErrorResult("Report rendering failed", err), nil, nil
		}
		text = string(body)
	default:
		text = s.reports.RenderText(report)
	}

	return textResult(text), report, nil
}
