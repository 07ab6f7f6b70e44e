package service

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/gyndok/lancet-obesity-compass/internal/domain"
)

const reportDateLayout = "January 2, 2006"

// ReportGenerator formats diagnostic results for clinicians.
type ReportGenerator struct {
	now  func() time.Time
	html *template.Template
}

// NewReportGenerator creates a report generator.
func NewReportGenerator() *ReportGenerator {
	return &ReportGenerator{
		now:  time.Now,
		html: template.Must(template.New("report").Parse(reportTemplate)),
	}
}

// BuildReport assembles a DiagnosticReport. An empty date uses today.
func (g *ReportGenerator) BuildReport(result *domain.DiagnosticResult, data *domain.PatientData, clinician, assessmentDate string) *domain.DiagnosticReport {
	if assessmentDate == "" {
		assessmentDate = g.now().Format(reportDateLayout)
	}
	return &domain.DiagnosticReport{
		PatientInfo: domain.PatientInfo{
			AssessmentDate: assessmentDate,
			Clinician:      clinician,
		},
		Result:         *result,
		SupportingData: *data,
		Summary:        Summarize(result),
	}
}

// Summarize renders a one-paragraph plain text summary of a result.
func Summarize(result *domain.DiagnosticResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%s confidence). %s", result.Classification.Label(), result.Confidence, result.Reasoning)
	if len(result.AffectedSystems) > 0 {
		fmt.Fprintf(&sb, " Affected systems: %s.", strings.Join(result.AffectedSystems, ", "))
	}
	return sb.String()
}

// SupportingDataLines lists the measurements shown under "Patient Data" on a
// report. Only present values are listed.
func SupportingDataLines(data *domain.PatientData) []string {
	var lines []string
	add := func(label string, v *float64, unit string) {
		if v == nil {
			return
		}
		line := label + ": " + strconv.FormatFloat(*v, 'f', -1, 64)
		if unit != "" {
			line += " " + unit
		}
		lines = append(lines, line)
	}

	a := data.Anthropometrics
	add("Height", a.Height, "inches")
	add("Weight", a.Weight, "lbs")
	if bmi, ok := ResolveBMI(&a); ok {
		lines = append(lines, fmt.Sprintf("BMI: %.1f", bmi))
	}
	add("Waist Circumference", a.WaistCircumference, "inches")
	add("Waist-to-Hip Ratio", a.WaistHipRatio, "")
	add("Waist-to-Height Ratio", a.WaistHeightRatio, "")
	add("Body Fat", a.BodyFatPercentage, "%")
	if a.Ethnicity != nil && strings.TrimSpace(*a.Ethnicity) != "" {
		lines = append(lines, "Ethnicity: "+*a.Ethnicity)
	}

	l := data.Laboratory
	add("Fasting Glucose", l.FastingGlucose, "mg/dL")
	add("HbA1c", l.HbA1c, "%")
	add("Triglycerides", l.Triglycerides, "mg/dL")
	add("HDL", l.HDL, "mg/dL")
	add("ALT", l.ALT, "U/L")
	add("AST", l.AST, "U/L")
	add("eGFR", l.EGFR, "mL/min/1.73m²")
	add("CRP", l.CRP, "mg/L")

	return lines
}

// RenderHTML renders a standalone HTML document. Every value is escaped.
func (g *ReportGenerator) RenderHTML(report *domain.DiagnosticReport) ([]byte, error) {
	view := struct {
		*domain.DiagnosticReport
		Label        string
		Description  string
		PatientLines []string
	}{
		DiagnosticReport: report,
		Label:            report.Result.Classification.Label(),
		Description:      report.Result.Classification.Description(),
		PatientLines:     SupportingDataLines(&report.SupportingData),
	}

	var buf bytes.Buffer
	if err := g.html.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderText renders the report as plain text for terminals and MCP clients.
func (g *ReportGenerator) RenderText(report *domain.DiagnosticReport) string {
	var sb strings.Builder
	r := report.Result

	sb.WriteString("OBESITY DIAGNOSTIC ASSESSMENT\n")
	fmt.Fprintf(&sb, "Date: %s\n", report.PatientInfo.AssessmentDate)
	if report.PatientInfo.Clinician != "" {
		fmt.Fprintf(&sb, "Clinician: %s\n", report.PatientInfo.Clinician)
	}
	fmt.Fprintf(&sb, "\nClassification: %s\n%s\n", r.Classification.Label(), r.Classification.Description())
	fmt.Fprintf(&sb, "Confidence: %s\n", r.Confidence)
	fmt.Fprintf(&sb, "\nReasoning: %s\n", r.Reasoning)

	writeList := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&sb, "\n%s:\n", title)
		for _, item := range items {
			fmt.Fprintf(&sb, "  - %s\n", item)
		}
	}
	writeList("Organ Dysfunction", r.Criteria.OrganDysfunction)
	writeList("Functional Limitations", r.Criteria.FunctionalLimitations)
	writeList("Risk Factors", r.Criteria.RiskFactors)
	writeList("Affected Systems", r.AffectedSystems)
	writeList("Recommendations", r.Recommendations)
	writeList("Patient Data", SupportingDataLines(&report.SupportingData))

	return sb.String()
}

const reportTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Obesity Diagnostic Assessment</title>
<style>
body { font-family: sans-serif; max-width: 800px; margin: 2em auto; color: #1f2933; }
h1 { border-bottom: 2px solid #1f2933; padding-bottom: .3em; }
.classification { padding: 1em; border-radius: 6px; background: #f0f4f8; }
.meta { color: #52606d; font-size: .9em; }
</style>
</head>
<body>
<h1>Obesity Diagnostic Assessment</h1>
<p class="meta">Assessment date: {{.PatientInfo.AssessmentDate}}{{with .PatientInfo.Clinician}} &middot; Clinician: {{.}}{{end}}</p>
<div class="classification">
<h2>{{.Label}}</h2>
<p>{{.Description}}</p>
<p>Confidence: {{.Result.Confidence}}{{if .Result.Criteria.ExcessAdiposityConfirmed}} &middot; Excess adiposity confirmed{{end}}</p>
</div>
<h3>Clinical Reasoning</h3>
<p>{{.Result.Reasoning}}</p>
{{with .Result.Criteria.OrganDysfunction}}<h3>Organ Dysfunction Identified</h3>
<ul>{{range .}}<li>{{.}}</li>{{end}}</ul>
{{end}}{{with .Result.Criteria.FunctionalLimitations}}<h3>Functional Limitations</h3>
<ul>{{range .}}<li>{{.}}</li>{{end}}</ul>
{{end}}{{with .Result.AffectedSystems}}<h3>Affected Systems</h3>
<ul>{{range .}}<li>{{.}}</li>{{end}}</ul>
{{end}}<h3>Clinical Recommendations</h3>
<ul>{{range .Result.Recommendations}}<li>{{.}}</li>{{end}}</ul>
{{with .Result.Criteria.RiskFactors}}<h3>Risk Factors</h3>
<ul>{{range .}}<li>{{.}}</li>{{end}}</ul>
{{end}}{{with .PatientLines}}<h3>Patient Data</h3>
<ul>{{range .}}<li>{{.}}</li>{{end}}</ul>
{{end}}<h3>Summary</h3>
<p>{{.Summary}}</p>
<p class="meta">Based on Lancet Commission Criteria (2025). This tool supports clinical decision-making but does not replace clinical judgment.</p>
</body>
</html>
`
