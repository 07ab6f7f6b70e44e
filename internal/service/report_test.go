package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyndok/lancet-obesity-compass/internal/domain"
)

func TestReportGenerator_BuildReport(t *testing.T) {
	generator := NewReportGenerator()
	generator.now = func() time.Time { return time.Date(2025, time.January, 2, 10, 0, 0, 0, time.UTC) }

	engine := newTestEngine()
	data := scenarioB()
	data.Clinical.Hypertension = domain.Bool(true)
	result, ok := engine.Evaluate(data)
	require.True(t, ok)

	report := generator.BuildReport(result, data, "Dr. Rivera", "")

	assert.Equal(t, "January 2, 2025", report.PatientInfo.AssessmentDate)
	assert.Equal(t, "Dr. Rivera", report.PatientInfo.Clinician)
	assert.Equal(t, domain.CLINICAL_OBESITY, report.Result.Classification)
	assert.Equal(t,
		"Clinical Obesity (low confidence). Excess adiposity confirmed with evidence of organ dysfunction (1 systems affected). Affected systems: Cardiovascular.",
		report.Summary)
}

func TestSupportingDataLines(t *testing.T) {
	data := &domain.PatientData{
		Anthropometrics: domain.AnthropometricData{Height: domain.Float(65), Weight: domain.Float(200)},
		Laboratory:      domain.LaboratoryData{FastingGlucose: domain.Float(130)},
	}

	lines := SupportingDataLines(data)

	assert.Equal(t, []string{
		"Height: 65 inches",
		"Weight: 200 lbs",
		"BMI: 33.3",
		"Fasting Glucose: 130 mg/dL",
	}, lines)
}

func TestReportGenerator_RenderHTMLEscapesValues(t *testing.T) {
	generator := NewReportGenerator()
	malicious := `<img src=x onerror=alert("xss")>`

	report := &domain.DiagnosticReport{
		PatientInfo: domain.PatientInfo{AssessmentDate: "January 1, 2025", Clinician: malicious},
		Result: domain.DiagnosticResult{
			Classification: domain.CLINICAL_OBESITY,
			Confidence:     domain.HIGH,
			Criteria: domain.DiagnosticCriteria{
				ExcessAdiposityConfirmed: true,
				OrganDysfunction:         []string{malicious},
				FunctionalLimitations:    []string{malicious},
				RiskFactors:              []string{malicious},
			},
			Recommendations: []string{malicious},
			Reasoning:       malicious,
			AffectedSystems: []string{malicious},
		},
		SupportingData: domain.PatientData{
			Anthropometrics: domain.AnthropometricData{Ethnicity: &malicious},
		},
		Summary: malicious,
	}

	html, err := generator.RenderHTML(report)
	require.NoError(t, err)

	content := string(html)
	assert.NotContains(t, content, malicious)
	assert.Contains(t, content, "&lt;img src=x onerror=alert(&#34;xss&#34;)&gt;")
	assert.Contains(t, content, "Clinical Obesity")
	assert.Contains(t, content, "Excess adiposity confirmed")
}

func TestReportGenerator_RenderText(t *testing.T) {
	generator := NewReportGenerator()
	engine := newTestEngine()
	data := scenarioB()
	data.Laboratory.HDL = domain.Float(35)
	result, ok := engine.Evaluate(data)
	require.True(t, ok)

	text := generator.RenderText(generator.BuildReport(result, data, "", "March 3, 2025"))

	assert.Contains(t, text, "Date: March 3, 2025")
	assert.NotContains(t, text, "Clinician:")
	assert.Contains(t, text, "Classification: Preclinical Obesity")
	assert.Contains(t, text, "  - Low HDL cholesterol")
	assert.Contains(t, text, "  - HDL: 35 mg/dL")
}
