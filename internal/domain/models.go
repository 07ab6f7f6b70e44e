package domain

import (
	"time"
)

// DiagnosticCriteria is derived once per evaluation and never mutated.
type DiagnosticCriteria struct {
	ExcessAdiposityConfirmed bool     `json:"excess_adiposity_confirmed"`
	OrganDysfunction         []string `json:"organ_dysfunction"`
	FunctionalLimitations    []string `json:"functional_limitations"`
	RiskFactors              []string `json:"risk_factors"`
}

// DiagnosticResult is the classification engine's sole output.
type DiagnosticResult struct {
	Classification  Classification     `json:"classification"`
	Confidence      ConfidenceLevel    `json:"confidence"`
	Criteria        DiagnosticCriteria `json:"criteria"`
	Recommendations []string           `json:"recommendations"`
	Reasoning       string             `json:"reasoning"`
	AffectedSystems []string           `json:"affected_systems"`
}

// PatientInfo identifies the assessment on a report.
type PatientInfo struct {
	AssessmentDate string `json:"assessment_date"`
	Clinician      string `json:"clinician,omitempty"`
}

// DiagnosticReport bundles a result with the data that produced it.
type DiagnosticReport struct {
	PatientInfo    PatientInfo      `json:"patient_info"`
	Result         DiagnosticResult `json:"result"`
	SupportingData PatientData      `json:"supporting_data"`
	Summary        string           `json:"summary"`
}

// BMISummary describes a BMI and the weight needed to reach BMI 25.
type BMISummary struct {
	BMI          float64  `json:"bmi"`
	Category     string   `json:"category"`
	TargetWeight *float64 `json:"target_weight,omitempty"`
	WeightToLose *float64 `json:"weight_to_lose,omitempty"`
	WeeksToGoal  *int     `json:"weeks_to_goal,omitempty"`
}

// AssessmentRecord is a persisted evaluation.
type AssessmentRecord struct {
	ID               string           `json:"id"`
	PatientRef       string           `json:"patient_ref"`
	VisitType        VisitType        `json:"visit_type"`
	RequestID        string           `json:"request_id,omitempty"`
	Input            PatientData      `json:"input"`
	Result           DiagnosticResult `json:"result"`
	ProcessingTimeMs int              `json:"processing_time_ms"`
	CreatedAt        time.Time        `json:"created_at"`
}
