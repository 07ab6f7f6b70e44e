// Package domain contains the core entities for obesity classification
// following the Lancet Diabetes & Endocrinology Commission criteria for
// clinical and preclinical obesity.
//
// Reference: Rubino et al. (2025) Definition and diagnostic criteria of clinical
// obesity. Lancet Diabetes Endocrinol. doi: 10.1016/S2213-8587(24)00316-4
package domain

import (
	"errors"
	"fmt"
)

// Classification is the obesity category assigned to a patient.
// The three values are mutually exclusive and chosen once per evaluation.
type Classification string

const (
	NO_OBESITY          Classification = "no-obesity"
	PRECLINICAL_OBESITY Classification = "preclinical-obesity"
	CLINICAL_OBESITY    Classification = "clinical-obesity"
)

// ConfidenceLevel reflects how much corroborating data was available to the
// classifier. It is a completeness heuristic, not statistical certainty.
type ConfidenceLevel string

const (
	HIGH   ConfidenceLevel = "high"
	MEDIUM ConfidenceLevel = "medium"
	LOW    ConfidenceLevel = "low"
)

// Sex is the biological sex used by sex-specific anthropometric thresholds.
type Sex string

const (
	MALE   Sex = "male"
	FEMALE Sex = "female"
)

// VisitType distinguishes first consultations from follow-ups.
type VisitType string

const (
	INITIAL_VISIT VisitType = "initial"
	RETURN_VISIT  VisitType = "return"
)

// Validation errors for clinical data integrity
var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidClassification = errors.New("invalid obesity classification")
	ErrInvalidConfidence     = errors.New("invalid confidence level")
	ErrInvalidSex            = errors.New("invalid sex")
	ErrInvalidVisitType      = errors.New("invalid visit type")
	ErrInsufficientData      = errors.New("insufficient anthropometric data")
)

// IsValid reports whether c is one of the three defined categories.
func (c Classification) IsValid() bool {
	switch c {
	case NO_OBESITY, PRECLINICAL_OBESITY, CLINICAL_OBESITY:
		return true
	default:
		return false
	}
}

// String returns the string representation of the classification.
func (c Classification) String() string {
	return string(c)
}

// Label returns the display name used on reports.
func (c Classification) Label() string {
	switch c {
	case CLINICAL_OBESITY:
		return "Clinical Obesity"
	case PRECLINICAL_OBESITY:
		return "Preclinical Obesity"
	case NO_OBESITY:
		return "No Obesity"
	default:
		return "Assessment Pending"
	}
}

// Description returns a one-line explanation of the category.
func (c Classification) Description() string {
	switch c {
	case CLINICAL_OBESITY:
		return "Excess adiposity with organ dysfunction or functional limitations"
	case PRECLINICAL_OBESITY:
		return "Excess adiposity without organ dysfunction"
	case NO_OBESITY:
		return "Excess adiposity not confirmed"
	default:
		return "Insufficient data for classification"
	}
}

// RequiresClinicalAction reports whether the category calls for active
// treatment rather than prevention or routine care.
func (c Classification) RequiresClinicalAction() bool {
	return c == CLINICAL_OBESITY
}

// LogFields returns structured logging fields for audit trails.
func (c Classification) LogFields() map[string]any {
	return map[string]any{
		"classification":  string(c),
		"label":           c.Label(),
		"is_valid":        c.IsValid(),
		"requires_action": c.RequiresClinicalAction(),
	}
}

// IsValid validates the confidence level.
func (cl ConfidenceLevel) IsValid() bool {
	switch cl {
	case HIGH, MEDIUM, LOW:
		return true
	default:
		return false
	}
}

// String returns the string representation of the confidence level.
func (cl ConfidenceLevel) String() string {
	return string(cl)
}

// IsValid validates the sex value.
func (s Sex) IsValid() bool {
	return s == MALE || s == FEMALE
}

// IsValid validates the visit type.
func (v VisitType) IsValid() bool {
	return v == INITIAL_VISIT || v == RETURN_VISIT
}

// ParseClassification converts a label into a Classification.
func ParseClassification(s string) (Classification, error) {
	c := Classification(s)
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidClassification, s)
	}
	return c, nil
}

// ParseVisitType converts a label into a VisitType. An empty string yields
// INITIAL_VISIT.
func ParseVisitType(s string) (VisitType, error) {
	if s == "" {
		return INITIAL_VISIT, nil
	}
	v := VisitType(s)
	if !v.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidVisitType, s)
	}
	return v, nil
}

// Float returns a pointer to v. Used to populate optional measurements.
func Float(v float64) *float64 {
	return &v
}

// Bool returns a pointer to v. Used to populate optional flags.
func Bool(v bool) *bool {
	return &v
}
