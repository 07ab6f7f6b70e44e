package domain

import (
	"fmt"
)

// PatientData is the classification engine's sole input. Every field is
// optional; nil means unknown and never counts as negative.
type PatientData struct {
	Anthropometrics AnthropometricData `json:"anthropometrics" yaml:"anthropometrics"`
	Clinical        ClinicalData       `json:"clinical" yaml:"clinical"`
	Laboratory      LaboratoryData     `json:"laboratory" yaml:"laboratory"`
	Functional      FunctionalData     `json:"functional" yaml:"functional"`
}

// AnthropometricData holds body measurements. Lengths are in inches and
// weight in pounds.
type AnthropometricData struct {
	Height             *float64 `json:"height,omitempty" yaml:"height,omitempty"`
	Weight             *float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
	BMI                *float64 `json:"bmi,omitempty" yaml:"bmi,omitempty"`
	WaistCircumference *float64 `json:"waist_circumference,omitempty" yaml:"waist_circumference,omitempty"`
	HipCircumference   *float64 `json:"hip_circumference,omitempty" yaml:"hip_circumference,omitempty"`
	WaistHipRatio      *float64 `json:"waist_hip_ratio,omitempty" yaml:"waist_hip_ratio,omitempty"`
	WaistHeightRatio   *float64 `json:"waist_height_ratio,omitempty" yaml:"waist_height_ratio,omitempty"`
	BodyFatPercentage  *float64 `json:"body_fat_percentage,omitempty" yaml:"body_fat_percentage,omitempty"`
	Age                *float64 `json:"age,omitempty" yaml:"age,omitempty"`
	Sex                *Sex     `json:"sex,omitempty" yaml:"sex,omitempty"`
	Ethnicity          *string  `json:"ethnicity,omitempty" yaml:"ethnicity,omitempty"`
}

// ClinicalData holds symptom and past-medical-history flags.
type ClinicalData struct {
	// Symptoms
	Breathlessness      *bool `json:"breathlessness,omitempty" yaml:"breathlessness,omitempty"`
	Fatigue             *bool `json:"fatigue,omitempty" yaml:"fatigue,omitempty"`
	ChronicPain         *bool `json:"chronic_pain,omitempty" yaml:"chronic_pain,omitempty"`
	UrinaryIncontinence *bool `json:"urinary_incontinence,omitempty" yaml:"urinary_incontinence,omitempty"`
	SleepDisorders      *bool `json:"sleep_disorders,omitempty" yaml:"sleep_disorders,omitempty"`
	Reflux              *bool `json:"reflux,omitempty" yaml:"reflux,omitempty"`
	Osteoarthritis      *bool `json:"osteoarthritis,omitempty" yaml:"osteoarthritis,omitempty"`

	// History
	Type2Diabetes         *bool `json:"type2_diabetes,omitempty" yaml:"type2_diabetes,omitempty"`
	Hypertension          *bool `json:"hypertension,omitempty" yaml:"hypertension,omitempty"`
	PCOS                  *bool `json:"pcos,omitempty" yaml:"pcos,omitempty"`
	SleepApnea            *bool `json:"sleep_apnea,omitempty" yaml:"sleep_apnea,omitempty"`
	NAFLD                 *bool `json:"nafld,omitempty" yaml:"nafld,omitempty"`
	CardiovascularDisease *bool `json:"cardiovascular_disease,omitempty" yaml:"cardiovascular_disease,omitempty"`
	MentalHealth          *bool `json:"mental_health,omitempty" yaml:"mental_health,omitempty"`
}

// LaboratoryData holds lab values in conventional US units (mg/dL, %, U/L).
type LaboratoryData struct {
	FastingGlucose   *float64 `json:"fasting_glucose,omitempty" yaml:"fasting_glucose,omitempty"`
	HbA1c            *float64 `json:"hba1c,omitempty" yaml:"hba1c,omitempty"`
	TotalCholesterol *float64 `json:"total_cholesterol,omitempty" yaml:"total_cholesterol,omitempty"`
	LDL              *float64 `json:"ldl,omitempty" yaml:"ldl,omitempty"`
	HDL              *float64 `json:"hdl,omitempty" yaml:"hdl,omitempty"`
	Triglycerides    *float64 `json:"triglycerides,omitempty" yaml:"triglycerides,omitempty"`
	ALT              *float64 `json:"alt,omitempty" yaml:"alt,omitempty"`
	AST              *float64 `json:"ast,omitempty" yaml:"ast,omitempty"`
	Fibrosis         *bool    `json:"fibrosis,omitempty" yaml:"fibrosis,omitempty"`
	EGFR             *float64 `json:"egfr,omitempty" yaml:"egfr,omitempty"`
	Microalbuminuria *bool    `json:"microalbuminuria,omitempty" yaml:"microalbuminuria,omitempty"`
	CRP              *float64 `json:"crp,omitempty" yaml:"crp,omitempty"`
}

// FunctionalData holds activities-of-daily-living limitations and quality of
// life measures.
type FunctionalData struct {
	MobilityLimitations  *bool `json:"mobility_limitations,omitempty" yaml:"mobility_limitations,omitempty"`
	BathingDifficulty    *bool `json:"bathing_difficulty,omitempty" yaml:"bathing_difficulty,omitempty"`
	DressingDifficulty   *bool `json:"dressing_difficulty,omitempty" yaml:"dressing_difficulty,omitempty"`
	ToiletingDifficulty  *bool `json:"toileting_difficulty,omitempty" yaml:"toileting_difficulty,omitempty"`
	ContinenceDifficulty *bool `json:"continence_difficulty,omitempty" yaml:"continence_difficulty,omitempty"`
	EatingDifficulty     *bool `json:"eating_difficulty,omitempty" yaml:"eating_difficulty,omitempty"`

	QualityOfLifeScore  *float64 `json:"quality_of_life_score,omitempty" yaml:"quality_of_life_score,omitempty"`
	PhysicalLimitations *bool    `json:"physical_limitations,omitempty" yaml:"physical_limitations,omitempty"`
	PsychosocialImpact  *bool    `json:"psychosocial_impact,omitempty" yaml:"psychosocial_impact,omitempty"`
}

// Validate rejects values no measuring device can produce. It does not
// require any field to be present.
func (p *PatientData) Validate() error {
	a := p.Anthropometrics
	positives := []struct {
		field string
		value *float64
	}{
		{"anthropometrics.height", a.Height},
		{"anthropometrics.weight", a.Weight},
		{"anthropometrics.bmi", a.BMI},
		{"anthropometrics.waist_circumference", a.WaistCircumference},
		{"anthropometrics.hip_circumference", a.HipCircumference},
		{"anthropometrics.waist_hip_ratio", a.WaistHipRatio},
		{"anthropometrics.waist_height_ratio", a.WaistHeightRatio},
	}
	for _, f := range positives {
		if f.value != nil && *f.value <= 0 {
			return fmt.Errorf("patient validation: %w", NewValidationError(f.field, "must be positive", *f.value))
		}
	}

	if a.BodyFatPercentage != nil && (*a.BodyFatPercentage < 0 || *a.BodyFatPercentage > 100) {
		return fmt.Errorf("patient validation: %w",
			NewValidationError("anthropometrics.body_fat_percentage", "must be between 0 and 100", *a.BodyFatPercentage))
	}
	if a.Age != nil && (*a.Age < 0 || *a.Age > 130) {
		return fmt.Errorf("patient validation: %w", NewValidationError("anthropometrics.age", "must be between 0 and 130", *a.Age))
	}
	if a.Sex != nil && !a.Sex.IsValid() {
		return fmt.Errorf("patient validation: %w", ErrInvalidSex)
	}

	l := p.Laboratory
	labs := []struct {
		field string
		value *float64
	}{
		{"laboratory.fasting_glucose", l.FastingGlucose},
		{"laboratory.hba1c", l.HbA1c},
		{"laboratory.total_cholesterol", l.TotalCholesterol},
		{"laboratory.ldl", l.LDL},
		{"laboratory.hdl", l.HDL},
		{"laboratory.triglycerides", l.Triglycerides},
		{"laboratory.alt", l.ALT},
		{"laboratory.ast", l.AST},
		{"laboratory.egfr", l.EGFR},
		{"laboratory.crp", l.CRP},
	}
	for _, lab := range labs {
		if lab.value != nil && *lab.value < 0 {
			return fmt.Errorf("patient validation: %w", NewValidationError(lab.field, "must not be negative", *lab.value))
		}
	}

	return nil
}

func countPresent(values ...any) int {
	n := 0
	for _, v := range values {
		switch p := v.(type) {
		case *float64:
			if p != nil {
				n++
			}
		case *bool:
			if p != nil {
				n++
			}
		}
	}
	return n
}

// PresentFields counts the clinical fields that carry a value, true or false.
func (c ClinicalData) PresentFields() int {
	return countPresent(
		c.Breathlessness, c.Fatigue, c.ChronicPain, c.UrinaryIncontinence, c.SleepDisorders,
		c.Reflux, c.Osteoarthritis, c.Type2Diabetes, c.Hypertension, c.PCOS, c.SleepApnea,
		c.NAFLD, c.CardiovascularDisease, c.MentalHealth,
	)
}

// PresentFields counts the laboratory fields that carry a value.
func (l LaboratoryData) PresentFields() int {
	return countPresent(
		l.FastingGlucose, l.HbA1c, l.TotalCholesterol, l.LDL, l.HDL, l.Triglycerides,
		l.ALT, l.AST, l.Fibrosis, l.EGFR, l.Microalbuminuria, l.CRP,
	)
}

// PresentFields counts the functional fields that carry a value.
func (f FunctionalData) PresentFields() int {
	return countPresent(
		f.MobilityLimitations, f.BathingDifficulty, f.DressingDifficulty, f.ToiletingDifficulty,
		f.ContinenceDifficulty, f.EatingDifficulty, f.QualityOfLifeScore, f.PhysicalLimitations,
		f.PsychosocialImpact,
	)
}
