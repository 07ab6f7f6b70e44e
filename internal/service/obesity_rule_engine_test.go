package service

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyndok/lancet-obesity-compass/internal/domain"
)

func newTestEngine() *ObesityRuleEngine {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewObesityRuleEngine(logger, nil)
}

func ethnicity(s string) *string { return &s }

func sex(s domain.Sex) *domain.Sex { return &s }

func scenarioB() *domain.PatientData {
	return &domain.PatientData{
		Anthropometrics: domain.AnthropometricData{
			Height:    domain.Float(65),
			Weight:    domain.Float(200),
			Ethnicity: ethnicity("caucasian"),
		},
	}
}

func TestEvaluate_InsufficientData(t *testing.T) {
	engine := newTestEngine()

	tests := []struct {
		name string
		data *domain.PatientData
	}{
		{"nil input", nil},
		{"empty input", &domain.PatientData{}},
		{"height only", &domain.PatientData{Anthropometrics: domain.AnthropometricData{Height: domain.Float(70)}}},
		{"weight only", &domain.PatientData{Anthropometrics: domain.AnthropometricData{Weight: domain.Float(180)}}},
		{"labs without anthropometrics", &domain.PatientData{
			Clinical:   domain.ClinicalData{Hypertension: domain.Bool(true)},
			Laboratory: domain.LaboratoryData{HbA1c: domain.Float(8)},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := engine.Evaluate(tt.data)
			assert.False(t, ok)
			assert.Nil(t, result)
		})
	}
}

func TestEvaluate_BMIOnlyIsEnough(t *testing.T) {
	engine := newTestEngine()

	result, ok := engine.Evaluate(&domain.PatientData{
		Anthropometrics: domain.AnthropometricData{BMI: domain.Float(31)},
	})

	require.True(t, ok)
	assert.Equal(t, domain.PRECLINICAL_OBESITY, result.Classification)
}

func TestResolveBMI(t *testing.T) {
	bmi, ok := ResolveBMI(&domain.AnthropometricData{Height: domain.Float(70), Weight: domain.Float(180)})
	require.True(t, ok)
	assert.InDelta(t, 25.8, bmi, 0.1)

	bmi, ok = ResolveBMI(&domain.AnthropometricData{BMI: domain.Float(22), Height: domain.Float(70), Weight: domain.Float(180)})
	require.True(t, ok)
	assert.Equal(t, 22.0, bmi, "provided BMI takes precedence")

	_, ok = ResolveBMI(&domain.AnthropometricData{Height: domain.Float(70)})
	assert.False(t, ok)
}

func TestEvaluate_ScenarioA_NormalWeight(t *testing.T) {
	engine := newTestEngine()

	result, ok := engine.Evaluate(&domain.PatientData{
		Anthropometrics: domain.AnthropometricData{Height: domain.Float(70), Weight: domain.Float(130)},
	})

	require.True(t, ok)
	assert.Equal(t, domain.NO_OBESITY, result.Classification)
	assert.False(t, result.Criteria.ExcessAdiposityConfirmed)
	assert.Equal(t, "Excess adiposity not confirmed based on available anthropometric measurements.", result.Reasoning)
	assert.Equal(t, []string{"Continue healthy lifestyle practices", "Routine health maintenance"}, result.Recommendations)
}

func TestEvaluate_ScenarioB_Preclinical(t *testing.T) {
	engine := newTestEngine()

	result, ok := engine.Evaluate(scenarioB())

	require.True(t, ok)
	assert.True(t, result.Criteria.ExcessAdiposityConfirmed)
	assert.Equal(t, domain.PRECLINICAL_OBESITY, result.Classification)
	assert.Empty(t, result.Criteria.OrganDysfunction)
	assert.Empty(t, result.AffectedSystems)
	assert.Equal(t,
		"Excess adiposity confirmed but without evidence of organ dysfunction or significant functional limitations.",
		result.Reasoning)
	assert.Equal(t, []string{
		"Implement lifestyle intervention program",
		"Regular monitoring for disease progression",
		"Preventive counseling for identified risk factors",
		"Consider weight management referral",
	}, result.Recommendations)
}

func TestEvaluate_ScenarioC_Clinical(t *testing.T) {
	engine := newTestEngine()
	data := scenarioB()
	data.Clinical.Hypertension = domain.Bool(true)

	result, ok := engine.Evaluate(data)

	require.True(t, ok)
	assert.Equal(t, domain.CLINICAL_OBESITY, result.Classification)
	assert.Equal(t, []string{"Cardiovascular: Hypertension/CVD"}, result.Criteria.OrganDysfunction)
	assert.Contains(t, result.AffectedSystems, "Cardiovascular")
	assert.Equal(t, "Excess adiposity confirmed with evidence of organ dysfunction (1 systems affected).", result.Reasoning)
	assert.Len(t, result.Recommendations, 4)
	assert.Equal(t, "Initiate comprehensive obesity management plan", result.Recommendations[0])
}

func TestEvaluate_ScenarioD_HighBMIDominatesEthnicity(t *testing.T) {
	engine := newTestEngine()
	data := scenarioB()
	data.Anthropometrics.Ethnicity = ethnicity("asian")

	result, ok := engine.Evaluate(data)

	require.True(t, ok)
	assert.True(t, result.Criteria.ExcessAdiposityConfirmed)
	assert.Equal(t, domain.PRECLINICAL_OBESITY, result.Classification)
}

func TestConfirmExcessAdiposity_EthnicityGating(t *testing.T) {
	engine := newTestEngine()

	// 66in, 150lb gives BMI 24.2, inside [23, 25).
	asian := &domain.AnthropometricData{Height: domain.Float(66), Weight: domain.Float(150), Ethnicity: ethnicity("asian")}
	caucasian := &domain.AnthropometricData{Height: domain.Float(66), Weight: domain.Float(150), Ethnicity: ethnicity("caucasian")}

	assert.True(t, engine.ConfirmExcessAdiposity(asian))
	assert.False(t, engine.ConfirmExcessAdiposity(caucasian))
}

func TestConfirmExcessAdiposity(t *testing.T) {
	engine := newTestEngine()

	tests := []struct {
		name     string
		anthro   domain.AnthropometricData
		expected bool
	}{
		{
			name:     "no BMI resolvable",
			anthro:   domain.AnthropometricData{WaistCircumference: domain.Float(50), Sex: sex(domain.MALE)},
			expected: false,
		},
		{
			name:     "severe body fat without BMI",
			anthro:   domain.AnthropometricData{BodyFatPercentage: domain.Float(46)},
			expected: true,
		},
		{
			name:     "body fat of exactly 45 is not severe",
			anthro:   domain.AnthropometricData{BodyFatPercentage: domain.Float(45)},
			expected: false,
		},
		{
			name:     "severe BMI",
			anthro:   domain.AnthropometricData{BMI: domain.Float(41), Ethnicity: ethnicity("asian")},
			expected: true,
		},
		{
			name:     "overweight confirms",
			anthro:   domain.AnthropometricData{BMI: domain.Float(25)},
			expected: true,
		},
		{
			name:     "normal BMI with no indicators",
			anthro:   domain.AnthropometricData{BMI: domain.Float(22)},
			expected: false,
		},
		{
			name: "normal BMI with one indicator",
			anthro: domain.AnthropometricData{
				BMI: domain.Float(22), WaistHeightRatio: domain.Float(0.55),
			},
			expected: false,
		},
		{
			name: "normal BMI with waist-to-height and waist",
			anthro: domain.AnthropometricData{
				BMI: domain.Float(22), WaistHeightRatio: domain.Float(0.5),
				WaistCircumference: domain.Float(36), Sex: sex(domain.FEMALE),
			},
			expected: true,
		},
		{
			name: "waist at threshold does not count",
			anthro: domain.AnthropometricData{
				BMI: domain.Float(22), WaistHeightRatio: domain.Float(0.5),
				WaistCircumference: domain.Float(35), Sex: sex(domain.FEMALE),
			},
			expected: false,
		},
		{
			name: "asian waist threshold is lower",
			anthro: domain.AnthropometricData{
				BMI: domain.Float(21), WaistCircumference: domain.Float(36), Sex: sex(domain.MALE),
				WaistHipRatio: domain.Float(0.95), Ethnicity: ethnicity("South Asian"),
			},
			expected: true,
		},
		{
			name: "body fat above age band",
			anthro: domain.AnthropometricData{
				BMI: domain.Float(22), BodyFatPercentage: domain.Float(25), Age: domain.Float(35),
				Sex: sex(domain.MALE), WaistHipRatio: domain.Float(0.91),
			},
			expected: true,
		},
		{
			name: "body fat band skipped for minors",
			anthro: domain.AnthropometricData{
				BMI: domain.Float(22), BodyFatPercentage: domain.Float(25), Age: domain.Float(16),
				Sex: sex(domain.MALE), WaistHipRatio: domain.Float(0.91),
			},
			expected: false,
		},
		{
			name: "sex-specific indicators skipped when sex unknown",
			anthro: domain.AnthropometricData{
				BMI: domain.Float(22), WaistCircumference: domain.Float(45), WaistHipRatio: domain.Float(1.0),
			},
			expected: false,
		},
		{
			name: "asian BMI between normal bound and pre-obesity",
			anthro: domain.AnthropometricData{
				BMI: domain.Float(22.95), WaistHeightRatio: domain.Float(0.6),
				WaistCircumference: domain.Float(40), Sex: sex(domain.MALE), Ethnicity: ethnicity("asian"),
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, engine.ConfirmExcessAdiposity(&tt.anthro))
		})
	}
}

func TestIsAsianEthnicity(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"asian", true},
		{"  Chinese ", true},
		{"FILIPINO", true},
		{"indian", true},
		{"East Asian", true},
		{"southeast asian descent", true},
		{"south asian", true},
		{"", false},
		{"   ", false},
		{"caucasian", false},
		{"asian american", false},
		{"eurasian", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsAsianEthnicity(tt.input))
		})
	}
}

func TestBodyFatRangeFor(t *testing.T) {
	tables := DefaultRuleTables()

	band, ok := tables.BodyFatRangeFor(29.5, sex(domain.FEMALE))
	require.True(t, ok)
	assert.Equal(t, BodyFatRange{24, 32}, band)

	band, ok = tables.BodyFatRangeFor(75, sex(domain.MALE))
	require.True(t, ok)
	assert.Equal(t, BodyFatRange{20, 28}, band)

	_, ok = tables.BodyFatRangeFor(17, sex(domain.MALE))
	assert.False(t, ok)

	_, ok = tables.BodyFatRangeFor(40, nil)
	assert.False(t, ok)
}

func TestAssessOrganDysfunction_OrderAndLabels(t *testing.T) {
	engine := newTestEngine()
	data := &domain.PatientData{
		Clinical: domain.ClinicalData{
			Osteoarthritis: domain.Bool(true),
			PCOS:           domain.Bool(true),
			Breathlessness: domain.Bool(true),
		},
		Laboratory: domain.LaboratoryData{
			FastingGlucose: domain.Float(126),
			ALT:            domain.Float(41),
			EGFR:           domain.Float(59),
		},
	}

	findings := engine.AssessOrganDysfunction(data)

	assert.Equal(t, []string{
		"Metabolic: Type 2 diabetes",
		"Hepatic: NAFLD/elevated enzymes",
		"Renal: Decreased eGFR/albuminuria",
		"Respiratory: Sleep apnea/dyspnea",
		"Reproductive: PCOS",
		"Musculoskeletal: Osteoarthritis",
	}, findings)
}

func TestAssessOrganDysfunction_AbsentAndFalseNeverTrigger(t *testing.T) {
	engine := newTestEngine()
	data := &domain.PatientData{
		Clinical: domain.ClinicalData{
			Type2Diabetes: domain.Bool(false),
			Hypertension:  domain.Bool(false),
		},
		Laboratory: domain.LaboratoryData{
			HbA1c: domain.Float(6.4),
			ALT:   domain.Float(40),
			EGFR:  domain.Float(60),
		},
	}

	assert.Empty(t, engine.AssessOrganDysfunction(data))
	assert.Empty(t, engine.AssessOrganDysfunction(&domain.PatientData{}))
}

func TestAssessFunctionalLimitations(t *testing.T) {
	engine := newTestEngine()
	data := &domain.PatientData{
		Functional: domain.FunctionalData{
			EatingDifficulty:    domain.Bool(true),
			MobilityLimitations: domain.Bool(true),
			BathingDifficulty:   domain.Bool(false),
			PhysicalLimitations: domain.Bool(true),
		},
	}

	assert.Equal(t, []string{"Mobility limitations", "Eating difficulty"}, engine.AssessFunctionalLimitations(data))
}

func TestIdentifyRiskFactors(t *testing.T) {
	engine := newTestEngine()
	data := &domain.PatientData{
		Clinical: domain.ClinicalData{
			MentalHealth: domain.Bool(true),
			Fatigue:      domain.Bool(true),
			Reflux:       domain.Bool(true),
		},
		Laboratory: domain.LaboratoryData{
			Triglycerides: domain.Float(150),
			HDL:           domain.Float(39),
			CRP:           domain.Float(3),
		},
	}

	assert.Equal(t, []string{
		"Chronic fatigue",
		"GERD",
		"Mental health concerns",
		"Elevated triglycerides",
		"Low HDL cholesterol",
	}, engine.IdentifyRiskFactors(data))
}

func TestIdentifyAffectedSystems_Deduplicated(t *testing.T) {
	engine := newTestEngine()
	data := &domain.PatientData{
		Clinical: domain.ClinicalData{
			Type2Diabetes:         domain.Bool(true),
			Hypertension:          domain.Bool(true),
			CardiovascularDisease: domain.Bool(true),
			SleepApnea:            domain.Bool(true),
		},
		Laboratory: domain.LaboratoryData{
			HbA1c:            domain.Float(7.2),
			Microalbuminuria: domain.Bool(true),
		},
	}

	assert.Equal(t, []string{"Endocrine/Metabolic", "Cardiovascular", "Respiratory"}, engine.IdentifyAffectedSystems(data))
}

func TestIdentifyAffectedSystems_FollowsOrganFindings(t *testing.T) {
	engine := newTestEngine()

	tests := []struct {
		name     string
		data     *domain.PatientData
		expected []string
	}{
		{
			name:     "breathlessness alone",
			data:     &domain.PatientData{Clinical: domain.ClinicalData{Breathlessness: domain.Bool(true)}},
			expected: []string{"Respiratory"},
		},
		{
			name:     "fasting glucose alone",
			data:     &domain.PatientData{Laboratory: domain.LaboratoryData{FastingGlucose: domain.Float(130)}},
			expected: []string{"Endocrine/Metabolic"},
		},
		{
			name:     "elevated ALT alone",
			data:     &domain.PatientData{Laboratory: domain.LaboratoryData{ALT: domain.Float(55)}},
			expected: []string{"Hepatic"},
		},
		{
			name:     "renal finding has no system",
			data:     &domain.PatientData{Laboratory: domain.LaboratoryData{EGFR: domain.Float(45)}},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, engine.IdentifyAffectedSystems(tt.data))
			assert.Len(t, engine.AssessOrganDysfunction(tt.data), 1)
		})
	}
}

func TestClassify(t *testing.T) {
	engine := newTestEngine()

	assert.Equal(t, domain.NO_OBESITY, engine.Classify(domain.DiagnosticCriteria{
		OrganDysfunction: []string{"Reproductive: PCOS"},
	}))
	assert.Equal(t, domain.PRECLINICAL_OBESITY, engine.Classify(domain.DiagnosticCriteria{
		ExcessAdiposityConfirmed: true,
		RiskFactors:              []string{"GERD"},
	}))
	assert.Equal(t, domain.CLINICAL_OBESITY, engine.Classify(domain.DiagnosticCriteria{
		ExcessAdiposityConfirmed: true,
		FunctionalLimitations:    []string{"Bathing difficulty"},
	}))
}

func TestEvaluate_MonotonicOnceClinical(t *testing.T) {
	engine := newTestEngine()
	data := scenarioB()
	data.Functional.DressingDifficulty = domain.Bool(true)

	result, ok := engine.Evaluate(data)
	require.True(t, ok)
	require.Equal(t, domain.CLINICAL_OBESITY, result.Classification)

	additions := []func(*domain.PatientData){
		func(d *domain.PatientData) { d.Clinical.PCOS = domain.Bool(true) },
		func(d *domain.PatientData) { d.Laboratory.EGFR = domain.Float(45) },
		func(d *domain.PatientData) { d.Functional.ToiletingDifficulty = domain.Bool(true) },
		func(d *domain.PatientData) { d.Clinical.NAFLD = domain.Bool(true) },
	}
	for _, add := range additions {
		add(data)
		result, ok = engine.Evaluate(data)
		require.True(t, ok)
		assert.Equal(t, domain.CLINICAL_OBESITY, result.Classification)
	}
	assert.Equal(t,
		"Excess adiposity confirmed with evidence of organ dysfunction (3 systems affected) and functional limitations (2 domains affected).",
		result.Reasoning)
}

func TestEvaluate_Idempotent(t *testing.T) {
	engine := newTestEngine()
	data := scenarioB()
	data.Clinical.SleepApnea = domain.Bool(true)
	data.Laboratory.Triglycerides = domain.Float(200)

	first, ok := engine.Evaluate(data)
	require.True(t, ok)
	second, ok := engine.Evaluate(data)
	require.True(t, ok)

	assert.Equal(t, first, second)
}

func TestAssessConfidence(t *testing.T) {
	engine := newTestEngine()

	data := &domain.PatientData{
		Anthropometrics: domain.AnthropometricData{BMI: domain.Float(32)},
	}
	assert.Equal(t, domain.LOW, engine.AssessConfidence(data))

	data.Anthropometrics.Height = domain.Float(65)
	data.Anthropometrics.Weight = domain.Float(200)
	data.Anthropometrics.WaistCircumference = domain.Float(40)
	assert.Equal(t, domain.LOW, engine.AssessConfidence(data))

	// False flags still count as provided data.
	data.Clinical = domain.ClinicalData{
		Hypertension:  domain.Bool(false),
		Type2Diabetes: domain.Bool(false),
		SleepApnea:    domain.Bool(false),
	}
	assert.Equal(t, domain.MEDIUM, engine.AssessConfidence(data))

	data.Laboratory = domain.LaboratoryData{HbA1c: domain.Float(5.4), HDL: domain.Float(55), Fibrosis: domain.Bool(false)}
	assert.Equal(t, domain.MEDIUM, engine.AssessConfidence(data))

	data.Functional = domain.FunctionalData{MobilityLimitations: domain.Bool(false), QualityOfLifeScore: domain.Float(70)}
	assert.Equal(t, domain.HIGH, engine.AssessConfidence(data))
}

func TestAssessConfidence_MonotonicAsFieldsAreAdded(t *testing.T) {
	engine := newTestEngine()
	rank := map[domain.ConfidenceLevel]int{domain.LOW: 0, domain.MEDIUM: 1, domain.HIGH: 2}

	data := &domain.PatientData{}
	steps := []func(*domain.PatientData){
		func(d *domain.PatientData) { d.Anthropometrics.Height = domain.Float(64) },
		func(d *domain.PatientData) { d.Anthropometrics.Weight = domain.Float(180) },
		func(d *domain.PatientData) { d.Clinical.Fatigue = domain.Bool(false) },
		func(d *domain.PatientData) { d.Anthropometrics.BodyFatPercentage = domain.Float(33) },
		func(d *domain.PatientData) { d.Clinical.Reflux = domain.Bool(true) },
		func(d *domain.PatientData) { d.Clinical.PCOS = domain.Bool(false) },
		func(d *domain.PatientData) { d.Laboratory.CRP = domain.Float(1) },
		func(d *domain.PatientData) { d.Anthropometrics.WaistCircumference = domain.Float(38) },
		func(d *domain.PatientData) { d.Functional.EatingDifficulty = domain.Bool(false) },
		func(d *domain.PatientData) { d.Functional.PsychosocialImpact = domain.Bool(true) },
	}

	previous := engine.AssessConfidence(data)
	for _, step := range steps {
		step(data)
		current := engine.AssessConfidence(data)
		assert.GreaterOrEqual(t, rank[current], rank[previous])
		previous = current
	}
	assert.Equal(t, domain.HIGH, previous)
}

func TestGenerateRecommendations_NoObesityWithRiskFactors(t *testing.T) {
	engine := newTestEngine()

	recs := engine.GenerateRecommendations(domain.NO_OBESITY, domain.DiagnosticCriteria{RiskFactors: []string{"Chronic pain"}})

	assert.Equal(t, []string{
		"Continue healthy lifestyle practices",
		"Routine health maintenance",
		"Address identified risk factors",
	}, recs)
}
