package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gyndok/lancet-obesity-compass/internal/domain"
)

// Organ system labels reported in DiagnosticResult.AffectedSystems.
const (
	SystemEndocrineMetabolic = "Endocrine/Metabolic"
	SystemCardiovascular     = "Cardiovascular"
	SystemHepatic            = "Hepatic"
	SystemRespiratory        = "Respiratory"
	SystemReproductive       = "Reproductive"
	SystemMusculoskeletal    = "Musculoskeletal"
)

// FindingRule is one labelled check over patient data.
type FindingRule struct {
	Code  string
	Label string
	// System is the affected-system label contributed when the rule fires.
	// Empty means the finding is not summarized as a system.
	System    string
	Evaluator func(data *domain.PatientData) bool
}

// ObesityRuleEngine implements the Lancet Commission clinical obesity criteria.
// It holds no mutable state after construction and is safe for concurrent use.
type ObesityRuleEngine struct {
	logger     *logrus.Logger
	tables     *RuleTables
	organRules []*FindingRule
	adlRules   []*FindingRule
	riskRules  []*FindingRule
}

// NewObesityRuleEngine creates an engine over the given rule tables. A nil
// tables value selects DefaultRuleTables.
func NewObesityRuleEngine(logger *logrus.Logger, tables *RuleTables) *ObesityRuleEngine {
	if tables == nil {
		tables = DefaultRuleTables()
	}
	engine := &ObesityRuleEngine{
		logger: logger,
		tables: tables,
	}

	engine.initializeRules()

	return engine
}

// Tables returns the rule tables the engine evaluates against.
func (e *ObesityRuleEngine) Tables() *RuleTables {
	return e.tables
}

// Evaluate runs the full pipeline. It reports false when the input lacks the
// minimum anthropometric data; that is an expected state, not an error.
func (e *ObesityRuleEngine) Evaluate(data *domain.PatientData) (*domain.DiagnosticResult, bool) {
	if data == nil || !e.HasMinimumData(data) {
		e.logger.Debug("Insufficient data for obesity classification")
		return nil, false
	}

	criteria := domain.DiagnosticCriteria{
		ExcessAdiposityConfirmed: e.ConfirmExcessAdiposity(&data.Anthropometrics),
		OrganDysfunction:         e.AssessOrganDysfunction(data),
		FunctionalLimitations:    e.AssessFunctionalLimitations(data),
		RiskFactors:              e.IdentifyRiskFactors(data),
	}

	classification := e.Classify(criteria)
	confidence := e.AssessConfidence(data)

	result := &domain.DiagnosticResult{
		Classification:  classification,
		Confidence:      confidence,
		Criteria:        criteria,
		Recommendations: e.GenerateRecommendations(classification, criteria),
		Reasoning:       e.GenerateReasoning(classification, criteria),
		AffectedSystems: e.IdentifyAffectedSystems(data),
	}

	e.logger.WithFields(logrus.Fields{
		"classification":    classification.String(),
		"confidence":        confidence.String(),
		"adiposity":         criteria.ExcessAdiposityConfirmed,
		"organ_dysfunction": len(criteria.OrganDysfunction),
		"functional_limits": len(criteria.FunctionalLimitations),
		"risk_factors":      len(criteria.RiskFactors),
		"affected_systems":  len(result.AffectedSystems),
	}).Debug("Completed obesity rule evaluation")

	return result, true
}

// HasMinimumData reports whether height and weight, or a BMI, are present.
func (e *ObesityRuleEngine) HasMinimumData(data *domain.PatientData) bool {
	a := data.Anthropometrics
	return (a.Height != nil && a.Weight != nil) || a.BMI != nil
}

// ResolveBMI returns the supplied BMI, or computes it from height in inches
// and weight in pounds.
func ResolveBMI(a *domain.AnthropometricData) (float64, bool) {
	if a.BMI != nil {
		return *a.BMI, true
	}
	if a.Height != nil && a.Weight != nil && *a.Height > 0 {
		return *a.Weight / (*a.Height * *a.Height) * 703, true
	}
	return 0, false
}

// ConfirmExcessAdiposity decides whether excess adiposity is present from
// anthropometric data and ethnicity-adjusted thresholds.
func (e *ObesityRuleEngine) ConfirmExcessAdiposity(a *domain.AnthropometricData) bool {
	bmi, hasBMI := ResolveBMI(a)

	if a.BodyFatPercentage != nil && *a.BodyFatPercentage > e.tables.SevereBodyFat {
		return true
	}

	if !hasBMI {
		return false
	}

	thresholds := e.tables.BMIThresholdsFor(a.Ethnicity)

	switch {
	case bmi > e.tables.SevereBMI:
		return true
	case bmi >= thresholds.ObesityClassI:
		return true
	case bmi >= thresholds.PreObesity:
		// Overweight alone confirms excess adiposity in this model.
		return true
	case bmi < thresholds.NormalUpperBound:
		return e.countAdiposityIndicators(a) >= e.tables.MinimumIndicators
	default:
		return false
	}
}

// countAdiposityIndicators counts the secondary markers used for normal-BMI
// patients. Sex-specific markers are skipped when sex is unknown.
func (e *ObesityRuleEngine) countAdiposityIndicators(a *domain.AnthropometricData) int {
	indicators := 0

	if a.WaistCircumference != nil {
		if threshold, ok := e.tables.WaistThresholdFor(a.Ethnicity, a.Sex); ok && *a.WaistCircumference > threshold {
			indicators++
		}
	}

	if a.WaistHeightRatio != nil && *a.WaistHeightRatio >= e.tables.WaistHeight {
		indicators++
	}

	if a.WaistHipRatio != nil {
		if threshold, ok := e.tables.WaistHipRatio.For(a.Sex); ok && *a.WaistHipRatio > threshold {
			indicators++
		}
	}

	if a.BodyFatPercentage != nil && a.Age != nil {
		if band, ok := e.tables.BodyFatRangeFor(*a.Age, a.Sex); ok && *a.BodyFatPercentage > band.Upper {
			indicators++
		}
	}

	return indicators
}

// AssessOrganDysfunction returns organ dysfunction findings in fixed order.
func (e *ObesityRuleEngine) AssessOrganDysfunction(data *domain.PatientData) []string {
	return applyRules(e.organRules, data)
}

// AssessFunctionalLimitations returns one label per limited ADL domain.
func (e *ObesityRuleEngine) AssessFunctionalLimitations(data *domain.PatientData) []string {
	return applyRules(e.adlRules, data)
}

// IdentifyRiskFactors returns symptom and laboratory risk factors.
func (e *ObesityRuleEngine) IdentifyRiskFactors(data *domain.PatientData) []string {
	return applyRules(e.riskRules, data)
}

// IdentifyAffectedSystems collapses organ findings into system labels,
// each at most once, in rule order.
func (e *ObesityRuleEngine) IdentifyAffectedSystems(data *domain.PatientData) []string {
	systems := make([]string, 0)
	seen := make(map[string]bool)
	for _, rule := range e.organRules {
		if rule.System == "" || seen[rule.System] {
			continue
		}
		if rule.Evaluator(data) {
			seen[rule.System] = true
			systems = append(systems, rule.System)
		}
	}
	return systems
}

// Classify maps criteria onto one of the three categories.
func (e *ObesityRuleEngine) Classify(criteria domain.DiagnosticCriteria) domain.Classification {
	if !criteria.ExcessAdiposityConfirmed {
		return domain.NO_OBESITY
	}
	if len(criteria.OrganDysfunction) > 0 || len(criteria.FunctionalLimitations) > 0 {
		return domain.CLINICAL_OBESITY
	}
	return domain.PRECLINICAL_OBESITY
}

// AssessConfidence scores data completeness. A flag that is present but false
// counts as provided data.
func (e *ObesityRuleEngine) AssessConfidence(data *domain.PatientData) domain.ConfidenceLevel {
	score := 0
	a := data.Anthropometrics

	if a.Height != nil && a.Weight != nil {
		score++
	}
	if a.WaistCircumference != nil {
		score++
	}
	if a.BodyFatPercentage != nil {
		score++
	}
	if data.Clinical.PresentFields() >= 3 {
		score++
	}
	if data.Laboratory.PresentFields() >= 3 {
		score++
	}
	if data.Functional.PresentFields() >= 2 {
		score++
	}

	switch {
	case score >= 5:
		return domain.HIGH
	case score >= 3:
		return domain.MEDIUM
	default:
		return domain.LOW
	}
}

// GenerateReasoning explains the classification in one sentence.
func (e *ObesityRuleEngine) GenerateReasoning(classification domain.Classification, criteria domain.DiagnosticCriteria) string {
	if !criteria.ExcessAdiposityConfirmed {
		return "Excess adiposity not confirmed based on available anthropometric measurements."
	}

	switch classification {
	case domain.CLINICAL_OBESITY:
		reasoning := fmt.Sprintf("Excess adiposity confirmed with evidence of organ dysfunction (%d systems affected)",
			len(criteria.OrganDysfunction))
		if len(criteria.FunctionalLimitations) > 0 {
			reasoning += fmt.Sprintf(" and functional limitations (%d domains affected)", len(criteria.FunctionalLimitations))
		}
		return reasoning + "."
	case domain.PRECLINICAL_OBESITY:
		return "Excess adiposity confirmed but without evidence of organ dysfunction or significant functional limitations."
	default:
		return ""
	}
}

// GenerateRecommendations returns the fixed recommendation list for a
// classification.
func (e *ObesityRuleEngine) GenerateRecommendations(classification domain.Classification, criteria domain.DiagnosticCriteria) []string {
	var recommendations []string

	switch classification {
	case domain.CLINICAL_OBESITY:
		recommendations = append(recommendations,
			"Initiate comprehensive obesity management plan",
			"Consider pharmacotherapy or surgical evaluation",
			"Address identified organ dysfunction",
			"Monitor for complications",
		)
	case domain.PRECLINICAL_OBESITY:
		recommendations = append(recommendations,
			"Implement lifestyle intervention program",
			"Regular monitoring for disease progression",
			"Preventive counseling for identified risk factors",
			"Consider weight management referral",
		)
	case domain.NO_OBESITY:
		recommendations = append(recommendations,
			"Continue healthy lifestyle practices",
			"Routine health maintenance",
		)
		if len(criteria.RiskFactors) > 0 {
			recommendations = append(recommendations, "Address identified risk factors")
		}
	}

	return recommendations
}

// initializeRules registers every finding rule in report order.
func (e *ObesityRuleEngine) initializeRules() {
	// Organ dysfunction
	e.addOrganRule("METABOLIC", "Metabolic: Type 2 diabetes", SystemEndocrineMetabolic, func(d *domain.PatientData) bool {
		return isTrue(d.Clinical.Type2Diabetes) || atLeast(d.Laboratory.HbA1c, 6.5) || atLeast(d.Laboratory.FastingGlucose, 126)
	})
	e.addOrganRule("CARDIOVASCULAR", "Cardiovascular: Hypertension/CVD", SystemCardiovascular, func(d *domain.PatientData) bool {
		return isTrue(d.Clinical.Hypertension) || isTrue(d.Clinical.CardiovascularDisease)
	})
	e.addOrganRule("HEPATIC", "Hepatic: NAFLD/elevated enzymes", SystemHepatic, func(d *domain.PatientData) bool {
		return isTrue(d.Clinical.NAFLD) || isTrue(d.Laboratory.Fibrosis) ||
			above(d.Laboratory.ALT, 40) || above(d.Laboratory.AST, 40)
	})
	e.addOrganRule("RENAL", "Renal: Decreased eGFR/albuminuria", "", func(d *domain.PatientData) bool {
		return below(d.Laboratory.EGFR, 60) || isTrue(d.Laboratory.Microalbuminuria)
	})
	e.addOrganRule("RESPIRATORY", "Respiratory: Sleep apnea/dyspnea", SystemRespiratory, func(d *domain.PatientData) bool {
		return isTrue(d.Clinical.SleepApnea) || isTrue(d.Clinical.Breathlessness)
	})
	e.addOrganRule("REPRODUCTIVE", "Reproductive: PCOS", SystemReproductive, func(d *domain.PatientData) bool {
		return isTrue(d.Clinical.PCOS)
	})
	e.addOrganRule("MUSCULOSKELETAL", "Musculoskeletal: Osteoarthritis", SystemMusculoskeletal, func(d *domain.PatientData) bool {
		return isTrue(d.Clinical.Osteoarthritis)
	})

	// Activities of daily living
	e.adlRules = []*FindingRule{
		flagRule("ADL_MOBILITY", "Mobility limitations", func(d *domain.PatientData) *bool { return d.Functional.MobilityLimitations }),
		flagRule("ADL_BATHING", "Bathing difficulty", func(d *domain.PatientData) *bool { return d.Functional.BathingDifficulty }),
		flagRule("ADL_DRESSING", "Dressing difficulty", func(d *domain.PatientData) *bool { return d.Functional.DressingDifficulty }),
		flagRule("ADL_TOILETING", "Toileting difficulty", func(d *domain.PatientData) *bool { return d.Functional.ToiletingDifficulty }),
		flagRule("ADL_CONTINENCE", "Continence difficulty", func(d *domain.PatientData) *bool { return d.Functional.ContinenceDifficulty }),
		flagRule("ADL_EATING", "Eating difficulty", func(d *domain.PatientData) *bool { return d.Functional.EatingDifficulty }),
	}

	// Risk factors: symptoms first, then laboratory values
	e.riskRules = []*FindingRule{
		flagRule("RISK_FATIGUE", "Chronic fatigue", func(d *domain.PatientData) *bool { return d.Clinical.Fatigue }),
		flagRule("RISK_PAIN", "Chronic pain", func(d *domain.PatientData) *bool { return d.Clinical.ChronicPain }),
		flagRule("RISK_INCONTINENCE", "Urinary incontinence", func(d *domain.PatientData) *bool { return d.Clinical.UrinaryIncontinence }),
		flagRule("RISK_SLEEP", "Sleep disorders", func(d *domain.PatientData) *bool { return d.Clinical.SleepDisorders }),
		flagRule("RISK_GERD", "GERD", func(d *domain.PatientData) *bool { return d.Clinical.Reflux }),
		flagRule("RISK_MENTAL_HEALTH", "Mental health concerns", func(d *domain.PatientData) *bool { return d.Clinical.MentalHealth }),
		{Code: "RISK_TRIGLYCERIDES", Label: "Elevated triglycerides", Evaluator: func(d *domain.PatientData) bool {
			return atLeast(d.Laboratory.Triglycerides, 150)
		}},
		{Code: "RISK_HDL", Label: "Low HDL cholesterol", Evaluator: func(d *domain.PatientData) bool {
			return below(d.Laboratory.HDL, 40)
		}},
		{Code: "RISK_CRP", Label: "Elevated CRP (inflammation)", Evaluator: func(d *domain.PatientData) bool {
			return above(d.Laboratory.CRP, 3)
		}},
	}

	e.logger.WithFields(logrus.Fields{
		"organ_rules":      len(e.organRules),
		"functional_rules": len(e.adlRules),
		"risk_rules":       len(e.riskRules),
	}).Debug("Initialized obesity rules")
}

// addOrganRule is a helper to add an organ dysfunction rule to the engine
func (e *ObesityRuleEngine) addOrganRule(code, label, system string, evaluator func(*domain.PatientData) bool) {
	e.organRules = append(e.organRules, &FindingRule{
		Code:      code,
		Label:     label,
		System:    system,
		Evaluator: evaluator,
	})
}

func flagRule(code, label string, flag func(*domain.PatientData) *bool) *FindingRule {
	return &FindingRule{
		Code:  code,
		Label: label,
		Evaluator: func(d *domain.PatientData) bool {
			return isTrue(flag(d))
		},
	}
}

func applyRules(rules []*FindingRule, data *domain.PatientData) []string {
	findings := make([]string, 0)
	for _, rule := range rules {
		if rule.Evaluator(data) {
			findings = append(findings, rule.Label)
		}
	}
	return findings
}

// Absent values never satisfy a comparison.

func isTrue(v *bool) bool {
	return v != nil && *v
}

func atLeast(v *float64, threshold float64) bool {
	return v != nil && *v >= threshold
}

func above(v *float64, threshold float64) bool {
	return v != nil && *v > threshold
}

func below(v *float64, threshold float64) bool {
	return v != nil && *v < threshold
}
