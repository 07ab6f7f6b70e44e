package service

import (
	"strings"

	"github.com/gyndok/lancet-obesity-compass/internal/domain"
)

// BMIThresholds holds the ethnicity-specific BMI cut points.
type BMIThresholds struct {
	PreObesity       float64
	ObesityClassI    float64
	NormalUpperBound float64
}

// SexThreshold is a cut point that differs between males and females.
type SexThreshold struct {
	Male   float64
	Female float64
}

// For returns the threshold for sex. It reports false when sex is unknown.
func (s SexThreshold) For(sex *domain.Sex) (float64, bool) {
	if sex == nil {
		return 0, false
	}
	switch *sex {
	case domain.MALE:
		return s.Male, true
	case domain.FEMALE:
		return s.Female, true
	default:
		return 0, false
	}
}

// BodyFatRange is an inclusive normal range of body-fat percentage.
type BodyFatRange struct {
	Lower float64
	Upper float64
}

// BodyFatBand is the normal body-fat range for an adult age band. MaxAge of
// zero means the band has no upper age limit.
type BodyFatBand struct {
	MinAge float64
	MaxAge float64
	Male   BodyFatRange
	Female BodyFatRange
}

// RuleTables is the immutable threshold data the engine evaluates against.
// Build it once with DefaultRuleTables and share it by pointer.
type RuleTables struct {
	Asian    BMIThresholds
	NonAsian BMIThresholds

	SevereBMI         float64
	SevereBodyFat     float64
	MinimumIndicators int

	AsianWaist    SexThreshold
	NonAsianWaist SexThreshold
	WaistHipRatio SexThreshold
	WaistHeight   float64

	AdultAge     float64
	BodyFatBands []BodyFatBand
}

// DefaultRuleTables returns the thresholds of the Lancet Commission model
// with WHO Asian BMI cut points.
func DefaultRuleTables() *RuleTables {
	return &RuleTables{
		Asian:    BMIThresholds{PreObesity: 23, ObesityClassI: 27, NormalUpperBound: 22.9},
		NonAsian: BMIThresholds{PreObesity: 25, ObesityClassI: 30, NormalUpperBound: 25},

		SevereBMI:         40,
		SevereBodyFat:     45,
		MinimumIndicators: 2,

		AsianWaist:    SexThreshold{Male: 35.4, Female: 31.5},
		NonAsianWaist: SexThreshold{Male: 40, Female: 35},
		WaistHipRatio: SexThreshold{Male: 0.9, Female: 0.85},
		WaistHeight:   0.5,

		AdultAge: 18,
		BodyFatBands: []BodyFatBand{
			{MinAge: 18, MaxAge: 29, Male: BodyFatRange{12, 19}, Female: BodyFatRange{24, 32}},
			{MinAge: 30, MaxAge: 39, Male: BodyFatRange{14, 22}, Female: BodyFatRange{25, 34}},
			{MinAge: 40, MaxAge: 49, Male: BodyFatRange{16, 24}, Female: BodyFatRange{27, 36}},
			{MinAge: 50, MaxAge: 59, Male: BodyFatRange{18, 26}, Female: BodyFatRange{29, 38}},
			{MinAge: 60, Male: BodyFatRange{20, 28}, Female: BodyFatRange{30, 40}},
		},
	}
}

// BMIThresholdsFor returns the threshold set for an ethnicity.
func (t *RuleTables) BMIThresholdsFor(ethnicity *string) BMIThresholds {
	if ethnicity != nil && IsAsianEthnicity(*ethnicity) {
		return t.Asian
	}
	return t.NonAsian
}

// WaistThresholdFor returns the waist circumference cut point in inches.
func (t *RuleTables) WaistThresholdFor(ethnicity *string, sex *domain.Sex) (float64, bool) {
	if ethnicity != nil && IsAsianEthnicity(*ethnicity) {
		return t.AsianWaist.For(sex)
	}
	return t.NonAsianWaist.For(sex)
}

// BodyFatRangeFor returns the normal range for an adult of the given age and
// sex. It reports false under the adult age or when sex is unknown. Bands are
// matched on whole years so 29.5 falls in the 18 to 29 band.
func (t *RuleTables) BodyFatRangeFor(age float64, sex *domain.Sex) (BodyFatRange, bool) {
	if age < t.AdultAge || sex == nil || !sex.IsValid() {
		return BodyFatRange{}, false
	}
	years := float64(int(age))
	for _, band := range t.BodyFatBands {
		if years < band.MinAge {
			continue
		}
		if band.MaxAge != 0 && years > band.MaxAge {
			continue
		}
		if *sex == domain.MALE {
			return band.Male, true
		}
		return band.Female, true
	}
	return BodyFatRange{}, false
}

var asianEthnicityExactMatches = map[string]struct{}{
	"asian":      {},
	"chinese":    {},
	"japanese":   {},
	"korean":     {},
	"indian":     {},
	"vietnamese": {},
	"thai":       {},
	"filipino":   {},
}

var asianEthnicitySubstringMatches = []string{
	"east asian",
	"south asian",
	"southeast asian",
}

// IsAsianEthnicity reports whether a free-text ethnicity selects the Asian
// threshold set.
func IsAsianEthnicity(ethnicity string) bool {
	normalized := strings.ToLower(strings.TrimSpace(ethnicity))
	if normalized == "" {
		return false
	}

	if _, ok := asianEthnicityExactMatches[normalized]; ok {
		return true
	}

	for _, match := range asianEthnicitySubstringMatches {
		if strings.Contains(normalized, match) {
			return true
		}
	}
	return false
}
