package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gyndok/lancet-obesity-compass/internal/domain"
)

type fieldKind int

const (
	numberField fieldKind = iota
	flagField
	sexField
	textField
)

// patientFields lists the accepted snake_case keys per section.
var patientFields = map[string]map[string]fieldKind{
	"anthropometrics": {
		"height": numberField, "weight": numberField, "bmi": numberField,
		"waist_circumference": numberField, "hip_circumference": numberField,
		"waist_hip_ratio": numberField, "waist_height_ratio": numberField,
		"body_fat_percentage": numberField, "age": numberField,
		"sex": sexField, "ethnicity": textField,
	},
	"clinical": {
		"breathlessness": flagField, "fatigue": flagField, "chronic_pain": flagField,
		"urinary_incontinence": flagField, "sleep_disorders": flagField, "reflux": flagField,
		"osteoarthritis": flagField, "type2_diabetes": flagField, "hypertension": flagField,
		"pcos": flagField, "sleep_apnea": flagField, "nafld": flagField,
		"cardiovascular_disease": flagField, "mental_health": flagField,
	},
	"laboratory": {
		"fasting_glucose": numberField, "hba1c": numberField, "total_cholesterol": numberField,
		"ldl": numberField, "hdl": numberField, "triglycerides": numberField,
		"alt": numberField, "ast": numberField, "fibrosis": flagField,
		"egfr": numberField, "microalbuminuria": flagField, "crp": numberField,
	},
	"functional": {
		"mobility_limitations": flagField, "bathing_difficulty": flagField,
		"dressing_difficulty": flagField, "toileting_difficulty": flagField,
		"continence_difficulty": flagField, "eating_difficulty": flagField,
		"quality_of_life_score": numberField, "physical_limitations": flagField,
		"psychosocial_impact": flagField,
	},
}

// InputParserService validates and coerces patient payloads before they reach
// the rule engine. It accepts snake_case and camelCase keys, numeric strings,
// yes/no flags and a feet + inches height.
type InputParserService struct {
	aliases map[string]map[string]string
}

// NewInputParserService creates a new input parser service
func NewInputParserService() *InputParserService {
	aliases := make(map[string]map[string]string, len(patientFields))
	for section, fields := range patientFields {
		aliases[section] = make(map[string]string, len(fields)*2)
		for name := range fields {
			aliases[section][name] = name
			aliases[section][snakeToCamel(name)] = name
		}
	}
	return &InputParserService{aliases: aliases}
}

// ParsePatientJSON parses a JSON patient payload.
func (ips *InputParserService) ParsePatientJSON(raw []byte) (*domain.PatientData, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing patient: %w", domain.NewValidationError("body", "invalid JSON", err.Error()))
	}
	return ips.ParsePatientMap(doc)
}

// ParsePatientYAML parses a YAML patient document.
func (ips *InputParserService) ParsePatientYAML(raw []byte) (*domain.PatientData, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing patient: %w", domain.NewValidationError("body", "invalid YAML", err.Error()))
	}
	return ips.ParsePatientMap(doc)
}

// ParsePatientMap coerces a decoded document into PatientData. Empty strings
// and nulls are treated as absent.
func (ips *InputParserService) ParsePatientMap(doc map[string]any) (*domain.PatientData, error) {
	if errs := ips.ValidatePatientInput(doc); len(errs) > 0 {
		return nil, fmt.Errorf("parsing patient: %w", errs[0])
	}

	normalized := make(map[string]map[string]any, len(patientFields))
	for section := range patientFields {
		normalized[section] = map[string]any{}
	}

	for section, rawSection := range doc {
		fields, _ := rawSection.(map[string]any)
		for key, value := range fields {
			if section == "anthropometrics" && isFeetInchesKey(key) {
				continue
			}
			name := ips.aliases[section][key]
			coerced, present, _ := coerce(patientFields[section][name], value)
			if present {
				normalized[section][name] = coerced
			}
		}
	}

	if anthro, ok := doc["anthropometrics"].(map[string]any); ok {
		if _, hasHeight := normalized["anthropometrics"]["height"]; !hasHeight {
			if height, ok, err := feetInchesHeight(anthro); err != nil {
				return nil, fmt.Errorf("parsing patient: %w", err)
			} else if ok {
				normalized["anthropometrics"]["height"] = height
			}
		}
	}

	encoded, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("parsing patient: %w", err)
	}
	var data domain.PatientData
	if err := json.Unmarshal(encoded, &data); err != nil {
		return nil, fmt.Errorf("parsing patient: %w", err)
	}

	if err := data.Validate(); err != nil {
		return nil, err
	}
	return &data, nil
}

// ValidatePatientInput returns every problem in the document, sorted by field.
func (ips *InputParserService) ValidatePatientInput(doc map[string]any) []error {
	var allErrors []error

	for section, rawSection := range doc {
		aliases, known := ips.aliases[section]
		if !known {
			allErrors = append(allErrors, domain.NewValidationError(section, "unknown section", nil))
			continue
		}
		if rawSection == nil {
			continue
		}
		fields, ok := rawSection.(map[string]any)
		if !ok {
			allErrors = append(allErrors, domain.NewValidationError(section, "must be an object", rawSection))
			continue
		}
		for key, value := range fields {
			if section == "anthropometrics" && isFeetInchesKey(key) {
				if _, _, err := coerce(numberField, value); err != nil {
					allErrors = append(allErrors, domain.NewValidationError(section+"."+key, err.Error(), value))
				}
				continue
			}
			name, known := aliases[key]
			if !known {
				allErrors = append(allErrors, domain.NewValidationError(section+"."+key, "unknown field", value))
				continue
			}
			if _, _, err := coerce(patientFields[section][name], value); err != nil {
				allErrors = append(allErrors, domain.NewValidationError(section+"."+name, err.Error(), value))
			}
		}
	}

	sort.Slice(allErrors, func(i, j int) bool {
		var a, b *domain.ValidationError
		errors.As(allErrors[i], &a)
		errors.As(allErrors[j], &b)
		return a.Field < b.Field
	})
	return allErrors
}

func coerce(kind fieldKind, value any) (any, bool, error) {
	if value == nil {
		return nil, false, nil
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return nil, false, nil
	}

	switch kind {
	case numberField:
		switch v := value.(type) {
		case float64:
			return v, true, nil
		case int:
			return float64(v), true, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, false, errors.New("must be a number")
			}
			return f, true, nil
		}
		return nil, false, errors.New("must be a number")
	case flagField:
		switch v := value.(type) {
		case bool:
			return v, true, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true", "yes", "y", "1":
				return true, true, nil
			case "false", "no", "n", "0":
				return false, true, nil
			}
		}
		return nil, false, errors.New("must be a boolean")
	case sexField:
		s, ok := value.(string)
		if !ok {
			return nil, false, errors.New("must be male or female")
		}
		sex := domain.Sex(strings.ToLower(strings.TrimSpace(s)))
		if !sex.IsValid() {
			return nil, false, errors.New("must be male or female")
		}
		return string(sex), true, nil
	case textField:
		s, ok := value.(string)
		if !ok {
			return nil, false, errors.New("must be a string")
		}
		return s, true, nil
	}
	return nil, false, errors.New("unsupported field")
}

func isFeetInchesKey(key string) bool {
	switch key {
	case "height_feet", "heightInFeet", "height_inches", "heightInInches":
		return true
	}
	return false
}

func feetInchesHeight(anthro map[string]any) (float64, bool, error) {
	lookup := func(keys ...string) (float64, bool) {
		for _, key := range keys {
			if v, ok, _ := coerce(numberField, anthro[key]); ok {
				return v.(float64), true
			}
		}
		return 0, false
	}

	feet, hasFeet := lookup("height_feet", "heightInFeet")
	inches, hasInches := lookup("height_inches", "heightInInches")
	if !hasFeet && !hasInches {
		return 0, false, nil
	}
	height, err := HeightFromFeetInches(feet, inches)
	if err != nil {
		return 0, false, err
	}
	return height, true, nil
}

func snakeToCamel(name string) string {
	parts := strings.Split(name, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}
