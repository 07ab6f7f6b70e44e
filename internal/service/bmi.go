package service

import (
	"fmt"
	"math"

	"github.com/gyndok/lancet-obesity-compass/internal/domain"
)

const (
	targetBMI         = 25.0
	weeklyLossPounds  = 1.5
	bmiImperialFactor = 703.0
)

// BMICategory returns the WHO category label for a BMI.
func BMICategory(bmi float64) string {
	switch {
	case bmi < 18.5:
		return "Underweight"
	case bmi < 25:
		return "Normal"
	case bmi < 30:
		return "Overweight"
	case bmi < 35:
		return "Obese I"
	case bmi < 40:
		return "Obese II"
	default:
		return "Obese III"
	}
}

// HeightFromFeetInches converts a feet + inches height to inches.
func HeightFromFeetInches(feet, inches float64) (float64, error) {
	if feet < 0 || inches < 0 {
		return 0, domain.NewValidationError("height", "feet and inches must not be negative", fmt.Sprintf("%v'%v\"", feet, inches))
	}
	total := feet*12 + inches
	if total <= 0 {
		return 0, domain.NewValidationError("height", "height must be positive", total)
	}
	return total, nil
}

// CalculateBMI computes BMI from height in inches and weight in pounds, with
// the weight needed to reach BMI 25 at about 1.5 lb per week.
func CalculateBMI(heightIn, weightLb float64) (*domain.BMISummary, error) {
	if heightIn <= 0 {
		return nil, fmt.Errorf("calculating BMI: %w", domain.NewValidationError("height", "must be positive", heightIn))
	}
	if weightLb <= 0 {
		return nil, fmt.Errorf("calculating BMI: %w", domain.NewValidationError("weight", "must be positive", weightLb))
	}

	bmi := weightLb / (heightIn * heightIn) * bmiImperialFactor
	summary := &domain.BMISummary{
		BMI:      math.Round(bmi*10) / 10,
		Category: BMICategory(bmi),
	}

	target := targetBMI * heightIn * heightIn / bmiImperialFactor
	if weightLb > target {
		toLose := weightLb - target
		weeks := int(math.Ceil(toLose / weeklyLossPounds))
		summary.TargetWeight = domain.Float(math.Round(target))
		summary.WeightToLose = domain.Float(math.Round(toLose*10) / 10)
		summary.WeeksToGoal = &weeks
	}

	return summary, nil
}
