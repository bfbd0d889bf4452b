package risk

import (
	"fmt"

	"github.com/Skufu/nutrifit/internal/health"
)

type comparison int

const (
	atLeast comparison = iota
	over
	under
)

// Threshold is a clinical cutoff that implies a minimum risk level.
type Threshold struct {
	Metric string
	Cmp    comparison
	Value  float64
	Level  health.RiskLevel
}

func (t Threshold) fires(m health.HealthMetrics) (string, bool) {
	v, ok := m.Value(t.Metric)
	if !ok {
		return "", false
	}
	switch {
	case t.Cmp == atLeast && v >= t.Value:
		return fmt.Sprintf("%s %g >= %g", t.Metric, v, t.Value), true
	case t.Cmp == over && v > t.Value:
		return fmt.Sprintf("%s %g > %g", t.Metric, v, t.Value), true
	case t.Cmp == under && v < t.Value:
		return fmt.Sprintf("%s %g < %g", t.Metric, v, t.Value), true
	}
	return "", false
}

func atLeastOf(metric string, v float64, level health.RiskLevel) Threshold {
	return Threshold{Metric: metric, Cmp: atLeast, Value: v, Level: level}
}

func above(metric string, v float64, level health.RiskLevel) Threshold {
	return Threshold{Metric: metric, Cmp: over, Value: v, Level: level}
}

func below(metric string, v float64, level health.RiskLevel) Threshold {
	return Threshold{Metric: metric, Cmp: under, Value: v, Level: level}
}

var thresholdTable = map[health.Condition][]Threshold{
	health.Diabetes: {
		atLeastOf(health.FastingGlucose, 126, health.RiskHigh),
		atLeastOf(health.RandomGlucose, 200, health.RiskHigh),
		atLeastOf(health.HbA1c, 6.5, health.RiskHigh),
		atLeastOf(health.FastingGlucose, 100, health.RiskMedium),
		atLeastOf(health.RandomGlucose, 140, health.RiskMedium),
		atLeastOf(health.HbA1c, 5.7, health.RiskMedium),
	},
	health.Hypertension: {
		atLeastOf(health.SystolicBP, 140, health.RiskHigh),
		atLeastOf(health.DiastolicBP, 90, health.RiskHigh),
		atLeastOf(health.SystolicBP, 130, health.RiskMedium),
		atLeastOf(health.DiastolicBP, 80, health.RiskMedium),
	},
	health.Thyroid: {
		above(health.TSH, 10, health.RiskHigh),
		below(health.TSH, 0.1, health.RiskHigh),
		above(health.TSH, 4.5, health.RiskMedium),
		below(health.TSH, 0.4, health.RiskMedium),
		below(health.T4, 4.5, health.RiskMedium),
		above(health.T4, 12.5, health.RiskMedium),
	},
	health.Obesity: {
		atLeastOf(health.BMI, 30, health.RiskHigh),
		atLeastOf(health.BMI, 25, health.RiskMedium),
	},
}

// thresholdLevel returns the highest level implied by any firing threshold and
// a description of every rule that fired.
func thresholdLevel(c health.Condition, m health.HealthMetrics) (health.RiskLevel, []string) {
	level := health.RiskUnknown
	var triggers []string
	for _, t := range thresholdTable[c] {
		if desc, ok := t.fires(m); ok {
			level = health.MaxLevel(level, t.Level)
			triggers = append(triggers, desc)
		}
	}
	return level, triggers
}
