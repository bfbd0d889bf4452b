// Package risk scores per-condition disease risk from a HealthMetrics record.
package risk

import (
	"go.uber.org/zap"

	"github.com/Skufu/nutrifit/internal/health"
)

// Bucket cut points; a probability equal to a cut point lands in the higher bucket.
const (
	HighCut   = 0.70
	MediumCut = 0.40
)

// ThresholdSource marks a result decided by clinical cutoffs without a model.
const ThresholdSource = "threshold"

// Scorer produces a risk result for one condition.
type Scorer interface {
	Condition() health.Condition
	Score(m health.HealthMetrics) (health.ConditionRisk, *health.Warning)
}

// Bucket maps a model probability onto low/medium/high.
func Bucket(p float64) health.RiskLevel {
	switch {
	case p >= HighCut:
		return health.RiskHigh
	case p >= MediumCut:
		return health.RiskMedium
	default:
		return health.RiskLow
	}
}

// Overall is the maximum of the known levels, or unknown when none are known.
func Overall(results []health.ConditionRisk) health.RiskLevel {
	overall := health.RiskUnknown
	for _, r := range results {
		overall = health.MaxLevel(overall, r.Level)
	}
	return overall
}

type conditionScorer struct {
	condition health.Condition
	required  []string
	models    *Registry
	logger    *zap.Logger
}

func (s *conditionScorer) Condition() health.Condition {
	return s.condition
}

func (s *conditionScorer) Score(m health.HealthMetrics) (health.ConditionRisk, *health.Warning) {
	result := health.ConditionRisk{Condition: s.condition, Level: health.RiskUnknown}
	if !m.Has(s.required...) {
		return result, nil
	}

	floor, triggers := thresholdLevel(s.condition, m)
	result.Triggers = triggers

	model, err := s.models.Model(s.condition)
	if err == nil {
		var p float64
		if p, err = model.Score(m); err == nil {
			result.Probability = p
			result.Source = model.Source()
			result.Level = health.MaxLevel(Bucket(p), floor)
			return result, nil
		}
	}

	s.logger.Warn("risk model unavailable, falling back to thresholds",
		zap.String("condition", string(s.condition)),
		zap.Error(err),
	)
	warning := &health.Warning{
		Kind:    health.WarnModelUnavailable,
		Key:     string(s.condition),
		Message: err.Error(),
	}
	if floor != health.RiskUnknown {
		result.Level = floor
		result.Source = ThresholdSource
	}
	return result, warning
}

func newScorer(c health.Condition, models *Registry, logger *zap.Logger, required ...string) Scorer {
	return &conditionScorer{condition: c, required: required, models: models, logger: logger}
}

func NewDiabetesScorer(models *Registry, logger *zap.Logger) Scorer {
	return newScorer(health.Diabetes, models, logger, health.FastingGlucose, health.RandomGlucose, health.HbA1c)
}

func NewHypertensionScorer(models *Registry, logger *zap.Logger) Scorer {
	return newScorer(health.Hypertension, models, logger, health.SystolicBP, health.DiastolicBP)
}

func NewThyroidScorer(models *Registry, logger *zap.Logger) Scorer {
	return newScorer(health.Thyroid, models, logger, health.TSH, health.T3, health.T4)
}

func NewObesityScorer(models *Registry, logger *zap.Logger) Scorer {
	return newScorer(health.Obesity, models, logger, health.BMI)
}

// NewScorers returns one scorer per condition in health.Conditions order.
func NewScorers(models *Registry, logger *zap.Logger) []Scorer {
	return []Scorer{
		NewDiabetesScorer(models, logger),
		NewHypertensionScorer(models, logger),
		NewThyroidScorer(models, logger),
		NewObesityScorer(models, logger),
	}
}

// Assess runs every scorer over m and returns the results, the overall level,
// and any degradation warnings.
func Assess(scorers []Scorer, m health.HealthMetrics) ([]health.ConditionRisk, health.RiskLevel, []health.Warning) {
	results := make([]health.ConditionRisk, 0, len(scorers))
	warnings := []health.Warning{}
	for _, s := range scorers {
		r, w := s.Score(m)
		results = append(results, r)
		if w != nil {
			warnings = append(warnings, *w)
		}
	}
	return results, Overall(results), warnings
}
