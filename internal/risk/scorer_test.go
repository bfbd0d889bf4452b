package risk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Skufu/nutrifit/internal/health"
)

type fakeModel struct {
	p   float64
	err error
}

func (f fakeModel) Score(health.HealthMetrics) (float64, error) { return f.p, f.err }
func (f fakeModel) Source() string                              { return "fake" }

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }

func registryWith(p float64) *Registry {
	models := map[health.Condition]Model{}
	for _, c := range health.Conditions {
		models[c] = fakeModel{p: p}
	}
	return NewRegistry(models)
}

func TestBucketBoundariesRoundUp(t *testing.T) {
	assert.Equal(t, health.RiskLow, Bucket(0.39))
	assert.Equal(t, health.RiskMedium, Bucket(MediumCut))
	assert.Equal(t, health.RiskMedium, Bucket(0.69))
	assert.Equal(t, health.RiskHigh, Bucket(HighCut))
	assert.Equal(t, health.RiskHigh, Bucket(1))
}

func TestScore_UnknownWhenSubsetAbsent(t *testing.T) {
	// A model that would say "high" must not be consulted without data.
	scorers := NewScorers(registryWith(0.99), zap.NewNop())
	m := health.HealthMetrics{VitaminD: f64(15)}

	results, overall, warnings := Assess(scorers, m)
	require.Len(t, results, len(health.Conditions))
	for _, r := range results {
		assert.Equal(t, health.RiskUnknown, r.Level, r.Condition)
		assert.Zero(t, r.Probability)
	}
	assert.Equal(t, health.RiskUnknown, overall)
	assert.Empty(t, warnings)
}

func TestScore_EmptyMetrics(t *testing.T) {
	results, overall, _ := Assess(NewScorers(registryWith(0.1), zap.NewNop()), health.HealthMetrics{})
	for _, r := range results {
		assert.Equal(t, health.RiskUnknown, r.Level)
	}
	assert.Equal(t, health.RiskUnknown, overall)
}

func TestScore_HardThresholdOverridesModel(t *testing.T) {
	s := NewDiabetesScorer(registryWith(0.05), zap.NewNop())

	r, w := s.Score(health.HealthMetrics{FastingGlucose: f64(130), HbA1c: f64(5.4)})
	assert.Nil(t, w)
	assert.Equal(t, health.RiskHigh, r.Level)
	assert.Equal(t, 0.05, r.Probability)
	assert.Contains(t, r.Triggers, "fasting_glucose 130 >= 126")
}

func TestScore_HardThresholdsPerCondition(t *testing.T) {
	cases := []struct {
		name   string
		scorer Scorer
		m      health.HealthMetrics
	}{
		{"random glucose", NewDiabetesScorer(registryWith(0), zap.NewNop()), health.HealthMetrics{RandomGlucose: f64(200)}},
		{"hba1c", NewDiabetesScorer(registryWith(0), zap.NewNop()), health.HealthMetrics{HbA1c: f64(6.5)}},
		{"systolic", NewHypertensionScorer(registryWith(0), zap.NewNop()), health.HealthMetrics{SystolicBP: intp(140)}},
		{"diastolic", NewHypertensionScorer(registryWith(0), zap.NewNop()), health.HealthMetrics{SystolicBP: intp(118), DiastolicBP: intp(92)}},
		{"high tsh", NewThyroidScorer(registryWith(0), zap.NewNop()), health.HealthMetrics{TSH: f64(11)}},
		{"suppressed tsh", NewThyroidScorer(registryWith(0), zap.NewNop()), health.HealthMetrics{TSH: f64(0.05)}},
		{"bmi", NewObesityScorer(registryWith(0), zap.NewNop()), health.HealthMetrics{BMI: f64(31)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := tc.scorer.Score(tc.m)
			assert.Equal(t, health.RiskHigh, r.Level)
		})
	}
}

func TestScore_SoftThresholdTakesMax(t *testing.T) {
	s := NewDiabetesScorer(registryWith(0.1), zap.NewNop())
	r, _ := s.Score(health.HealthMetrics{FastingGlucose: f64(105)})
	assert.Equal(t, health.RiskMedium, r.Level)

	s = NewDiabetesScorer(registryWith(0.8), zap.NewNop())
	r, _ = s.Score(health.HealthMetrics{FastingGlucose: f64(105)})
	assert.Equal(t, health.RiskHigh, r.Level)
}

func TestScore_ModelBucketsWithoutThreshold(t *testing.T) {
	s := NewObesityScorer(registryWith(0.45), zap.NewNop())
	r, _ := s.Score(health.HealthMetrics{BMI: f64(22)})
	assert.Equal(t, health.RiskMedium, r.Level)
	assert.Equal(t, "fake", r.Source)
	assert.Empty(t, r.Triggers)
}

func TestScore_ModelUnavailableDegrades(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger := zap.New(core)
	models := NewRegistry(map[health.Condition]Model{
		health.Hypertension: fakeModel{err: errors.New("corrupt weights")},
	})

	r, w := NewDiabetesScorer(models, logger).Score(health.HealthMetrics{HbA1c: f64(5.2)})
	assert.Equal(t, health.RiskUnknown, r.Level)
	require.NotNil(t, w)
	assert.Equal(t, health.WarnModelUnavailable, w.Kind)
	assert.True(t, errors.Is(mustModelErr(models, health.Diabetes), ErrModelUnavailable))

	r, w = NewHypertensionScorer(models, logger).Score(health.HealthMetrics{SystolicBP: intp(150)})
	require.NotNil(t, w)
	assert.Contains(t, w.Message, "corrupt weights")
	assert.Equal(t, health.RiskHigh, r.Level)
	assert.Equal(t, ThresholdSource, r.Source)

	assert.Equal(t, 2, logs.FilterMessage("risk model unavailable, falling back to thresholds").Len())
}

func TestAssess_DegradedConditionDoesNotAbort(t *testing.T) {
	models := NewRegistry(map[health.Condition]Model{
		health.Obesity: fakeModel{p: 0.2},
	})
	m := health.HealthMetrics{HbA1c: f64(5.0), BMI: f64(23)}

	results, overall, warnings := Assess(NewScorers(models, zap.NewNop()), m)
	require.Len(t, results, 4)
	assert.Equal(t, health.RiskUnknown, results[0].Level)
	assert.Equal(t, health.RiskLow, results[3].Level)
	assert.Equal(t, health.RiskLow, overall)
	assert.Len(t, warnings, 1)
}

func TestOverall(t *testing.T) {
	mk := func(levels ...health.RiskLevel) []health.ConditionRisk {
		out := []health.ConditionRisk{}
		for _, l := range levels {
			out = append(out, health.ConditionRisk{Level: l})
		}
		return out
	}
	assert.Equal(t, health.RiskUnknown, Overall(nil))
	assert.Equal(t, health.RiskUnknown, Overall(mk(health.RiskUnknown, health.RiskUnknown)))
	assert.Equal(t, health.RiskLow, Overall(mk(health.RiskUnknown, health.RiskLow)))
	assert.Equal(t, health.RiskHigh, Overall(mk(health.RiskLow, health.RiskHigh, health.RiskMedium)))
}

func mustModelErr(r *Registry, c health.Condition) error {
	_, err := r.Model(c)
	return err
}
