// Package analysis wires normalization, risk scoring, deficiency analysis,
// summary composition and plan synthesis into one reentrant pipeline.
package analysis

import (
	"go.uber.org/zap"

	"github.com/Skufu/nutrifit/internal/deficiency"
	"github.com/Skufu/nutrifit/internal/health"
	"github.com/Skufu/nutrifit/internal/metrics"
	"github.com/Skufu/nutrifit/internal/plan"
	"github.com/Skufu/nutrifit/internal/risk"
	"github.com/Skufu/nutrifit/internal/summary"
)

// Pipeline holds only immutable handles and is safe for concurrent use.
type Pipeline struct {
	scorers     []risk.Scorer
	synthesizer *plan.Synthesizer
	logger      *zap.Logger
}

func New(models *risk.Registry, catalog *plan.Catalog, opts plan.Options, logger *zap.Logger) (*Pipeline, error) {
	synth, err := plan.NewSynthesizer(catalog, opts, logger.Named("plan"))
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		scorers:     risk.NewScorers(models, logger.Named("risk")),
		synthesizer: synth,
		logger:      logger,
	}, nil
}

// Analyze never fails: unparseable input degrades to warnings and unknown
// levels. The profile is used only to derive BMI and is not validated here.
func (p *Pipeline) Analyze(raw map[string]string, profile health.UserProfile) health.RiskAssessment {
	m, warnings := metrics.Normalize(raw)
	m = metrics.WithDerivedBMI(m, profile)

	conditions, overall, riskWarnings := risk.Assess(p.scorers, m)
	def := deficiency.Analyze(m)

	a := health.RiskAssessment{
		Conditions:   conditions,
		Overall:      overall,
		Deficiencies: def.Deficiencies,
		Flags:        def.Flags,
		Metrics:      m,
		Warnings:     append(warnings, riskWarnings...),
	}
	a.Summary = summary.Compose(a)

	p.logger.Debug("analysis complete",
		zap.Int("metrics", len(m.Present())),
		zap.String("overall", overall.String()),
		zap.Int("warnings", len(a.Warnings)),
	)
	return a
}

func (p *Pipeline) GeneratePlan(profile health.UserProfile, a health.RiskAssessment, kind plan.Kind, days int) (plan.Plan, error) {
	return p.synthesizer.Generate(profile, a, kind, days)
}

// Energy returns the daily calorie and burn targets for profile under a.
func (p *Pipeline) Energy(profile health.UserProfile, a health.RiskAssessment) (plan.Energy, error) {
	return p.synthesizer.Energy(profile, a)
}
