// Package health holds the domain records shared by the analysis pipeline:
// metrics, risk levels, assessments and user profiles.
package health

import (
	"encoding/json"
	"fmt"
	"strings"
)

type RiskLevel int

const (
	RiskUnknown RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
)

var riskLevelNames = map[RiskLevel]string{
	RiskUnknown: "unknown",
	RiskLow:     "low",
	RiskMedium:  "medium",
	RiskHigh:    "high",
}

func (l RiskLevel) String() string {
	if name, ok := riskLevelNames[l]; ok {
		return name
	}
	return "unknown"
}

func (l RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *RiskLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	level, err := ParseRiskLevel(s)
	if err != nil {
		return err
	}
	*l = level
	return nil
}

// ParseRiskLevel accepts the lower-case names produced by String, case-insensitively.
// An empty string parses as RiskUnknown.
func ParseRiskLevel(s string) (RiskLevel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return RiskUnknown, nil
	}
	for level, name := range riskLevelNames {
		if name == s {
			return level, nil
		}
	}
	return RiskUnknown, fmt.Errorf("unknown risk level %q", s)
}

// MaxLevel returns the higher of two levels.
func MaxLevel(a, b RiskLevel) RiskLevel {
	if a > b {
		return a
	}
	return b
}

type Condition string

const (
	Diabetes     Condition = "diabetes"
	Hypertension Condition = "hypertension"
	Thyroid      Condition = "thyroid"
	Obesity      Condition = "obesity"
)

// Conditions is the fixed scoring order used everywhere an assessment is rendered.
var Conditions = []Condition{Diabetes, Hypertension, Thyroid, Obesity}

type ConditionRisk struct {
	Condition   Condition `json:"condition"`
	Level       RiskLevel `json:"level"`
	Probability float64   `json:"probability"`
	Source      string    `json:"source,omitempty"`
	Triggers    []string  `json:"triggers,omitempty"`
}

// AbnormalFlags maps a metric key or a derived category to whether it is out of range.
type AbnormalFlags map[string]bool

type WarningKind string

const (
	WarnMetricParse      WarningKind = "metric_parse"
	WarnModelUnavailable WarningKind = "model_unavailable"
	WarnEmptyCatalog     WarningKind = "empty_template_catalog"
)

// Warning is a non-fatal finding attached to an assessment or plan.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Key     string      `json:"key,omitempty"`
	Value   string      `json:"value,omitempty"`
	Message string      `json:"message"`
}

type RiskAssessment struct {
	Conditions   []ConditionRisk `json:"conditions"`
	Overall      RiskLevel       `json:"overall"`
	Deficiencies []string        `json:"deficiencies"`
	Flags        AbnormalFlags   `json:"abnormal_flags"`
	Summary      string          `json:"summary"`
	Metrics      HealthMetrics   `json:"health_metrics"`
	Warnings     []Warning       `json:"warnings,omitempty"`
}

// Level returns the level recorded for c, or RiskUnknown when c was not scored.
func (a RiskAssessment) Level(c Condition) RiskLevel {
	for _, cr := range a.Conditions {
		if cr.Condition == c {
			return cr.Level
		}
	}
	return RiskUnknown
}

// HasDeficiency reports whether label is among the assessment's deficiencies.
func (a RiskAssessment) HasDeficiency(label string) bool {
	for _, d := range a.Deficiencies {
		if strings.EqualFold(d, label) {
			return true
		}
	}
	return false
}

// UnknownAssessment is the assessment used when no report backs a plan request.
func UnknownAssessment() RiskAssessment {
	conditions := make([]ConditionRisk, 0, len(Conditions))
	for _, c := range Conditions {
		conditions = append(conditions, ConditionRisk{Condition: c, Level: RiskUnknown})
	}
	return RiskAssessment{
		Conditions:   conditions,
		Overall:      RiskUnknown,
		Deficiencies: []string{},
		Flags:        AbnormalFlags{},
	}
}
