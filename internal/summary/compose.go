// Package summary renders a risk assessment as deterministic prose.
package summary

import (
	"fmt"
	"math"
	"strings"

	"github.com/Skufu/nutrifit/internal/health"
)

var conditionNames = map[health.Condition]string{
	health.Diabetes:     "Diabetes",
	health.Hypertension: "Hypertension",
	health.Thyroid:      "Thyroid disorder",
	health.Obesity:      "Obesity",
}

// Compose lists the overall level, every scored condition and every deficiency.
// Conditions are rendered in health.Conditions order regardless of input order.
func Compose(a health.RiskAssessment) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Overall risk: %s.", strings.ToUpper(a.Overall.String()))

	scored := 0
	for _, c := range health.Conditions {
		for _, cr := range a.Conditions {
			if cr.Condition != c || cr.Level == health.RiskUnknown {
				continue
			}
			scored++
			fmt.Fprintf(&b, " %s: %s risk", conditionNames[c], cr.Level)
			if cr.Probability > 0 {
				fmt.Fprintf(&b, " (model probability %d%%)", int(math.Round(cr.Probability*100)))
			}
			b.WriteString(".")
		}
	}
	if scored == 0 {
		b.WriteString(" Not enough data to assess any condition.")
	}

	if len(a.Deficiencies) == 0 {
		b.WriteString(" No deficiencies detected.")
	} else {
		fmt.Fprintf(&b, " Deficiencies: %s.", strings.Join(a.Deficiencies, ", "))
	}

	return b.String()
}
