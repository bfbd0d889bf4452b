package plan

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Skufu/nutrifit/internal/health"
)

var (
	ErrInvalidProfile     = errors.New("invalid profile")
	ErrInvalidPlanRequest = errors.New("invalid plan request")
)

var activityMultipliers = map[health.ActivityLevel]float64{
	health.Sedentary:  1.2,
	health.Light:      1.375,
	health.Moderate:   1.55,
	health.Active:     1.725,
	health.VeryActive: 1.9,
}

var goalDeltas = map[health.Goal]int{
	health.WeightLoss:  -500,
	health.WeightGain:  400,
	health.MuscleGain:  300,
	health.Maintenance: 0,
}

const (
	riskReductionShare = 0.10
	maxRiskReduction   = 300
)

// Conditions whose high risk lowers the calorie target.
var calorieRiskConditions = []health.Condition{health.Obesity, health.Diabetes, health.Hypertension}

// NormalizeProfile fills defaults for activity level and goal and rejects
// profiles that cannot drive a calorie computation.
func NormalizeProfile(p health.UserProfile) (health.UserProfile, error) {
	var problems []string

	if p.Age <= 0 {
		problems = append(problems, "age is required")
	} else if p.Age < 10 || p.Age > 120 {
		problems = append(problems, fmt.Sprintf("age %d outside 10-120", p.Age))
	}
	if p.HeightCm <= 0 {
		problems = append(problems, "height is required")
	} else if p.HeightCm < 50 || p.HeightCm > 272 {
		problems = append(problems, fmt.Sprintf("height %.1f cm outside 50-272", p.HeightCm))
	}
	if p.WeightKg <= 0 {
		problems = append(problems, "weight is required")
	} else if p.WeightKg < 20 || p.WeightKg > 400 {
		problems = append(problems, fmt.Sprintf("weight %.1f kg outside 20-400", p.WeightKg))
	}

	p.Gender = strings.ToLower(strings.TrimSpace(p.Gender))
	switch p.Gender {
	case "", "male", "female", "other":
	default:
		problems = append(problems, fmt.Sprintf("unknown gender %q", p.Gender))
	}

	p.ActivityLevel = health.ActivityLevel(strings.ToLower(strings.TrimSpace(string(p.ActivityLevel))))
	if p.ActivityLevel == "" {
		p.ActivityLevel = health.Moderate
	}
	if _, ok := activityMultipliers[p.ActivityLevel]; !ok {
		problems = append(problems, fmt.Sprintf("unknown activity level %q", p.ActivityLevel))
	}

	p.Goal = health.Goal(strings.ToLower(strings.TrimSpace(string(p.Goal))))
	if p.Goal == "" {
		p.Goal = health.Maintenance
	}
	if _, ok := goalDeltas[p.Goal]; !ok {
		problems = append(problems, fmt.Sprintf("unknown goal %q", p.Goal))
	}

	if len(problems) > 0 {
		return p, fmt.Errorf("%w: %s", ErrInvalidProfile, strings.Join(problems, "; "))
	}
	return p, nil
}

// BMR is the Mifflin-St Jeor basal metabolic rate in kcal/day. Unspecified
// gender uses the midpoint of the male and female constants.
func BMR(p health.UserProfile) float64 {
	base := 10*p.WeightKg + 6.25*p.HeightCm - 5*float64(p.Age)
	switch p.Gender {
	case "male":
		return base + 5
	case "female":
		return base - 161
	default:
		return base - 78
	}
}

// CalorieTarget records every step of the daily target computation.
type CalorieTarget struct {
	BMR            float64 `json:"bmr"`
	Maintenance    int     `json:"maintenance"`
	GoalDelta      int     `json:"goal_delta"`
	RiskAdjustment int     `json:"risk_adjustment"`
	FloorApplied   bool    `json:"floor_applied"`
	Daily          int     `json:"daily"`
}

// DailyCalories computes the target for a normalized profile.
func DailyCalories(p health.UserProfile, a health.RiskAssessment, floor int) CalorieTarget {
	t := CalorieTarget{BMR: math.Round(BMR(p)*10) / 10}
	t.Maintenance = int(math.Round(BMR(p) * activityMultipliers[p.ActivityLevel]))
	t.GoalDelta = goalDeltas[p.Goal]
	target := t.Maintenance + t.GoalDelta

	if highRiskAny(a, calorieRiskConditions...) {
		reduction := int(math.Round(float64(target) * riskReductionShare))
		if reduction > maxRiskReduction {
			reduction = maxRiskReduction
		}
		if reduction > 0 {
			t.RiskAdjustment = -reduction
			target -= reduction
		}
	}

	if target < floor {
		target = floor
		t.FloorApplied = true
	}
	t.Daily = target
	return t
}

func highRiskAny(a health.RiskAssessment, conditions ...health.Condition) bool {
	for _, c := range conditions {
		if a.Level(c) == health.RiskHigh {
			return true
		}
	}
	return false
}
