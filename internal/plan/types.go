// Package plan synthesizes multi-day diet and workout plans from a user
// profile and a risk assessment.
package plan

import (
	"fmt"

	"github.com/Skufu/nutrifit/internal/health"
)

type Kind string

const (
	KindDiet    Kind = "diet"
	KindWorkout Kind = "workout"
)

// Plan is implemented by *DietPlan and *WorkoutPlan.
type Plan interface {
	Kind() Kind
	DayCount() int
	// Verify checks that days are numbered 1..n and that each total matches its entries.
	Verify() error
}

type MealEntry struct {
	MealType     string   `json:"meal_type"`
	Time         string   `json:"time"`
	TemplateID   string   `json:"template_id"`
	Name         string   `json:"name"`
	FoodItems    []string `json:"food_items"`
	Calories     int      `json:"calories"`
	Protein      float64  `json:"protein"`
	Carbs        float64  `json:"carbs"`
	Fat          float64  `json:"fat"`
	Instructions string   `json:"instructions,omitempty"`
}

type DayPlan struct {
	Day           int         `json:"day"`
	TotalCalories int         `json:"total_calories"`
	Meals         []MealEntry `json:"meals"`
}

type DietPlan struct {
	PlanType       Kind             `json:"plan_type"`
	CatalogVersion string           `json:"catalog_version"`
	Calories       CalorieTarget    `json:"calorie_target"`
	Days           []DayPlan        `json:"days"`
	Notes          string           `json:"notes,omitempty"`
	Warnings       []health.Warning `json:"warnings,omitempty"`
}

func (p *DietPlan) Kind() Kind    { return KindDiet }
func (p *DietPlan) DayCount() int { return len(p.Days) }

func (p *DietPlan) Verify() error {
	for i, d := range p.Days {
		if d.Day != i+1 {
			return fmt.Errorf("day at position %d has index %d", i, d.Day)
		}
		sum := 0
		for _, m := range d.Meals {
			sum += m.Calories
		}
		if sum != d.TotalCalories {
			return fmt.Errorf("day %d declares %d kcal but meals sum to %d", d.Day, d.TotalCalories, sum)
		}
	}
	return nil
}

type ExerciseEntry struct {
	TemplateID     string `json:"template_id"`
	Name           string `json:"name"`
	Intensity      string `json:"intensity"`
	Sets           int    `json:"sets"`
	Reps           string `json:"reps"`
	Duration       int    `json:"duration"` // minutes
	CaloriesBurned int    `json:"calories_burned"`
	Instructions   string `json:"instructions,omitempty"`
}

type WorkoutDay struct {
	Day           int             `json:"day"`
	Focus         string          `json:"focus"`
	Exercises     []ExerciseEntry `json:"exercises"`
	TotalDuration int             `json:"total_duration"`
	TotalCalories int             `json:"total_calories"`
}

type WorkoutPlan struct {
	PlanType        Kind             `json:"plan_type"`
	CatalogVersion  string           `json:"catalog_version"`
	DailyBurnTarget int              `json:"daily_burn_target"`
	Days            []WorkoutDay     `json:"days"`
	Notes           string           `json:"notes,omitempty"`
	Warnings        []health.Warning `json:"warnings,omitempty"`
}

func (p *WorkoutPlan) Kind() Kind    { return KindWorkout }
func (p *WorkoutPlan) DayCount() int { return len(p.Days) }

func (p *WorkoutPlan) Verify() error {
	for i, d := range p.Days {
		if d.Day != i+1 {
			return fmt.Errorf("day at position %d has index %d", i, d.Day)
		}
		calories, minutes := 0, 0
		for _, e := range d.Exercises {
			calories += e.CaloriesBurned
			minutes += e.Duration
		}
		if calories != d.TotalCalories {
			return fmt.Errorf("day %d declares %d kcal but exercises sum to %d", d.Day, d.TotalCalories, calories)
		}
		if minutes != d.TotalDuration {
			return fmt.Errorf("day %d declares %d min but exercises sum to %d", d.Day, d.TotalDuration, minutes)
		}
	}
	return nil
}

// ParseKind validates a plan kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindDiet, KindWorkout:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: unknown plan kind %q", ErrInvalidPlanRequest, s)
}
