package plan

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Skufu/nutrifit/internal/health"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// Meal slots.
const (
	Breakfast = "breakfast"
	Lunch     = "lunch"
	Dinner    = "dinner"
	Snack     = "snack"
)

// Workout focus values.
const (
	Cardio      = "cardio"
	Strength    = "strength"
	Flexibility = "flexibility"
	Rest        = "rest"
)

var focusOrder = []string{Cardio, Strength, Flexibility, Rest}

// Exclusion and nutrient tags used by templates.
const (
	TagHighSugar        = "high_sugar"
	TagHighSodium       = "high_sodium"
	TagHighSaturatedFat = "high_saturated_fat"
	TagHighIntensity    = "high_intensity"
	TagHighImpact       = "high_impact"

	NutrientVitaminD   = "vitamin_d"
	NutrientVitaminB12 = "vitamin_b12"
	NutrientIron       = "iron"
)

type Macros struct {
	Protein float64 `yaml:"protein"`
	Carbs   float64 `yaml:"carbs"`
	Fat     float64 `yaml:"fat"`
}

type MealTemplate struct {
	ID           string        `yaml:"id"`
	Name         string        `yaml:"name"`
	Slot         string        `yaml:"slot"`
	Items        []string      `yaml:"items"`
	Goals        []health.Goal `yaml:"goals"`
	Tags         []string      `yaml:"tags"`
	Nutrients    []string      `yaml:"nutrients"`
	Macros       Macros        `yaml:"macros"`
	Instructions string        `yaml:"instructions"`
}

type ExerciseTemplate struct {
	ID           string        `yaml:"id"`
	Name         string        `yaml:"name"`
	Focus        string        `yaml:"focus"`
	Intensity    string        `yaml:"intensity"`
	MET          float64       `yaml:"met"`
	Sets         int           `yaml:"sets"`
	Reps         string        `yaml:"reps"`
	Goals        []health.Goal `yaml:"goals"`
	Tags         []string      `yaml:"tags"`
	Instructions string        `yaml:"instructions"`
}

type catalogFile struct {
	Version       string             `yaml:"version"`
	Meals         []MealTemplate     `yaml:"meals"`
	Exercises     []ExerciseTemplate `yaml:"exercises"`
	SafeMeals     []MealTemplate     `yaml:"safe_meals"`
	SafeExercises []ExerciseTemplate `yaml:"safe_exercises"`
}

// Catalog is an immutable, slot-indexed view over a versioned template file.
type Catalog struct {
	version       string
	meals         map[string][]MealTemplate
	exercises     map[string][]ExerciseTemplate
	safeMeals     map[string]MealTemplate
	safeExercises map[string]ExerciseTemplate
}

// DefaultCatalog parses the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(embeddedCatalog)
}

// LoadCatalog reads a catalog file from disk.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if f.Version == "" {
		return nil, errors.New("catalog version is required")
	}

	c := &Catalog{
		version:       f.Version,
		meals:         map[string][]MealTemplate{},
		exercises:     map[string][]ExerciseTemplate{},
		safeMeals:     map[string]MealTemplate{},
		safeExercises: map[string]ExerciseTemplate{},
	}

	ids := map[string]bool{}
	checkID := func(id string) error {
		if id == "" {
			return errors.New("template without id")
		}
		if ids[id] {
			return fmt.Errorf("duplicate template id %q", id)
		}
		ids[id] = true
		return nil
	}

	for _, m := range append(append([]MealTemplate{}, f.Meals...), f.SafeMeals...) {
		if err := checkID(m.ID); err != nil {
			return nil, err
		}
		if err := validateMacros(m); err != nil {
			return nil, err
		}
	}
	for _, e := range append(append([]ExerciseTemplate{}, f.Exercises...), f.SafeExercises...) {
		if err := checkID(e.ID); err != nil {
			return nil, err
		}
		if e.MET <= 0 || e.Sets <= 0 {
			return nil, fmt.Errorf("exercise %q needs a positive met and sets", e.ID)
		}
	}

	for _, m := range f.Meals {
		c.meals[m.Slot] = append(c.meals[m.Slot], m)
	}
	for _, e := range f.Exercises {
		c.exercises[e.Focus] = append(c.exercises[e.Focus], e)
	}
	for _, m := range f.SafeMeals {
		c.safeMeals[m.Slot] = m
	}
	for _, e := range f.SafeExercises {
		c.safeExercises[e.Focus] = e
	}
	for _, focus := range focusOrder {
		if _, ok := c.safeExercises[focus]; !ok {
			return nil, fmt.Errorf("catalog has no safe exercise for %s", focus)
		}
	}
	return c, nil
}

func validateMacros(m MealTemplate) error {
	sum := m.Macros.Protein + m.Macros.Carbs + m.Macros.Fat
	if math.Abs(sum-1) > 0.01 {
		return fmt.Errorf("meal %q macro ratios sum to %.2f", m.ID, sum)
	}
	return nil
}

func (c *Catalog) Version() string {
	return c.version
}

// SafeMeal returns the fallback template for slot.
func (c *Catalog) SafeMeal(slot string) (MealTemplate, bool) {
	m, ok := c.safeMeals[slot]
	return m, ok
}

// SafeExercise returns the fallback template for focus.
func (c *Catalog) SafeExercise(focus string) (ExerciseTemplate, bool) {
	e, ok := c.safeExercises[focus]
	return e, ok
}

// Meals returns the slot's templates allowed for goal and free of excluded
// tags, in catalog order.
func (c *Catalog) Meals(slot string, goal health.Goal, exclude map[string]bool) []MealTemplate {
	out := []MealTemplate{}
	for _, m := range c.meals[slot] {
		if allowsGoal(m.Goals, goal) && !hasAny(m.Tags, exclude) {
			out = append(out, m)
		}
	}
	return out
}

// Exercises is the workout counterpart of Meals.
func (c *Catalog) Exercises(focus string, goal health.Goal, exclude map[string]bool) []ExerciseTemplate {
	out := []ExerciseTemplate{}
	for _, e := range c.exercises[focus] {
		if allowsGoal(e.Goals, goal) && !hasAny(e.Tags, exclude) {
			out = append(out, e)
		}
	}
	return out
}

func allowsGoal(goals []health.Goal, goal health.Goal) bool {
	if len(goals) == 0 {
		return true
	}
	for _, g := range goals {
		if g == goal {
			return true
		}
	}
	return false
}

func hasAny(tags []string, set map[string]bool) bool {
	for _, t := range tags {
		if set[t] {
			return true
		}
	}
	return false
}
