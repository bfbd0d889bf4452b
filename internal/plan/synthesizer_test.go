package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Skufu/nutrifit/internal/deficiency"
	"github.com/Skufu/nutrifit/internal/health"
)

func newTestSynthesizer(t *testing.T) *Synthesizer {
	t.Helper()
	catalog, err := DefaultCatalog()
	require.NoError(t, err)
	s, err := NewSynthesizer(catalog, DefaultOptions(), zap.NewNop())
	require.NoError(t, err)
	return s
}

func mealTags(t *testing.T, c *Catalog) map[string][]string {
	t.Helper()
	tags := map[string][]string{}
	for _, meals := range c.meals {
		for _, m := range meals {
			tags[m.ID] = m.Tags
		}
	}
	return tags
}

func TestDiet_SevenDaysFourMeals(t *testing.T) {
	s := newTestSynthesizer(t)
	p := health.UserProfile{Age: 30, Gender: "female", HeightCm: 165, WeightKg: 60}

	plan, err := s.Diet(p, health.UnknownAssessment(), 0)
	require.NoError(t, err)
	require.NoError(t, plan.Verify())

	require.Len(t, plan.Days, 7)
	for i, day := range plan.Days {
		assert.Equal(t, i+1, day.Day)
		require.Len(t, day.Meals, 4)
		assert.Equal(t, plan.Calories.Daily, day.TotalCalories)
		assert.Equal(t, []string{Breakfast, Lunch, Dinner, Snack},
			[]string{day.Meals[0].MealType, day.Meals[1].MealType, day.Meals[2].MealType, day.Meals[3].MealType})
	}
	assert.Empty(t, plan.Warnings)
	assert.Equal(t, "2024.06", plan.CatalogVersion)
}

func TestDiet_HighRiskScenario(t *testing.T) {
	s := newTestSynthesizer(t)
	a := withLevels(map[health.Condition]health.RiskLevel{health.Obesity: health.RiskHigh})

	plan, err := s.Diet(heavyProfile(), a, 7)
	require.NoError(t, err)

	assert.Equal(t, 1459, plan.Calories.Daily)
	for _, day := range plan.Days {
		assert.Equal(t, 1459, day.TotalCalories)
		assert.Equal(t, 365, day.Meals[0].Calories)
		assert.Equal(t, 511, day.Meals[1].Calories)
		assert.Equal(t, 438, day.Meals[2].Calories)
		assert.Equal(t, 145, day.Meals[3].Calories)
	}
}

func TestDiet_ExcludesTagsForHighRisk(t *testing.T) {
	s := newTestSynthesizer(t)
	a := withLevels(map[health.Condition]health.RiskLevel{
		health.Diabetes:     health.RiskHigh,
		health.Hypertension: health.RiskHigh,
	})
	a.Flags[deficiency.FlagDyslipidemia] = true
	tags := mealTags(t, s.catalog)

	plan, err := s.Diet(heavyProfile(), a, 14)
	require.NoError(t, err)

	for _, day := range plan.Days {
		for _, m := range day.Meals {
			assert.NotContains(t, tags[m.TemplateID], TagHighSugar, m.TemplateID)
			assert.NotContains(t, tags[m.TemplateID], TagHighSodium, m.TemplateID)
			assert.NotContains(t, tags[m.TemplateID], TagHighSaturatedFat, m.TemplateID)
		}
	}
	assert.Contains(t, plan.Notes, "high_sugar")
	assert.Contains(t, plan.Notes, "dyslipidemia flagged")
}

func TestDiet_MediumRiskDoesNotExclude(t *testing.T) {
	s := newTestSynthesizer(t)
	a := withLevels(map[health.Condition]health.RiskLevel{health.Diabetes: health.RiskMedium})
	p := health.UserProfile{Age: 30, Gender: "female", HeightCm: 165, WeightKg: 60}

	plan, err := s.Diet(p, a, 30)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, day := range plan.Days {
		seen[day.Meals[0].TemplateID] = true
	}
	assert.True(t, seen["fortified-cereal"], "high_sugar breakfast should rotate in without a high risk")
}

func TestDiet_PrefersDeficiencyNutrients(t *testing.T) {
	s := newTestSynthesizer(t)
	a := health.UnknownAssessment()
	a.Deficiencies = []string{deficiency.VitaminDDeficiency}
	p := health.UserProfile{Age: 30, Gender: "female", HeightCm: 165, WeightKg: 60}

	plan, err := s.Diet(p, a, 3)
	require.NoError(t, err)

	assert.Equal(t, "fortified-cereal", plan.Days[0].Meals[0].TemplateID)
	assert.Equal(t, "veggie-omelette", plan.Days[1].Meals[0].TemplateID)
	assert.Equal(t, "tuna-wrap", plan.Days[0].Meals[1].TemplateID)
	assert.Equal(t, "baked-salmon", plan.Days[0].Meals[2].TemplateID)
	assert.Contains(t, plan.Notes, "vitamin_d")
}

func TestDiet_NoRepeatWithinLookback(t *testing.T) {
	s := newTestSynthesizer(t)
	p := health.UserProfile{Age: 30, Gender: "male", HeightCm: 180, WeightKg: 75}

	plan, err := s.Diet(p, health.UnknownAssessment(), 21)
	require.NoError(t, err)

	lookback := DefaultOptions().LookbackDays
	for slot := range DefaultMealSplit {
		for d := range plan.Days {
			for back := 1; back <= lookback && d-back >= 0; back++ {
				assert.NotEqual(t,
					plan.Days[d-back].Meals[slot].TemplateID,
					plan.Days[d].Meals[slot].TemplateID,
					"slot %d repeats on day %d", slot, d+1)
			}
		}
	}
}

func TestDiet_Deterministic(t *testing.T) {
	s := newTestSynthesizer(t)
	a := withLevels(map[health.Condition]health.RiskLevel{health.Hypertension: health.RiskHigh})

	first, err := s.Diet(heavyProfile(), a, 10)
	require.NoError(t, err)
	second, err := s.Diet(heavyProfile(), a, 10)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

const sparseCatalog = `
version: test
meals:
  - {id: cake, name: Cake, slot: breakfast, tags: [high_sugar], macros: {protein: 0.1, carbs: 0.7, fat: 0.2}}
  - {id: soup, name: Soup, slot: lunch, macros: {protein: 0.2, carbs: 0.6, fat: 0.2}}
  - {id: fish, name: Fish, slot: dinner, macros: {protein: 0.4, carbs: 0.3, fat: 0.3}}
  - {id: nuts, name: Nuts, slot: snack, macros: {protein: 0.2, carbs: 0.3, fat: 0.5}}
exercises:
  - {id: sprint, name: Sprint, focus: cardio, met: 10, sets: 6, tags: [high_intensity]}
safe_meals:
  - {id: safe-breakfast, name: Oatmeal, slot: breakfast, macros: {protein: 0.15, carbs: 0.65, fat: 0.2}}
  - {id: safe-lunch, name: Rice, slot: lunch, macros: {protein: 0.2, carbs: 0.6, fat: 0.2}}
  - {id: safe-dinner, name: Chicken, slot: dinner, macros: {protein: 0.3, carbs: 0.45, fat: 0.25}}
  - {id: safe-snack, name: Fruit, slot: snack, macros: {protein: 0.05, carbs: 0.9, fat: 0.05}}
safe_exercises:
  - {id: safe-cardio, name: Walk, focus: cardio, met: 2.8, sets: 1}
  - {id: safe-strength, name: Bands, focus: strength, met: 2.5, sets: 2}
  - {id: safe-flexibility, name: Stretch, focus: flexibility, met: 1.8, sets: 1}
  - {id: safe-rest, name: Rest, focus: rest, met: 1.3, sets: 1}
`

func TestDiet_SafeFallbackWhenSlotEmpty(t *testing.T) {
	catalog, err := ParseCatalog([]byte(sparseCatalog))
	require.NoError(t, err)
	core, logs := observer.New(zapcore.WarnLevel)
	s, err := NewSynthesizer(catalog, DefaultOptions(), zap.New(core))
	require.NoError(t, err)
	a := withLevels(map[health.Condition]health.RiskLevel{health.Diabetes: health.RiskHigh})

	plan, err := s.Diet(heavyProfile(), a, 7)
	require.NoError(t, err)
	require.NoError(t, plan.Verify())

	for _, day := range plan.Days {
		assert.Equal(t, "safe-breakfast", day.Meals[0].TemplateID)
		assert.Equal(t, "soup", day.Meals[1].TemplateID)
	}
	require.Len(t, plan.Warnings, 1)
	assert.Equal(t, health.WarnEmptyCatalog, plan.Warnings[0].Kind)
	assert.Equal(t, Breakfast, plan.Warnings[0].Key)
	assert.Equal(t, 1, logs.Len())
}

func TestWorkout_SafeFallbackPerFocus(t *testing.T) {
	catalog, err := ParseCatalog([]byte(sparseCatalog))
	require.NoError(t, err)
	s, err := NewSynthesizer(catalog, DefaultOptions(), zap.NewNop())
	require.NoError(t, err)
	a := withLevels(map[health.Condition]health.RiskLevel{health.Hypertension: health.RiskHigh})

	plan, err := s.Workout(heavyProfile(), a, 7)
	require.NoError(t, err)
	require.NoError(t, plan.Verify())

	for _, day := range plan.Days {
		require.Len(t, day.Exercises, 1)
		assert.Equal(t, "safe-"+day.Focus, day.Exercises[0].TemplateID)
	}
	// weight_loss rotation touches cardio, strength, flexibility and rest.
	assert.Len(t, plan.Warnings, 4)
}

func TestWorkout_RotationAndBurn(t *testing.T) {
	s := newTestSynthesizer(t)
	a := withLevels(map[health.Condition]health.RiskLevel{health.Obesity: health.RiskHigh})

	plan, err := s.Workout(heavyProfile(), a, 7)
	require.NoError(t, err)
	require.NoError(t, plan.Verify())

	assert.Equal(t, 240, plan.DailyBurnTarget)
	focuses := make([]string, 0, len(plan.Days))
	for _, day := range plan.Days {
		focuses = append(focuses, day.Focus)
	}
	assert.Equal(t, []string{Cardio, Strength, Cardio, Flexibility, Cardio, Strength, Rest}, focuses)

	assert.Len(t, plan.Days[0].Exercises, 3)
	assert.Equal(t, 240, plan.Days[0].TotalCalories)
	require.Len(t, plan.Days[6].Exercises, 1)
	assert.Equal(t, 36, plan.Days[6].TotalCalories)
}

func TestWorkout_ExcludesIntensityAndImpact(t *testing.T) {
	s := newTestSynthesizer(t)
	a := withLevels(map[health.Condition]health.RiskLevel{
		health.Hypertension: health.RiskHigh,
		health.Obesity:      health.RiskHigh,
	})
	tags := map[string][]string{}
	for _, list := range s.catalog.exercises {
		for _, e := range list {
			tags[e.ID] = e.Tags
		}
	}

	plan, err := s.Workout(heavyProfile(), a, 14)
	require.NoError(t, err)

	for _, day := range plan.Days {
		seen := map[string]bool{}
		for _, e := range day.Exercises {
			assert.NotContains(t, tags[e.TemplateID], TagHighIntensity)
			assert.NotContains(t, tags[e.TemplateID], TagHighImpact)
			assert.False(t, seen[e.TemplateID], "day %d repeats %s", day.Day, e.TemplateID)
			seen[e.TemplateID] = true
			assert.GreaterOrEqual(t, e.Duration, minMinutes)
		}
	}
}

func TestDailyBurn(t *testing.T) {
	p := heavyProfile()
	assert.Equal(t, 300, DailyBurn(p, health.UnknownAssessment()))

	p.ActivityLevel = health.VeryActive
	p.Goal = health.WeightGain
	assert.Equal(t, 260, DailyBurn(p, health.UnknownAssessment()))
}

func TestGenerate_InvalidRequests(t *testing.T) {
	s := newTestSynthesizer(t)
	a := health.UnknownAssessment()

	_, err := s.Generate(heavyProfile(), a, KindDiet, 31)
	assert.ErrorIs(t, err, ErrInvalidPlanRequest)

	_, err = s.Generate(heavyProfile(), a, KindWorkout, -2)
	assert.ErrorIs(t, err, ErrInvalidPlanRequest)

	_, err = s.Generate(heavyProfile(), a, Kind("yoga"), 7)
	assert.ErrorIs(t, err, ErrInvalidPlanRequest)

	_, err = s.Generate(health.UserProfile{Age: 30}, a, KindDiet, 7)
	assert.ErrorIs(t, err, ErrInvalidProfile)

	plan, err := s.Generate(heavyProfile(), a, KindWorkout, 0)
	require.NoError(t, err)
	assert.Equal(t, KindWorkout, plan.Kind())
	assert.Equal(t, 7, plan.DayCount())
}

func TestNewSynthesizer_ValidatesSplit(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.MealSplit = []MealSlot{{Type: Breakfast, Share: 0.5}, {Type: Lunch, Share: 0.3}}
	_, err = NewSynthesizer(catalog, opts, zap.NewNop())
	assert.Error(t, err)

	opts.MealSplit = []MealSlot{{Type: "brunch", Share: 1}}
	_, err = NewSynthesizer(catalog, opts, zap.NewNop())
	assert.Error(t, err)
}

func TestDistribute(t *testing.T) {
	parts := distribute(1000, []float64{1.0 / 3, 1.0 / 3, 1.0 / 3})
	assert.Equal(t, []int{333, 333, 334}, parts)
}
