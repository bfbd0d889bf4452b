package plan

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/Skufu/nutrifit/internal/deficiency"
	"github.com/Skufu/nutrifit/internal/health"
)

// MealSlot is one entry of the daily meal split.
type MealSlot struct {
	Type  string  `json:"type"`
	Share float64 `json:"share"`
	Time  string  `json:"time"`
}

var DefaultMealSplit = []MealSlot{
	{Type: Breakfast, Share: 0.25, Time: "08:00"},
	{Type: Lunch, Share: 0.35, Time: "13:00"},
	{Type: Dinner, Share: 0.30, Time: "19:30"},
	{Type: Snack, Share: 0.10, Time: "16:30"},
}

type Options struct {
	DefaultDays      int
	MaxDays          int
	LookbackDays     int
	MinDailyCalories int
	ExercisesPerDay  int
	MealSplit        []MealSlot
}

func DefaultOptions() Options {
	return Options{
		DefaultDays:      7,
		MaxDays:          30,
		LookbackDays:     3,
		MinDailyCalories: 1200,
		ExercisesPerDay:  3,
		MealSplit:        DefaultMealSplit,
	}
}

// Synthesizer is stateless between calls; the catalog it reads is immutable.
type Synthesizer struct {
	catalog *Catalog
	opts    Options
	logger  *zap.Logger
}

func NewSynthesizer(catalog *Catalog, opts Options, logger *zap.Logger) (*Synthesizer, error) {
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if len(opts.MealSplit) == 0 {
		return nil, errors.New("meal split is empty")
	}
	total := 0.0
	for _, slot := range opts.MealSplit {
		if slot.Share <= 0 {
			return nil, fmt.Errorf("meal slot %s needs a positive share", slot.Type)
		}
		if _, ok := catalog.SafeMeal(slot.Type); !ok {
			return nil, fmt.Errorf("catalog has no safe meal for slot %s", slot.Type)
		}
		total += slot.Share
	}
	if math.Abs(total-1) > 0.001 {
		return nil, fmt.Errorf("meal split shares sum to %.3f", total)
	}
	if opts.MaxDays < 1 || opts.DefaultDays < 1 || opts.DefaultDays > opts.MaxDays {
		return nil, fmt.Errorf("default days %d must be within 1-%d", opts.DefaultDays, opts.MaxDays)
	}
	if opts.LookbackDays < 0 || opts.ExercisesPerDay < 1 || opts.MinDailyCalories < 0 {
		return nil, errors.New("lookback, exercises per day and calorie floor must not be negative")
	}
	return &Synthesizer{catalog: catalog, opts: opts, logger: logger}, nil
}

// Generate dispatches on kind. days == 0 selects the default length.
func (s *Synthesizer) Generate(p health.UserProfile, a health.RiskAssessment, kind Kind, days int) (Plan, error) {
	switch kind {
	case KindDiet:
		plan, err := s.Diet(p, a, days)
		if err != nil {
			return nil, err
		}
		return plan, nil
	case KindWorkout:
		plan, err := s.Workout(p, a, days)
		if err != nil {
			return nil, err
		}
		return plan, nil
	}
	return nil, fmt.Errorf("%w: unknown plan kind %q", ErrInvalidPlanRequest, kind)
}

func (s *Synthesizer) resolveDays(days int) (int, error) {
	if days == 0 {
		return s.opts.DefaultDays, nil
	}
	if days < 1 || days > s.opts.MaxDays {
		return 0, fmt.Errorf("%w: days must be within 1-%d, got %d", ErrInvalidPlanRequest, s.opts.MaxDays, days)
	}
	return days, nil
}

func (s *Synthesizer) Diet(p health.UserProfile, a health.RiskAssessment, days int) (*DietPlan, error) {
	p, err := NormalizeProfile(p)
	if err != nil {
		return nil, err
	}
	n, err := s.resolveDays(days)
	if err != nil {
		return nil, err
	}

	target := DailyCalories(p, a, s.opts.MinDailyCalories)
	cons := constraintsFor(a, KindDiet)

	shares := make([]float64, len(s.opts.MealSplit))
	for i, slot := range s.opts.MealSplit {
		shares[i] = slot.Share
	}
	portions := distribute(target.Daily, shares)

	plan := &DietPlan{
		PlanType:       KindDiet,
		CatalogVersion: s.catalog.Version(),
		Calories:       target,
		Days:           make([]DayPlan, 0, n),
	}

	type slotPool struct {
		byID      map[string]MealTemplate
		all       []string
		preferred []string
		safe      *MealTemplate
	}
	pools := make([]slotPool, len(s.opts.MealSplit))
	for i, slot := range s.opts.MealSplit {
		pool := slotPool{byID: map[string]MealTemplate{}}
		for _, m := range s.catalog.Meals(slot.Type, p.Goal, cons.exclude) {
			pool.byID[m.ID] = m
			pool.all = append(pool.all, m.ID)
			if hasAny(m.Nutrients, cons.nutrients) {
				pool.preferred = append(pool.preferred, m.ID)
			}
		}
		if len(pool.all) == 0 {
			safe, _ := s.catalog.SafeMeal(slot.Type)
			pool.safe = &safe
			plan.Warnings = append(plan.Warnings, s.fallbackWarning(slot.Type, safe.ID))
		}
		pools[i] = pool
	}

	rot := newRotation(s.opts.LookbackDays)
	for day := 1; day <= n; day++ {
		dp := DayPlan{Day: day, Meals: make([]MealEntry, 0, len(s.opts.MealSplit))}
		for i, slot := range s.opts.MealSplit {
			pool := pools[i]
			var tmpl MealTemplate
			if pool.safe != nil {
				tmpl = *pool.safe
			} else {
				tmpl = pool.byID[rot.pick(slot.Type, day, pool.preferred, pool.all)]
			}
			entry := mealEntry(tmpl, slot, portions[i])
			dp.Meals = append(dp.Meals, entry)
			dp.TotalCalories += entry.Calories
		}
		plan.Days = append(plan.Days, dp)
	}

	plan.Notes = cons.notes(fmt.Sprintf("Daily target %d kcal.", target.Daily))
	return plan, nil
}

func mealEntry(t MealTemplate, slot MealSlot, calories int) MealEntry {
	kcal := float64(calories)
	return MealEntry{
		MealType:     slot.Type,
		Time:         slot.Time,
		TemplateID:   t.ID,
		Name:         t.Name,
		FoodItems:    append([]string{}, t.Items...),
		Calories:     calories,
		Protein:      round1(kcal * t.Macros.Protein / 4),
		Carbs:        round1(kcal * t.Macros.Carbs / 4),
		Fat:          round1(kcal * t.Macros.Fat / 9),
		Instructions: t.Instructions,
	}
}

var focusRotations = map[health.Goal][]string{
	health.WeightLoss:  {Cardio, Strength, Cardio, Flexibility, Cardio, Strength, Rest},
	health.MuscleGain:  {Strength, Cardio, Strength, Flexibility, Strength, Cardio, Rest},
	health.WeightGain:  {Strength, Flexibility, Strength, Rest, Strength, Cardio, Rest},
	health.Maintenance: {Cardio, Strength, Flexibility, Cardio, Strength, Flexibility, Rest},
}

var goalBurn = map[health.Goal]float64{
	health.WeightLoss:  400,
	health.Maintenance: 300,
	health.MuscleGain:  300,
	health.WeightGain:  200,
}

var activityBurnScale = map[health.ActivityLevel]float64{
	health.Sedentary:  0.75,
	health.Light:      0.9,
	health.Moderate:   1.0,
	health.Active:     1.15,
	health.VeryActive: 1.3,
}

const (
	riskBurnScale = 0.8
	restDayShare  = 0.15
	minMinutes    = 5
)

// DailyBurn is the exercise calorie target for an active day.
func DailyBurn(p health.UserProfile, a health.RiskAssessment) int {
	burn := goalBurn[p.Goal] * activityBurnScale[p.ActivityLevel]
	if highRiskAny(a, health.Hypertension, health.Obesity) {
		burn *= riskBurnScale
	}
	return int(math.Round(burn))
}

// Energy is the calorie and burn targets a plan for a profile would use.
type Energy struct {
	BMI             float64       `json:"bmi"`
	Calories        CalorieTarget `json:"calorie_target"`
	DailyBurnTarget int           `json:"daily_burn_target"`
}

// Energy computes the targets without building a plan.
func (s *Synthesizer) Energy(p health.UserProfile, a health.RiskAssessment) (Energy, error) {
	p, err := NormalizeProfile(p)
	if err != nil {
		return Energy{}, err
	}
	return Energy{
		BMI:             round1(p.BMI()),
		Calories:        DailyCalories(p, a, s.opts.MinDailyCalories),
		DailyBurnTarget: DailyBurn(p, a),
	}, nil
}

func (s *Synthesizer) Workout(p health.UserProfile, a health.RiskAssessment, days int) (*WorkoutPlan, error) {
	p, err := NormalizeProfile(p)
	if err != nil {
		return nil, err
	}
	n, err := s.resolveDays(days)
	if err != nil {
		return nil, err
	}

	burn := DailyBurn(p, a)
	cons := constraintsFor(a, KindWorkout)
	plan := &WorkoutPlan{
		PlanType:        KindWorkout,
		CatalogVersion:  s.catalog.Version(),
		DailyBurnTarget: burn,
		Days:            make([]WorkoutDay, 0, n),
	}

	pools := map[string][]ExerciseTemplate{}
	for _, focus := range focusOrder {
		pools[focus] = s.catalog.Exercises(focus, p.Goal, cons.exclude)
	}

	rotation := focusRotations[p.Goal]
	rot := newRotation(s.opts.LookbackDays)
	warned := map[string]bool{}
	for day := 1; day <= n; day++ {
		focus := rotation[(day-1)%len(rotation)]
		dayBurn, count := burn, s.opts.ExercisesPerDay
		if focus == Rest {
			dayBurn, count = int(math.Round(float64(burn)*restDayShare)), 1
		}

		var picked []ExerciseTemplate
		pool := pools[focus]
		if len(pool) == 0 {
			safe, _ := s.catalog.SafeExercise(focus)
			picked = []ExerciseTemplate{safe}
			if !warned[focus] {
				warned[focus] = true
				plan.Warnings = append(plan.Warnings, s.fallbackWarning(focus, safe.ID))
			}
		} else {
			if count > len(pool) {
				count = len(pool)
			}
			byID := make(map[string]ExerciseTemplate, len(pool))
			ids := make([]string, 0, len(pool))
			for _, e := range pool {
				byID[e.ID] = e
				ids = append(ids, e.ID)
			}
			for i := 0; i < count; i++ {
				picked = append(picked, byID[rot.pick(focus, day, ids)])
			}
		}

		shares := make([]float64, len(picked))
		for i := range shares {
			shares[i] = 1 / float64(len(picked))
		}
		portions := distribute(dayBurn, shares)

		wd := WorkoutDay{Day: day, Focus: focus, Exercises: make([]ExerciseEntry, 0, len(picked))}
		for i, t := range picked {
			entry := exerciseEntry(t, portions[i], p.WeightKg)
			wd.Exercises = append(wd.Exercises, entry)
			wd.TotalCalories += entry.CaloriesBurned
			wd.TotalDuration += entry.Duration
		}
		plan.Days = append(plan.Days, wd)
	}

	plan.Notes = cons.notes(fmt.Sprintf("Active-day burn target %d kcal.", burn))
	return plan, nil
}

func exerciseEntry(t ExerciseTemplate, calories int, weightKg float64) ExerciseEntry {
	perMinute := t.MET * 3.5 * weightKg / 200
	minutes := int(math.Round(float64(calories) / perMinute))
	if minutes < minMinutes {
		minutes = minMinutes
	}
	return ExerciseEntry{
		TemplateID:     t.ID,
		Name:           t.Name,
		Intensity:      t.Intensity,
		Sets:           t.Sets,
		Reps:           t.Reps,
		Duration:       minutes,
		CaloriesBurned: calories,
		Instructions:   t.Instructions,
	}
}

func (s *Synthesizer) fallbackWarning(slot, safeID string) health.Warning {
	s.logger.Warn("every template excluded, using safe fallback",
		zap.String("slot", slot),
		zap.String("template", safeID),
	)
	return health.Warning{
		Kind:    health.WarnEmptyCatalog,
		Key:     slot,
		Message: fmt.Sprintf("all %s templates excluded; using %s", slot, safeID),
	}
}

// distribute splits total by shares; rounding drift is absorbed by the last
// entry so the parts always sum to total.
func distribute(total int, shares []float64) []int {
	out := make([]int, len(shares))
	sum := 0
	for i := 0; i < len(shares)-1; i++ {
		out[i] = int(math.Round(float64(total) * shares[i]))
		sum += out[i]
	}
	if len(shares) > 0 {
		out[len(shares)-1] = total - sum
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

type exclusionRule struct {
	kind      Kind
	condition health.Condition
	flag      string
	tags      []string
}

var exclusionRules = []exclusionRule{
	{kind: KindDiet, condition: health.Diabetes, tags: []string{TagHighSugar}},
	{kind: KindDiet, condition: health.Hypertension, tags: []string{TagHighSodium}},
	{kind: KindDiet, flag: deficiency.FlagDyslipidemia, tags: []string{TagHighSaturatedFat}},
	{kind: KindWorkout, condition: health.Hypertension, tags: []string{TagHighIntensity}},
	{kind: KindWorkout, condition: health.Obesity, tags: []string{TagHighImpact}},
}

var deficiencyNutrients = []struct {
	label    string
	nutrient string
}{
	{deficiency.VitaminDDeficiency, NutrientVitaminD},
	{deficiency.VitaminDInsufficiency, NutrientVitaminD},
	{deficiency.VitaminB12Deficiency, NutrientVitaminB12},
	{deficiency.Anemia, NutrientIron},
}

type constraints struct {
	exclude   map[string]bool
	nutrients map[string]bool
	reasons   []string
}

func constraintsFor(a health.RiskAssessment, kind Kind) constraints {
	c := constraints{exclude: map[string]bool{}, nutrients: map[string]bool{}}
	for _, r := range exclusionRules {
		if r.kind != kind {
			continue
		}
		var why string
		switch {
		case r.condition != "" && a.Level(r.condition) == health.RiskHigh:
			why = fmt.Sprintf("%s risk is high", r.condition)
		case r.flag != "" && a.Flags[r.flag]:
			why = fmt.Sprintf("%s flagged", r.flag)
		default:
			continue
		}
		for _, t := range r.tags {
			c.exclude[t] = true
		}
		c.reasons = append(c.reasons, fmt.Sprintf("Avoids %s items (%s).", strings.Join(r.tags, ", "), why))
	}
	if kind == KindDiet {
		for _, dn := range deficiencyNutrients {
			if a.HasDeficiency(dn.label) && !c.nutrients[dn.nutrient] {
				c.nutrients[dn.nutrient] = true
				c.reasons = append(c.reasons, fmt.Sprintf("Favors %s-rich items (%s).", dn.nutrient, dn.label))
			}
		}
	}
	return c
}

func (c constraints) notes(lead string) string {
	return strings.Join(append([]string{lead}, c.reasons...), " ")
}

// rotation picks templates per slot, skipping any used within the lookback
// window while another candidate is available.
type rotation struct {
	lookback int
	lastUsed map[string]map[string]int
}

func newRotation(lookback int) *rotation {
	return &rotation{lookback: lookback, lastUsed: map[string]map[string]int{}}
}

// pick returns the least recently used fresh id from the first tier that has
// one; when every candidate is inside the window it falls back to the least
// recently used overall.
func (r *rotation) pick(slot string, day int, tiers ...[]string) string {
	used, ok := r.lastUsed[slot]
	if !ok {
		used = map[string]int{}
		r.lastUsed[slot] = used
	}
	age := func(id string) int {
		if last, seen := used[id]; seen {
			return last
		}
		return math.MinInt
	}

	choose := func(ids []string, freshOnly bool) (string, bool) {
		best, found := "", false
		for _, id := range ids {
			if freshOnly && age(id) != math.MinInt && day-age(id) <= r.lookback {
				continue
			}
			if !found || age(id) < age(best) {
				best, found = id, true
			}
		}
		return best, found
	}

	var all []string
	for _, tier := range tiers {
		if id, ok := choose(tier, true); ok {
			used[id] = day
			return id
		}
		all = append(all, tier...)
	}
	id, _ := choose(all, false)
	used[id] = day
	return id
}
