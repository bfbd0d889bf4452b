// Package deficiency derives deficiency labels and abnormal flags from
// independent threshold rules over a HealthMetrics record.
package deficiency

import "github.com/Skufu/nutrifit/internal/health"

// Deficiency labels.
const (
	VitaminDDeficiency    = "Vitamin D deficiency"
	VitaminDInsufficiency = "Vitamin D insufficiency"
	VitaminB12Deficiency  = "Vitamin B12 deficiency"
	Anemia                = "Anemia"
)

// Category flag keys.
const (
	FlagVitaminDDeficiency    = "vitamin_d_deficiency"
	FlagVitaminDInsufficiency = "vitamin_d_insufficiency"
	FlagVitaminB12Deficiency  = "vitamin_b12_deficiency"
	FlagAnemia                = "anemia"
	FlagDyslipidemia          = "dyslipidemia"
	FlagUnderweight           = "underweight"
)

// ReferenceRange is the normal window for a metric; a nil bound is open.
type ReferenceRange struct {
	Min *float64
	Max *float64
}

func (r ReferenceRange) outside(v float64) bool {
	return (r.Min != nil && v < *r.Min) || (r.Max != nil && v > *r.Max)
}

func ptr(f float64) *float64 {
	return &f
}

var referenceRanges = map[string]ReferenceRange{
	health.FastingGlucose:   {Min: ptr(70), Max: ptr(99)},
	health.RandomGlucose:    {Min: ptr(70), Max: ptr(139)},
	health.HbA1c:            {Max: ptr(5.6)},
	health.TotalCholesterol: {Max: ptr(199)},
	health.HDLCholesterol:   {Min: ptr(40)},
	health.LDLCholesterol:   {Max: ptr(129)},
	health.Triglycerides:    {Max: ptr(149)},
	health.SystolicBP:       {Min: ptr(90), Max: ptr(129)},
	health.DiastolicBP:      {Min: ptr(60), Max: ptr(79)},
	health.TSH:              {Min: ptr(0.4), Max: ptr(4.5)},
	health.T3:               {Min: ptr(80), Max: ptr(200)},
	health.T4:               {Min: ptr(4.5), Max: ptr(12.5)},
	health.VitaminD:         {Min: ptr(30), Max: ptr(100)},
	health.VitaminB12:       {Min: ptr(200), Max: ptr(900)},
	health.BMI:              {Min: ptr(18.5), Max: ptr(24.9)},
	health.Hemoglobin:       {Min: ptr(12), Max: ptr(17.5)},
}

// Rule is one independent threshold check. Check reports (fired, evaluated);
// a rule whose metrics are absent is not evaluated and leaves no flag.
type Rule struct {
	Flag  string
	Label string // empty for flag-only rules
	Check func(m health.HealthMetrics) (bool, bool)
}

func below(key string, limit float64) func(health.HealthMetrics) (bool, bool) {
	return func(m health.HealthMetrics) (bool, bool) {
		v, ok := m.Value(key)
		return ok && v < limit, ok
	}
}

func between(key string, lo, hi float64) func(health.HealthMetrics) (bool, bool) {
	return func(m health.HealthMetrics) (bool, bool) {
		v, ok := m.Value(key)
		return ok && v >= lo && v < hi, ok
	}
}

func dyslipidemia(m health.HealthMetrics) (bool, bool) {
	evaluated, fired := false, false
	check := func(key string, bad func(float64) bool) {
		if v, ok := m.Value(key); ok {
			evaluated = true
			fired = fired || bad(v)
		}
	}
	check(health.TotalCholesterol, func(v float64) bool { return v >= 240 })
	check(health.LDLCholesterol, func(v float64) bool { return v >= 160 })
	check(health.HDLCholesterol, func(v float64) bool { return v < 40 })
	check(health.Triglycerides, func(v float64) bool { return v >= 200 })
	return fired, evaluated
}

// Rules is the ordered rule table; output labels follow this order.
var Rules = []Rule{
	{Flag: FlagVitaminDDeficiency, Label: VitaminDDeficiency, Check: below(health.VitaminD, 20)},
	{Flag: FlagVitaminDInsufficiency, Label: VitaminDInsufficiency, Check: between(health.VitaminD, 20, 30)},
	{Flag: FlagVitaminB12Deficiency, Label: VitaminB12Deficiency, Check: below(health.VitaminB12, 200)},
	{Flag: FlagAnemia, Label: Anemia, Check: below(health.Hemoglobin, 12)},
	{Flag: FlagDyslipidemia, Check: dyslipidemia},
	{Flag: FlagUnderweight, Check: below(health.BMI, 18.5)},
}

type Result struct {
	Deficiencies []string
	Flags        health.AbnormalFlags
}

// Analyze evaluates every rule and every metric reference range.
func Analyze(m health.HealthMetrics) Result {
	res := Result{
		Deficiencies: []string{},
		Flags:        health.AbnormalFlags{},
	}

	for _, key := range m.Present() {
		v, _ := m.Value(key)
		if r, ok := referenceRanges[key]; ok {
			res.Flags[key] = r.outside(v)
		}
	}

	for _, rule := range Rules {
		fired, evaluated := rule.Check(m)
		if !evaluated {
			continue
		}
		res.Flags[rule.Flag] = fired
		if fired && rule.Label != "" {
			res.Deficiencies = append(res.Deficiencies, rule.Label)
		}
	}
	return res
}
