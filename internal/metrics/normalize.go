// Package metrics turns loosely keyed extraction output into a HealthMetrics record.
package metrics

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Skufu/nutrifit/internal/health"
)

// Range is an inclusive plausibility window for one metric.
type Range struct {
	Min, Max float64
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

var plausible = map[string]Range{
	health.FastingGlucose:   {20, 600},
	health.RandomGlucose:    {20, 800},
	health.HbA1c:            {3, 20},
	health.TotalCholesterol: {50, 600},
	health.HDLCholesterol:   {5, 200},
	health.LDLCholesterol:   {10, 400},
	health.Triglycerides:    {20, 2000},
	health.SystolicBP:       {60, 260},
	health.DiastolicBP:      {30, 160},
	health.TSH:              {0.005, 100},
	health.T3:               {20, 700},
	health.T4:               {0.5, 25},
	health.VitaminD:         {1, 200},
	health.VitaminB12:       {50, 3000},
	health.BMI:              {10, 80},
	health.Hemoglobin:       {3, 25},
}

const bloodPressure = "blood_pressure"

var synonyms = map[string]string{
	"fasting glucose":        health.FastingGlucose,
	"fasting blood glucose":  health.FastingGlucose,
	"fasting blood sugar":    health.FastingGlucose,
	"fasting sugar":          health.FastingGlucose,
	"fasting plasma glucose": health.FastingGlucose,
	"glucose fasting":        health.FastingGlucose,
	"blood sugar fasting":    health.FastingGlucose,
	"fbs":                    health.FastingGlucose,
	"fbg":                    health.FastingGlucose,
	"fpg":                    health.FastingGlucose,

	"random glucose":        health.RandomGlucose,
	"random blood glucose":  health.RandomGlucose,
	"random blood sugar":    health.RandomGlucose,
	"glucose random":        health.RandomGlucose,
	"rbs":                   health.RandomGlucose,
	"ppbs":                  health.RandomGlucose,
	"post prandial glucose": health.RandomGlucose,

	"hba1c":                   health.HbA1c,
	"hb a1c":                  health.HbA1c,
	"a1c":                     health.HbA1c,
	"glycated hemoglobin":     health.HbA1c,
	"glycosylated hemoglobin": health.HbA1c,

	"total cholesterol": health.TotalCholesterol,
	"cholesterol":       health.TotalCholesterol,
	"cholesterol total": health.TotalCholesterol,

	"hdl":             health.HDLCholesterol,
	"hdl cholesterol": health.HDLCholesterol,
	"hdl c":           health.HDLCholesterol,

	"ldl":             health.LDLCholesterol,
	"ldl cholesterol": health.LDLCholesterol,
	"ldl c":           health.LDLCholesterol,

	"triglycerides": health.Triglycerides,
	"triglyceride":  health.Triglycerides,
	"tg":            health.Triglycerides,

	"systolic":                health.SystolicBP,
	"systolic bp":             health.SystolicBP,
	"systolic blood pressure": health.SystolicBP,
	"sbp":                     health.SystolicBP,

	"diastolic":                health.DiastolicBP,
	"diastolic bp":             health.DiastolicBP,
	"diastolic blood pressure": health.DiastolicBP,
	"dbp":                      health.DiastolicBP,

	"bp":             bloodPressure,
	"blood pressure": bloodPressure,

	"tsh":                         health.TSH,
	"thyroid stimulating hormone": health.TSH,

	"t3":               health.T3,
	"total t3":         health.T3,
	"triiodothyronine": health.T3,

	"t4":        health.T4,
	"total t4":  health.T4,
	"thyroxine": health.T4,

	"vitamin d":            health.VitaminD,
	"vit d":                health.VitaminD,
	"vitamin d3":           health.VitaminD,
	"25 oh vitamin d":      health.VitaminD,
	"25 hydroxy vitamin d": health.VitaminD,

	"vitamin b12": health.VitaminB12,
	"vit b12":     health.VitaminB12,
	"b12":         health.VitaminB12,
	"cobalamin":   health.VitaminB12,

	"bmi":             health.BMI,
	"body mass index": health.BMI,

	"hemoglobin":  health.Hemoglobin,
	"haemoglobin": health.Hemoglobin,
	"hb":          health.Hemoglobin,
	"hgb":         health.Hemoglobin,
}

var (
	unitSuffix   = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	separators   = regexp.MustCompile(`[\s_\-.:/]+`)
	numberToken  = regexp.MustCompile(`[-+]?[\d.,]*\d`)
	thousands    = regexp.MustCompile(`^[-+]?[1-9]\d{0,2}(?:,\d{3})+(?:\.\d+)?$`)
	pressurePair = regexp.MustCompile(`(\d{2,3})\s*/\s*(\d{2,3})`)
)

// CanonicalKey maps a raw extraction key to its canonical metric key.
func CanonicalKey(raw string) (string, bool) {
	k := strings.ToLower(raw)
	k = unitSuffix.ReplaceAllString(k, " ")
	k = strings.TrimSpace(separators.ReplaceAllString(k, " "))
	if key, ok := synonyms[k]; ok {
		return key, true
	}
	// Canonical keys are accepted verbatim once separators are normalized.
	if _, ok := plausible[strings.ReplaceAll(k, " ", "_")]; ok {
		return strings.ReplaceAll(k, " ", "_"), true
	}
	return "", false
}

// ParseValue returns the first number in s. A lone comma is read as a decimal
// comma unless it groups thousands ("1,200"); a missing leading digit (".5") is
// accepted.
func ParseValue(s string) (float64, error) {
	tok := numberToken.FindString(s)
	if tok == "" {
		return 0, fmt.Errorf("no numeric value in %q", s)
	}
	num := tok
	switch {
	case thousands.MatchString(tok):
		num = strings.ReplaceAll(tok, ",", "")
	case strings.Count(tok, ",") == 1 && !strings.Contains(tok, "."):
		num = strings.Replace(tok, ",", ".", 1)
	case strings.Contains(tok, ","):
		return 0, fmt.Errorf("ambiguous separators in %q", tok)
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", tok, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

// Normalize builds a HealthMetrics record from raw key/value pairs. Values that
// cannot be parsed or fall outside the plausible range are dropped and reported
// as warnings; unrecognized keys are ignored.
func Normalize(raw map[string]string) (health.HealthMetrics, []health.Warning) {
	var m health.HealthMetrics
	warnings := []health.Warning{}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	seen := map[string]string{}
	set := func(rawKey, key, rawValue string, v float64) {
		if prev, dup := seen[key]; dup {
			warnings = append(warnings, parseWarning(rawKey, rawValue,
				fmt.Sprintf("duplicate value for %s, keeping %q", key, prev)))
			return
		}
		r := plausible[key]
		if !r.Contains(v) {
			warnings = append(warnings, parseWarning(rawKey, rawValue,
				fmt.Sprintf("%s outside plausible range %g-%g", key, r.Min, r.Max)))
			return
		}
		if m.Set(key, v) {
			seen[key] = rawKey
		}
	}

	for _, rawKey := range keys {
		rawValue := raw[rawKey]
		key, ok := CanonicalKey(rawKey)
		if !ok {
			continue
		}

		if key == bloodPressure {
			match := pressurePair.FindStringSubmatch(rawValue)
			if match == nil {
				warnings = append(warnings, parseWarning(rawKey, rawValue, "expected systolic/diastolic pair"))
				continue
			}
			sys, _ := strconv.ParseFloat(match[1], 64)
			dia, _ := strconv.ParseFloat(match[2], 64)
			set(rawKey, health.SystolicBP, rawValue, sys)
			set(rawKey, health.DiastolicBP, rawValue, dia)
			continue
		}

		v, err := ParseValue(rawValue)
		if err != nil {
			warnings = append(warnings, parseWarning(rawKey, rawValue, err.Error()))
			continue
		}
		set(rawKey, key, rawValue, v)
	}

	return m, warnings
}

// Merge adds entries of extra whose canonical key is not already provided by
// base. Unrecognized keys in extra are dropped.
func Merge(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	have := map[string]bool{}
	for k, v := range base {
		out[k] = v
		if key, ok := CanonicalKey(k); ok {
			have[key] = true
		}
	}
	for k, v := range extra {
		key, ok := CanonicalKey(k)
		if !ok || have[key] {
			continue
		}
		if _, dup := out[k]; !dup {
			out[k] = v
		}
	}
	return out
}

// WithDerivedBMI fills BMI from the profile when the report lacks it.
func WithDerivedBMI(m health.HealthMetrics, p health.UserProfile) health.HealthMetrics {
	if m.BMI != nil {
		return m
	}
	bmi := math.Round(p.BMI()*10) / 10
	if plausible[health.BMI].Contains(bmi) {
		m.Set(health.BMI, bmi)
	}
	return m
}

func parseWarning(key, value, msg string) health.Warning {
	return health.Warning{
		Kind:    health.WarnMetricParse,
		Key:     key,
		Value:   value,
		Message: msg,
	}
}
