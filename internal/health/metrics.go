package health

import "math"

// Canonical metric keys.
const (
	FastingGlucose   = "fasting_glucose"
	RandomGlucose    = "random_glucose"
	HbA1c            = "hba1c"
	TotalCholesterol = "total_cholesterol"
	HDLCholesterol   = "hdl_cholesterol"
	LDLCholesterol   = "ldl_cholesterol"
	Triglycerides    = "triglycerides"
	SystolicBP       = "systolic_bp"
	DiastolicBP      = "diastolic_bp"
	TSH              = "tsh"
	T3               = "t3"
	T4               = "t4"
	VitaminD         = "vitamin_d"
	VitaminB12       = "vitamin_b12"
	BMI              = "bmi"
	Hemoglobin       = "hemoglobin"
)

// MetricKeys lists every canonical key in record order.
var MetricKeys = []string{
	FastingGlucose, RandomGlucose, HbA1c,
	TotalCholesterol, HDLCholesterol, LDLCholesterol, Triglycerides,
	SystolicBP, DiastolicBP,
	TSH, T3, T4,
	VitaminD, VitaminB12,
	BMI, Hemoglobin,
}

// HealthMetrics is a partially populated lab record. A nil field is absent and
// must not be scored; zero is never used as a sentinel.
type HealthMetrics struct {
	FastingGlucose *float64 `json:"fasting_glucose,omitempty"`
	RandomGlucose  *float64 `json:"random_glucose,omitempty"`
	HbA1c          *float64 `json:"hba1c,omitempty"`

	TotalCholesterol *float64 `json:"total_cholesterol,omitempty"`
	HDLCholesterol   *float64 `json:"hdl_cholesterol,omitempty"`
	LDLCholesterol   *float64 `json:"ldl_cholesterol,omitempty"`
	Triglycerides    *float64 `json:"triglycerides,omitempty"`

	SystolicBP  *int `json:"systolic_bp,omitempty"`
	DiastolicBP *int `json:"diastolic_bp,omitempty"`

	TSH *float64 `json:"tsh,omitempty"`
	T3  *float64 `json:"t3,omitempty"`
	T4  *float64 `json:"t4,omitempty"`

	VitaminD   *float64 `json:"vitamin_d,omitempty"`
	VitaminB12 *float64 `json:"vitamin_b12,omitempty"`

	BMI        *float64 `json:"bmi,omitempty"`
	Hemoglobin *float64 `json:"hemoglobin,omitempty"`
}

func (m *HealthMetrics) floatField(key string) **float64 {
	switch key {
	case FastingGlucose:
		return &m.FastingGlucose
	case RandomGlucose:
		return &m.RandomGlucose
	case HbA1c:
		return &m.HbA1c
	case TotalCholesterol:
		return &m.TotalCholesterol
	case HDLCholesterol:
		return &m.HDLCholesterol
	case LDLCholesterol:
		return &m.LDLCholesterol
	case Triglycerides:
		return &m.Triglycerides
	case TSH:
		return &m.TSH
	case T3:
		return &m.T3
	case T4:
		return &m.T4
	case VitaminD:
		return &m.VitaminD
	case VitaminB12:
		return &m.VitaminB12
	case BMI:
		return &m.BMI
	case Hemoglobin:
		return &m.Hemoglobin
	}
	return nil
}

func (m *HealthMetrics) intField(key string) **int {
	switch key {
	case SystolicBP:
		return &m.SystolicBP
	case DiastolicBP:
		return &m.DiastolicBP
	}
	return nil
}

// Value returns the metric stored under a canonical key.
func (m HealthMetrics) Value(key string) (float64, bool) {
	if f := m.floatField(key); f != nil {
		if *f == nil {
			return 0, false
		}
		return **f, true
	}
	if i := m.intField(key); i != nil {
		if *i == nil {
			return 0, false
		}
		return float64(**i), true
	}
	return 0, false
}

// Has reports whether any of keys is present.
func (m HealthMetrics) Has(keys ...string) bool {
	for _, k := range keys {
		if _, ok := m.Value(k); ok {
			return true
		}
	}
	return false
}

// Set stores v under key, rounding for integer fields. It returns false for
// unknown keys and non-finite values.
func (m *HealthMetrics) Set(key string, v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if f := m.floatField(key); f != nil {
		val := v
		*f = &val
		return true
	}
	if i := m.intField(key); i != nil {
		val := int(math.Round(v))
		*i = &val
		return true
	}
	return false
}

// Present returns the canonical keys that hold a value, in record order.
func (m HealthMetrics) Present() []string {
	out := []string{}
	for _, k := range MetricKeys {
		if _, ok := m.Value(k); ok {
			out = append(out, k)
		}
	}
	return out
}
