package health

type ActivityLevel string

const (
	Sedentary  ActivityLevel = "sedentary"
	Light      ActivityLevel = "light"
	Moderate   ActivityLevel = "moderate"
	Active     ActivityLevel = "active"
	VeryActive ActivityLevel = "very_active"
)

type Goal string

const (
	WeightLoss  Goal = "weight_loss"
	WeightGain  Goal = "weight_gain"
	Maintenance Goal = "maintenance"
	MuscleGain  Goal = "muscle_gain"
)

type UserProfile struct {
	Age           int           `json:"age"`
	Gender        string        `json:"gender,omitempty"` // male, female, other
	HeightCm      float64       `json:"height"`
	WeightKg      float64       `json:"weight"`
	ActivityLevel ActivityLevel `json:"activity_level,omitempty"`
	Goal          Goal          `json:"goal,omitempty"`
}

// BMI computes body-mass index from height and weight, or 0 when either is missing.
func (p UserProfile) BMI() float64 {
	if p.WeightKg <= 0 || p.HeightCm <= 0 {
		return 0
	}
	h := p.HeightCm / 100
	return p.WeightKg / (h * h)
}
