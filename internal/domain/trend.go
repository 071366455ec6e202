package domain

// Momentum is the trend direction classification.
type Momentum string

const (
	MomentumRising    Momentum = "rising"
	MomentumStable    Momentum = "stable"
	MomentumDeclining Momentum = "declining"
)

// Valid reports whether m is one of the known directions.
func (m Momentum) Valid() bool {
	switch m {
	case MomentumRising, MomentumStable, MomentumDeclining:
		return true
	default:
		return false
	}
}

// Trend is one entry of an immutable trend snapshot.
type Trend struct {
	Name         string   `json:"name"`
	Score        float64  `json:"score"`
	Momentum     Momentum `json:"momentum"`
	Category     string   `json:"category"`
	PeakEstimate string   `json:"peak_estimate"`
}

// DefaultTrendCategory is used when a prediction is requested without a category.
const DefaultTrendCategory = "fashion"
