package trend

import "math"

const (
	DirectionStable     = "stable"
	DirectionIncreasing = "increasing"
	DirectionDecreasing = "decreasing"

	StrengthNone     = "none"
	StrengthSlight   = "slight"
	StrengthModerate = "moderate"
	StrengthStrong   = "strong"
)

// direction classifies the first-to-last percent change. Moves under one
// percent are noise, not a trend.
func direction(changePct float64) string {
	switch {
	case math.Abs(changePct) < 1:
		return DirectionStable
	case changePct > 0:
		return DirectionIncreasing
	default:
		return DirectionDecreasing
	}
}

func strength(changePct float64) string {
	abs := math.Abs(changePct)
	switch {
	case abs < 1:
		return StrengthNone
	case abs < 5:
		return StrengthSlight
	case abs <= 10:
		return StrengthModerate
	default:
		return StrengthStrong
	}
}

func pctChange(first, last float64) float64 {
	if first == 0 {
		return 0
	}
	return (last - first) / first * 100
}

// stddev is the population standard deviation.
func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)))
}
