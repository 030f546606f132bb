package bfl

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

//Warning describes how a raw variance estimate had to be rectified.
type Warning int

const (
	//WarningNone means the summed row scores were positive and used as is.
	WarningNone Warning = iota
	//WarningDominantScore means the sum was not positive and the largest single score was used.
	WarningDominantScore
	//WarningAllNegative means every score was non-positive and the magnitude of the smallest was used.
	WarningAllNegative
)

func (w Warning) String() string {
	switch w {
	case WarningNone:
		return "none"
	case WarningDominantScore:
		return "variance sum is non-positive, using the dominant row score; the ensemble is likely too small"
	case WarningAllNegative:
		return "all row scores are non-positive, using the magnitude of the smallest; the ensemble is likely far too small"
	default:
		return "unknown"
	}
}

//RectifyEstimatedVariance turns bias-corrected per-row scores into a non-negative variance.
func RectifyEstimatedVariance(scores []float64) (float64, Warning) {
	if len(scores) == 0 {
		return 0, WarningNone
	}
	if sum := floats.Sum(scores); sum > 0 {
		return sum, WarningNone
	}
	if largest := floats.Max(scores); largest > 0 {
		return largest, WarningDominantScore
	}
	return -floats.Min(scores), WarningAllNegative
}

//RectifyImportanceScores clamps every score from below at the magnitude of the smallest one.
//The input is not modified.
func RectifyImportanceScores(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	floor := math.Abs(floats.Min(scores))
	for i, s := range scores {
		out[i] = math.Max(floor, s)
	}
	return out
}
