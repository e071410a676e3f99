// Package outlier flags values whose population Z-score exceeds a threshold.
package outlier

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrInvalidThreshold is returned for negative, NaN or infinite thresholds.
var ErrInvalidThreshold = errors.New("threshold must be a finite number >= 0")

// Result holds the Z-scores of one column.
type Result struct {
	Mean   float64
	StdDev float64
	Z      []float64
	Flags  []bool
	// Degenerate is set when every value is identical. Z is 0 for every value
	// and nothing is flagged.
	Degenerate bool
}

// ValidateThreshold reports whether t can be used with Flag.
func ValidateThreshold(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, t)
	}
	return nil
}

// ZScores computes (v - mean) / std with the population standard deviation.
func ZScores(values []float64) Result {
	res := Result{Z: make([]float64, len(values))}
	if len(values) == 0 {
		return res
	}
	res.Mean, res.StdDev = stat.PopMeanStdDev(values, nil)
	if constant(values) || res.StdDev == 0 || math.IsNaN(res.StdDev) {
		res.Degenerate = true
		res.StdDev = 0
		res.Mean = values[0]
		return res
	}
	for i, v := range values {
		res.Z[i] = (v - res.Mean) / res.StdDev
	}
	return res
}

// Flag marks every z with |z| > threshold.
func Flag(z []float64, threshold float64) []bool {
	out := make([]bool, len(z))
	for i, v := range z {
		out[i] = math.Abs(v) > threshold
	}
	return out
}

// Detect computes Z-scores for values and flags them against threshold.
func Detect(values []float64, threshold float64) (Result, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return Result{}, err
	}
	res := ZScores(values)
	res.Flags = Flag(res.Z, threshold)
	return res, nil
}

func constant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
