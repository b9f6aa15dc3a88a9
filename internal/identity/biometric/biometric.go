// Package biometric defines the descriptor distance contract used for
// duplicate-person detection and biometric login. The descriptor extraction
// model is an external collaborator; this package only consumes its output.
package biometric

import "math"

// DefaultThreshold is the normalized distance below which two descriptors are
// treated as the same person.
const DefaultThreshold = 0.6

// Matcher computes a distance between two descriptors. Lower means more
// similar; the scale must match the configured threshold.
type Matcher interface {
	Distance(a, b []float64) float64
}

// Euclidean is the standard matcher for face recognition descriptors.
type Euclidean struct{}

// Distance returns the Euclidean distance between a and b. Length mismatch
// yields +Inf so mismatched descriptors never match anything.
func (Euclidean) Distance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
