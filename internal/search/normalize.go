package search

import "math"

// MinMax rescales scores to [0, 1]. A degenerate input (empty, constant, or
// holding any NaN or infinity) yields all zeros.
func MinMax(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return out
		}
		lo = min(lo, s)
		hi = max(hi, s)
	}

	span := hi - lo
	if span <= 0 || math.IsInf(span, 0) {
		return out
	}
	for i, s := range scores {
		out[i] = (s - lo) / span
	}
	return out
}
