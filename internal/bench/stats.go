package bench

import "math"

// Stats summarizes one measured series.
type Stats struct {
	Mean float64
	Std  float64
}

// Summarize computes the mean and sample standard deviation of xs. A
// series of fewer than two samples has zero deviation.
func Summarize(xs []float64) Stats {
	n := len(xs)
	if n == 0 {
		return Stats{}
	}

	var sum, sumSq float64
	for _, x := range xs {
		sum += x
		sumSq += x * x
	}
	mean := sum / float64(n)
	if n < 2 {
		return Stats{Mean: mean}
	}

	variance := sumSq/float64(n-1) - mean*mean*float64(n)/float64(n-1)
	if variance < 0 {
		// Rounding can push an all-equal series slightly negative.
		variance = 0
	}
	return Stats{Mean: mean, Std: math.Sqrt(variance)}
}
