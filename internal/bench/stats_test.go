package bench

import (
	"math"
	"testing"
)

func TestSummarize(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		in       []float64
		wantMean float64
		wantStd  float64
	}{
		{"empty", nil, 0, 0},
		{"single-sample-has-no-deviation", []float64{42}, 42, 0},
		{"even-spread", []float64{10, 12, 14}, 12, 2},
		{"identical-samples", []float64{5, 5, 5, 5}, 5, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Summarize(tc.in)
			if math.Abs(got.Mean-tc.wantMean) > 1e-9 {
				t.Fatalf("mean %v, want %v", got.Mean, tc.wantMean)
			}
			if math.Abs(got.Std-tc.wantStd) > 1e-9 {
				t.Fatalf("std %v, want %v", got.Std, tc.wantStd)
			}
		})
	}
}

func TestSummarizeNeverReturnsNaN(t *testing.T) {
	t.Parallel()
	// An all-equal series can drive the variance fractionally negative
	// through rounding; the result must stay a real number.
	xs := []float64{0.1, 0.1, 0.1, 0.1, 0.1, 0.1, 0.1}
	got := Summarize(xs)
	if math.IsNaN(got.Std) {
		t.Fatal("std is NaN")
	}
}
