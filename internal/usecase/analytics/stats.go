package analytics

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"careai/internal/domain"
)

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// rollingMean returns the trailing means over window, omitting the first
// window-1 positions where the window is not yet full.
func rollingMean(xs []float64, window int) []float64 {
	if window <= 0 || len(xs) < window {
		return nil
	}
	out := make([]float64, 0, len(xs)-window+1)
	for i := window; i <= len(xs); i++ {
		out = append(out, mean(xs[i-window:i]))
	}
	return out
}

// slope fits y = a + b*x over x = 0..n-1 and returns b.
func slope(ys []float64) float64 {
	if len(ys) < 2 {
		return 0
	}
	xs := make([]float64, len(ys))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	return beta
}

func values(samples []domain.PerformanceSample, m domain.Metric) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = m.Value(s)
	}
	return out
}

// chronological returns a copy of samples in ascending timestamp order.
// Samples with equal timestamps keep their input order.
func chronological(samples []domain.PerformanceSample) []domain.PerformanceSample {
	out := slices.Clone(samples)
	slices.SortStableFunc(out, func(a, b domain.PerformanceSample) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
