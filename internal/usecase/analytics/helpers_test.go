package analytics

import (
	"time"

	"careai/internal/domain"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// series builds hourly samples; durations and errors may be nil.
func series(gameType string, scores, durations []float64, errors []int) []domain.PerformanceSample {
	out := make([]domain.PerformanceSample, len(scores))
	for i, s := range scores {
		out[i] = domain.PerformanceSample{
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			GameType:  gameType,
			Score:     s,
		}
		if durations != nil {
			out[i].DurationSeconds = durations[i]
		}
		if errors != nil {
			out[i].ErrorCount = errors[i]
		}
	}
	return out
}

var (
	risingScores    = []float64{70, 72, 75, 73, 78, 80, 82, 85, 87, 90}
	fallingDuration = []float64{60, 58, 56, 54, 52, 50, 48, 46, 44, 42}
	fallingErrors   = []int{5, 5, 4, 4, 3, 3, 2, 2, 1, 1}
)

func improving() []domain.PerformanceSample {
	return series("memory", risingScores, fallingDuration, fallingErrors)
}

func declining() []domain.PerformanceSample {
	scores := make([]float64, len(risingScores))
	durations := make([]float64, len(fallingDuration))
	errs := make([]int, len(fallingErrors))
	for i := range risingScores {
		j := len(risingScores) - 1 - i
		scores[i], durations[i], errs[i] = risingScores[j], fallingDuration[j], fallingErrors[j]
	}
	return series("memory", scores, durations, errs)
}

func flat(n int) []domain.PerformanceSample {
	scores := make([]float64, n)
	durations := make([]float64, n)
	errs := make([]int, n)
	for i := range n {
		scores[i] = 78
		if i%2 == 1 {
			scores[i] = 82
		}
		durations[i] = 45
		errs[i] = 2
	}
	return series("memory", scores, durations, errs)
}
