package analytics

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"careai/internal/domain"
	"careai/internal/infra/tracer"
)

// Report builds a CognitiveReport over the samples matching filter.
func (o *Orchestrator) Report(ctx context.Context, samples []domain.PerformanceSample, filter domain.AnalyticsFilter) domain.CognitiveReport {
	_, span := tracer.StartSpan(ctx, "analytics.report")
	defer span.End()

	period := filter.Period
	if period == "" {
		period = PeriodAll
	}
	rep := o.engine.GenerateReport(o.filter(samples, filter), period, o.now())
	span.SetAttributes(tracer.IntAttr("analytics.samples", rep.SampleCount))
	tracer.SetOK(span)
	return rep
}

// GenerateReport analyses each game type separately. The overall trend is
// declining if any type declines, else improving if any improves; types
// without enough data do not vote.
func (e *Engine) GenerateReport(samples []domain.PerformanceSample, period string, now time.Time) domain.CognitiveReport {
	rep := domain.CognitiveReport{
		GeneratedAt:     now,
		Period:          period,
		SampleCount:     len(samples),
		OverallTrend:    domain.TrendInsufficientData,
		Games:           map[string]domain.GameTypeAnalysis{},
		Risk:            e.PredictDecline(samples),
		Recommendations: []string{},
	}
	if len(samples) == 0 {
		rep.Summary = "No data available"
		rep.Recommendations = append(rep.Recommendations, recommendations[domain.TrendInsufficientData]...)
		return rep
	}

	byType := make(map[string][]domain.PerformanceSample)
	for _, s := range samples {
		gt := cmp.Or(s.GameType, "unknown")
		byType[gt] = append(byType[gt], s)
	}

	votes := make(map[string]domain.TrendDirection)
	for gt, group := range byType {
		tr := e.DetectTrend(group)
		rep.Games[gt] = domain.GameTypeAnalysis{
			Sessions:        len(group),
			AverageScore:    round2(mean(values(group, domain.MetricScore))),
			AverageDuration: round2(mean(values(group, domain.MetricDuration))),
			AverageErrors:   round2(mean(values(group, domain.MetricErrors))),
			Trend:           tr.Trend,
			Details:         tr.Details,
		}
		if tr.Trend != domain.TrendInsufficientData {
			votes[gt] = tr.Trend
		}
	}
	if len(votes) > 0 {
		rep.OverallTrend = combine(votes)
	}

	rep.Recommendations = append(rep.Recommendations, recommendations[rep.OverallTrend]...)
	switch rep.Risk.Level {
	case domain.RiskHigh:
		rep.Recommendations = append(rep.Recommendations, "Share these results with a healthcare professional")
	case domain.RiskModerate:
		rep.Recommendations = append(rep.Recommendations, "Review performance weekly and adjust activity difficulty")
	}

	types := slices.Sorted(maps.Keys(byType))
	rep.Summary = fmt.Sprintf("%d sessions across %d game types (%s); overall trend %s, decline risk %s",
		len(samples), len(types), strings.Join(types, ", "),
		strings.ReplaceAll(string(rep.OverallTrend), "_", " "), rep.Risk.Level)
	return rep
}

var recommendations = map[domain.TrendDirection][]string{
	domain.TrendDeclining: {
		"Consider increasing frequency of cognitive games",
		"Try focusing on games that target areas showing decline",
	},
	domain.TrendImproving: {
		"Continue current routine",
		"Consider increasing difficulty levels to maintain challenge",
	},
	domain.TrendStable: {
		"Try new game types for variety",
		"Consider adjusting difficulty to provide appropriate challenge",
	},
	domain.TrendInsufficientData: {
		"Continue playing games to generate more data for analysis",
	},
}
