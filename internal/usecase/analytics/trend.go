// Package analytics classifies cognitive-performance trajectories and merges
// them with an optional model narrative. The thresholds are calibration
// placeholders carried in config.AnalyticsConfig, not validated clinical
// values.
package analytics

import (
	"fmt"
	"slices"
	"strings"

	"careai/internal/domain"
	"careai/internal/infra/config"
)

// Engine runs the trend and risk heuristics with one set of thresholds.
type Engine struct {
	cfg config.AnalyticsConfig
}

// NewEngine creates an engine. Thresholds and confidences are taken as given,
// so zero is a valid setting; start from config.Defaults().Analytics for the
// stock values. Non-positive sample counts, windows and the narrative timeout
// take the package defaults.
func NewEngine(cfg config.AnalyticsConfig) *Engine {
	def := config.Defaults().Analytics
	fill := func(v *int, d int) {
		if *v <= 0 {
			*v = d
		}
	}
	fill(&cfg.MinTrendSamples, def.MinTrendSamples)
	fill(&cfg.MaxWindow, def.MaxWindow)
	fill(&cfg.MinRollingRows, def.MinRollingRows)
	fill(&cfg.SlopePoints, def.SlopePoints)
	fill(&cfg.MinRiskSamples, def.MinRiskSamples)
	fill(&cfg.RiskWindow, def.RiskWindow)
	fill(&cfg.NarrativeSamples, def.NarrativeSamples)
	if cfg.NarrativeTimeout <= 0 {
		cfg.NarrativeTimeout = def.NarrativeTimeout
	}
	return &Engine{cfg: cfg}
}

// Config returns the effective thresholds.
func (e *Engine) Config() config.AnalyticsConfig { return e.cfg }

var defaultEngine = NewEngine(config.Defaults().Analytics)

// DetectTrend classifies samples with the default thresholds.
func DetectTrend(samples []domain.PerformanceSample, features ...domain.Metric) domain.TrendResult {
	return defaultEngine.DetectTrend(samples, features...)
}

// DetectTrend classifies each feature by the slope of its recent rolling
// mean. With no features it analyses domain.DefaultMetrics. Unknown metrics
// are skipped; if none are left the result is insufficient_data.
func (e *Engine) DetectTrend(samples []domain.PerformanceSample, features ...domain.Metric) domain.TrendResult {
	if len(features) > 0 {
		features = slices.DeleteFunc(slices.Clone(features), func(m domain.Metric) bool { return !m.Known() })
		if len(features) == 0 {
			return domain.TrendResult{
				Trend:   domain.TrendInsufficientData,
				Details: "No known metrics to analyse",
			}
		}
	}
	if len(samples) < e.cfg.MinTrendSamples {
		return domain.TrendResult{
			Trend:   domain.TrendInsufficientData,
			Details: fmt.Sprintf("Need at least %d game sessions for trend analysis", e.cfg.MinTrendSamples),
		}
	}
	if len(features) == 0 {
		features = domain.DefaultMetrics
	}

	ordered := chronological(samples)
	window := min(e.cfg.MaxWindow, len(ordered)/2)

	rolling := make(map[domain.Metric][]float64, len(features))
	for _, f := range features {
		rm := rollingMean(values(ordered, f), window)
		if len(rm) < e.cfg.MinRollingRows {
			return domain.TrendResult{
				Trend:   domain.TrendInsufficientData,
				Details: "Not enough data points after processing",
			}
		}
		rolling[f] = rm
	}

	res := domain.TrendResult{Features: make(map[domain.Metric]domain.TrendDirection, len(features))}
	clauses := make([]string, 0, len(features))
	for _, f := range features {
		rm := rolling[f]
		recent := rm[max(0, len(rm)-e.cfg.SlopePoints):]
		dir := e.classify(slope(recent), f.LowerIsBetter())
		res.Features[f] = dir
		clauses = append(clauses, describe(f, dir))
	}
	res.Trend = overall(res.Features)
	res.Details = strings.Join(clauses, ". ")
	return res
}

func (e *Engine) classify(s float64, lowerIsBetter bool) domain.TrendDirection {
	switch {
	case s > e.cfg.SlopeThreshold:
		if lowerIsBetter {
			return domain.TrendDeclining
		}
		return domain.TrendImproving
	case s < -e.cfg.SlopeThreshold:
		if lowerIsBetter {
			return domain.TrendImproving
		}
		return domain.TrendDeclining
	default:
		return domain.TrendStable
	}
}

// overall follows score when it was classified. Otherwise any decline wins,
// then any improvement.
func overall(features map[domain.Metric]domain.TrendDirection) domain.TrendDirection {
	if d, ok := features[domain.MetricScore]; ok {
		return d
	}
	return combine(features)
}

func combine[K comparable](dirs map[K]domain.TrendDirection) domain.TrendDirection {
	improving := false
	for _, d := range dirs {
		switch d {
		case domain.TrendDeclining:
			return domain.TrendDeclining
		case domain.TrendImproving:
			improving = true
		}
	}
	if improving {
		return domain.TrendImproving
	}
	return domain.TrendStable
}

var phrases = map[domain.Metric]map[domain.TrendDirection]string{
	domain.MetricScore: {
		domain.TrendImproving: "Scores are improving over time",
		domain.TrendDeclining: "Scores are declining over time",
		domain.TrendStable:    "Scores are stable",
	},
	domain.MetricDuration: {
		domain.TrendImproving: "Response times are getting faster",
		domain.TrendDeclining: "Response times are getting slower",
		domain.TrendStable:    "Response times are stable",
	},
	domain.MetricErrors: {
		domain.TrendImproving: "Error rates are decreasing",
		domain.TrendDeclining: "Error rates are increasing",
		domain.TrendStable:    "Error rates are stable",
	},
}

func describe(m domain.Metric, d domain.TrendDirection) string {
	if c, ok := phrases[m][d]; ok {
		return c
	}
	return string(m) + " is " + string(d)
}
