package domain

import (
	"strconv"
	"strings"
	"time"
)

// PerformanceSample is one recorded game session. Samples are read-only inputs
// owned by the persistence layer.
type PerformanceSample struct {
	Timestamp       time.Time `json:"timestamp"`
	GameType        string    `json:"game_type,omitempty"`
	Difficulty      string    `json:"difficulty,omitempty"`
	Score           float64   `json:"score"`
	DurationSeconds float64   `json:"duration_seconds"`
	ErrorCount      int       `json:"error_count"`
}

// Metric names a numeric feature of a PerformanceSample.
type Metric string

const (
	MetricScore    Metric = "score"
	MetricDuration Metric = "durationSeconds"
	MetricErrors   Metric = "errorCount"
)

// DefaultMetrics is the feature set analysed when the caller names none.
var DefaultMetrics = []Metric{MetricScore, MetricDuration, MetricErrors}

// Known reports whether m names a PerformanceSample field.
func (m Metric) Known() bool {
	return m == MetricScore || m == MetricDuration || m == MetricErrors
}

// ParseMetric accepts a metric name or the matching sample JSON field name.
func ParseMetric(s string) (Metric, error) {
	switch strings.TrimSpace(s) {
	case "score":
		return MetricScore, nil
	case "durationSeconds", "duration_seconds":
		return MetricDuration, nil
	case "errorCount", "error_count":
		return MetricErrors, nil
	}
	return "", NewDomainError("ParseMetric", ErrInvalidInput,
		"unknown metric "+strconv.Quote(s)+" (want score, durationSeconds or errorCount)")
}

// Value extracts the metric from a sample.
func (m Metric) Value(s PerformanceSample) float64 {
	switch m {
	case MetricScore:
		return s.Score
	case MetricDuration:
		return s.DurationSeconds
	case MetricErrors:
		return float64(s.ErrorCount)
	default:
		return 0
	}
}

// LowerIsBetter reports whether a rising value means worse performance.
func (m Metric) LowerIsBetter() bool {
	return m == MetricDuration || m == MetricErrors
}

// TrendDirection classifies a performance trajectory.
type TrendDirection string

const (
	TrendImproving        TrendDirection = "improving"
	TrendDeclining        TrendDirection = "declining"
	TrendStable           TrendDirection = "stable"
	TrendInsufficientData TrendDirection = "insufficient_data"
)

// TrendResult is the output of trend detection.
type TrendResult struct {
	Trend    TrendDirection            `json:"trend"`
	Features map[Metric]TrendDirection `json:"features,omitempty"`
	Details  string                    `json:"details,omitempty"`
}

// RiskLevel is the qualitative decline risk.
type RiskLevel string

const (
	RiskUnknown  RiskLevel = "unknown"
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

// RiskAssessment is the output of the decline risk heuristic.
type RiskAssessment struct {
	Level      RiskLevel `json:"risk_level"`
	Confidence float64   `json:"confidence"`
	Message    string    `json:"message"`
}

// AnalyticsFilter narrows the sample set before aggregation. Period accepts
// "7d", "30d", "90d" or "all"; explicit Since/Until win over Period.
type AnalyticsFilter struct {
	GameType string    `json:"game_type,omitempty"`
	Period   string    `json:"period,omitempty"`
	Since    time.Time `json:"since,omitzero"`
	Until    time.Time `json:"until,omitzero"`
}

// NarrativeStatus records how the narrative stage of an analytics run ended.
type NarrativeStatus string

const (
	NarrativeDisabled    NarrativeStatus = "disabled"
	NarrativeSkipped     NarrativeStatus = "skipped"
	NarrativeSuccess     NarrativeStatus = "success"
	NarrativePartial     NarrativeStatus = "partial"
	NarrativeDefaultUsed NarrativeStatus = "default_used"
	NarrativeFailed      NarrativeStatus = "failed"
)

// AnalyticsResult is the merged output of an analytics run.
type AnalyticsResult struct {
	SampleCount        int             `json:"sample_count"`
	AverageScore       float64         `json:"average_score"`
	AverageDuration    float64         `json:"average_duration"`
	ImprovementRate    float64         `json:"improvement_rate"`
	Strengths          []string        `json:"strengths"`
	ImprovementAreas   []string        `json:"areas_for_improvement"`
	Recommendations    []string        `json:"recommendations"`
	CognitivePattern   string          `json:"cognitive_pattern,omitempty"`
	ProgressProjection string          `json:"progress_projection,omitempty"`
	Trend              *TrendResult    `json:"trend,omitempty"`
	Risk               *RiskAssessment `json:"risk,omitempty"`
	Narrative          NarrativeStatus `json:"narrative_status"`
}

// Narrative is the structured text an analytics narrator returns.
type Narrative struct {
	Strengths          StringList `json:"strengths"`
	ImprovementAreas   StringList `json:"areas_for_improvement"`
	Recommendations    StringList `json:"recommendations"`
	CognitivePattern   string     `json:"cognitive_pattern,omitempty"`
	ProgressProjection string     `json:"progress_projection,omitempty"`
}

// GameTypeAnalysis summarises one game type inside a CognitiveReport.
type GameTypeAnalysis struct {
	Sessions        int            `json:"sessions"`
	AverageScore    float64        `json:"avg_score"`
	AverageDuration float64        `json:"avg_duration"`
	AverageErrors   float64        `json:"avg_errors"`
	Trend           TrendDirection `json:"trend"`
	Details         string         `json:"details,omitempty"`
}

// CognitiveReport is a rule-based report over a patient's game history.
type CognitiveReport struct {
	GeneratedAt     time.Time                   `json:"generated_at"`
	Period          string                      `json:"time_period,omitempty"`
	SampleCount     int                         `json:"sample_count"`
	OverallTrend    TrendDirection              `json:"overall_trend"`
	Games           map[string]GameTypeAnalysis `json:"game_analysis"`
	Risk            RiskAssessment              `json:"risk"`
	Recommendations []string                    `json:"recommendations"`
	Summary         string                      `json:"summary"`
}
