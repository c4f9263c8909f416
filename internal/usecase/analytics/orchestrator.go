package analytics

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/trace"

	"careai/internal/domain"
	"careai/internal/infra/tracer"
	"careai/internal/usecase/extract"
)

// Phrases used when the narrative stage leaves a list empty.
const (
	FallbackStrength       = "Consistent participation"
	FallbackImprovement    = "More regular practice"
	FallbackRecommendation = "Try increasing difficulty levels as scores improve"
)

// Narrator turns an analytics prompt into a structured narrative.
// care.GameAgent satisfies it.
type Narrator interface {
	AnalyzePerformance(ctx context.Context, prompt string) (domain.Narrative, extract.Outcome, error)
}

// Orchestrator combines aggregates, trend, risk and an optional narrative
// into one AnalyticsResult.
type Orchestrator struct {
	engine   *Engine
	narrator Narrator
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithNarrator enables the narrative stage.
func WithNarrator(n Narrator) Option {
	return func(o *Orchestrator) { o.narrator = n }
}

// WithLogger sets the orchestrator logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithClock overrides the clock used for period filters.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an orchestrator. A nil engine uses the defaults.
func NewOrchestrator(engine *Engine, opts ...Option) *Orchestrator {
	if engine == nil {
		engine = defaultEngine
	}
	o := &Orchestrator{
		engine: engine,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Engine returns the heuristics engine.
func (o *Orchestrator) Engine() *Engine { return o.engine }

// GetAnalytics never fails. Narrative problems of any kind degrade to the
// fixed fallback phrases and are reported through AnalyticsResult.Narrative.
func (o *Orchestrator) GetAnalytics(ctx context.Context, samples []domain.PerformanceSample, filter domain.AnalyticsFilter, useNarrative bool) domain.AnalyticsResult {
	ctx, span := tracer.StartSpan(ctx, "analytics.get",
		trace.WithAttributes(
			tracer.StringAttr("analytics.game_type", filter.GameType),
			tracer.StringAttr("analytics.period", filter.Period),
			tracer.BoolAttr("analytics.narrative", useNarrative),
		),
	)
	defer span.End()

	filtered := o.filter(samples, filter)
	res := aggregate(filtered)
	risk := o.engine.PredictDecline(filtered)
	res.Risk = &risk

	var (
		trend  = domain.TrendResult{Trend: domain.TrendInsufficientData}
		narr   domain.Narrative
		status = domain.NarrativeFailed
	)
	var wg conc.WaitGroup
	wg.Go(func() { trend = o.engine.DetectTrend(filtered) })
	wg.Go(func() { narr, status = o.narrate(ctx, filtered, res, useNarrative) })
	if r := wg.WaitAndRecover(); r != nil {
		o.logger.Error("analytics stage panicked", "panic", r.Value)
	}

	res.Trend = &trend
	res.Narrative = status
	merge(&res, narr)

	span.SetAttributes(
		tracer.IntAttr("analytics.samples", res.SampleCount),
		tracer.StringAttr("analytics.trend", string(trend.Trend)),
		tracer.StringAttr("analytics.narrative_status", string(status)),
	)
	tracer.SetOK(span)
	return res
}

func (o *Orchestrator) filter(samples []domain.PerformanceSample, f domain.AnalyticsFilter) []domain.PerformanceSample {
	out, err := Apply(samples, f, o.now())
	if err != nil {
		o.logger.Warn("ignoring analytics period", "period", f.Period, "error", err)
	}
	return out
}

// aggregate computes the numeric fields. The improvement rate compares the
// mean score of the chronologically later half with the earlier half.
func aggregate(samples []domain.PerformanceSample) domain.AnalyticsResult {
	res := domain.AnalyticsResult{SampleCount: len(samples)}
	if len(samples) == 0 {
		return res
	}
	res.AverageScore = round2(mean(values(samples, domain.MetricScore)))
	res.AverageDuration = round2(mean(values(samples, domain.MetricDuration)))

	if len(samples) >= 4 {
		ordered := chronological(samples)
		mid := len(ordered) / 2
		first := mean(values(ordered[:mid], domain.MetricScore))
		second := mean(values(ordered[mid:], domain.MetricScore))
		if first > 0 {
			res.ImprovementRate = round2((second - first) / first * 100)
		}
	}
	return res
}

func (o *Orchestrator) narrate(ctx context.Context, samples []domain.PerformanceSample, agg domain.AnalyticsResult, enabled bool) (domain.Narrative, domain.NarrativeStatus) {
	switch {
	case !enabled:
		return domain.Narrative{}, domain.NarrativeDisabled
	case o.narrator == nil || len(samples) == 0:
		return domain.Narrative{}, domain.NarrativeSkipped
	}

	prompt, err := narrativePrompt(narrativeData{
		Count:           agg.SampleCount,
		AverageScore:    agg.AverageScore,
		AverageDuration: agg.AverageDuration,
		ImprovementRate: agg.ImprovementRate,
		Games:           mostRecent(samples, o.engine.cfg.NarrativeSamples),
	})
	if err != nil {
		o.logger.Error("render analytics prompt", "error", err)
		return domain.Narrative{}, domain.NarrativeFailed
	}

	ctx, cancel := context.WithTimeout(ctx, o.engine.cfg.NarrativeTimeout)
	defer cancel()

	n, outcome, err := o.narrator.AnalyzePerformance(ctx, prompt)
	if err != nil {
		err = narrativeError(err)
		o.logger.Warn("analytics narrative failed, using aggregate defaults",
			"code", domain.ErrorCodeOf(err), "error", err)
		return domain.Narrative{}, domain.NarrativeFailed
	}
	switch outcome {
	case extract.OutcomeSuccess:
		return n, domain.NarrativeSuccess
	case extract.OutcomePartial:
		return n, domain.NarrativePartial
	default:
		return n, domain.NarrativeDefaultUsed
	}
}

// narrativeError tags a narrator failure for error-code reporting.
func narrativeError(err error) error {
	sentinel := domain.ErrProviderError
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, domain.ErrTimeout) {
		sentinel = domain.ErrTimeout
	}
	return domain.NewSubSystemError("narrative", "Orchestrator.narrate", sentinel, err.Error())
}

// mostRecent returns up to n samples, newest first.
func mostRecent(samples []domain.PerformanceSample, n int) []domain.PerformanceSample {
	out := chronological(samples)
	slices.Reverse(out)
	return out[:min(n, len(out))]
}

// merge copies the narrative into res. With samples present every list ends
// up non-empty; an empty sample set keeps empty lists.
func merge(res *domain.AnalyticsResult, n domain.Narrative) {
	res.CognitivePattern = n.CognitivePattern
	res.ProgressProjection = n.ProgressProjection
	if res.SampleCount == 0 {
		res.Strengths, res.ImprovementAreas, res.Recommendations = []string{}, []string{}, []string{}
		return
	}
	res.Strengths = orFallback(n.Strengths, FallbackStrength)
	res.ImprovementAreas = orFallback(n.ImprovementAreas, FallbackImprovement)
	res.Recommendations = orFallback(n.Recommendations, FallbackRecommendation)
}

func orFallback(items []string, phrase string) []string {
	if len(items) == 0 {
		return []string{phrase}
	}
	return slices.Clone(items)
}
