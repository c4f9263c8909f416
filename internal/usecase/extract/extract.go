// Package extract turns free-form model text into typed values. It walks a
// fixed fallback chain and never fails: the worst case is the caller's default.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"go.opentelemetry.io/otel/trace"

	"careai/internal/infra/tracer"
)

// Outcome grades how much of a result came from the model.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomePartial     Outcome = "partial"
	OutcomeDefaultUsed Outcome = "default_used"
)

// Stage names the step of the chain that produced a result.
type Stage string

const (
	StageFenced   Stage = "fenced"
	StageWhole    Stage = "whole"
	StageEmbedded Stage = "embedded"
	StageRepaired Stage = "repaired"
	StageSections Stage = "sections"
	StageDefault  Stage = "default"
)

// Result is an extracted value plus how it was obtained.
type Result[T any] struct {
	Value   T
	Outcome Outcome
	Stage   Stage
}

type options struct {
	ctx      context.Context
	task     string
	schema   *Schema
	sections []Section
	logger   *slog.Logger
}

// Option configures a single Extract call.
type Option func(*options)

// WithContext parents the extraction span.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// WithTask labels logs and spans with the calling task.
func WithTask(name string) Option {
	return func(o *options) { o.task = name }
}

// WithSchema validates parsed payloads. A payload that fails is merged over
// the default and reported as partial.
func WithSchema(s *Schema) Option {
	return func(o *options) { o.schema = s }
}

// WithSections enables the heading-and-bullets heuristic.
func WithSections(s ...Section) Option {
	return func(o *options) { o.sections = s }
}

// WithLogger sets the logger used for anomalies.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

var (
	jsonFenceRe = regexp.MustCompile("(?is)```json[ \\t]*\\r?\\n?(.*?)```")
	anyFenceRe  = regexp.MustCompile("(?s)```[a-zA-Z]*[ \\t]*\\r?\\n?(.*?)```")
)

type candidate struct {
	stage Stage
	text  string
}

// Extract parses raw into a T. In order: a fenced ```json block, the whole
// text, the outermost {...} or [...] span, each of those again after JSON
// repair, the configured sections, and finally def unchanged.
func Extract[T any](raw string, def T, opts ...Option) Result[T] {
	o := options{ctx: context.Background(), logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	_, span := tracer.StartSpan(o.ctx, "extract",
		trace.WithAttributes(tracer.StringAttr("extract.task", o.task)),
	)
	defer span.End()

	res := run(raw, def, &o)
	span.SetAttributes(
		tracer.StringAttr("extract.stage", string(res.Stage)),
		tracer.StringAttr("extract.outcome", string(res.Outcome)),
	)
	return res
}

func run[T any](raw string, def T, o *options) Result[T] {
	cands := candidates(raw)

	for _, c := range cands {
		if res, ok := attempt(c.text, c.stage, def, o); ok {
			return res
		}
	}
	for _, c := range cands {
		if !looksJSON(c.text) {
			continue
		}
		repaired, err := jsonrepair.JSONRepair(c.text)
		if err != nil {
			continue
		}
		if res, ok := attempt(repaired, StageRepaired, def, o); ok {
			return res
		}
	}

	if len(o.sections) > 0 {
		if found := scanSections(raw, o.sections); len(found) > 0 {
			if v, err := mergeOver(def, found); err == nil {
				return Result[T]{Value: v, Outcome: OutcomePartial, Stage: StageSections}
			}
		}
	}

	o.logger.Warn("extraction fell back to default",
		"task", o.task,
		"stage", StageDefault,
		"raw_len", len(raw),
	)
	return Result[T]{Value: def, Outcome: OutcomeDefaultUsed, Stage: StageDefault}
}

func candidates(raw string) []candidate {
	var out []candidate
	if m := jsonFenceRe.FindStringSubmatch(raw); m != nil {
		out = append(out, candidate{StageFenced, strings.TrimSpace(m[1])})
	} else if m := anyFenceRe.FindStringSubmatch(raw); m != nil {
		out = append(out, candidate{StageFenced, strings.TrimSpace(m[1])})
	}

	whole := strings.TrimSpace(raw)
	if whole != "" {
		out = append(out, candidate{StageWhole, whole})
	}
	if span := outermostJSON(whole); span != "" && span != whole {
		out = append(out, candidate{StageEmbedded, span})
	}
	return out
}

func looksJSON(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}

// outermostJSON returns the text between the first opening brace or bracket
// and the last matching closer.
func outermostJSON(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return ""
	}
	return s[start : end+1]
}

// attempt decodes text strictly into a fresh T. Schema failures downgrade to
// a merge over def.
func attempt[T any](text string, stage Stage, def T, o *options) (Result[T], bool) {
	var generic any
	if err := json.Unmarshal([]byte(text), &generic); err != nil || generic == nil {
		return Result[T]{}, false
	}
	if obj, ok := generic.(map[string]any); ok && len(obj) == 0 {
		return Result[T]{}, false
	}
	var v T
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return Result[T]{}, false
	}

	if o.schema != nil {
		if err := o.schema.Validate(generic); err != nil {
			o.logger.Warn("extracted payload failed schema",
				"task", o.task,
				"stage", stage,
				"error", err,
			)
			obj, isObj := generic.(map[string]any)
			if !isObj {
				return Result[T]{Value: v, Outcome: OutcomePartial, Stage: stage}, true
			}
			merged, err := mergeOver(def, obj)
			if err != nil {
				return Result[T]{Value: v, Outcome: OutcomePartial, Stage: stage}, true
			}
			return Result[T]{Value: merged, Outcome: OutcomePartial, Stage: stage}, true
		}
	}
	return Result[T]{Value: v, Outcome: OutcomeSuccess, Stage: stage}, true
}

// mergeOver overlays non-null fields onto def's JSON form and decodes the
// result into a fresh T, so def itself is never mutated.
func mergeOver[T any](def T, overlay map[string]any) (T, error) {
	var out T
	base := map[string]any{}

	b, err := json.Marshal(def)
	if err != nil {
		return out, err
	}
	if !bytes.Equal(b, []byte("null")) {
		if err := json.Unmarshal(b, &base); err != nil {
			return out, err
		}
	}
	maps.DeleteFunc(overlay, func(_ string, v any) bool { return v == nil })
	maps.Copy(base, overlay)

	b, err = json.Marshal(base)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(b, &out)
	return out, err
}
