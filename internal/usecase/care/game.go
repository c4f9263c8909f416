package care

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"careai/internal/domain"
	"careai/internal/usecase/conversation"
	"careai/internal/usecase/extract"
)

// HintCount is the number of progressive hints every exercise carries.
const HintCount = 3

var defaultHints = []string{
	"Start with the part you are most sure about.",
	"Look for a pattern or category that links the items.",
	"Focus on the first letter or first step of the answer.",
}

var exerciseSchema = extract.MustCompileSchema(`{
	"type": "object",
	"required": ["title", "instructions", "hints"],
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"instructions": {"type": "string"},
		"hints": {"type": "array", "items": {"type": "string"}}
	}
}`)

var evaluationSchema = extract.MustCompileSchema(`{
	"type": "object",
	"required": ["correct", "score", "feedback"],
	"properties": {
		"correct": {"type": "boolean"},
		"score": {"type": "number"},
		"feedback": {"type": "string"}
	}
}`)

var narrativeSections = []extract.Section{
	{Field: "strengths", Headers: []string{"strengths", "cognitive strengths"}},
	{Field: "areas_for_improvement", Headers: []string{"areas for improvement", "improvement areas"}},
	{Field: "recommendations", Headers: []string{"recommendations"}},
}

// GameAgent generates and grades cognitive exercises and narrates analytics.
type GameAgent struct {
	base
}

// NewGameAgent wraps agent with the game system prompt.
func NewGameAgent(agent *conversation.Agent, opts ...Option) *GameAgent {
	return &GameAgent{base: newBase("game", GameSystemPrompt, agent, opts)}
}

// DefaultExercise is returned when the model answer cannot be used.
func DefaultExercise(gameType, difficulty string) domain.Exercise {
	words := []string{"apple", "river", "candle", "garden", "violin"}
	if difficulty == "hard" {
		words = append(words, "lantern", "meadow", "compass")
	}
	return domain.Exercise{
		Title:              "Word Recall",
		Instructions:       "Read the list of words for one minute, cover it, then write down as many as you can remember.",
		Content:            words,
		Hints:              slices.Clone(defaultHints),
		Solution:           words,
		ValidationCriteria: fmt.Sprintf("Count each correctly recalled word (%s, %s).", gameType, difficulty),
	}
}

// GenerateExercise asks for a new exercise. The result always has exactly
// HintCount hints.
func (g *GameAgent) GenerateExercise(ctx context.Context, gameType, difficulty string, profile *domain.UserProfile) (domain.Exercise, extract.Outcome, error) {
	if strings.TrimSpace(gameType) == "" || strings.TrimSpace(difficulty) == "" {
		return domain.Exercise{}, "", invalid("GameAgent.GenerateExercise", "game type and difficulty are required")
	}

	prompt, err := render(exerciseTmpl, struct {
		GameType, Difficulty string
		Profile              *domain.UserProfile
	}{gameType, difficulty, profile})
	if err != nil {
		return domain.Exercise{}, "", fmt.Errorf("render exercise prompt: %w", err)
	}

	raw, err := g.ask(ctx, "exercise", prompt)
	if err != nil {
		return domain.Exercise{}, "", err
	}

	res := extract.Extract(raw, DefaultExercise(gameType, difficulty),
		g.extractOpts(ctx, "exercise", extract.WithSchema(exerciseSchema))...)
	ex := res.Value
	hints, padded := normalizeHints(ex.Hints)
	ex.Hints = hints
	return ex, downgrade(res.Outcome, padded), nil
}

// normalizeHints trims blanks and forces exactly HintCount entries, padding
// from defaultHints.
func normalizeHints(in []string) ([]string, bool) {
	out := make([]string, 0, HintCount)
	for _, h := range in {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	changed := len(out) != len(in)
	if len(out) > HintCount {
		out, changed = out[:HintCount], true
	}
	for i := len(out); i < HintCount; i++ {
		out, changed = append(out, defaultHints[i]), true
	}
	return out, changed
}

// DefaultEvaluation is returned when grading cannot be extracted.
func DefaultEvaluation() domain.Evaluation {
	return domain.Evaluation{
		Correct:       false,
		Score:         0,
		Feedback:      "Sorry, I couldn't evaluate your answer due to a technical issue.",
		Suggestion:    "Please try again later.",
		Encouragement: "Keep practicing!",
	}
}

// EvaluateAnswer grades answer against ex. Score is clamped to [0, 100].
func (g *GameAgent) EvaluateAnswer(ctx context.Context, ex domain.Exercise, answer string) (domain.Evaluation, extract.Outcome, error) {
	if strings.TrimSpace(answer) == "" {
		return domain.Evaluation{}, "", invalid("GameAgent.EvaluateAnswer", "answer is empty")
	}
	if strings.TrimSpace(ex.Title) == "" {
		return domain.Evaluation{}, "", invalid("GameAgent.EvaluateAnswer", "exercise has no title")
	}

	prompt, err := render(evaluationTmpl, struct {
		Exercise          domain.Exercise
		Content, Solution string
		Answer            string
	}{ex, asText(ex.Content), asText(ex.Solution), answer})
	if err != nil {
		return domain.Evaluation{}, "", fmt.Errorf("render evaluation prompt: %w", err)
	}

	raw, err := g.ask(ctx, "evaluate", prompt)
	if err != nil {
		return domain.Evaluation{}, "", err
	}

	res := extract.Extract(raw, DefaultEvaluation(),
		g.extractOpts(ctx, "evaluate", extract.WithSchema(evaluationSchema))...)
	ev := res.Value
	clamped := ev.Score < 0 || ev.Score > 100
	ev.Score = min(max(ev.Score, 0), 100)
	return ev, downgrade(res.Outcome, clamped), nil
}

// AnalyzePerformance narrates an analytics prompt. Fields the model leaves out
// come back empty; callers apply their own fallbacks.
func (g *GameAgent) AnalyzePerformance(ctx context.Context, prompt string) (domain.Narrative, extract.Outcome, error) {
	if strings.TrimSpace(prompt) == "" {
		return domain.Narrative{}, "", invalid("GameAgent.AnalyzePerformance", "prompt is empty")
	}
	raw, err := g.ask(ctx, "analyze", prompt)
	if err != nil {
		return domain.Narrative{}, "", err
	}

	def := domain.Narrative{Strengths: domain.StringList{}, ImprovementAreas: domain.StringList{}, Recommendations: domain.StringList{}}
	res := extract.Extract(raw, def,
		g.extractOpts(ctx, "analyze", extract.WithSections(narrativeSections...))...)
	return res.Value, res.Outcome, nil
}

// asText renders loosely typed exercise fields for a prompt.
func asText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
