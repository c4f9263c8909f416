package care

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careai/internal/domain"
	"careai/internal/usecase/conversation"
	"careai/internal/usecase/extract"
)

// scriptedProvider replies with canned answers in order and records prompts.
type scriptedProvider struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   [][]domain.Message
}

func (s *scriptedProvider) GenerateText(ctx context.Context, prompt string, opts domain.GenerationOptions) (string, error) {
	return s.GenerateChat(ctx, []domain.Message{{Role: domain.RoleUser, Content: prompt}}, opts)
}

func (s *scriptedProvider) GenerateChat(_ context.Context, msgs []domain.Message, _ domain.GenerationOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, msgs)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", nil
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

func (s *scriptedProvider) Embed(context.Context, string) ([]float32, error) {
	return nil, domain.ErrNotSupported
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) lastPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.calls[len(s.calls)-1]
	return msgs[len(msgs)-1].Content
}

var discard = slog.New(slog.DiscardHandler)

func newConv(p domain.LLMProvider) *conversation.Agent {
	return conversation.NewAgent(p, conversation.WithLogger(discard))
}

func TestGenerateExerciseFenced(t *testing.T) {
	p := &scriptedProvider{replies: []string{"Here you go:\n```json\n" + `{
		"title": "Animal Names",
		"instructions": "List animals starting with B",
		"content": "B",
		"hints": ["Think farm", "Think jungle", "Think ocean"],
		"solution": ["bear", "bee"],
		"validation_criteria": "Any real animal"
	}` + "\n```"}}
	g := NewGameAgent(newConv(p), WithLogger(discard))

	ex, outcome, err := g.GenerateExercise(context.Background(), "word", "easy", &domain.UserProfile{Age: 72})
	require.NoError(t, err)
	assert.Equal(t, extract.OutcomeSuccess, outcome)
	assert.Equal(t, "Animal Names", ex.Title)
	assert.Equal(t, []string{"Think farm", "Think jungle", "Think ocean"}, ex.Hints)
	assert.Equal(t, []any{"bear", "bee"}, ex.Solution)

	prompt := p.lastPrompt()
	assert.Contains(t, prompt, "word cognitive exercise at easy difficulty")
	assert.Contains(t, prompt, "Age: 72")

	system := p.calls[0][0]
	assert.Equal(t, domain.RoleSystem, system.Role)
	assert.Equal(t, GameSystemPrompt, system.Content)
}

func TestGenerateExercisePadsHints(t *testing.T) {
	p := &scriptedProvider{replies: []string{`{"title": "Recall", "instructions": "Remember", "hints": ["only one"]}`}}
	g := NewGameAgent(newConv(p), WithLogger(discard))

	ex, outcome, err := g.GenerateExercise(context.Background(), "memory", "medium", nil)
	require.NoError(t, err)
	assert.Equal(t, extract.OutcomePartial, outcome)
	require.Len(t, ex.Hints, HintCount)
	assert.Equal(t, "only one", ex.Hints[0])
	assert.Equal(t, defaultHints[1], ex.Hints[1])
}

func TestGenerateExerciseDefault(t *testing.T) {
	p := &scriptedProvider{replies: []string{"I'm sorry, I cannot help with that."}}
	g := NewGameAgent(newConv(p), WithLogger(discard))

	ex, outcome, err := g.GenerateExercise(context.Background(), "memory", "hard", nil)
	require.NoError(t, err)
	assert.Equal(t, extract.OutcomeDefaultUsed, outcome)
	assert.Equal(t, DefaultExercise("memory", "hard"), ex)
	assert.Len(t, ex.Hints, HintCount)
}

func TestGenerateExerciseInvalidInput(t *testing.T) {
	g := NewGameAgent(newConv(&scriptedProvider{}), WithLogger(discard))

	_, _, err := g.GenerateExercise(context.Background(), "", "easy", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, _, err = g.GenerateExercise(context.Background(), "word", " ", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGenerateExerciseProviderError(t *testing.T) {
	boom := &domain.ProviderError{Provider: "scripted", Op: "chat", StatusCode: 500, Retryable: true, Err: domain.ErrProviderError}
	g := NewGameAgent(newConv(&scriptedProvider{err: boom}), WithLogger(discard))

	_, _, err := g.GenerateExercise(context.Background(), "word", "easy", nil)
	var pe *domain.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 500, pe.StatusCode)
}

func TestEvaluateAnswerClampsScore(t *testing.T) {
	p := &scriptedProvider{replies: []string{`{"correct": true, "score": 140, "feedback": "Great"}`}}
	g := NewGameAgent(newConv(p), WithLogger(discard))

	ex := domain.Exercise{Title: "Recall", Content: []string{"a", "b"}, Solution: "a b"}
	ev, outcome, err := g.EvaluateAnswer(context.Background(), ex, "a b")
	require.NoError(t, err)
	assert.Equal(t, extract.OutcomePartial, outcome)
	assert.True(t, ev.Correct)
	assert.Equal(t, 100.0, ev.Score)
	assert.Contains(t, p.lastPrompt(), `Content: ["a","b"]`)
	assert.Contains(t, p.lastPrompt(), "User's answer: a b")
}

func TestEvaluateAnswerDefault(t *testing.T) {
	p := &scriptedProvider{replies: []string{"hmm"}}
	g := NewGameAgent(newConv(p), WithLogger(discard))

	ev, outcome, err := g.EvaluateAnswer(context.Background(), domain.Exercise{Title: "Recall"}, "cat")
	require.NoError(t, err)
	assert.Equal(t, extract.OutcomeDefaultUsed, outcome)
	assert.Equal(t, DefaultEvaluation(), ev)
}

func TestEvaluateAnswerEmpty(t *testing.T) {
	g := NewGameAgent(newConv(&scriptedProvider{}), WithLogger(discard))
	_, _, err := g.EvaluateAnswer(context.Background(), domain.Exercise{Title: "Recall"}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAnalyzePerformanceSections(t *testing.T) {
	reply := `Overall things look good.

Strengths:
- Quick recall
- Steady focus

Areas for improvement:
1. Speed under pressure

Recommendations:
* Practice timed puzzles
`
	g := NewGameAgent(newConv(&scriptedProvider{replies: []string{reply}}), WithLogger(discard))

	n, outcome, err := g.AnalyzePerformance(context.Background(), "analyse these games")
	require.NoError(t, err)
	assert.Equal(t, extract.OutcomePartial, outcome)
	assert.Equal(t, domain.StringList{"Quick recall", "Steady focus"}, n.Strengths)
	assert.Equal(t, domain.StringList{"Speed under pressure"}, n.ImprovementAreas)
	assert.Equal(t, domain.StringList{"Practice timed puzzles"}, n.Recommendations)
}

func TestAnalyzePerformanceLooseLists(t *testing.T) {
	reply := `{
		"strengths": [{"area": "memory", "detail": "quick recall"}],
		"areas_for_improvement": "speed under pressure",
		"recommendations": ["Timed puzzles"],
		"cognitive_pattern": "steady",
		"progress_projection": "likely to improve"
	}`
	g := NewGameAgent(newConv(&scriptedProvider{replies: []string{reply}}), WithLogger(discard))

	n, outcome, err := g.AnalyzePerformance(context.Background(), "analyse these games")
	require.NoError(t, err)
	assert.Equal(t, extract.OutcomeSuccess, outcome)
	assert.Equal(t, domain.StringList{"area: memory, detail: quick recall"}, n.Strengths)
	assert.Equal(t, domain.StringList{"speed under pressure"}, n.ImprovementAreas)
	assert.Equal(t, domain.StringList{"Timed puzzles"}, n.Recommendations)
	assert.Equal(t, "steady", n.CognitivePattern)
	assert.Equal(t, "likely to improve", n.ProgressProjection)
}

func TestAnalyzePerformanceDefaultIsEmpty(t *testing.T) {
	g := NewGameAgent(newConv(&scriptedProvider{replies: []string{"no idea"}}), WithLogger(discard))

	n, outcome, err := g.AnalyzePerformance(context.Background(), "analyse")
	require.NoError(t, err)
	assert.Equal(t, extract.OutcomeDefaultUsed, outcome)
	assert.NotNil(t, n.Strengths)
	assert.Empty(t, n.Strengths)
}

func TestGameAgentSharesHistory(t *testing.T) {
	p := &scriptedProvider{replies: []string{`{"title": "A", "instructions": "x", "hints": ["1","2","3"]}`, "no"}}
	g := NewGameAgent(newConv(p), WithLogger(discard))

	_, _, err := g.GenerateExercise(context.Background(), "word", "easy", nil)
	require.NoError(t, err)
	_, _, err = g.EvaluateAnswer(context.Background(), domain.Exercise{Title: "A"}, "answer")
	require.NoError(t, err)

	// system + first exchange + new prompt
	assert.Len(t, p.calls[1], 4)
	assert.Len(t, g.Agent().History(), 4)

	g.ResetHistory()
	assert.Empty(t, g.Agent().History())
}

func TestRecommendSoundsBounds(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    int
		outcome extract.Outcome
	}{
		{
			name:    "three valid",
			reply:   `[{"title":"Rain","duration":"20 minutes"},{"title":"Birds","duration":10},{"title":"Wind"}]`,
			want:    3,
			outcome: extract.OutcomeSuccess,
		},
		{
			name:    "too many truncated",
			reply:   `[{"title":"1"},{"title":"2"},{"title":"3"},{"title":"4"},{"title":"5"},{"title":"6"},{"title":"7"}]`,
			want:    MaxSounds,
			outcome: extract.OutcomePartial,
		},
		{
			name:    "one padded",
			reply:   `[{"title":"Rain"}]`,
			want:    MinSounds,
			outcome: extract.OutcomePartial,
		},
		{
			name:    "untitled dropped",
			reply:   `[{"title":"Rain"},{"title":""},{"title":"Wind"},{"title":"Birds"}]`,
			want:    3,
			outcome: extract.OutcomePartial,
		},
		{
			name:    "prose",
			reply:   "Try some calming music.",
			want:    3,
			outcome: extract.OutcomeDefaultUsed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewTherapyAgent(newConv(&scriptedProvider{replies: []string{tt.reply}}), WithLogger(discard))
			recs, outcome, err := a.RecommendSounds(context.Background(), "anxious", []string{"nature"}, "sleep")
			require.NoError(t, err)
			assert.Len(t, recs, tt.want)
			assert.Equal(t, tt.outcome, outcome)
			for _, r := range recs {
				assert.NotEmpty(t, r.Title)
			}
		})
	}
}

func TestRecommendSoundsDecodesDuration(t *testing.T) {
	reply := `[{"title":"Rain","duration":"20 minutes"},{"title":"Birds","duration":10},{"title":"Wind","duration":5}]`
	a := NewTherapyAgent(newConv(&scriptedProvider{replies: []string{reply}}), WithLogger(discard))

	recs, _, err := a.RecommendSounds(context.Background(), "tired", nil, "")
	require.NoError(t, err)
	assert.Equal(t, domain.Minutes(20), recs[0].DurationMinutes)
	assert.Equal(t, domain.Minutes(10), recs[1].DurationMinutes)
}

func TestRecommendSoundsPaddingSkipsDuplicates(t *testing.T) {
	reply := `[{"title":"Calming Ocean Waves"}]`
	a := NewTherapyAgent(newConv(&scriptedProvider{replies: []string{reply}}), WithLogger(discard))

	recs, _, err := a.RecommendSounds(context.Background(), "sad", nil, "")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "Gentle Rainfall", recs[1].Title)
	assert.Equal(t, "Soft Piano Ambience", recs[2].Title)
}

func TestGuidedMeditation(t *testing.T) {
	p := &scriptedProvider{replies: []string{"  Breathe in...  "}}
	a := NewTherapyAgent(newConv(p), WithLogger(discard))

	script, err := a.GuidedMeditation(context.Background(), domain.MeditationRequest{DurationMinutes: 10, FocusArea: "breathing"})
	require.NoError(t, err)
	assert.Equal(t, "Breathe in...", script)
	assert.Contains(t, p.lastPrompt(), "10-minute meditation")
	assert.Contains(t, p.lastPrompt(), "beginner level practitioner")
}

func TestGuidedMeditationInvalid(t *testing.T) {
	a := NewTherapyAgent(newConv(&scriptedProvider{}), WithLogger(discard))

	_, err := a.GuidedMeditation(context.Background(), domain.MeditationRequest{FocusArea: "sleep"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = a.GuidedMeditation(context.Background(), domain.MeditationRequest{DurationMinutes: 5})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAnalyzeProgressLimitsHistory(t *testing.T) {
	p := &scriptedProvider{replies: []string{`{
		"progress_summary": "Stable",
		"cognitive_strengths": "Word recall",
		"improvement_areas": [{"area": "attention", "note": "short"}],
		"recommendations": ["More puzzles"],
		"caregiver_tips": [],
		"follow_up": ["Check in next month"]
	}`}}
	c := NewCaregiverAgent(newConv(p), WithLogger(discard))

	var games []domain.GameRecord
	for i := range 8 {
		games = append(games, domain.GameRecord{GameName: "game" + string(rune('A'+i)), Score: 50})
	}
	got, outcome, err := c.AnalyzeProgress(context.Background(), domain.PatientData{GameHistory: games})
	require.NoError(t, err)
	assert.Equal(t, extract.OutcomeSuccess, outcome)
	assert.Equal(t, "Stable", got.ProgressSummary)
	assert.Equal(t, domain.StringList{"Word recall"}, got.CognitiveStrengths)
	assert.Equal(t, domain.StringList{"area: attention, note: short"}, got.ImprovementAreas)
	assert.Equal(t, domain.StringList{}, got.CaregiverTips)

	prompt := p.lastPrompt()
	assert.Equal(t, HistoryWindow, strings.Count(prompt, "- Game: "))
	assert.Contains(t, prompt, "gameA")
	assert.NotContains(t, prompt, "gameF")
}

func TestAnalyzeProgressDefault(t *testing.T) {
	c := NewCaregiverAgent(newConv(&scriptedProvider{replies: []string{"sorry"}}), WithLogger(discard))

	got, outcome, err := c.AnalyzeProgress(context.Background(), domain.PatientData{
		Symptoms: []domain.Symptom{{Description: "forgetful", Severity: "mild"}},
	})
	require.NoError(t, err)
	assert.Equal(t, extract.OutcomeDefaultUsed, outcome)
	assert.Equal(t, DefaultProgress(), got)
}

func TestAnalyzeProgressEmpty(t *testing.T) {
	c := NewCaregiverAgent(newConv(&scriptedProvider{}), WithLogger(discard))
	_, _, err := c.AnalyzeProgress(context.Background(), domain.PatientData{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDailyPlanFillsMissingSections(t *testing.T) {
	p := &scriptedProvider{replies: []string{`{"morning_routine": ["Tea"], "meals": "Soup at noon"}`}}
	c := NewCaregiverAgent(newConv(p), WithLogger(discard))

	plan, outcome, err := c.DailyPlan(context.Background(), domain.PatientProfile{Age: 80, Mobility: "limited"},
		&domain.CaregiverConstraints{AvailableTime: "2 hours"})
	require.NoError(t, err)
	assert.Equal(t, extract.OutcomePartial, outcome)
	assert.Equal(t, domain.StringList{"Tea"}, plan.MorningRoutine)
	assert.Equal(t, domain.StringList{"Soup at noon"}, plan.Meals)
	assert.Equal(t, DefaultDailyPlan().EveningRoutine, plan.EveningRoutine)
	for _, s := range plan.Sections() {
		assert.NotEmpty(t, *s.Items, s.Name)
	}
	assert.Contains(t, p.lastPrompt(), "Available time: 2 hours")
	assert.Contains(t, p.lastPrompt(), "Mobility level: limited")
}

func TestDailyPlanDefault(t *testing.T) {
	c := NewCaregiverAgent(newConv(&scriptedProvider{replies: []string{"I can't"}}), WithLogger(discard))

	plan, outcome, err := c.DailyPlan(context.Background(), domain.PatientProfile{}, nil)
	require.NoError(t, err)
	assert.Equal(t, extract.OutcomeDefaultUsed, outcome)
	assert.Equal(t, DefaultDailyPlan(), plan)
}

func TestDefaultsAreFreshCopies(t *testing.T) {
	a := DefaultDailyPlan()
	a.Meals[0] = "changed"
	assert.NotEqual(t, "changed", DefaultDailyPlan().Meals[0])

	ex := DefaultExercise("word", "easy")
	ex.Hints[0] = "changed"
	assert.Equal(t, defaultHints[0], DefaultExercise("word", "easy").Hints[0])
}
