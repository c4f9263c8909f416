package care

import (
	"context"
	"fmt"
	"strings"

	"careai/internal/domain"
	"careai/internal/usecase/conversation"
	"careai/internal/usecase/extract"
)

// Bounds on the number of sound recommendations returned.
const (
	MinSounds = 3
	MaxSounds = 5
)

// DefaultExperienceLevel is assumed when a meditation request names none.
const DefaultExperienceLevel = "beginner"

var soundsSchema = extract.MustCompileSchema(`{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["title"],
		"properties": {
			"title": {"type": "string"},
			"category": {"type": "string"}
		}
	}
}`)

// DefaultSounds is the fallback recommendation set.
func DefaultSounds() []domain.SoundRecommendation {
	return []domain.SoundRecommendation{
		{
			Title:           "Calming Ocean Waves",
			Category:        "nature",
			DurationMinutes: 15,
			Description:     "Ocean sounds can help reduce anxiety and promote relaxation.",
			Instructions:    "Find a comfortable position, close your eyes, and focus on the rhythm of the waves.",
		},
		{
			Title:           "Gentle Rainfall",
			Category:        "nature",
			DurationMinutes: 20,
			Description:     "Steady rain masks background noise and helps the mind settle.",
			Instructions:    "Listen at low volume in a dim room and let your breathing slow.",
		},
		{
			Title:           "Soft Piano Ambience",
			Category:        "music",
			DurationMinutes: 10,
			Description:     "Slow instrumental music can lift mood without demanding attention.",
			Instructions:    "Sit upright and notice each note as it fades before the next begins.",
		},
	}
}

// TherapyAgent recommends relaxation sounds and writes meditation scripts.
type TherapyAgent struct {
	base
}

// NewTherapyAgent wraps agent with the therapy system prompt.
func NewTherapyAgent(agent *conversation.Agent, opts ...Option) *TherapyAgent {
	return &TherapyAgent{base: newBase("therapy", TherapySystemPrompt, agent, opts)}
}

// RecommendSounds returns between MinSounds and MaxSounds recommendations for
// the given mood.
func (t *TherapyAgent) RecommendSounds(ctx context.Context, mood string, preferences []string, goal string) ([]domain.SoundRecommendation, extract.Outcome, error) {
	if strings.TrimSpace(mood) == "" {
		return nil, "", invalid("TherapyAgent.RecommendSounds", "mood is required")
	}

	prompt, err := render(soundsTmpl, struct {
		Mood        string
		Preferences []string
		Goal        string
	}{mood, preferences, goal})
	if err != nil {
		return nil, "", fmt.Errorf("render sounds prompt: %w", err)
	}

	raw, err := t.ask(ctx, "sounds", prompt)
	if err != nil {
		return nil, "", err
	}

	res := extract.Extract(raw, DefaultSounds(),
		t.extractOpts(ctx, "sounds", extract.WithSchema(soundsSchema))...)
	recs, adjusted := boundSounds(res.Value)
	return recs, downgrade(res.Outcome, adjusted), nil
}

// boundSounds drops untitled entries, truncates to MaxSounds and pads from
// DefaultSounds up to MinSounds, skipping titles already present.
func boundSounds(in []domain.SoundRecommendation) ([]domain.SoundRecommendation, bool) {
	out := make([]domain.SoundRecommendation, 0, MaxSounds)
	seen := make(map[string]bool)
	for _, r := range in {
		r.Title = strings.TrimSpace(r.Title)
		if r.Title == "" {
			continue
		}
		out = append(out, r)
		seen[strings.ToLower(r.Title)] = true
	}
	changed := len(out) != len(in)
	if len(out) > MaxSounds {
		out, changed = out[:MaxSounds], true
	}
	for _, d := range DefaultSounds() {
		if len(out) >= MinSounds {
			break
		}
		if seen[strings.ToLower(d.Title)] {
			continue
		}
		out, changed = append(out, d), true
	}
	return out, changed
}

// GuidedMeditation returns a meditation script as plain text.
func (t *TherapyAgent) GuidedMeditation(ctx context.Context, req domain.MeditationRequest) (string, error) {
	if req.DurationMinutes <= 0 {
		return "", invalid("TherapyAgent.GuidedMeditation", "duration must be positive")
	}
	if strings.TrimSpace(req.FocusArea) == "" {
		return "", invalid("TherapyAgent.GuidedMeditation", "focus area is required")
	}
	if strings.TrimSpace(req.ExperienceLevel) == "" {
		req.ExperienceLevel = DefaultExperienceLevel
	}

	prompt, err := render(meditationTmpl, req)
	if err != nil {
		return "", fmt.Errorf("render meditation prompt: %w", err)
	}
	script, err := t.ask(ctx, "meditation", prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(script), nil
}
