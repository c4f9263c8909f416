package care

import (
	"context"
	"fmt"

	"careai/internal/domain"
	"careai/internal/usecase/conversation"
	"careai/internal/usecase/extract"
)

// HistoryWindow caps how many game and therapy records go into a progress
// prompt. Histories are ordered newest first, so the leading records are kept.
const HistoryWindow = 5

var progressSchema = extract.MustCompileSchema(`{
	"type": "object",
	"required": ["progress_summary"],
	"properties": {
		"progress_summary": {"type": "string", "minLength": 1}
	}
}`)

var progressSections = []extract.Section{
	{Field: "cognitive_strengths", Headers: []string{"cognitive strengths", "strengths"}},
	{Field: "improvement_areas", Headers: []string{"improvement areas", "areas for improvement"}},
	{Field: "recommendations", Headers: []string{"recommendations"}},
	{Field: "caregiver_tips", Headers: []string{"caregiver tips", "tips for caregivers"}},
	{Field: "follow_up", Headers: []string{"follow up", "follow-up", "follow-up actions"}},
}

var planSections = []extract.Section{
	{Field: "morning_routine", Headers: []string{"morning routine", "morning"}},
	{Field: "cognitive_exercises", Headers: []string{"cognitive exercises"}},
	{Field: "physical_activities", Headers: []string{"physical activities"}},
	{Field: "meals", Headers: []string{"meals", "nutrition"}},
	{Field: "therapy_sessions", Headers: []string{"therapy sessions", "therapy"}},
	{Field: "social_engagement", Headers: []string{"social engagement"}},
	{Field: "evening_routine", Headers: []string{"evening routine", "evening"}},
	{Field: "caregiver_breaks", Headers: []string{"caregiver breaks"}},
}

// DefaultProgress is the fallback progress analysis.
func DefaultProgress() domain.ProgressAnalysis {
	return domain.ProgressAnalysis{
		ProgressSummary:    "Unable to generate progress summary due to a technical issue.",
		CognitiveStrengths: domain.StringList{},
		ImprovementAreas:   domain.StringList{},
		Recommendations:    domain.StringList{"Please try again later or consult a healthcare professional for a proper assessment."},
		CaregiverTips:      domain.StringList{"Continue following the care plan prescribed by healthcare providers."},
		FollowUp:           domain.StringList{"Consider scheduling a consultation with the patient's healthcare provider."},
	}
}

// DefaultDailyPlan is the fallback plan. Its sections also fill any section a
// model answer leaves empty.
func DefaultDailyPlan() domain.DailyPlan {
	return domain.DailyPlan{
		MorningRoutine:     domain.StringList{"Gentle wake-up", "Medication", "Breakfast", "Light stretching"},
		CognitiveExercises: domain.StringList{"Memory card matching", "Simple word puzzles"},
		PhysicalActivities: domain.StringList{"Short walk if mobility allows", "Seated exercises"},
		Meals:              domain.StringList{"Focus on balanced nutrition", "Stay hydrated throughout the day"},
		TherapySessions:    domain.StringList{"Consider scheduled therapy appointments"},
		SocialEngagement:   domain.StringList{"Family video call", "Looking at photo albums"},
		EveningRoutine:     domain.StringList{"Calm activities before bed", "Medication", "Regular sleep schedule"},
		CaregiverBreaks:    domain.StringList{"Short breaks when patient is engaged in an activity", "Self-care is important"},
	}
}

// CaregiverAgent supports caregivers with progress analysis and daily plans.
type CaregiverAgent struct {
	base
}

// NewCaregiverAgent wraps agent with the caregiver system prompt.
func NewCaregiverAgent(agent *conversation.Agent, opts ...Option) *CaregiverAgent {
	return &CaregiverAgent{base: newBase("caregiver", CaregiverSystemPrompt, agent, opts)}
}

// AnalyzeProgress summarises patient data for a caregiver.
func (c *CaregiverAgent) AnalyzeProgress(ctx context.Context, data domain.PatientData) (domain.ProgressAnalysis, extract.Outcome, error) {
	if len(data.GameHistory) == 0 && len(data.TherapyHistory) == 0 &&
		len(data.Medications) == 0 && len(data.Symptoms) == 0 {
		return domain.ProgressAnalysis{}, "", invalid("CaregiverAgent.AnalyzeProgress", "patient data is empty")
	}

	prompt, err := render(progressTmpl, struct {
		Games       []domain.GameRecord
		Therapy     []domain.TherapySession
		Medications []domain.Medication
		Symptoms    []domain.Symptom
	}{
		Games:       firstN(data.GameHistory, HistoryWindow),
		Therapy:     firstN(data.TherapyHistory, HistoryWindow),
		Medications: data.Medications,
		Symptoms:    data.Symptoms,
	})
	if err != nil {
		return domain.ProgressAnalysis{}, "", fmt.Errorf("render progress prompt: %w", err)
	}

	raw, err := c.ask(ctx, "progress", prompt)
	if err != nil {
		return domain.ProgressAnalysis{}, "", err
	}

	res := extract.Extract(raw, DefaultProgress(),
		c.extractOpts(ctx, "progress",
			extract.WithSchema(progressSchema),
			extract.WithSections(progressSections...),
		)...)
	return res.Value, res.Outcome, nil
}

// DailyPlan builds a care plan. Sections the model leaves empty are taken
// from DefaultDailyPlan, which downgrades a success to partial.
func (c *CaregiverAgent) DailyPlan(ctx context.Context, profile domain.PatientProfile, constraints *domain.CaregiverConstraints) (domain.DailyPlan, extract.Outcome, error) {
	prompt, err := render(dailyPlanTmpl, struct {
		Profile     domain.PatientProfile
		Constraints *domain.CaregiverConstraints
	}{profile, constraints})
	if err != nil {
		return domain.DailyPlan{}, "", fmt.Errorf("render daily plan prompt: %w", err)
	}

	raw, err := c.ask(ctx, "daily_plan", prompt)
	if err != nil {
		return domain.DailyPlan{}, "", err
	}

	res := extract.Extract(raw, domain.DailyPlan{},
		c.extractOpts(ctx, "daily_plan", extract.WithSections(planSections...))...)
	if res.Outcome == extract.OutcomeDefaultUsed {
		return DefaultDailyPlan(), res.Outcome, nil
	}

	plan := res.Value
	filled := fillPlan(&plan)
	return plan, downgrade(res.Outcome, filled), nil
}

// fillPlan copies default items into every empty section of p.
func fillPlan(p *domain.DailyPlan) bool {
	def := DefaultDailyPlan()
	defSections := def.Sections()
	filled := false
	for i, s := range p.Sections() {
		if len(*s.Items) == 0 {
			*s.Items = *defSections[i].Items
			filled = true
		}
	}
	return filled
}

func firstN[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
