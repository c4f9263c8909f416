package care

import (
	"strings"
	"text/template"
)

// System prompts, one per domain agent.
const (
	GameSystemPrompt = `You are a specialized AI assistant for cognitive games and exercises.
Your goal is to help users with word games, puzzles, and cognitive exercises that can improve memory,
attention, and language skills. Be encouraging, adaptive to different difficulty levels, and provide
hints without giving away answers completely.`

	TherapySystemPrompt = `You are a specialized AI assistant for sound therapy and relaxation.
Your role is to recommend appropriate sounds, music, and relaxation techniques based on a user's
mood, preferences, and therapeutic needs. Be calming, empathetic, and focus on emotional well-being
and stress reduction.`

	CaregiverSystemPrompt = `You are a specialized AI assistant for caregivers managing patients with cognitive concerns.
Your role is to provide practical advice, emotional support, and help with tracking patient progress.
Be compassionate, informative, and focus on evidence-based approaches. While you can offer general
guidance, always clarify that you're not replacing professional medical advice.`
)

var funcs = template.FuncMap{
	"fallback": func(v, fallback string) string {
		if strings.TrimSpace(v) == "" {
			return fallback
		}
		return v
	},
	"join": strings.Join,
}

func mustParse(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(funcs).Parse(text))
}

var exerciseTmpl = mustParse("exercise", `Generate a new {{.GameType}} cognitive exercise at {{.Difficulty}} difficulty level.
{{- with .Profile}}
This is for a user with the following profile:
Age: {{if .Age}}{{.Age}}{{else}}unknown{{end}}
Cognitive strengths: {{fallback .Strengths "unknown"}}
Areas needing improvement: {{fallback .ImprovementAreas "unknown"}}
Previous performance: {{fallback .PreviousPerformance "unknown"}}
{{- end}}
Please structure your response as a JSON object with the following fields:
1. title - The title of the exercise
2. instructions - Clear and concise instructions for the user
3. content - The actual exercise content (words, questions, etc.)
4. hints - A list of 3 progressive hints that can be revealed one by one
5. solution - The correct answer or approach
6. validation_criteria - How to validate if the user's answer is correct

Make sure the exercise is appropriate for the difficulty level and engaging for the user.`)

var evaluationTmpl = mustParse("evaluation", `Evaluate the following user answer to a cognitive exercise:

Exercise: {{.Exercise.Title}}
Instructions: {{.Exercise.Instructions}}
Content: {{.Content}}
Correct solution: {{.Solution}}
Validation criteria: {{.Exercise.ValidationCriteria}}

User's answer: {{.Answer}}

Please provide feedback on the user's answer. Include:
1. correct - Whether the answer is correct (true or false)
2. score - A score from 0-100
3. feedback - Constructive feedback
4. suggestion - A suggestion for improvement if needed
5. encouragement - Encouragement for the user

Structure your response as a JSON object.`)

var soundsTmpl = mustParse("sounds", `Recommend sound therapy options for a user who is feeling {{.Mood}}.
{{- if .Preferences}}
User preferences: {{join .Preferences ", "}}
{{- end}}
{{- if .Goal}}
Therapy goal: {{.Goal}}
{{- end}}
Please recommend 3-5 sound therapy options. Structure your response as a JSON array of objects,
where each object has the following fields:
1. title - Name of the recommended sound or track
2. category - Category (nature, ambient, music, etc.)
3. duration - Recommended duration in minutes
4. description - Why this is recommended and its benefits
5. instructions - How to best experience this sound (environment, posture, etc.)`)

var meditationTmpl = mustParse("meditation", `Create a guided meditation script for a {{.DurationMinutes}}-minute meditation
focusing on {{.FocusArea}} for a {{.ExperienceLevel}} level practitioner.

The script should include:
1. A gentle introduction
2. Breathing instructions
3. Guided visualization
4. Periodic reminders to refocus attention
5. A gentle conclusion

Make sure the pacing is appropriate for a {{.DurationMinutes}}-minute session and the language
is calming and supportive.`)

var progressTmpl = mustParse("progress", `Analyze the following patient data and provide insights on progress, areas for improvement, and recommendations:
{{- with .Games}}

Game Performance History:
{{- range .}}
- Game: {{.GameName}}, Score: {{.Score}}, Date: {{.Date}}
{{- end}}
{{- end}}
{{- with .Therapy}}

Therapy Session History:
{{- range .}}
- Type: {{.TherapyType}}, Duration: {{.DurationMinutes}} min, Mood Change: {{fallback .MoodChange "Not reported"}}, Date: {{.Date}}
{{- end}}
{{- end}}
{{- with .Medications}}

Current Medications:
{{- range .}}
- {{.Name}}, Dosage: {{.Dosage}}, Schedule: {{.Schedule}}
{{- end}}
{{- end}}
{{- with .Symptoms}}

Reported Symptoms:
{{- range .}}
- {{.Description}}, Severity: {{.Severity}}, Date: {{.Date}}
{{- end}}
{{- end}}

Please structure your analysis as a JSON object with the following sections:
1. progress_summary - Overall assessment of patient progress
2. cognitive_strengths - Areas where the patient is showing good performance
3. improvement_areas - Areas that need attention or improvement
4. recommendations - Specific recommendations for games, exercises, or therapy
5. caregiver_tips - Practical tips for the caregiver
6. follow_up - Suggested follow-up actions or assessments`)

var dailyPlanTmpl = mustParse("daily_plan", `Generate a daily care and activity plan for a patient with the following profile:
Age: {{if .Profile.Age}}{{.Profile.Age}}{{else}}unknown{{end}}
Cognitive condition: {{fallback .Profile.Condition "unknown"}}
Mobility level: {{fallback .Profile.Mobility "unknown"}}
Cognitive strengths: {{fallback .Profile.Strengths "unknown"}}
Areas needing improvement: {{fallback .Profile.ImprovementAreas "unknown"}}
Interests/hobbies: {{fallback .Profile.Interests "unknown"}}
{{- with .Constraints}}

Caregiver constraints:
Available time: {{fallback .AvailableTime "unknown"}}
Support network: {{fallback .SupportNetwork "unknown"}}
Other considerations: {{fallback .Considerations "unknown"}}
{{- end}}

Please structure your daily plan as a JSON object with the following sections:
1. morning_routine - Activities and care for the morning
2. cognitive_exercises - Recommended cognitive games or exercises (2-3)
3. physical_activities - Recommended physical activities suitable for patient's mobility
4. meals - Meal suggestions considering nutritional needs
5. therapy_sessions - Any recommended therapy sessions
6. social_engagement - Ideas for social interaction
7. evening_routine - Activities and care for the evening
8. caregiver_breaks - Suggested times for caregiver rest and self-care`)

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
