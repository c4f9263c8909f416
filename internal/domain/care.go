package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// UserProfile personalises exercise generation.
type UserProfile struct {
	Age                 int    `json:"age,omitempty"`
	Strengths           string `json:"strengths,omitempty"`
	ImprovementAreas    string `json:"improvement_areas,omitempty"`
	PreviousPerformance string `json:"previous_performance,omitempty"`
}

// Exercise is a generated cognitive exercise. Content and Solution are kept
// loosely typed because models return strings, lists or objects for them.
type Exercise struct {
	Title              string   `json:"title"`
	Instructions       string   `json:"instructions"`
	Content            any      `json:"content"`
	Hints              []string `json:"hints"`
	Solution           any      `json:"solution"`
	ValidationCriteria string   `json:"validation_criteria"`
}

// Evaluation grades a user's answer to an Exercise.
type Evaluation struct {
	Correct       bool    `json:"correct"`
	Score         float64 `json:"score"`
	Feedback      string  `json:"feedback"`
	Suggestion    string  `json:"suggestion"`
	Encouragement string  `json:"encouragement"`
}

// Minutes decodes either a JSON number or a string with a leading number
// ("15 minutes").
type Minutes int

func (m *Minutes) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*m = Minutes(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	end := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) })
	if end == -1 {
		end = len(s)
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return err
	}
	*m = Minutes(v)
	return nil
}

// StringList decodes a JSON list of strings, a single string, or a list of
// objects (each rendered as "key: value" pairs). Models mix all three.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		if one = strings.TrimSpace(one); one == "" {
			*l = StringList{}
		} else {
			*l = StringList{one}
		}
		return nil
	}
	var items []any
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	out := make(StringList, 0, len(items))
	for _, it := range items {
		if s := flatten(it); s != "" {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}

func flatten(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := flatten(t[k]); s != "" {
				parts = append(parts, k+": "+s)
			}
		}
		return strings.Join(parts, ", ")
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := flatten(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return fmt.Sprint(t)
	}
}

// SoundRecommendation is one sound therapy suggestion.
type SoundRecommendation struct {
	Title           string  `json:"title"`
	Category        string  `json:"category"`
	DurationMinutes Minutes `json:"duration"`
	Description     string  `json:"description"`
	Instructions    string  `json:"instructions"`
}

// MeditationRequest parameterises a guided meditation script.
type MeditationRequest struct {
	DurationMinutes int    `json:"duration_minutes"`
	FocusArea       string `json:"focus_area"`
	ExperienceLevel string `json:"experience_level,omitempty"`
}

// GameRecord is a game session as seen by a caregiver.
type GameRecord struct {
	GameName string  `json:"game_name"`
	Score    float64 `json:"score"`
	Date     string  `json:"date"`
}

// TherapySession is a completed therapy session.
type TherapySession struct {
	TherapyType     string `json:"therapy_type"`
	DurationMinutes int    `json:"duration"`
	MoodChange      string `json:"mood_change,omitempty"`
	Date            string `json:"date"`
}

// Medication is a current prescription.
type Medication struct {
	Name     string `json:"name"`
	Dosage   string `json:"dosage"`
	Schedule string `json:"schedule"`
}

// Symptom is a caregiver-reported symptom.
type Symptom struct {
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Date        string `json:"date"`
}

// PatientData is the input for progress analysis.
type PatientData struct {
	GameHistory    []GameRecord     `json:"game_history,omitempty"`
	TherapyHistory []TherapySession `json:"therapy_history,omitempty"`
	Medications    []Medication     `json:"medications,omitempty"`
	Symptoms       []Symptom        `json:"reported_symptoms,omitempty"`
}

// ProgressAnalysis is the caregiver-facing summary of patient progress.
type ProgressAnalysis struct {
	ProgressSummary    string     `json:"progress_summary"`
	CognitiveStrengths StringList `json:"cognitive_strengths"`
	ImprovementAreas   StringList `json:"improvement_areas"`
	Recommendations    StringList `json:"recommendations"`
	CaregiverTips      StringList `json:"caregiver_tips"`
	FollowUp           StringList `json:"follow_up"`
}

// PatientProfile describes the patient a daily plan is built for.
type PatientProfile struct {
	Age              int    `json:"age,omitempty"`
	Condition        string `json:"condition,omitempty"`
	Mobility         string `json:"mobility,omitempty"`
	Strengths        string `json:"strengths,omitempty"`
	ImprovementAreas string `json:"improvement_areas,omitempty"`
	Interests        string `json:"interests,omitempty"`
}

// CaregiverConstraints limits what a daily plan may ask of the caregiver.
type CaregiverConstraints struct {
	AvailableTime  string `json:"available_time,omitempty"`
	SupportNetwork string `json:"support_network,omitempty"`
	Considerations string `json:"considerations,omitempty"`
}

// DailyPlan is a care and activity plan with eight fixed sections.
type DailyPlan struct {
	MorningRoutine     StringList `json:"morning_routine"`
	CognitiveExercises StringList `json:"cognitive_exercises"`
	PhysicalActivities StringList `json:"physical_activities"`
	Meals              StringList `json:"meals"`
	TherapySessions    StringList `json:"therapy_sessions"`
	SocialEngagement   StringList `json:"social_engagement"`
	EveningRoutine     StringList `json:"evening_routine"`
	CaregiverBreaks    StringList `json:"caregiver_breaks"`
}

// Sections returns the plan's sections in canonical order, keyed by JSON name.
func (p *DailyPlan) Sections() []PlanSection {
	return []PlanSection{
		{"morning_routine", &p.MorningRoutine},
		{"cognitive_exercises", &p.CognitiveExercises},
		{"physical_activities", &p.PhysicalActivities},
		{"meals", &p.Meals},
		{"therapy_sessions", &p.TherapySessions},
		{"social_engagement", &p.SocialEngagement},
		{"evening_routine", &p.EveningRoutine},
		{"caregiver_breaks", &p.CaregiverBreaks},
	}
}

// PlanSection is a named, addressable DailyPlan section.
type PlanSection struct {
	Name  string
	Items *StringList
}
