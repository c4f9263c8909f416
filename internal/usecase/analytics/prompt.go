package analytics

import (
	"strings"
	"text/template"

	"careai/internal/domain"
)

var narrativeTmpl = template.Must(template.New("narrative").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	"fallback": func(v, fallback string) string {
		if strings.TrimSpace(v) == "" {
			return fallback
		}
		return v
	},
}).Parse(`Based on the following game performance data, provide an analysis of the patient's
cognitive performance strengths and areas for improvement. Also suggest personalized recommendations
for exercises or games that might help improve cognitive skills.

Total Games Played: {{.Count}}
Average Score: {{printf "%.2f" .AverageScore}}
Average Duration: {{printf "%.2f" .AverageDuration}} seconds
Improvement Rate: {{printf "%.2f" .ImprovementRate}}%

Game History:
{{- range $i, $g := .Games}}
Game {{inc $i}}:
- Type: {{fallback $g.GameType "unknown"}}
- Score: {{$g.Score}}
- Duration: {{$g.DurationSeconds}} seconds
- Difficulty: {{fallback $g.Difficulty "medium"}}
- Errors: {{$g.ErrorCount}}
- Date: {{if $g.Timestamp.IsZero}}unknown{{else}}{{$g.Timestamp.Format "2006-01-02T15:04:05Z07:00"}}{{end}}
{{- end}}

Please respond with a JSON object containing:
1. "strengths": Array of the patient's cognitive strengths based on game performance
2. "areas_for_improvement": Array of areas where the patient could improve
3. "recommendations": Array of specific games, difficulties, or cognitive exercises recommended
4. "cognitive_pattern": Brief description of any patterns in performance
5. "progress_projection": Brief projection of expected improvement if the patient continues current engagement

Your analysis should be specifically tailored to the types of games played and the pattern of scores.
`))

type narrativeData struct {
	Count           int
	AverageScore    float64
	AverageDuration float64
	ImprovementRate float64
	Games           []domain.PerformanceSample
}

func narrativePrompt(d narrativeData) (string, error) {
	var b strings.Builder
	if err := narrativeTmpl.Execute(&b, d); err != nil {
		return "", err
	}
	return b.String(), nil
}
