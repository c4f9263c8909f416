package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careai/internal/domain"
)

// isolateEnv keeps the developer's provider settings out of CLI tests.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "LOCAL_LLM_API_URL",
		"CAREAI_AGENT_PROVIDER", "CAREAI_LLM_DEFAULT_PROVIDER", "CAREAI_LLM_PRIORITY",
		"CAREAI_CONFIG_KEY",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("CAREAI_LOGGER_LEVEL", "error")
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func samplesJSON(t *testing.T, n int) string {
	t.Helper()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	samples := make([]domain.PerformanceSample, n)
	for i := range samples {
		samples[i] = domain.PerformanceSample{
			Timestamp:       base.Add(time.Duration(i) * 24 * time.Hour),
			GameType:        "memory",
			Score:           50 + float64(5*i),
			DurationSeconds: 60 - float64(3*i),
			ErrorCount:      max(0, 5-i),
		}
	}
	b, err := json.Marshal(samples)
	require.NoError(t, err)
	return string(b)
}

// chatServer mimics an OpenAI-compatible local server that always answers reply.
func chatServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/chat/completions":
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"id":      "chatcmpl-1",
				"model":   "default",
				"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": reply}}},
			})
		case "/v1/models":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"data":[{"id":"llama-3-8b"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTrendCmd(t *testing.T) {
	isolateEnv(t)
	out, err := runCLI(t, samplesJSON(t, 6), "trend", "-")
	require.NoError(t, err)

	var res domain.TrendResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, domain.TrendImproving, res.Trend)
}

func TestTrendCmd_InvalidPeriod(t *testing.T) {
	isolateEnv(t)
	_, err := runCLI(t, samplesJSON(t, 6), "trend", "-", "--period", "soon")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTrendCmd_UnknownFeature(t *testing.T) {
	isolateEnv(t)
	_, err := runCLI(t, samplesJSON(t, 6), "trend", "-", "--feature", "duration")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTrendCmd_FeatureAlias(t *testing.T) {
	isolateEnv(t)
	out, err := runCLI(t, samplesJSON(t, 6), "trend", "-", "--feature", "score,error_count")
	require.NoError(t, err)

	var res domain.TrendResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Len(t, res.Features, 2)
	assert.Contains(t, res.Features, domain.MetricErrors)
}

func TestRiskCmd_NotEnoughData(t *testing.T) {
	isolateEnv(t)
	out, err := runCLI(t, samplesJSON(t, 4), "risk", "-")
	require.NoError(t, err)

	var res domain.RiskAssessment
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, domain.RiskUnknown, res.Level)
	assert.Equal(t, "Insufficient data for prediction", res.Message)
}

func TestAnalyticsCmd_WithoutNarrative(t *testing.T) {
	isolateEnv(t)
	t.Setenv("CAREAI_LLM_LOCAL_FALLBACK", "false")

	out, err := runCLI(t, `{"samples":`+samplesJSON(t, 6)+`}`, "analytics", "-")
	require.NoError(t, err)

	var res domain.AnalyticsResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 6, res.SampleCount)
	assert.Equal(t, domain.NarrativeDisabled, res.Narrative)
	assert.NotEmpty(t, res.Strengths)
}

func TestAnalyticsCmd_Narrative(t *testing.T) {
	isolateEnv(t)
	srv := chatServer(t, `{"strengths":["Steady recall"],"areas_for_improvement":["Speed"],"recommendations":["Practice daily"]}`)
	t.Setenv("LOCAL_LLM_API_URL", srv.URL)

	out, err := runCLI(t, samplesJSON(t, 6), "analytics", "-", "--narrative")
	require.NoError(t, err)

	var res domain.AnalyticsResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, domain.NarrativeSuccess, res.Narrative)
	assert.Equal(t, []string{"Steady recall"}, res.Strengths)
}

func TestAnalyticsCmd_NarrativeWithoutProvider(t *testing.T) {
	isolateEnv(t)
	t.Setenv("CAREAI_LLM_LOCAL_FALLBACK", "false")

	_, err := runCLI(t, samplesJSON(t, 6), "analytics", "-", "--narrative")
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestReportCmd(t *testing.T) {
	isolateEnv(t)
	out, err := runCLI(t, samplesJSON(t, 6), "report", "-")
	require.NoError(t, err)

	var rep domain.CognitiveReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 6, rep.SampleCount)
	assert.Contains(t, rep.Games, "memory")
}

func TestChatCmd(t *testing.T) {
	isolateEnv(t)
	srv := chatServer(t, "hello there")
	t.Setenv("LOCAL_LLM_API_URL", srv.URL)

	out, err := runCLI(t, "hi\n/reset\nagain\n/exit\nignored\n", "chat")
	require.NoError(t, err)
	assert.Equal(t, "hello there\n(history cleared)\nhello there\n", out)
}

func TestModelsCmd(t *testing.T) {
	isolateEnv(t)
	srv := chatServer(t, "")
	t.Setenv("LOCAL_LLM_API_URL", srv.URL)

	out, err := runCLI(t, "", "models")
	require.NoError(t, err)
	assert.Contains(t, out, "PROVIDER")
	assert.Contains(t, out, "llama-3-8b")
}

func TestSoundsCmd_Defaults(t *testing.T) {
	isolateEnv(t)
	srv := chatServer(t, "I cannot produce JSON today.")
	t.Setenv("LOCAL_LLM_API_URL", srv.URL)

	out, err := runCLI(t, "", "sounds", "--mood", "anxious")
	require.NoError(t, err)

	var res struct {
		Result  []domain.SoundRecommendation `json:"result"`
		Outcome string                       `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Len(t, res.Result, 3)
	assert.Equal(t, "default_used", res.Outcome)
}

func TestVersionCmd(t *testing.T) {
	out, err := runCLI(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "careai dev"))
}
