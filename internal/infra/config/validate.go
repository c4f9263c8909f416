package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
// Having no providers at all is valid: resolution then fails per call.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateLLM(cfg, ve)
	validateEmbedding(cfg, ve)
	validateAgent(cfg, ve)
	validateAnalytics(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

var validProviderTypes = map[string]bool{
	"openai":     true,
	"anthropic":  true,
	"local":      true,
	"ollama":     true,
	"lmstudio":   true,
	"vllm":       true,
	"gemini":     true,
	"openrouter": true,
	"bedrock":    true,
}

// keyless provider types authenticate without an API key.
var keylessProviderTypes = map[string]bool{
	"local":    true,
	"ollama":   true,
	"lmstudio": true,
	"vllm":     true,
	"bedrock":  true,
}

func validateLLM(cfg *Config, ve *ValidationError) {
	seen := make(map[string]bool)
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			ve.Add("llm.providers[%d].name must not be empty", i)
			continue
		}
		if seen[p.Name] {
			ve.Add("llm.providers[%d]: duplicate provider name %q", i, p.Name)
		}
		seen[p.Name] = true

		if p.Type != "" && !validProviderTypes[p.Type] {
			ve.Add("llm.providers[%d].type %q is invalid (want: openai, anthropic, local, ollama, gemini, openrouter, bedrock)", i, p.Type)
		}
		if p.APIKey == "" && !keylessProviderTypes[p.Type] {
			ve.Add("llm.providers[%d] (%s): api_key is empty (set via CAREAI_LLM_PROVIDER_%s_API_KEY)",
				i, p.Name, strings.ToUpper(p.Name))
		}
		if p.Type == "bedrock" && p.Region == "" {
			ve.Add("llm.providers[%d] (%s): region is required for bedrock provider", i, p.Name)
		}
		if p.ConnTimeout < 0 || p.RespTimeout < 0 {
			ve.Add("llm.providers[%d] (%s): timeouts must be >= 0", i, p.Name)
		}
	}

	if d := cfg.LLM.DefaultProvider; d != "" && !seen[d] && !(d == "local" && cfg.LLM.LocalFallback) {
		ve.Add("llm.default_provider %q does not match any configured provider", d)
	}
	for _, t := range cfg.LLM.Priority {
		if !validProviderTypes[t] {
			ve.Add("llm.priority: unknown provider type %q", t)
		}
	}
	if cfg.LLM.Failover.Enabled {
		for _, fb := range cfg.LLM.Failover.Fallbacks {
			if !seen[fb] && !(fb == "local" && cfg.LLM.LocalFallback) {
				ve.Add("llm.failover.fallbacks: %q does not match any configured provider", fb)
			}
		}
	}

	r := cfg.LLM.Retry
	if r.MaxRetries < 0 {
		ve.Add("llm.retry.max_retries must be >= 0")
	}
	if r.BackoffFactor < 0 || r.JitterFraction < 0 || r.JitterFraction > 1 {
		ve.Add("llm.retry: backoff_factor must be >= 0 and jitter_fraction in [0,1]")
	}
	if cfg.LLM.RateLimit.RequestsPerSecond < 0 || cfg.LLM.RateLimit.Burst < 0 {
		ve.Add("llm.rate_limit values must be >= 0")
	}
}

var validEmbeddingProviders = map[string]bool{
	"":       true,
	"openai": true,
	"ollama": true,
	"gemini": true,
}

func validateEmbedding(cfg *Config, ve *ValidationError) {
	if !validEmbeddingProviders[cfg.Embedding.Provider] {
		ve.Add("embedding.provider %q is invalid (want: openai, ollama, gemini or empty)", cfg.Embedding.Provider)
	}
	if cfg.Embedding.CacheSize < 0 {
		ve.Add("embedding.cache_size must be >= 0")
	}
}

func validateAgent(cfg *Config, ve *ValidationError) {
	a := cfg.Agent
	if a.HistoryLimit <= 0 {
		ve.Add("agent.history_limit must be > 0")
	}
	if a.MaxTokens < 0 {
		ve.Add("agent.max_tokens must be >= 0")
	}
	if a.Temperature < 0 || a.Temperature > 2 {
		ve.Add("agent.temperature must be in [0,2]")
	}
	if a.Timeout < 0 || a.SessionIdleTTL < 0 {
		ve.Add("agent timeouts must be >= 0")
	}
}

func validateAnalytics(cfg *Config, ve *ValidationError) {
	a := cfg.Analytics
	if a.SlopeThreshold < 0 {
		ve.Add("analytics.slope_threshold must be >= 0")
	}
	if a.MinTrendSamples < 2 {
		ve.Add("analytics.min_trend_samples must be >= 2")
	}
	if a.MaxWindow < 1 {
		ve.Add("analytics.max_window must be >= 1")
	}
	if a.SlopePoints < 2 {
		ve.Add("analytics.slope_points must be >= 2")
	}
	if a.MinRollingRows < a.SlopePoints {
		ve.Add("analytics.min_rolling_rows must be >= slope_points")
	}
	if a.RiskWindow < 1 || a.MinRiskSamples < a.RiskWindow {
		ve.Add("analytics.risk_window must be >= 1 and <= min_risk_samples")
	}
	if a.ModerateRiskThreshold > a.HighRiskThreshold {
		ve.Add("analytics.moderate_risk_threshold must be <= high_risk_threshold")
	}
	for name, c := range map[string]float64{
		"high_risk_confidence":     a.HighRiskConfidence,
		"moderate_risk_confidence": a.ModerateRiskConfidence,
		"low_risk_confidence":      a.LowRiskConfidence,
	} {
		if c < 0 || c > 1 {
			ve.Add("analytics.%s must be in [0,1]", name)
		}
	}
	if a.NarrativeSamples < 0 {
		ve.Add("analytics.narrative_samples must be >= 0")
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is invalid (want: debug, info, warn, error)", cfg.Logger.Level)
	}
	if f := cfg.Logger.Format; f != "text" && f != "json" {
		ve.Add("logger.format %q is invalid (want: text, json)", f)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "stdout", "noop", "":
	case "otlp":
		if cfg.Tracer.Endpoint == "" {
			ve.Add("tracer.endpoint is required for the otlp exporter")
		}
	default:
		ve.Add("tracer.exporter %q is invalid (want: stdout, otlp, noop)", cfg.Tracer.Exporter)
	}
}
