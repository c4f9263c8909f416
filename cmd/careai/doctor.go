package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"careai/internal/adapter/llm"
	"careai/internal/infra/config"
	"careai/internal/infra/logger"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and provider reachability",
		Args:  cobra.NoArgs,
		// Doctor must run even when the config does not load.
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return loadDotenv()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, cfgErr := config.Load(a.cfgPath)
			return runDoctor(cmd.OutOrStdout(), a.cfgPath, cfg, cfgErr)
		},
	}
}

// runDoctor executes all health checks and reports results.
func runDoctor(w io.Writer, cfgPath string, cfg *config.Config, cfgErr error) error {
	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "LLM providers", Fn: checkLLMProviders},
		{Name: "LLM connectivity", Fn: checkLLMConnectivity},
		{Name: "Local model server", Fn: checkLocalServer},
		{Name: "Analytics thresholds", Fn: checkAnalytics},
	}

	fmt.Fprintln(w, "careai doctor")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w)

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Fprintf(w, "  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Fprintf(w, "      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		fmt.Fprintln(w, "\nFix the FAIL issues above to ensure careai runs correctly.")
		return fmt.Errorf("%d check(s) failed", fail)
	}
	if warn > 0 {
		fmt.Fprintln(w, "\ncareai should work, but consider addressing the warnings.")
	} else {
		fmt.Fprintln(w, "\nAll checks passed.")
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

// checkConfigFile reports on the config file. A missing file is only a
// warning because defaults plus environment variables are enough to run.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     fmt.Sprintf("Check the YAML in %s and the CAREAI_* environment", cfgPath),
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s; using defaults and environment", cfgPath),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// checkLLMProviders verifies that something can serve model calls.
func checkLLMProviders(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}

	providers := providerConfigs(cfg)
	if len(providers) == 0 {
		return CheckResult{
			Status:  StatusFail,
			Message: "no LLM providers configured",
			Fix:     "Set OPENAI_API_KEY, ANTHROPIC_API_KEY or LOCAL_LLM_API_URL, or enable llm.local_fallback",
		}
	}

	var names, keyless []string
	for _, p := range providers {
		names = append(names, p.Name)
		if p.APIKey == "" && providerKind(p.Type) != "local" && p.Type != "bedrock" {
			keyless = append(keyless, p.Name)
		}
	}
	if len(keyless) > 0 {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("providers [%s]; missing API key for [%s]", strings.Join(names, ", "), strings.Join(keyless, ", ")),
			Fix:     "Set CAREAI_LLM_PROVIDER_<NAME>_API_KEY for each listed provider",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("providers: %s", strings.Join(names, ", ")),
	}
}

// checkLLMConnectivity resolves the provider callers get by default and
// tests that its endpoint answers.
func checkLLMConnectivity(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check: config not loaded"}
	}

	reg, err := initLLM(cfg, logger.Discard())
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("provider setup failed: %v", err)}
	}
	p, err := reg.Resolve(cfg.Agent.Provider)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}
	pc := findProvider(cfg, p.Name())
	if pc == nil {
		return CheckResult{Status: StatusWarn, Message: fmt.Sprintf("no config for resolved provider %q", p.Name())}
	}

	endpoint := providerEndpoint(pc)
	if endpoint == "" {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("no known endpoint for provider type %q; skipping connectivity test", pc.Type),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	resp, err := http.DefaultClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot reach %s: %v", endpoint, err),
			Fix:     "Check your network connection, firewall and base_url",
		}
	}
	resp.Body.Close()

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s reachable (latency: %dms)", p.Name(), latency.Milliseconds()),
	}
}

// checkLocalServer probes every local-kind provider. Unreachable local
// servers only warn since hosted providers may still serve.
func checkLocalServer(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusWarn, Message: "cannot check: config not loaded"}
	}

	var up, down []string
	for _, pc := range providerConfigs(cfg) {
		if providerKind(pc.Type) != "local" {
			continue
		}
		local := llm.NewLocalProvider(pc, logger.Discard())
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		healthy := local.IsHealthy(ctx)
		cancel()
		if healthy {
			up = append(up, local.BaseURL())
		} else {
			down = append(down, local.BaseURL())
		}
	}

	switch {
	case len(up) == 0 && len(down) == 0:
		return CheckResult{Status: StatusPass, Message: "no local provider configured"}
	case len(down) > 0:
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("local server not reachable at %s", strings.Join(down, ", ")),
			Fix:     "Start the local server or set LOCAL_LLM_API_URL",
		}
	default:
		return CheckResult{Status: StatusPass, Message: fmt.Sprintf("local server up at %s", strings.Join(up, ", "))}
	}
}

// checkAnalytics flags threshold combinations that make a risk level unreachable.
func checkAnalytics(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusWarn, Message: "cannot check: config not loaded"}
	}
	an := cfg.Analytics
	if an.ModerateRiskThreshold >= an.HighRiskThreshold {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("moderate threshold %.2f >= high threshold %.2f; moderate risk is unreachable", an.ModerateRiskThreshold, an.HighRiskThreshold),
		}
	}
	return CheckResult{
		Status: StatusPass,
		Message: fmt.Sprintf("trend slope %.2f over %d samples; risk after %d samples",
			an.SlopeThreshold, an.MinTrendSamples, an.MinRiskSamples),
	}
}

func findProvider(cfg *config.Config, name string) *config.ProviderConfig {
	for _, pc := range providerConfigs(cfg) {
		if pc.Name == name {
			return &pc
		}
	}
	return nil
}

// providerEndpoint returns a health/ping URL for the given provider.
func providerEndpoint(p *config.ProviderConfig) string {
	base := strings.TrimRight(p.BaseURL, "/")
	switch providerKind(p.Type) {
	case "openai":
		if base != "" {
			return base
		}
		return "https://api.openai.com/v1/models"
	case "anthropic":
		if base != "" {
			return base
		}
		return "https://api.anthropic.com/"
	case "gemini":
		if base != "" {
			return base
		}
		return "https://generativelanguage.googleapis.com/"
	case "openrouter":
		if base != "" {
			return base
		}
		return "https://openrouter.ai/api/v1/models"
	case "local":
		if base != "" {
			return base
		}
		if p.Type == "ollama" {
			return "http://localhost:11434/api/tags"
		}
		return "http://localhost:8080/"
	default:
		return base
	}
}
