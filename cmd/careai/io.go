package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"careai/internal/domain"
	"careai/internal/infra/config"
	"careai/internal/infra/logger"
	"careai/internal/usecase/conversation"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readJSON decodes path ("-" for stdin) into v.
func readJSON(stdin io.Reader, path string, v any) error {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", displayPath(path), err)
	}
	return nil
}

// readSamples accepts either a bare array of samples or {"samples": [...]}.
func readSamples(stdin io.Reader, path string) ([]domain.PerformanceSample, error) {
	var raw json.RawMessage
	if err := readJSON(stdin, path, &raw); err != nil {
		return nil, err
	}
	var samples []domain.PerformanceSample
	if err := json.Unmarshal(raw, &samples); err == nil {
		return samples, nil
	}
	var wrapped struct {
		Samples []domain.PerformanceSample `json:"samples"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode %s: %w", displayPath(path), err)
	}
	return wrapped.Samples, nil
}

func displayPath(path string) string {
	if path == "-" {
		return "stdin"
	}
	return path
}

// agentOptions maps the agent config section onto conversation options.
func agentOptions(cfg config.AgentConfig, log *slog.Logger) []conversation.AgentOption {
	return []conversation.AgentOption{
		conversation.WithHistoryLimit(cfg.HistoryLimit),
		conversation.WithDefaults(domain.GenerationOptions{
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		}),
		conversation.WithTimeout(cfg.Timeout),
		conversation.WithLogger(log),
	}
}

// agent resolves a provider (empty name walks the priority order) and binds
// a fresh conversation agent to it.
func (a *app) agent(provider string) (*conversation.Agent, error) {
	reg, err := a.llm()
	if err != nil {
		return nil, err
	}
	if provider == "" {
		provider = a.cfg.Agent.Provider
	}
	p, err := reg.Resolve(provider)
	if err != nil {
		return nil, err
	}
	a.log.Debug("agent provider resolved", "provider", p.Name())
	return conversation.NewAgent(p, agentOptions(a.cfg.Agent, logger.Component(a.log, "agent"))...), nil
}
