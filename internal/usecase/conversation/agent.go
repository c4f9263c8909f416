package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"careai/internal/domain"
	"careai/internal/infra/tracer"
)

// Agent pairs an LLM provider with a bounded history. Calls to Ask on one
// Agent are serialized so turns never interleave.
type Agent struct {
	mu       sync.Mutex
	provider domain.LLMProvider
	history  *History
	defaults domain.GenerationOptions
	timeout  time.Duration
	logger   *slog.Logger
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithHistoryLimit sets the history capacity.
func WithHistoryLimit(n int) AgentOption {
	return func(a *Agent) { a.history = NewHistory(n) }
}

// WithDefaults sets generation options used for fields a call leaves zero.
func WithDefaults(opts domain.GenerationOptions) AgentOption {
	return func(a *Agent) { a.defaults = opts }
}

// WithTimeout bounds each provider call. Zero leaves the caller's deadline alone.
func WithTimeout(d time.Duration) AgentOption {
	return func(a *Agent) { a.timeout = d }
}

// WithLogger sets the agent logger.
func WithLogger(l *slog.Logger) AgentOption {
	return func(a *Agent) { a.logger = l }
}

// NewAgent creates an agent with an empty history.
func NewAgent(provider domain.LLMProvider, opts ...AgentOption) *Agent {
	a := &Agent{
		provider: provider,
		history:  NewHistory(DefaultHistoryLimit),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ask sends the optional system prompt, the whole history and query to the
// provider. On success the user and assistant turns are appended to history.
// Provider errors are returned unchanged and leave history untouched.
func (a *Agent) Ask(ctx context.Context, query, systemPrompt string, opts domain.GenerationOptions) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", domain.NewDomainError("Agent.Ask", domain.ErrInvalidInput, "query is empty")
	}
	if a.provider == nil {
		return "", domain.NewDomainError("Agent.Ask", domain.ErrProviderUnavailable, "agent has no provider")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ctx, span := tracer.StartSpan(ctx, "agent.ask",
		trace.WithAttributes(
			tracer.StringAttr("llm.provider", a.provider.Name()),
			tracer.IntAttr("agent.history_len", a.history.Len()),
		),
	)
	defer span.End()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	now := time.Now()
	userMsg := domain.Message{Role: domain.RoleUser, Content: query, Timestamp: now}

	msgs := make([]domain.Message, 0, a.history.Len()+2)
	if systemPrompt != "" {
		msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, a.history.Messages()...)
	msgs = append(msgs, userMsg)

	reply, err := a.provider.GenerateChat(ctx, msgs, a.merge(opts))
	if err != nil {
		tracer.RecordError(span, err)
		a.logger.Warn("agent ask failed",
			"provider", a.provider.Name(),
			"duration", time.Since(now),
			"error", err,
		)
		return "", err
	}

	a.history.Append(userMsg, domain.Message{
		Role:      domain.RoleAssistant,
		Content:   reply,
		Timestamp: time.Now(),
	})
	tracer.SetOK(span)
	a.logger.Debug("agent ask completed",
		"provider", a.provider.Name(),
		"duration", time.Since(now),
		"history", a.history.Len(),
	)
	return reply, nil
}

// Seed replays client-held messages into history, e.g. a chat transcript the
// caller kept between requests.
func (a *Agent) Seed(msgs []domain.Message) error {
	for i, m := range msgs {
		switch m.Role {
		case domain.RoleSystem, domain.RoleUser, domain.RoleAssistant:
		default:
			return domain.NewDomainError("Agent.Seed", domain.ErrInvalidInput,
				fmt.Sprintf("message %d has unknown role %q", i, m.Role))
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history.Append(msgs...)
	return nil
}

// ResetHistory clears the history.
func (a *Agent) ResetHistory() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history.Reset()
}

// History returns a copy of the current history.
func (a *Agent) History() []domain.Message { return a.history.Messages() }

// Provider returns the backing provider.
func (a *Agent) Provider() domain.LLMProvider { return a.provider }

func (a *Agent) merge(opts domain.GenerationOptions) domain.GenerationOptions {
	if opts.Model == "" {
		opts.Model = a.defaults.Model
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = a.defaults.MaxTokens
	}
	if opts.Temperature <= 0 {
		opts.Temperature = a.defaults.Temperature
	}
	return opts.Resolve()
}
