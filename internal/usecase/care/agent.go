// Package care implements the game, therapy and caregiver agents. Each wraps
// one conversation.Agent with a fixed system prompt, so repeated tasks on the
// same instance share a bounded history.
package care

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"careai/internal/domain"
	"careai/internal/infra/tracer"
	"careai/internal/usecase/conversation"
	"careai/internal/usecase/extract"
)

// Option configures a domain agent.
type Option func(*base)

// WithGenerationOptions sets per-call model options for every task.
func WithGenerationOptions(opts domain.GenerationOptions) Option {
	return func(b *base) { b.opts = opts }
}

// WithLogger sets the agent logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *base) { b.logger = l }
}

type base struct {
	kind   string
	agent  *conversation.Agent
	system string
	opts   domain.GenerationOptions
	logger *slog.Logger
}

func newBase(kind, system string, agent *conversation.Agent, opts []Option) base {
	b := base{
		kind:   kind,
		agent:  agent,
		system: system,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// ask sends a rendered prompt under the agent's system prompt.
func (b *base) ask(ctx context.Context, task, prompt string) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "care."+task,
		trace.WithAttributes(tracer.StringAttr("care.agent", b.kind)),
	)
	defer span.End()

	raw, err := b.agent.Ask(ctx, prompt, b.system, b.opts)
	if err != nil {
		tracer.RecordError(span, err)
		b.logger.Warn("care task failed", "agent", b.kind, "task", task, "error", err)
		return "", err
	}
	tracer.SetOK(span)
	return raw, nil
}

func (b *base) extractOpts(ctx context.Context, task string, more ...extract.Option) []extract.Option {
	return append([]extract.Option{
		extract.WithContext(ctx),
		extract.WithTask(b.kind + "." + task),
		extract.WithLogger(b.logger),
	}, more...)
}

// Agent returns the wrapped conversation agent.
func (b *base) Agent() *conversation.Agent { return b.agent }

// ResetHistory clears the shared history.
func (b *base) ResetHistory() { b.agent.ResetHistory() }

// downgrade marks a successful extraction partial when post-processing had to
// repair the value.
func downgrade(o extract.Outcome, repaired bool) extract.Outcome {
	if repaired && o == extract.OutcomeSuccess {
		return extract.OutcomePartial
	}
	return o
}

func invalid(op, detail string) error {
	return domain.NewDomainError(op, domain.ErrInvalidInput, detail)
}
