package llm

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"careai/internal/domain"
)

// DefaultPriority is the provider type order used when a caller names no provider.
var DefaultPriority = []string{"openai", "anthropic", "local"}

// ModelInfo pairs a registered provider with its default model.
type ModelInfo struct {
	Provider string `json:"provider"`
	Kind     string `json:"kind"`
	Model    string `json:"model"`
}

// Registry holds named LLM providers and resolves callers' requests to one.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]domain.LLMProvider
	order     []string // registration order
	priority  []string
	logger    *slog.Logger
}

// NewRegistry creates an empty provider registry. A nil or empty priority
// falls back to DefaultPriority.
func NewRegistry(priority []string, logger *slog.Logger) *Registry {
	if len(priority) == 0 {
		priority = DefaultPriority
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		providers: make(map[string]domain.LLMProvider),
		priority:  slices.Clone(priority),
		logger:    logger,
	}
}

// Register adds a provider. Returns error if name already registered.
func (r *Registry) Register(provider domain.LLMProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := provider.Name()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("%w: provider %q already registered", domain.ErrDuplicate, name)
	}
	r.providers[name] = provider
	r.order = append(r.order, name)
	return nil
}

// Get retrieves a provider by exact name.
func (r *Registry) Get(name string) (domain.LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, domain.NewDomainError("Registry.Get", domain.ErrProviderNotFound, name)
	}
	return p, nil
}

// Resolve returns the named provider when it is registered. Otherwise it walks
// the priority order by provider type, then any remaining provider in
// registration order. It fails with ErrProviderUnavailable only when nothing
// is registered.
func (r *Registry) Resolve(name string) (domain.LLMProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name != "" {
		if p, ok := r.providers[name]; ok {
			return p, nil
		}
		r.logger.Warn("requested provider not configured, using default order", "provider", name)
	}

	for _, kind := range r.priority {
		for _, n := range r.order {
			if kindOf(r.providers[n]) == kind {
				return r.providers[n], nil
			}
		}
	}
	if len(r.order) > 0 {
		return r.providers[r.order[0]], nil
	}
	return nil, domain.NewDomainError("Registry.Resolve", domain.ErrProviderUnavailable,
		"no LLM provider configured (set OPENAI_API_KEY, ANTHROPIC_API_KEY or LOCAL_LLM_API_URL)")
}

// InferProvider maps a model id to the provider that serves it: gpt-* and
// o-series models to an openai provider, claude-* to anthropic, gemini-* to
// gemini. Anything else resolves through the default order.
func (r *Registry) InferProvider(modelID string) (domain.LLMProvider, error) {
	kind := inferKind(modelID)
	if kind != "" {
		r.mu.RLock()
		for _, n := range r.order {
			if kindOf(r.providers[n]) == kind {
				p := r.providers[n]
				r.mu.RUnlock()
				return p, nil
			}
		}
		r.mu.RUnlock()
	}
	return r.Resolve("")
}

func inferKind(modelID string) string {
	id := strings.ToLower(modelID)
	switch {
	case strings.HasPrefix(id, "gpt-"), strings.HasPrefix(id, "o1"), strings.HasPrefix(id, "o3"):
		return "openai"
	case strings.HasPrefix(id, "claude-"):
		return "anthropic"
	case strings.HasPrefix(id, "gemini-"):
		return "gemini"
	default:
		return ""
	}
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := slices.Clone(r.order)
	slices.Sort(names)
	return names
}

// Models returns each provider's default model in registration order.
func (r *Registry) Models() []ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ModelInfo, 0, len(r.order))
	for _, n := range r.order {
		p := r.providers[n]
		info := ModelInfo{Provider: n, Kind: kindOf(p)}
		if m, ok := p.(interface{ Model() string }); ok {
			info.Model = m.Model()
		}
		out = append(out, info)
	}
	return out
}

// kindOf returns the provider type, falling back to its name.
func kindOf(p domain.LLMProvider) string {
	if k, ok := p.(interface{ Kind() string }); ok && k.Kind() != "" {
		return k.Kind()
	}
	return p.Name()
}
