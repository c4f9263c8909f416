package conversation

import (
	"log/slog"
	"maps"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"careai/internal/domain"
)

// Resolver picks a provider by name; an empty name means the default order.
type Resolver interface {
	Resolve(name string) (domain.LLMProvider, error)
}

// AgentFactory builds a fresh agent for a session and agent kind
// ("game", "therapy", "caregiver", "chat").
type AgentFactory func(kind string) (*Agent, error)

// NewFactory returns an AgentFactory that resolves provider through r for
// every new agent.
func NewFactory(r Resolver, provider string, opts ...AgentOption) AgentFactory {
	return func(string) (*Agent, error) {
		p, err := r.Resolve(provider)
		if err != nil {
			return nil, err
		}
		return NewAgent(p, opts...), nil
	}
}

type session struct {
	agents   map[string]*Agent
	lastUsed time.Time
}

// Pool hands out agents bound to a session id, so concurrent sessions never
// share a history.
type Pool struct {
	mu       sync.Mutex
	sessions map[string]*session
	factory  AgentFactory
	logger   *slog.Logger
	now      func() time.Time
}

// NewPool creates an empty session pool.
func NewPool(factory AgentFactory, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		sessions: make(map[string]*session),
		factory:  factory,
		logger:   logger,
		now:      time.Now,
	}
}

// NewSessionID returns a fresh ULID.
func NewSessionID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Get returns the agent of the given kind for sessionID, creating the session
// and agent on first use. An empty sessionID starts a new session; the id
// actually used is returned.
func (p *Pool) Get(sessionID, kind string) (string, *Agent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sessionID == "" {
		sessionID = NewSessionID()
	}
	s, ok := p.sessions[sessionID]
	if !ok {
		s = &session{agents: make(map[string]*Agent)}
		p.sessions[sessionID] = s
		p.logger.Debug("session created", "session_id", sessionID)
	}
	s.lastUsed = p.now()

	if a, ok := s.agents[kind]; ok {
		return sessionID, a, nil
	}
	a, err := p.factory(kind)
	if err != nil {
		if len(s.agents) == 0 {
			delete(p.sessions, sessionID)
		}
		return "", nil, err
	}
	s.agents[kind] = a
	return sessionID, a, nil
}

// Reset clears the history of every agent in the session.
func (p *Pool) Reset(sessionID string) error {
	p.mu.Lock()
	s, ok := p.sessions[sessionID]
	if !ok {
		p.mu.Unlock()
		return domain.NewDomainError("Pool.Reset", domain.ErrSessionNotFound, sessionID)
	}
	agents := slices.Collect(maps.Values(s.agents))
	p.mu.Unlock()

	for _, a := range agents {
		a.ResetHistory()
	}
	return nil
}

// Close drops the session and its agents.
func (p *Pool) Close(sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.sessions[sessionID]; !ok {
		return domain.NewDomainError("Pool.Close", domain.ErrSessionNotFound, sessionID)
	}
	delete(p.sessions, sessionID)
	return nil
}

// Sweep drops sessions idle for longer than maxIdle and returns how many it
// removed. Callers drive it; the pool runs no background goroutine.
func (p *Pool) Sweep(maxIdle time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := p.now().Add(-maxIdle)
	n := 0
	for id, s := range p.sessions {
		if s.lastUsed.Before(cutoff) {
			delete(p.sessions, id)
			n++
		}
	}
	if n > 0 {
		p.logger.Info("idle sessions evicted", "count", n)
	}
	return n
}

// Len returns the number of live sessions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}
