// Package conversation holds the bounded chat history, the agent that pairs it
// with an LLM provider, and the per-session pool that hands agents out.
package conversation

import (
	"slices"
	"sync"

	"careai/internal/domain"
)

// DefaultHistoryLimit is the number of messages a History keeps.
const DefaultHistoryLimit = 20

// History is an ordered, capacity-bounded message list. A leading system
// message survives every trim.
type History struct {
	mu    sync.Mutex
	msgs  []domain.Message
	limit int
}

// NewHistory creates an empty history. A non-positive limit means
// DefaultHistoryLimit.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Append adds msgs in order, then trims to the limit.
func (h *History) Append(msgs ...domain.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = trim(append(h.msgs, msgs...), h.limit)
}

// Messages returns a copy of the history.
func (h *History) Messages() []domain.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.msgs)
}

// Len returns the number of stored messages.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.msgs)
}

// Limit returns the capacity.
func (h *History) Limit() int { return h.limit }

// Reset clears the history.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = nil
}

// trim keeps the newest limit messages. When the first message is a system
// prompt it stays at index 0 and the newest limit-1 others follow it.
func trim(msgs []domain.Message, limit int) []domain.Message {
	if len(msgs) <= limit {
		return msgs
	}
	if msgs[0].Role == domain.RoleSystem {
		out := make([]domain.Message, 0, limit)
		out = append(out, msgs[0])
		return append(out, msgs[len(msgs)-(limit-1):]...)
	}
	return slices.Clone(msgs[len(msgs)-limit:])
}
