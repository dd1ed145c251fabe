package session

import (
	"time"

	"github.com/shopspring/decimal"

	"voiceai-platform/internal/provider"
)

// CallStatus is the lifecycle state of a call session.
//
// Allowed transitions:
//
//	initiated -> connected | failed
//	connected -> active | ended | failed
//	active    -> ended | failed
//
// ended and failed are terminal.
type CallStatus string

const (
	CallStatusInitiated CallStatus = "initiated"
	CallStatusConnected CallStatus = "connected"
	CallStatusActive    CallStatus = "active"
	CallStatusEnded     CallStatus = "ended"
	CallStatusFailed    CallStatus = "failed"
)

var statusTransitions = map[CallStatus][]CallStatus{
	CallStatusInitiated: {CallStatusConnected, CallStatusFailed},
	CallStatusConnected: {CallStatusActive, CallStatusEnded, CallStatusFailed},
	CallStatusActive:    {CallStatusEnded, CallStatusFailed},
}

// CanTransition reports whether moving from s to next is a legal lifecycle step.
func (s CallStatus) CanTransition(next CallStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Accepting reports whether the call accepts inbound audio in this state.
func (s CallStatus) Accepting() bool {
	return s == CallStatusConnected || s == CallStatusActive
}

// Terminal reports whether the state admits no further transitions.
func (s CallStatus) Terminal() bool {
	return s == CallStatusEnded || s == CallStatusFailed
}

// Turn is one entry of the conversation history, in arrival order.
type Turn struct {
	Role      provider.Role `json:"role"`
	Content   string        `json:"content"`
	Provider  provider.ID   `json:"provider,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// CallContext is the full state of one call session. It is the unit of
// persistence: the registry serializes it as a single JSON document.
//
// Invariant: History is append-only and must survive a round-trip through the
// backend in order.
type CallContext struct {
	CallID      string `json:"call_id"`
	UserID      string `json:"user_id"`
	AssistantID string `json:"assistant_id"`
	PhoneNumber string `json:"phone_number,omitempty"`

	Status CallStatus `json:"status"`

	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	History []Turn `json:"history,omitempty"`

	// UsageEntryIDs references usage log rows produced during the call.
	UsageEntryIDs []string `json:"usage_entry_ids,omitempty"`

	// TotalCost is filled at call end from the accumulated usage estimates.
	TotalCost decimal.Decimal `json:"total_cost"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// AppendTurn adds one conversation turn.
func (c *CallContext) AppendTurn(role provider.Role, content string, id provider.ID, at time.Time) {
	c.History = append(c.History, Turn{
		Role:      role,
		Content:   content,
		Provider:  id,
		CreatedAt: at,
	})
}

// RecentHistory returns the last n turns as provider messages, oldest first.
func (c *CallContext) RecentHistory(n int) []provider.Message {
	turns := c.History
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]provider.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, provider.Message{Role: t.Role, Content: t.Content})
	}
	return out
}

// DurationSeconds is the elapsed call time; for live calls it is measured
// against now.
func (c *CallContext) DurationSeconds(now time.Time) float64 {
	end := now
	if c.EndedAt != nil {
		end = *c.EndedAt
	}
	if end.Before(c.StartedAt) {
		return 0
	}
	return end.Sub(c.StartedAt).Seconds()
}
