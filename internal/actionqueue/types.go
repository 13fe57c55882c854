// Package actionqueue implements the process-local action dispatch queue
// (spec.md §4.5): agent-reported hosts poll for work here instead of being
// reached directly, since the controller can't dial them.
package actionqueue

import "time"

// State is an Action's position in its lifecycle.
type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateExpired    State = "expired"
)

// Action is one unit of work dispatched to an agent-reported host.
type Action struct {
	ID        string         `json:"id"`
	AgentID   string         `json:"agent_id"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
	State     State          `json:"state"`
	CreatedAt time.Time      `json:"created_at"`
	StartedAt time.Time      `json:"started_at,omitempty"`
	EndedAt   time.Time      `json:"ended_at,omitempty"`
	Success   bool           `json:"success,omitempty"`
	Output    string         `json:"output,omitempty"`
}

// AgentInfo tracks a connected agent's liveness and reported capabilities.
type AgentInfo struct {
	AgentID  string    `json:"agent_id"`
	Status   string    `json:"status"`
	Version  string    `json:"version,omitempty"`
	Features []string  `json:"features,omitempty"`
	LastSeen time.Time `json:"last_seen"`
}
