package actionqueue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Queue is the process-local action dispatch table (spec.md §4.5): no
// persistence across restarts, a single mutex over all state, and a
// per-action completion signal mirroring the teacher's events.Bus
// fan-out-channel idiom, narrowed here to one subscriber per action.
type Queue struct {
	mu       sync.Mutex
	actions  map[string]Action
	agents   map[string]AgentInfo
	signals  map[string]chan struct{}
	timeout  time.Duration
}

// New returns a ready-to-use Queue. timeout is the default action_timeout
// (spec.md §4.5 Poll/Complete age-out rule).
func New(timeout time.Duration) *Queue {
	return &Queue{
		actions: make(map[string]Action),
		agents:  make(map[string]AgentInfo),
		signals: make(map[string]chan struct{}),
		timeout: timeout,
	}
}

// Create stamps and enqueues a new pending action for agent.
func (q *Queue) Create(agent, kind string, payload map[string]any) Action {
	q.mu.Lock()
	defer q.mu.Unlock()

	a := Action{
		ID:        uuid.NewString(),
		AgentID:   agent,
		Kind:      kind,
		Payload:   payload,
		State:     StatePending,
		CreatedAt: time.Now(),
	}
	q.actions[a.ID] = a
	q.signals[a.ID] = make(chan struct{})
	return a
}

// Poll returns every action newly transitioned to in_progress for agent,
// expiring any pending or in_progress action past its timeout along the
// way (spec.md §4.5). Order of the returned slice is unspecified.
func (q *Queue) Poll(agent string) []Action {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	var dispatched []Action
	for id, a := range q.actions {
		if a.AgentID != agent {
			continue
		}
		switch a.State {
		case StatePending:
			if now.Sub(a.CreatedAt) > q.timeout {
				a.State = StateExpired
				a.EndedAt = now
				q.actions[id] = a
				q.fire(id)
				continue
			}
			a.State = StateInProgress
			a.StartedAt = now
			q.actions[id] = a
			dispatched = append(dispatched, a)
		case StateInProgress:
			if now.Sub(a.StartedAt) > q.timeout {
				a.State = StateExpired
				a.EndedAt = now
				q.actions[id] = a
				q.fire(id)
			}
		}
	}
	return dispatched
}

// Complete sets an action's terminal state. A completion on an
// already-expired action is recorded (output persisted) but does not
// resurrect it into completed/failed (spec.md §4.5).
func (q *Queue) Complete(id string, success bool, output string) (Action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	a, ok := q.actions[id]
	if !ok {
		return Action{}, false
	}
	a.Output = output
	if a.State != StateExpired {
		if success {
			a.State = StateCompleted
		} else {
			a.State = StateFailed
		}
		a.Success = success
	}
	a.EndedAt = time.Now()
	q.actions[id] = a
	q.fire(id)
	return a, true
}

// fire closes an action's signal channel, waking any WaitFor call. Must be
// called with q.mu held. The channel is removed once closed, so a second
// call for the same action (Complete on an action Poll already expired)
// is a no-op.
func (q *Queue) fire(id string) {
	if ch, ok := q.signals[id]; ok {
		close(ch)
		delete(q.signals, id)
	}
}

// WaitFor blocks until id reaches a terminal state or timeout elapses,
// returning the action snapshot on wake either way (spec.md §4.5).
func (q *Queue) WaitFor(ctx context.Context, id string, timeout time.Duration) Action {
	q.mu.Lock()
	ch, waiting := q.signals[id]
	q.mu.Unlock()

	if waiting {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		select {
		case <-ch:
		case <-ctx.Done():
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	return q.actions[id]
}

// Heartbeat records agent liveness and reported status.
func (q *Queue) Heartbeat(agent, status string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	info := q.agents[agent]
	info.AgentID = agent
	info.Status = status
	info.LastSeen = time.Now()
	q.agents[agent] = info
}

// IsOnline reports whether agent has been seen within freshness.
func (q *Queue) IsOnline(agent string, freshness time.Duration) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	info, ok := q.agents[agent]
	if !ok {
		return false
	}
	return time.Since(info.LastSeen) < freshness
}

// CleanupOldActions drops terminal actions older than maxAge, freeing
// their signal channels.
func (q *Queue) CleanupOldActions(maxAge time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	for id, a := range q.actions {
		if !isTerminal(a.State) {
			continue
		}
		if now.Sub(a.EndedAt) > maxAge {
			delete(q.actions, id)
			delete(q.signals, id)
		}
	}
}

func isTerminal(s State) bool {
	switch s {
	case StateCompleted, StateFailed, StateExpired:
		return true
	}
	return false
}

// Get returns a snapshot of one action.
func (q *Queue) Get(id string) (Action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	a, ok := q.actions[id]
	return a, ok
}
