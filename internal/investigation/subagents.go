package investigation

import "time"

// SubagentRegistry tracks the ephemeral worker instances spawned dynamically
// by the pipeline. The set only grows during an investigation; entries are
// mutated in place and never deleted. IDs come from the upstream source and
// are assumed unique.
//
// SubagentRegistry is not goroutine-safe. All mutation goes through the
// reconciliation engine.
type SubagentRegistry struct {
	agents map[string]*Subagent
	order  []string
}

func NewSubagentRegistry() *SubagentRegistry {
	return &SubagentRegistry{agents: make(map[string]*Subagent)}
}

// Spawn inserts a new running subagent. Spawning an ID that already exists is
// ignored (first write wins). Returns whether an entry was inserted.
func (r *SubagentRegistry) Spawn(id, agentType, phase string, startedAt time.Time) bool {
	if _, ok := r.agents[id]; ok {
		return false
	}
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	r.agents[id] = &Subagent{
		ID:        id,
		Type:      agentType,
		Phase:     phase,
		Status:    StatusRunning,
		StartedAt: startedAt,
	}
	r.order = append(r.order, id)
	return true
}

// ReportProgress updates progress and result for an existing subagent.
// Reports for unknown IDs are dropped; the registry never materialises an
// entry from a progress message alone. Returns whether the update applied.
func (r *SubagentRegistry) ReportProgress(id string, progress int, result map[string]any) bool {
	agent, ok := r.agents[id]
	if !ok {
		return false
	}
	agent.Progress = progress
	if result != nil {
		agent.Result = result
	}
	return true
}

// Complete marks the subagent finished. An error payload marks it errored,
// otherwise it is completed and progress is forced to 100. CompletedAt is
// stamped either way. Returns whether the update applied.
func (r *SubagentRegistry) Complete(id string, result map[string]any, errMsg string) bool {
	agent, ok := r.agents[id]
	if !ok {
		return false
	}
	agent.CompletedAt = time.Now()
	if result != nil {
		agent.Result = result
	}
	if errMsg != "" {
		agent.Status = StatusError
		agent.Error = errMsg
		return true
	}
	agent.Status = StatusCompleted
	agent.Progress = 100
	return true
}

// Get returns a copy of the subagent with the given ID.
func (r *SubagentRegistry) Get(id string) (Subagent, bool) {
	agent, ok := r.agents[id]
	if !ok {
		return Subagent{}, false
	}
	return *agent, true
}

// All returns copies of all subagents in spawn order.
func (r *SubagentRegistry) All() []Subagent {
	agents := make([]Subagent, 0, len(r.order))
	for _, id := range r.order {
		agents = append(agents, *r.agents[id])
	}
	return agents
}

// Len is the number of tracked subagents.
func (r *SubagentRegistry) Len() int {
	return len(r.agents)
}
