package investigation

import "time"

// Push event names delivered over the realtime channel.
const (
	EventPhaseStarted           = "phase_started"
	EventPhaseCompleted         = "phase_completed"
	EventInvestigationCompleted = "investigation_completed"
	EventError                  = "error"
	EventSubagentSpawned        = "subagent_spawned"
	EventSubagentProgress       = "subagent_progress"
	EventSubagentCompleted      = "subagent_completed"
	EventModelProgress          = "model_progress"
	EventMatchFound             = "match_found"
)

// PushEvent is one inbound message from the realtime channel.
type PushEvent struct {
	Event string    `json:"event"`
	Data  EventData `json:"data"`
}

// EventData carries the payload fields used across the push event types.
// Only the fields relevant to a given event name are set.
type EventData struct {
	InvestigationID string         `json:"investigation_id,omitempty"`
	Phase           string         `json:"phase,omitempty"`
	Message         string         `json:"message,omitempty"`
	Model           string         `json:"model,omitempty"`
	Progress        *int           `json:"progress,omitempty"`
	Status          string         `json:"status,omitempty"`
	MatchesFound    *int           `json:"matches_found,omitempty"`
	TopScore        *float64       `json:"top_score,omitempty"`
	SubagentID      string         `json:"subagent_id,omitempty"`
	SubagentType    string         `json:"subagent_type,omitempty"`
	Result          map[string]any `json:"result,omitempty"`
	Error           string         `json:"error,omitempty"`
	Confidence      *float64       `json:"confidence,omitempty"`
}

// Snapshot is the full-state poll response for one investigation. It carries
// phase-level status only; model and subagent progress arrive exclusively over
// the push channel.
type Snapshot struct {
	Status string         `json:"status"`
	Steps  []SnapshotStep `json:"steps"`
}

// SnapshotStep is one reported phase in a poll snapshot.
type SnapshotStep struct {
	StepType  string         `json:"step_type"`
	Status    string         `json:"status"`
	Result    map[string]any `json:"result,omitempty"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
}
