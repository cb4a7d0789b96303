package engine

import (
	"fmt"
	"github.com/stripesight/stripesight/internal/investigation"
	"log/slog"
	"sync"
	"time"
)

// State is a read-only snapshot of the reconciled investigation state,
// including the fields derived on every mutation.
type State struct {
	InvestigationID string
	Steps           []investigation.PhaseStep
	Models          []investigation.ModelProgress
	Subagents       []investigation.Subagent
	Activity        []investigation.ActivityEvent
	LastError       string
	Completed       bool
	InProgress      bool
	CompletedModels int
	TotalModels     int
}

// Engine reconciles the two sources of truth for a running investigation: the
// push channel and the periodic poll snapshot. It is the single entry point
// for all incoming signals and the only component that mutates the phase
// timeline, ensemble tracker, subagent registry, and activity log.
//
// Push events and poll snapshots arrive in no guaranteed order. The engine
// converges regardless of interleaving: snapshots touch phase status only,
// through idempotent transitions, and push-driven updates are monotonic merges
// keyed by stable identity (phase name, model name, subagent ID).
type Engine struct {
	mu sync.Mutex

	logger *slog.Logger

	investigationID string
	timeline        *investigation.PhaseTimeline
	ensemble        *investigation.EnsembleTracker
	subagents       *investigation.SubagentRegistry
	activity        *investigation.ActivityLog
	lastError       string

	// updates is a coalescing change signal for consumers.
	updates chan struct{}
}

func New(logger *slog.Logger) *Engine {
	e := Engine{
		logger:  logger.With("source", "Engine"),
		updates: make(chan struct{}, 1),
	}
	e.resetLocked()
	return &e
}

// Start discards all state and begins tracking a freshly launched
// investigation under the given ID.
func (e *Engine) Start(investigationID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
	e.investigationID = investigationID
	e.notifyLocked()
}

// Reset atomically clears the bound ID and reinitialises every component.
// There is no partially reset state observable from State.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
	e.notifyLocked()
}

func (e *Engine) resetLocked() {
	e.investigationID = ""
	e.timeline = investigation.NewPhaseTimeline()
	e.ensemble = investigation.NewEnsembleTracker()
	e.subagents = investigation.NewSubagentRegistry()
	e.activity = investigation.NewActivityLog()
	e.lastError = ""
}

// InvestigationID returns the currently bound investigation ID, or empty.
func (e *Engine) InvestigationID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.investigationID
}

// Updates returns a coalescing signal channel that receives after state
// changes. Consumers read the latest state with State.
func (e *Engine) Updates() <-chan struct{} {
	return e.updates
}

func (e *Engine) notifyLocked() {
	select {
	case e.updates <- struct{}{}:
	default:
	}
}

// HandlePush applies one push event. Events tagged with an investigation ID
// other than the bound one are dropped: a rebind is a cancellation boundary
// and late events from the previous investigation must not corrupt the new
// one. Replaying an event is safe; already-applied transitions do not
// double-count activity entries.
func (e *Engine) HandlePush(ev investigation.PushEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.investigationID == "" {
		return
	}
	if ev.Data.InvestigationID != "" && ev.Data.InvestigationID != e.investigationID {
		e.logger.Debug("dropping event for stale investigation",
			slog.String("event", ev.Event),
			slog.String("event_investigation_id", ev.Data.InvestigationID),
			slog.String("bound_investigation_id", e.investigationID))
		return
	}

	var changed bool
	switch ev.Event {
	case investigation.EventPhaseStarted:
		changed = e.handlePhaseStarted(ev.Data)
	case investigation.EventPhaseCompleted:
		changed = e.handlePhaseCompleted(ev.Data)
	case investigation.EventInvestigationCompleted:
		changed = e.handleInvestigationCompleted()
	case investigation.EventError:
		changed = e.handleError(ev.Data)
	case investigation.EventSubagentSpawned:
		changed = e.handleSubagentSpawned(ev.Data)
	case investigation.EventSubagentProgress:
		changed = e.subagents.ReportProgress(ev.Data.SubagentID, intValue(ev.Data.Progress), ev.Data.Result)
	case investigation.EventSubagentCompleted:
		changed = e.handleSubagentCompleted(ev.Data)
	case investigation.EventModelProgress:
		changed = e.handleModelProgress(ev.Data)
	case investigation.EventMatchFound:
		changed = e.handleMatchFound(ev.Data)
	default:
		e.logger.Warn("unknown push event", slog.String("event", ev.Event))
	}

	if changed {
		e.notifyLocked()
	}
}

func (e *Engine) handlePhaseStarted(data investigation.EventData) bool {
	phase, ok := investigation.ParsePhase(data.Phase)
	if !ok {
		e.logger.Warn("phase_started for unknown phase", slog.String("phase", data.Phase))
		return false
	}

	changed, _ := e.timeline.Transition(phase, investigation.StatusRunning, nil)

	// The model ensemble only exists once stripe analysis begins. InitializeAll
	// is its own guard against re-initialising mid-run.
	if phase == investigation.PhaseStripeAnalysis {
		e.ensemble.InitializeAll(investigation.EnsembleModels)
	}

	if changed {
		e.activity.Append(investigation.ActivityEvent{
			Type:    investigation.ActivityPhaseStarted,
			Message: fmt.Sprintf("Phase %s started", phase),
			Phase:   phase,
		})
	}
	return changed
}

func (e *Engine) handlePhaseCompleted(data investigation.EventData) bool {
	phase, ok := investigation.ParsePhase(data.Phase)
	if !ok {
		e.logger.Warn("phase_completed for unknown phase", slog.String("phase", data.Phase))
		return false
	}

	changed, _ := e.timeline.Transition(phase, investigation.StatusCompleted, data.Result)
	if changed {
		e.activity.Append(investigation.ActivityEvent{
			Type:    investigation.ActivityPhaseCompleted,
			Message: fmt.Sprintf("Phase %s completed", phase),
			Phase:   phase,
		})
	}
	return changed
}

func (e *Engine) handleInvestigationCompleted() bool {
	changed, _ := e.timeline.Transition(investigation.PhaseComplete, investigation.StatusCompleted, nil)
	if changed {
		e.activity.Append(investigation.ActivityEvent{
			Type:    investigation.ActivityPhaseCompleted,
			Message: "Investigation completed",
			Phase:   investigation.PhaseComplete,
		})
	}
	return changed
}

// handleError records an investigation-level error. Pipeline errors are
// additive; they do not halt reconciliation of phases and models still in
// flight.
func (e *Engine) handleError(data investigation.EventData) bool {
	message := data.Message
	if message == "" {
		message = data.Error
	}
	if message == "" {
		message = "pipeline error"
	}
	e.lastError = message

	event := investigation.ActivityEvent{
		Type:    investigation.ActivityError,
		Message: message,
	}
	if phase, ok := investigation.ParsePhase(data.Phase); ok {
		event.Phase = phase
	}
	e.activity.Append(event)
	return true
}

func (e *Engine) handleSubagentSpawned(data investigation.EventData) bool {
	if data.SubagentID == "" {
		return false
	}
	inserted := e.subagents.Spawn(data.SubagentID, data.SubagentType, data.Phase, time.Time{})
	if inserted {
		e.activity.Append(investigation.ActivityEvent{
			Type:    investigation.ActivitySubagentSpawned,
			Message: fmt.Sprintf("Subagent %s (%s) spawned", data.SubagentID, data.SubagentType),
			Metadata: map[string]any{
				"subagent_id": data.SubagentID,
				"phase":       data.Phase,
			},
		})
	}
	return inserted
}

func (e *Engine) handleSubagentCompleted(data investigation.EventData) bool {
	agent, ok := e.subagents.Get(data.SubagentID)
	if !ok {
		return false
	}
	// Replayed completion; the first application already settled the entry.
	if agent.Status != investigation.StatusRunning {
		return false
	}

	e.subagents.Complete(data.SubagentID, data.Result, data.Error)

	message := fmt.Sprintf("Subagent %s completed", data.SubagentID)
	if data.Error != "" {
		message = fmt.Sprintf("Subagent %s failed: %s", data.SubagentID, data.Error)
	}
	e.activity.Append(investigation.ActivityEvent{
		Type:    investigation.ActivitySubagentCompleted,
		Message: message,
		Metadata: map[string]any{
			"subagent_id": data.SubagentID,
		},
	})
	return true
}

func (e *Engine) handleModelProgress(data investigation.EventData) bool {
	if data.Model == "" {
		return false
	}

	status := investigation.Status(data.Status)
	if status == "" {
		status = investigation.StatusRunning
	}

	prev, existed := e.ensemble.Get(data.Model)
	e.ensemble.Update(data.Model, intValue(data.Progress), status, investigation.ModelExtras{
		MatchesFound: data.MatchesFound,
		TopScore:     data.TopScore,
	})

	switch {
	case status == investigation.StatusRunning && (!existed || prev.Status == investigation.StatusPending):
		e.activity.Append(investigation.ActivityEvent{
			Type:    investigation.ActivityModelStarted,
			Message: fmt.Sprintf("Model %s started", data.Model),
			Model:   data.Model,
		})
	case status == investigation.StatusCompleted && prev.Status != investigation.StatusCompleted:
		e.activity.Append(investigation.ActivityEvent{
			Type:    investigation.ActivityModelCompleted,
			Message: fmt.Sprintf("Model %s completed", data.Model),
			Model:   data.Model,
		})
	case status == investigation.StatusError && prev.Status != investigation.StatusError:
		e.activity.Append(investigation.ActivityEvent{
			Type:    investigation.ActivityError,
			Message: fmt.Sprintf("Model %s failed", data.Model),
			Model:   data.Model,
		})
	}
	return true
}

// handleMatchFound only appends to the activity log; match details do not
// mutate phase, model, or subagent state.
func (e *Engine) handleMatchFound(data investigation.EventData) bool {
	metadata := map[string]any{"model": data.Model}
	message := fmt.Sprintf("Match found by %s", data.Model)
	if data.Confidence != nil {
		metadata["confidence"] = *data.Confidence
		message = fmt.Sprintf("Match found by %s (confidence %.2f)", data.Model, *data.Confidence)
	}
	e.activity.Append(investigation.ActivityEvent{
		Type:     investigation.ActivityMatchFound,
		Message:  message,
		Model:    data.Model,
		Metadata: metadata,
	})
	return true
}

// ApplySnapshot reconciles a poll snapshot for the given investigation.
// The snapshot is authoritative for phase status, the ground-truth resync path
// when push events were missed. It never mutates model progress, subagent
// state, or the activity log; the snapshot does not carry that granularity and
// applying it there would erase finer-grained push-driven progress.
func (e *Engine) ApplySnapshot(investigationID string, snapshot investigation.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// A poll response that was in flight across a rebind must be discarded.
	if e.investigationID == "" || investigationID != e.investigationID {
		e.logger.Debug("dropping snapshot for stale investigation",
			slog.String("snapshot_investigation_id", investigationID),
			slog.String("bound_investigation_id", e.investigationID))
		return
	}

	var changed bool
	for _, step := range snapshot.Steps {
		phase, ok := investigation.ParsePhase(step.StepType)
		if !ok {
			e.logger.Warn("snapshot step for unknown phase", slog.String("step_type", step.StepType))
			continue
		}
		at := time.Now()
		if step.Timestamp != nil {
			at = *step.Timestamp
		}
		stepChanged, _ := e.timeline.TransitionAt(phase, investigation.Status(step.Status), step.Result, at)
		changed = changed || stepChanged
	}

	// The completed phase step is authoritative for overall completion; the
	// snapshot's top-level status only feeds the same mechanism.
	if snapshot.Status == string(investigation.StatusCompleted) {
		stepChanged, _ := e.timeline.Transition(investigation.PhaseComplete, investigation.StatusCompleted, nil)
		changed = changed || stepChanged
	}

	if changed {
		e.notifyLocked()
	}
}

// RecordError surfaces a local failure (e.g. a rejected launch or mutation) to
// consumers of State. It is cleared by the next successful Start or Reset.
func (e *Engine) RecordError(message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastError = message
	e.notifyLocked()
}

// IsPhaseRunning reports whether the named phase is currently running.
func (e *Engine) IsPhaseRunning(phase investigation.Phase) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timeline.IsRunning(phase)
}

// State returns a consistent snapshot of the aggregate state with all derived
// fields recomputed.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	completed := false
	if step, ok := e.timeline.Step(investigation.PhaseComplete); ok {
		completed = step.Status == investigation.StatusCompleted
	}

	return State{
		InvestigationID: e.investigationID,
		Steps:           e.timeline.Steps(),
		Models:          e.ensemble.Models(),
		Subagents:       e.subagents.All(),
		Activity:        e.activity.Events(),
		LastError:       e.lastError,
		Completed:       completed,
		InProgress:      e.investigationID != "" && !completed,
		CompletedModels: e.ensemble.CompletedCount(),
		TotalModels:     e.ensemble.TotalCount(),
	}
}

func intValue(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
