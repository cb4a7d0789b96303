package investigation

import (
	"github.com/stripesight/stripesight/internal/errors"
	"log/slog"
	"time"
)

var ErrUnknownPhase = errors.NewSentinel("unknown phase")

// PhaseTimeline tracks the status of the fixed set of pipeline phases. Phases
// are addressed by name and the set never changes size. The timeline does not
// enforce any ordering between phases; upstream sources may report them
// starting out of declared order and the timeline only does the bookkeeping.
//
// PhaseTimeline is not goroutine-safe. All mutation goes through the
// reconciliation engine, which serialises access.
type PhaseTimeline struct {
	steps map[Phase]*PhaseStep
}

// NewPhaseTimeline returns a timeline with every phase pending.
func NewPhaseTimeline() *PhaseTimeline {
	t := PhaseTimeline{steps: make(map[Phase]*PhaseStep, len(Phases()))}
	t.Initialize()
	return &t
}

// Initialize resets every phase to pending, dropping timestamps and data.
func (t *PhaseTimeline) Initialize() {
	for _, p := range Phases() {
		t.steps[p] = &PhaseStep{Phase: p, Status: StatusPending}
	}
}

// Transition sets the named phase's status, stamps the time, and merges
// auxiliary data. Unknown phase names return ErrUnknownPhase. Re-applying the
// current status refreshes the timestamp only. A status that would move
// backwards (e.g. running after completed) is ignored so that phase status
// never regresses within one investigation.
//
// The returned bool reports whether the status actually changed.
func (t *PhaseTimeline) Transition(phase Phase, status Status, data map[string]any) (bool, error) {
	return t.TransitionAt(phase, status, data, time.Now())
}

// TransitionAt is Transition with an explicit timestamp, used when applying
// poll snapshots that carry the upstream's own step timestamps.
func (t *PhaseTimeline) TransitionAt(phase Phase, status Status, data map[string]any, at time.Time) (bool, error) {
	step, ok := t.steps[phase]
	if !ok {
		return false, errors.Wrap(ErrUnknownPhase, "transition phase", slog.String("phase", string(phase)))
	}

	if statusRank(status) < statusRank(step.Status) {
		return false, nil
	}

	changed := step.Status != status
	step.Status = status
	step.Timestamp = at
	if data != nil {
		if step.Data == nil {
			step.Data = make(map[string]any, len(data))
		}
		for k, v := range data {
			step.Data[k] = v
		}
	}
	return changed, nil
}

// Step returns a copy of the named phase's state.
func (t *PhaseTimeline) Step(phase Phase) (PhaseStep, bool) {
	step, ok := t.steps[phase]
	if !ok {
		return PhaseStep{}, false
	}
	return *step, true
}

// Steps returns copies of all phase states in declared order.
func (t *PhaseTimeline) Steps() []PhaseStep {
	steps := make([]PhaseStep, 0, len(t.steps))
	for _, p := range Phases() {
		steps = append(steps, *t.steps[p])
	}
	return steps
}

// IsRunning reports whether the named phase is currently running.
func (t *PhaseTimeline) IsRunning(phase Phase) bool {
	step, ok := t.steps[phase]
	return ok && step.Status == StatusRunning
}
