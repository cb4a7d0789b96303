package investigation

import "time"

// ModelExtras are the optional per-model result fields reported alongside
// progress. Set fields are merged into the tracked state and never cleared.
type ModelExtras struct {
	MatchesFound *int
	TopScore     *float64
}

// EnsembleTracker tracks the progress of the fixed ensemble of identification
// models. It stays empty until the stripe_analysis phase starts and the engine
// initialises it with the known model names. Each model progresses
// independently; one model erroring does not block the others.
//
// EnsembleTracker is not goroutine-safe. All mutation goes through the
// reconciliation engine.
type EnsembleTracker struct {
	models map[string]*ModelProgress
	order  []string
}

func NewEnsembleTracker() *EnsembleTracker {
	return &EnsembleTracker{models: make(map[string]*ModelProgress)}
}

// InitializeAll populates the tracker with one pending entry per name. It is a
// no-op unless the tracker is empty, guarding against re-initialisation while
// models are already reporting.
func (t *EnsembleTracker) InitializeAll(names []string) {
	if len(t.models) != 0 {
		return
	}
	for _, name := range names {
		t.models[name] = &ModelProgress{Model: name, Status: StatusPending}
		t.order = append(t.order, name)
	}
}

// Update records reported progress for a model. Models never seen before are
// created on the fly so that a progress report racing ahead of initialisation
// is not lost. StartedAt is stamped once on the first transition into running
// and CompletedAt once on the first transition into completed. Extras merge
// shallowly and are never cleared.
//
// Progress is recorded as reported, including a value lower than the previous
// one: the push channel is the sole authority for model progress and the
// tracker does not second-guess it.
func (t *EnsembleTracker) Update(model string, progress int, status Status, extras ModelExtras) {
	m, ok := t.models[model]
	if !ok {
		m = &ModelProgress{Model: model, Status: StatusPending}
		t.models[model] = m
		t.order = append(t.order, model)
	}

	m.Progress = progress
	if status == StatusRunning && m.StartedAt.IsZero() {
		m.StartedAt = time.Now()
	}
	if status == StatusCompleted && m.CompletedAt.IsZero() {
		m.CompletedAt = time.Now()
	}
	m.Status = status

	if extras.MatchesFound != nil {
		m.MatchesFound = extras.MatchesFound
	}
	if extras.TopScore != nil {
		m.TopScore = extras.TopScore
	}
}

// Get returns a copy of the named model's state.
func (t *EnsembleTracker) Get(model string) (ModelProgress, bool) {
	m, ok := t.models[model]
	if !ok {
		return ModelProgress{}, false
	}
	return *m, true
}

// Models returns copies of all tracked models in insertion order.
func (t *EnsembleTracker) Models() []ModelProgress {
	models := make([]ModelProgress, 0, len(t.order))
	for _, name := range t.order {
		models = append(models, *t.models[name])
	}
	return models
}

// CompletedCount counts models that reached completed status.
func (t *EnsembleTracker) CompletedCount() int {
	count := 0
	for _, m := range t.models {
		if m.Status == StatusCompleted {
			count++
		}
	}
	return count
}

// TotalCount is the number of tracked models.
func (t *EnsembleTracker) TotalCount() int {
	return len(t.models)
}
