package investigation

import "time"

// Phase is one of the fixed named stages of the identification pipeline.
type Phase string

const (
	PhaseUploadAndParse     Phase = "upload_and_parse"
	PhaseReverseImageSearch Phase = "reverse_image_search"
	PhaseTigerDetection     Phase = "tiger_detection"
	PhaseStripeAnalysis     Phase = "stripe_analysis"
	PhaseReportGeneration   Phase = "report_generation"
	PhaseComplete           Phase = "complete"
)

// Phases returns the pipeline phases in their declared order.
func Phases() []Phase {
	return []Phase{
		PhaseUploadAndParse,
		PhaseReverseImageSearch,
		PhaseTigerDetection,
		PhaseStripeAnalysis,
		PhaseReportGeneration,
		PhaseComplete,
	}
}

// ParsePhase maps a wire-level phase name to a Phase. The second return value
// reports whether the name belongs to the fixed set.
func ParsePhase(name string) (Phase, bool) {
	for _, p := range Phases() {
		if string(p) == name {
			return p, true
		}
	}
	return "", false
}

// Status is the lifecycle state of a phase, model, or subagent.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// statusRank orders statuses so that a status never regresses within one
// investigation. Completed and error are both terminal.
func statusRank(s Status) int {
	switch s {
	case StatusPending:
		return 0
	case StatusRunning:
		return 1
	case StatusCompleted, StatusError:
		return 2
	}
	return -1
}

// PhaseStep is the tracked state of a single pipeline phase.
type PhaseStep struct {
	Phase     Phase
	Status    Status
	Timestamp time.Time
	Data      map[string]any
}

// EnsembleModels are the named identification models that make up the fixed
// ensemble run during the stripe_analysis phase.
var EnsembleModels = []string{
	"wildlife_tools",
	"transreid",
	"megadescriptor",
	"miewid",
	"hotspotter",
	"stripe_sift",
}

// ModelProgress is the tracked state of one identification model.
type ModelProgress struct {
	Model        string
	Progress     int
	Status       Status
	StartedAt    time.Time
	CompletedAt  time.Time
	MatchesFound *int
	TopScore     *float64
}

// Subagent is an ephemeral worker instance spawned by the pipeline outside the
// fixed model ensemble.
type Subagent struct {
	ID          string
	Type        string
	Phase       string
	Status      Status
	Progress    int
	StartedAt   time.Time
	CompletedAt time.Time
	Result      map[string]any
	Error       string
}

// ActivityType classifies entries in the activity log.
type ActivityType string

const (
	ActivityPhaseStarted      ActivityType = "phase_started"
	ActivityPhaseCompleted    ActivityType = "phase_completed"
	ActivityModelStarted      ActivityType = "model_started"
	ActivityModelCompleted    ActivityType = "model_completed"
	ActivitySubagentSpawned   ActivityType = "subagent_spawned"
	ActivitySubagentCompleted ActivityType = "subagent_completed"
	ActivityMatchFound        ActivityType = "match_found"
	ActivityError             ActivityType = "error"
	ActivityInfo              ActivityType = "info"
)

// ActivityEvent is one human-readable entry in the capped activity history.
type ActivityEvent struct {
	ID        string
	Timestamp time.Time
	Type      ActivityType
	Message   string
	Phase     Phase
	Model     string
	Metadata  map[string]any
}
