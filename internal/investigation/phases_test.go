package investigation_test

import (
	"github.com/stripesight/stripesight/internal/investigation"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestPhaseTimeline_Initialize(t *testing.T) {
	timeline := investigation.NewPhaseTimeline()

	steps := timeline.Steps()
	require.Len(t, steps, 6)
	for i, phase := range investigation.Phases() {
		require.Equal(t, phase, steps[i].Phase)
		require.Equal(t, investigation.StatusPending, steps[i].Status)
	}
}

func TestPhaseTimeline_Transition(t *testing.T) {
	tests := []struct {
		name        string
		transitions []investigation.Status
		wantStatus  investigation.Status
	}{
		{
			name:        "pending to running",
			transitions: []investigation.Status{investigation.StatusRunning},
			wantStatus:  investigation.StatusRunning,
		},
		{
			name:        "running to completed",
			transitions: []investigation.Status{investigation.StatusRunning, investigation.StatusCompleted},
			wantStatus:  investigation.StatusCompleted,
		},
		{
			name:        "running to error",
			transitions: []investigation.Status{investigation.StatusRunning, investigation.StatusError},
			wantStatus:  investigation.StatusError,
		},
		{
			name: "no regression from completed",
			transitions: []investigation.Status{
				investigation.StatusRunning,
				investigation.StatusCompleted,
				investigation.StatusRunning,
			},
			wantStatus: investigation.StatusCompleted,
		},
		{
			name: "no regression to pending",
			transitions: []investigation.Status{
				investigation.StatusRunning,
				investigation.StatusPending,
			},
			wantStatus: investigation.StatusRunning,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timeline := investigation.NewPhaseTimeline()
			for _, status := range tt.transitions {
				_, err := timeline.Transition(investigation.PhaseTigerDetection, status, nil)
				require.NoError(t, err)
			}
			step, ok := timeline.Step(investigation.PhaseTigerDetection)
			require.True(t, ok)
			require.Equal(t, tt.wantStatus, step.Status)

			// Other phases are untouched.
			other, ok := timeline.Step(investigation.PhaseUploadAndParse)
			require.True(t, ok)
			require.Equal(t, investigation.StatusPending, other.Status)
		})
	}
}

func TestPhaseTimeline_TransitionUnknownPhase(t *testing.T) {
	timeline := investigation.NewPhaseTimeline()

	_, err := timeline.Transition("sharpen_claws", investigation.StatusRunning, nil)
	require.ErrorIs(t, err, investigation.ErrUnknownPhase)
	require.Len(t, timeline.Steps(), 6)
}

func TestPhaseTimeline_TransitionIdempotent(t *testing.T) {
	timeline := investigation.NewPhaseTimeline()

	changed, err := timeline.Transition(investigation.PhaseStripeAnalysis, investigation.StatusCompleted, nil)
	require.NoError(t, err)
	require.True(t, changed)

	// Re-applying the same status only refreshes the timestamp.
	changed, err = timeline.Transition(investigation.PhaseStripeAnalysis, investigation.StatusCompleted, nil)
	require.NoError(t, err)
	require.False(t, changed)

	step, ok := timeline.Step(investigation.PhaseStripeAnalysis)
	require.True(t, ok)
	require.Equal(t, investigation.StatusCompleted, step.Status)
}

func TestPhaseTimeline_TransitionMergesData(t *testing.T) {
	timeline := investigation.NewPhaseTimeline()

	_, err := timeline.Transition(investigation.PhaseTigerDetection, investigation.StatusRunning,
		map[string]any{"detections": 1})
	require.NoError(t, err)
	_, err = timeline.Transition(investigation.PhaseTigerDetection, investigation.StatusCompleted,
		map[string]any{"confidence": 0.92})
	require.NoError(t, err)

	step, ok := timeline.Step(investigation.PhaseTigerDetection)
	require.True(t, ok)
	require.Equal(t, 1, step.Data["detections"])
	require.Equal(t, 0.92, step.Data["confidence"])
}

func TestPhaseTimeline_IsRunning(t *testing.T) {
	timeline := investigation.NewPhaseTimeline()
	require.False(t, timeline.IsRunning(investigation.PhaseStripeAnalysis))

	_, err := timeline.Transition(investigation.PhaseStripeAnalysis, investigation.StatusRunning, nil)
	require.NoError(t, err)
	require.True(t, timeline.IsRunning(investigation.PhaseStripeAnalysis))
}
