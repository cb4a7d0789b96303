package investigation_test

import (
	"github.com/stripesight/stripesight/internal/investigation"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestEnsembleTracker_InitializeAll(t *testing.T) {
	tracker := investigation.NewEnsembleTracker()
	tracker.InitializeAll(investigation.EnsembleModels)

	require.Equal(t, 6, tracker.TotalCount())
	require.Equal(t, 0, tracker.CompletedCount())
	for _, m := range tracker.Models() {
		require.Equal(t, investigation.StatusPending, m.Status)
		require.Equal(t, 0, m.Progress)
	}

	// Re-initialising mid-run must not clobber existing progress.
	tracker.Update("transreid", 50, investigation.StatusRunning, investigation.ModelExtras{})
	tracker.InitializeAll(investigation.EnsembleModels)
	m, ok := tracker.Get("transreid")
	require.True(t, ok)
	require.Equal(t, 50, m.Progress)
	require.Equal(t, investigation.StatusRunning, m.Status)
}

func TestEnsembleTracker_UpdateStampsOnce(t *testing.T) {
	tracker := investigation.NewEnsembleTracker()
	tracker.InitializeAll(investigation.EnsembleModels)

	tracker.Update("miewid", 10, investigation.StatusRunning, investigation.ModelExtras{})
	m, ok := tracker.Get("miewid")
	require.True(t, ok)
	startedAt := m.StartedAt
	require.False(t, startedAt.IsZero())

	tracker.Update("miewid", 60, investigation.StatusRunning, investigation.ModelExtras{})
	m, _ = tracker.Get("miewid")
	require.Equal(t, startedAt, m.StartedAt, "StartedAt must be stamped exactly once")

	tracker.Update("miewid", 100, investigation.StatusCompleted, investigation.ModelExtras{})
	m, _ = tracker.Get("miewid")
	completedAt := m.CompletedAt
	require.False(t, completedAt.IsZero())

	tracker.Update("miewid", 100, investigation.StatusCompleted, investigation.ModelExtras{})
	m, _ = tracker.Get("miewid")
	require.Equal(t, completedAt, m.CompletedAt, "CompletedAt must be stamped exactly once")
}

func TestEnsembleTracker_UpdateUnknownModel(t *testing.T) {
	tracker := investigation.NewEnsembleTracker()
	tracker.InitializeAll(investigation.EnsembleModels)

	// A model name never seen before is created defensively.
	tracker.Update("experimental_reid", 30, investigation.StatusRunning, investigation.ModelExtras{})
	require.Equal(t, 7, tracker.TotalCount())
	m, ok := tracker.Get("experimental_reid")
	require.True(t, ok)
	require.Equal(t, 30, m.Progress)
}

func TestEnsembleTracker_ExtrasMergedNeverCleared(t *testing.T) {
	tracker := investigation.NewEnsembleTracker()
	tracker.InitializeAll(investigation.EnsembleModels)

	matches := 3
	score := 0.87
	tracker.Update("wildlife_tools", 80, investigation.StatusRunning, investigation.ModelExtras{
		MatchesFound: &matches,
		TopScore:     &score,
	})

	// A later update without extras keeps the previous values.
	tracker.Update("wildlife_tools", 100, investigation.StatusCompleted, investigation.ModelExtras{})
	m, ok := tracker.Get("wildlife_tools")
	require.True(t, ok)
	require.NotNil(t, m.MatchesFound)
	require.Equal(t, 3, *m.MatchesFound)
	require.NotNil(t, m.TopScore)
	require.Equal(t, 0.87, *m.TopScore)
}

func TestEnsembleTracker_ErrorDoesNotBlockOthers(t *testing.T) {
	tracker := investigation.NewEnsembleTracker()
	tracker.InitializeAll(investigation.EnsembleModels)

	tracker.Update("hotspotter", 40, investigation.StatusError, investigation.ModelExtras{})
	tracker.Update("transreid", 100, investigation.StatusCompleted, investigation.ModelExtras{})

	require.Equal(t, 1, tracker.CompletedCount())
	require.Equal(t, 6, tracker.TotalCount())
	m, _ := tracker.Get("transreid")
	require.Equal(t, investigation.StatusCompleted, m.Status)
}

func TestEnsembleTracker_CountsDerivedByCounting(t *testing.T) {
	tracker := investigation.NewEnsembleTracker()
	tracker.InitializeAll(investigation.EnsembleModels)

	for _, name := range investigation.EnsembleModels {
		tracker.Update(name, 100, investigation.StatusCompleted, investigation.ModelExtras{})
		// Replays never push completed count past total.
		tracker.Update(name, 100, investigation.StatusCompleted, investigation.ModelExtras{})
		require.LessOrEqual(t, tracker.CompletedCount(), tracker.TotalCount())
	}
	require.Equal(t, 6, tracker.CompletedCount())
}
