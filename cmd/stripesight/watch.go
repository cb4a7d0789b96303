package main

import (
	"context"
	"fmt"
	"github.com/spf13/cobra"
	"github.com/stripesight/stripesight/internal/broker"
	"github.com/stripesight/stripesight/internal/engine"
	"github.com/stripesight/stripesight/internal/errors"
	"github.com/stripesight/stripesight/internal/history"
	"github.com/stripesight/stripesight/internal/investigation"
	"github.com/stripesight/stripesight/internal/poller"
	"github.com/stripesight/stripesight/internal/realtime"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func newWatchCmd(app *application) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <investigation-id>",
		Short: "Follow the live progress of an investigation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.watch(cmd.Context(), args[0])
		},
	}
}

// watch wires the full reconciliation stack for one investigation: the
// realtime client feeds push events through the broker into the session
// manager's subscription, while the poller feeds snapshots directly to the
// engine. The activity log is tailed to stdout until completion or interrupt.
func (app *application) watch(ctx context.Context, investigationID string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(app.logger)
	events := broker.NewEventBroker[string, investigation.PushEvent]()
	go events.Start()
	defer events.Stop()

	session := engine.NewSessionManager(eng, events, app.logger)
	pushClient := realtime.New(app.cfg.WSBaseURL, events, session.SetConnected, app.logger)
	snapshotPoller := poller.New(app.api, eng, app.cfg.PollInterval, app.logger)

	eng.Start(investigationID)
	session.Bind(investigationID)
	defer session.Unbind()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go pushClient.Run(runCtx, investigationID)
	go snapshotPoller.Run(runCtx, investigationID)

	fmt.Printf("watching investigation %s\n", investigationID)

	var lastPrintedID string
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-eng.Updates():
			state := eng.State()
			lastPrintedID = printNewActivity(state.Activity, lastPrintedID)
			if state.Completed {
				app.printSummary(state)
				app.recordOutcome(investigationID, state)
				return nil
			}
		}
	}
}

// printNewActivity prints every event after the one with lastID and returns
// the ID of the newest printed event. Matching by ID keeps the tail correct
// across head eviction, where slice indexes shift.
func printNewActivity(activity []investigation.ActivityEvent, lastID string) string {
	start := 0
	if lastID != "" {
		for i := len(activity) - 1; i >= 0; i-- {
			if activity[i].ID == lastID {
				start = i + 1
				break
			}
		}
	}
	for _, event := range activity[start:] {
		fmt.Printf("%s  %-19s %s\n", event.Timestamp.Format(time.TimeOnly), event.Type, event.Message)
	}
	if len(activity) > 0 {
		return activity[len(activity)-1].ID
	}
	return lastID
}

func (app *application) printSummary(state engine.State) {
	matches := totalMatches(state)
	fmt.Printf("\ninvestigation %s completed: %d/%d models finished, %d matches found\n",
		state.InvestigationID, state.CompletedModels, state.TotalModels, matches)
	if state.LastError != "" {
		fmt.Printf("last reported error: %s\n", state.LastError)
	}
}

func (app *application) recordOutcome(investigationID string, state engine.State) {
	// The watch context may already be cancelled; the local record still
	// deserves a best-effort update.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := app.store.Finish(ctx, investigationID, string(investigation.StatusCompleted), totalMatches(state))
	if err != nil && !errors.Is(err, history.ErrNotFound) {
		app.logger.Warn("could not record investigation outcome", errors.SlogError(err))
	}
}

func totalMatches(state engine.State) int {
	matches := 0
	for _, m := range state.Models {
		if m.MatchesFound != nil {
			matches += *m.MatchesFound
		}
	}
	return matches
}
