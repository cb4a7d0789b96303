package engine

import (
	"github.com/stripesight/stripesight/internal/investigation"
	"log/slog"
	"sync"
)

// EventSource is where push events for an investigation come from, typically
// the realtime broker. The cancel function releases the subscription.
type EventSource interface {
	Subscribe(investigationID string) (<-chan investigation.PushEvent, func())
}

// ConnectionStatus reports the health of the push channel for consumer
// display. A disconnected channel is not fatal: polling continues
// independently and remains the fallback source of truth for phase status.
type ConnectionStatus struct {
	Connected bool
	LastError error
}

// SessionManager owns the lifecycle of the active investigation ID's push
// subscription. Binding to a new ID first releases the old subscription;
// events still in flight for the old ID are tagged with it and dropped by the
// engine, so a rebind behaves as a cancellation boundary.
type SessionManager struct {
	logger *slog.Logger
	engine *Engine
	source EventSource

	mu        sync.Mutex
	boundID   string
	cancel    func()
	pumpDone  chan struct{}
	connected bool
	lastError error
}

func NewSessionManager(engine *Engine, source EventSource, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		logger: logger.With("source", "SessionManager"),
		engine: engine,
		source: source,
	}
}

// Bind subscribes the push channel to the given investigation ID. If a
// different ID is bound, its subscription is released first. Binding the
// already-bound ID is a no-op.
func (s *SessionManager) Bind(investigationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.boundID == investigationID {
		return
	}

	s.releaseLocked()
	s.boundID = investigationID

	events, cancel := s.source.Subscribe(investigationID)
	s.cancel = cancel
	done := make(chan struct{})
	s.pumpDone = done

	s.logger.Debug("bound push channel", slog.String("investigation_id", investigationID))

	go func() {
		defer close(done)
		for ev := range events {
			// Events arrive implicitly tagged by the per-ID subscription; make
			// the tag explicit so the engine can reject stale deliveries that
			// overlap an unbind/rebind.
			if ev.Data.InvestigationID == "" {
				ev.Data.InvestigationID = investigationID
			}
			s.engine.HandlePush(ev)
		}
	}()
}

// Unbind releases the push subscription. It does not touch the reconciled
// state; clearing state is the caller's responsibility via an explicit engine
// reset.
func (s *SessionManager) Unbind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
	s.boundID = ""
	s.connected = false
}

func (s *SessionManager) releaseLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	// The subscriber channel is closed by the cancel, so the pump drains and
	// exits; any remaining events are tagged with the old ID and the engine
	// drops them.
	<-s.pumpDone
	s.pumpDone = nil
}

// BoundID returns the currently bound investigation ID, or empty.
func (s *SessionManager) BoundID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundID
}

// SetConnected records push channel health, reported by the realtime client.
func (s *SessionManager) SetConnected(connected bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if connected != s.connected {
		s.logger.Debug("push channel connectivity changed", slog.Bool("connected", connected))
	}
	s.connected = connected
	s.lastError = err
}

// Status returns the push channel health for consumer display.
func (s *SessionManager) Status() ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ConnectionStatus{Connected: s.connected, LastError: s.lastError}
}
