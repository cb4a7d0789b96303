package realtime_test

import (
	"context"
	"github.com/gorilla/websocket"
	"github.com/stripesight/stripesight/internal/investigation"
	"github.com/stripesight/stripesight/internal/realtime"
	"github.com/stripesight/stripesight/internal/testhelpers"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []investigation.PushEvent
	ids    []string
}

func (s *recordingSink) Publish(investigationID string, event investigation.PushEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, investigationID)
	s.events = append(s.events, event)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *recordingSink) event(i int) investigation.PushEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[i]
}

type statusRecorder struct {
	mu          sync.Mutex
	transitions []bool
}

func (r *statusRecorder) record(connected bool, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, connected)
}

func (r *statusRecorder) last() (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.transitions) == 0 {
		return false, false
	}
	return r.transitions[len(r.transitions)-1], true
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func newEventServer(t *testing.T, events []investigation.PushEvent) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/investigations/inv-1/events", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer func() {
			_ = conn.Close()
		}()
		for _, ev := range events {
			require.NoError(t, conn.WriteJSON(ev))
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestClient_PublishesInboundEvents(t *testing.T) {
	server := newEventServer(t, []investigation.PushEvent{
		{
			Event: investigation.EventPhaseStarted,
			Data:  investigation.EventData{Phase: "upload_and_parse"},
		},
		{
			Event: investigation.EventMatchFound,
			Data:  investigation.EventData{InvestigationID: "inv-1", Model: "wildlife_tools"},
		},
	})

	sink := &recordingSink{}
	status := &statusRecorder{}
	client := realtime.New(wsURL(server), sink, status.record, testhelpers.NewLogger(io.Discard))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		client.Run(ctx, "inv-1")
	}()

	require.Eventually(t, func() bool {
		return sink.count() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	first := sink.event(0)
	require.Equal(t, investigation.EventPhaseStarted, first.Event)
	// Events without an explicit tag are stamped with the subscription's ID.
	require.Equal(t, "inv-1", first.Data.InvestigationID)

	second := sink.event(1)
	require.Equal(t, investigation.EventMatchFound, second.Event)
	require.Equal(t, "wildlife_tools", second.Data.Model)

	connected, ok := status.last()
	require.True(t, ok)
	require.True(t, connected)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop after context cancellation")
	}

	connected, _ = status.last()
	require.False(t, connected, "cancellation must leave the channel reported disconnected")
}

func TestClient_ReconnectsAfterServerDrop(t *testing.T) {
	var (
		mu          sync.Mutex
		connections int
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		mu.Lock()
		connections++
		n := connections
		mu.Unlock()

		if n == 1 {
			// Drop the first connection immediately to force a reconnect.
			_ = conn.Close()
			return
		}
		defer func() {
			_ = conn.Close()
		}()
		require.NoError(t, conn.WriteJSON(investigation.PushEvent{
			Event: investigation.EventPhaseStarted,
			Data:  investigation.EventData{Phase: "tiger_detection"},
		}))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	sink := &recordingSink{}
	client := realtime.New(wsURL(server), sink, nil, testhelpers.NewLogger(io.Discard))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan struct{})
	go func() {
		defer close(done)
		client.Run(ctx, "inv-1")
	}()

	require.Eventually(t, func() bool {
		return sink.count() >= 1
	}, 5*time.Second, 20*time.Millisecond)
	require.Equal(t, investigation.EventPhaseStarted, sink.event(0).Event)

	cancel()
	<-done
}
