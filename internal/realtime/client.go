package realtime

import (
	"context"
	"fmt"
	"github.com/gorilla/websocket"
	"github.com/stripesight/stripesight/internal/errors"
	"github.com/stripesight/stripesight/internal/investigation"
	"log/slog"
	"strings"
	"time"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10

	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// EventSink receives decoded push events, typically the event broker.
type EventSink interface {
	Publish(investigationID string, event investigation.PushEvent)
}

// StatusFunc is notified of push channel connectivity transitions.
type StatusFunc func(connected bool, err error)

// Client maintains the per-investigation websocket subscription. A dropped
// connection is non-fatal: the client reconnects with capped backoff while
// polling carries the investigation in the meantime.
type Client struct {
	baseURL string
	dialer  *websocket.Dialer
	sink    EventSink
	status  StatusFunc
	logger  *slog.Logger
}

// New creates a realtime client. baseURL is the websocket origin, e.g.
// "ws://localhost:8080". status may be nil.
func New(baseURL string, sink EventSink, status StatusFunc, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		dialer:  websocket.DefaultDialer,
		sink:    sink,
		status:  status,
		logger:  logger.With("source", "RealtimeClient"),
	}
}

// Run subscribes to the investigation's event stream and publishes inbound
// events until ctx is cancelled, reconnecting on failure.
func (c *Client) Run(ctx context.Context, investigationID string) {
	delay := reconnectBaseDelay
	for {
		connectedAt := time.Now()
		err := c.connectAndRead(ctx, investigationID)
		if ctx.Err() != nil {
			c.setStatus(false, nil)
			return
		}

		c.setStatus(false, err)
		c.logger.Debug("push channel disconnected",
			slog.String("investigation_id", investigationID),
			errors.SlogError(err))

		// A connection that held for a while earns a fresh backoff.
		if time.Since(connectedAt) > reconnectMaxDelay {
			delay = reconnectBaseDelay
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, reconnectMaxDelay)
	}
}

func (c *Client) connectAndRead(ctx context.Context, investigationID string) error {
	url := fmt.Sprintf("%s/api/investigations/%s/events", c.baseURL, investigationID)
	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return errors.Wrap(err, "dial push channel", slog.String("url", url))
	}
	defer func() {
		_ = conn.Close()
	}()

	c.setStatus(true, nil)

	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Closing the connection is the only way to unblock a pending read when
	// the context is cancelled.
	go func() {
		<-pumpCtx.Done()
		_ = conn.Close()
	}()

	if err = conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return errors.Wrap(err, "set read deadline")
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		ticker := time.NewTicker(pingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-pumpCtx.Done():
				return
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		var event investigation.PushEvent
		if err = conn.ReadJSON(&event); err != nil {
			return errors.Wrap(err, "read push event",
				slog.String("investigation_id", investigationID))
		}
		if err = conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return errors.Wrap(err, "set read deadline")
		}

		// Events are implicitly tagged by the per-investigation endpoint; make
		// the tag explicit for the engine's stale-delivery guard.
		if event.Data.InvestigationID == "" {
			event.Data.InvestigationID = investigationID
		}
		c.sink.Publish(investigationID, event)
	}
}

func (c *Client) setStatus(connected bool, err error) {
	if c.status != nil {
		c.status(connected, err)
	}
}
