package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"driftpad/internal/note"
	"driftpad/internal/protocol"
)

// ErrDisconnected is returned by Send while no connection is up.
var ErrDisconnected = errors.New("not connected")

const (
	// Reconnection policy: a connection cycle gives up after this many
	// consecutive failed dials, spaced by reconnectDelay.
	defaultReconnectAttempts = 5
	defaultReconnectDelay    = time.Second
)

// Dialer owns the websocket connection lifecycle for one agent: dialing with
// retry, reading broadcast snapshots, and surfacing connected/disconnected
// transitions. It doubles as the agent's Transport.
type Dialer struct {
	url      string
	attempts int
	delay    time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewDialer prepares a dialer for a ws:// sync endpoint URL.
func NewDialer(url string) *Dialer {
	return &Dialer{
		url:      url,
		attempts: defaultReconnectAttempts,
		delay:    defaultReconnectDelay,
	}
}

// Send transmits the full note set over the current connection.
func (d *Dialer) Send(notes []note.Note) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return ErrDisconnected
	}
	return d.conn.WriteJSON(protocol.SyncNotes(notes))
}

// Run connects and keeps the agent synced until the context is cancelled or
// the retry budget is exhausted. Each established connection resets the
// failure count.
func (d *Dialer) Run(ctx context.Context, agent *Agent) error {
	failures := 0
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, d.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			slog.Warn("dial failed", "url", d.url, "attempt", failures, "err", err)
			if failures >= d.attempts {
				return fmt.Errorf("giving up after %d attempts: %w", failures, err)
			}
			if !sleep(ctx, d.delay) {
				return ctx.Err()
			}
			continue
		}

		failures = 0
		d.setConn(conn)
		agent.HandleConnect()

		d.readLoop(ctx, conn, agent)

		d.setConn(nil)
		agent.HandleDisconnect()
		_ = conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Info("connection lost, reconnecting", "url", d.url)
		if !sleep(ctx, d.delay) {
			return ctx.Err()
		}
	}
}

// readLoop delivers broadcast snapshots to the agent until the connection
// drops or the context ends.
func (d *Dialer) readLoop(ctx context.Context, conn *websocket.Conn, agent *Agent) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := protocol.Decode(raw)
		if err != nil {
			slog.Warn("rejected message from server", "err", err)
			continue
		}
		if env.Type != protocol.TypeServerUpdate {
			continue
		}
		agent.HandleSnapshot(env.Notes)
	}
}

func (d *Dialer) setConn(conn *websocket.Conn) {
	d.mu.Lock()
	d.conn = conn
	d.mu.Unlock()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
