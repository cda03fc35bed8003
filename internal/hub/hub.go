// Package hub is the server side of the sync protocol: one session per live
// websocket connection, a shared registry for fan-out, and the merge round
// that turns an incoming batch into a broadcast snapshot.
package hub

import (
	"context"
	"log/slog"
	"sync"

	"driftpad/internal/note"
	"driftpad/internal/protocol"
	"driftpad/internal/store"
)

type Hub struct {
	store store.Store

	mu       sync.Mutex
	sessions map[*Session]struct{}
}

func New(st store.Store) *Hub {
	return &Hub{
		store:    st,
		sessions: make(map[*Session]struct{}),
	}
}

// HandleBatch runs one merge round for a batch received from one client:
// read the full set, merge, persist the winners, re-read, broadcast. An
// empty batch (or one emptied by validation) short-circuits before any
// store I/O. A persistence failure aborts the round before the broadcast,
// leaving every connected cache at its pre-batch state.
func (h *Hub) HandleBatch(ctx context.Context, clientID string, batch []note.Note) {
	batch, dropped := note.Clean(batch)
	if dropped > 0 {
		slog.Warn("dropped malformed batch entries", "client", clientID, "dropped", dropped)
	}
	if len(batch) == 0 {
		return
	}

	current, err := h.store.GetAll(ctx)
	if err != nil {
		slog.Error("failed to read notes", "client", clientID, "err", err)
		return
	}

	merged := note.Merge(note.Index(current), batch)
	if err := h.store.UpsertBatch(ctx, note.Winners(merged, batch)); err != nil {
		slog.Error("failed to persist batch", "client", clientID, "err", err)
		return
	}

	snapshot, err := h.store.GetAll(ctx)
	if err != nil {
		slog.Error("failed to re-read notes for broadcast", "client", clientID, "err", err)
		return
	}

	h.broadcast(protocol.ServerUpdate(snapshot))
	slog.Info("merged batch", "client", clientID, "batch", len(batch), "notes", len(snapshot))
}

func (h *Hub) register(s *Session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
}

// unregister removes the session and closes its outbound channel. Sends into
// the channel only ever happen under h.mu while the session is still in the
// map, so closing after removal is safe.
func (h *Hub) unregister(s *Session) {
	h.mu.Lock()
	_, ok := h.sessions[s]
	delete(h.sessions, s)
	h.mu.Unlock()
	if ok {
		close(s.send)
		_ = s.conn.Close()
		slog.Info("session closed", "client", s.id)
	}
}

// broadcast queues the envelope on every connected session, the sender
// included. A session whose outbound buffer is full is dropped rather than
// allowed to stall the rest.
func (h *Hub) broadcast(env protocol.Envelope) {
	h.mu.Lock()
	var stale []*Session
	for s := range h.sessions {
		select {
		case s.send <- env:
		default:
			delete(h.sessions, s)
			stale = append(stale, s)
		}
	}
	h.mu.Unlock()

	for _, s := range stale {
		close(s.send)
		_ = s.conn.Close()
		slog.Warn("dropped slow session", "client", s.id)
	}
}
