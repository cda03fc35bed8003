// Package client implements the device-side sync agent: a locally-owned note
// cache that is mutated immediately, persisted durably, and opportunistically
// pushed to the server in full whenever a connection is up.
package client

import (
	"errors"
	"log/slog"
	"sync"

	"driftpad/internal/note"
)

// ErrNoteNotFound is returned when an update or delete names an unknown id.
var ErrNoteNotFound = errors.New("note not found")

// Transport sends the full local note set to the server. Implementations are
// owned by the caller and injected at construction; the agent never dials or
// tears down connections itself.
type Transport interface {
	Send(notes []note.Note) error
}

// CacheStore is the local durable storage for the note cache: one serialized
// blob, read once at startup and written on every mutation.
type CacheStore interface {
	Load() ([]note.Note, error)
	Save(notes []note.Note) error
}

// Agent owns the user-visible note list on one device. Every local mutation
// lands in memory and in the durable cache before anything touches the
// network, so edits made offline survive restarts and flush on reconnect.
type Agent struct {
	transport Transport
	cache     CacheStore
	now       func() int64

	mu        sync.Mutex
	notes     []note.Note
	connected bool
}

// NewAgent loads the durable cache and returns a ready agent. A cache read
// or parse failure is treated as an empty cache, not a startup failure.
func NewAgent(transport Transport, cache CacheStore) *Agent {
	a := &Agent{transport: transport, cache: cache, now: note.Now}
	saved, err := cache.Load()
	if err != nil {
		slog.Warn("failed to load local cache, starting empty", "err", err)
		return a
	}
	a.notes = saved
	return a
}

// Create adds a fresh empty note and returns it.
func (a *Agent) Create() note.Note {
	a.mu.Lock()
	n := note.New()
	n.UpdatedAt = a.now()
	a.notes = append(a.notes, n)
	a.persistLocked()
	batch, connected := a.outboundLocked()
	a.mu.Unlock()

	if connected {
		a.transmit(batch)
	}
	return n
}

// Update replaces the content of the note with the given id.
func (a *Agent) Update(id, content string) error {
	return a.mutate(id, func(n *note.Note) {
		n.Content = content
	})
}

// Delete tombstones the note with the given id. The record stays in the
// cache so its timestamp keeps participating in merges; only the filtered
// view hides it.
func (a *Agent) Delete(id string) error {
	return a.mutate(id, func(n *note.Note) {
		n.IsDeleted = true
	})
}

func (a *Agent) mutate(id string, apply func(*note.Note)) error {
	a.mu.Lock()
	idx := -1
	for i := range a.notes {
		if a.notes[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		a.mu.Unlock()
		return ErrNoteNotFound
	}
	apply(&a.notes[idx])
	a.notes[idx].UpdatedAt = a.now()
	a.persistLocked()
	batch, connected := a.outboundLocked()
	a.mu.Unlock()

	if connected {
		a.transmit(batch)
	}
	return nil
}

// Notes returns the user-facing view: a copy of the cache without tombstones.
func (a *Agent) Notes() []note.Note {
	a.mu.Lock()
	defer a.mu.Unlock()
	return note.FilterDeleted(a.notes)
}

// Connected reports the binary connectivity indicator surfaced to the user.
func (a *Agent) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// HandleConnect marks the agent online and flushes the full local cache if
// it is non-empty, reconciling edits made entirely offline.
func (a *Agent) HandleConnect() {
	a.mu.Lock()
	a.connected = true
	batch, _ := a.outboundLocked()
	a.mu.Unlock()

	if len(batch) > 0 {
		a.transmit(batch)
	}
}

// HandleDisconnect marks the agent offline. Local edits keep accumulating in
// the durable cache until the next connection.
func (a *Agent) HandleDisconnect() {
	a.mu.Lock()
	a.connected = false
	a.mu.Unlock()
}

// HandleSnapshot replaces the entire local cache with the server's merged
// set verbatim and persists it. The server is the single merge authority;
// the client never merges on receipt.
func (a *Agent) HandleSnapshot(notes []note.Note) {
	a.mu.Lock()
	a.notes = append([]note.Note(nil), notes...)
	a.persistLocked()
	a.mu.Unlock()
}

func (a *Agent) persistLocked() {
	if err := a.cache.Save(a.notes); err != nil {
		slog.Warn("failed to persist local cache", "err", err)
	}
}

// outboundLocked snapshots the full cache, tombstones included. The whole
// set is transmitted on every sync-triggering action, keeping the protocol
// stateless and any batch safely re-mergeable.
func (a *Agent) outboundLocked() ([]note.Note, bool) {
	return append([]note.Note(nil), a.notes...), a.connected
}

func (a *Agent) transmit(batch []note.Note) {
	if err := a.transport.Send(batch); err != nil {
		slog.Warn("failed to transmit notes", "err", err)
	}
}
