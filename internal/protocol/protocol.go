// Package protocol defines the wire contract between client and server: two
// message shapes, each carrying a full note set.
package protocol

import (
	"encoding/json"
	"fmt"

	"driftpad/internal/note"
)

const (
	// TypeSyncNotes is the client-to-server message: the client's entire
	// local cache, sent on every sync-triggering action and on reconnect.
	TypeSyncNotes = "sync_notes"
	// TypeServerUpdate is the server-to-client message: the authoritative
	// merged snapshot, sent to one session on connect and broadcast to all
	// sessions after every successful merge round.
	TypeServerUpdate = "server_update"
)

// Envelope is one websocket message in either direction.
type Envelope struct {
	Type  string      `json:"type"`
	Notes []note.Note `json:"notes"`
}

// SyncNotes wraps a client batch.
func SyncNotes(notes []note.Note) Envelope {
	return Envelope{Type: TypeSyncNotes, Notes: notes}
}

// ServerUpdate wraps a snapshot.
func ServerUpdate(notes []note.Note) Envelope {
	return Envelope{Type: TypeServerUpdate, Notes: notes}
}

// Decode parses a raw message and rejects unknown message types.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Type {
	case TypeSyncNotes, TypeServerUpdate:
		return env, nil
	default:
		return Envelope{}, fmt.Errorf("unknown message type %q", env.Type)
	}
}
