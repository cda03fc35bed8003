// Package store provides the durable note record store. Two backends exist,
// Postgres and Redis; both expose the same interface and both apply the
// last-write-wins guard inside their own atomic write primitive, so
// concurrent batches from different sessions cannot lose updates.
package store

import (
	"context"

	"driftpad/internal/note"
)

// Store is the durable keyed collection of note records.
type Store interface {
	// GetAll reads the full current set, tombstones included.
	GetAll(ctx context.Context) ([]note.Note, error)
	// UpsertBatch writes each note keyed by id. A write only lands when the
	// incoming UpdatedAt is strictly greater than the stored one; the stored
	// record wins ties. Each note's write is atomic on its own.
	UpsertBatch(ctx context.Context, notes []note.Note) error
	// Ping reports backend reachability.
	Ping(ctx context.Context) error
	Close() error
}
