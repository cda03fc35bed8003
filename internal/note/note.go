// Package note defines the note record and the merge rule that reconciles
// client batches against the authoritative set.
package note

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Note is the sole entity in the system. IDs are assigned by whichever actor
// creates the note and are never reused. Deletion is logical: IsDeleted marks
// a tombstone that stays in the authoritative set so its timestamp can keep
// participating in merges.
type Note struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	UpdatedAt int64  `json:"updatedAt"`
	IsDeleted bool   `json:"isDeleted"`
}

// Now returns the current time in milliseconds since the epoch, the unit
// UpdatedAt is expressed in.
func Now() int64 {
	return time.Now().UnixMilli()
}

// New returns a fresh note: random id, empty content, current timestamp.
func New() Note {
	return Note{ID: uuid.NewString(), UpdatedAt: Now()}
}

// Valid reports whether the record carries the required fields. Entries that
// fail this check are dropped at the boundary before they reach the merge.
func (n Note) Valid() bool {
	return n.ID != "" && n.UpdatedAt > 0
}

// Clean returns the valid entries of a batch and the number dropped.
func Clean(batch []Note) ([]Note, int) {
	valid := make([]Note, 0, len(batch))
	for _, n := range batch {
		if n.Valid() {
			valid = append(valid, n)
		}
	}
	return valid, len(batch) - len(valid)
}

// Index keys a slice of notes by id.
func Index(notes []Note) map[string]Note {
	indexed := make(map[string]Note, len(notes))
	for _, n := range notes {
		indexed[n.ID] = n
	}
	return indexed
}

// SortByID orders notes by id in place and returns the slice. Snapshots are
// sets; sorting gives broadcasts and tests a stable order.
func SortByID(notes []Note) []Note {
	sort.Slice(notes, func(i, j int) bool { return notes[i].ID < notes[j].ID })
	return notes
}

// FilterDeleted returns the user-facing view of a set: every note that is not
// a tombstone, in a fresh slice.
func FilterDeleted(notes []Note) []Note {
	visible := make([]Note, 0, len(notes))
	for _, n := range notes {
		if !n.IsDeleted {
			visible = append(visible, n)
		}
	}
	return visible
}
