package note

// Merge reconciles an incoming batch against the current authoritative set
// and returns the new set. Last write wins: an incoming note replaces the
// stored one only when its UpdatedAt is strictly greater, so the stored value
// wins ties. Replacement is field-atomic — content, tombstone flag and
// timestamp move together, never mixed across versions. Notes absent from
// the batch pass through unchanged.
//
// Merge is pure: it never mutates its inputs and performs no I/O. Malformed
// entries are rejected at the boundary (see Clean), not here.
func Merge(current map[string]Note, batch []Note) map[string]Note {
	merged := make(map[string]Note, len(current)+len(batch))
	for id, n := range current {
		merged[id] = n
	}
	for _, incoming := range batch {
		existing, ok := merged[incoming.ID]
		if !ok || incoming.UpdatedAt > existing.UpdatedAt {
			merged[incoming.ID] = incoming
		}
	}
	return merged
}

// Winners returns, for each id in the batch, the version that survived the
// merge. This is exactly the subset of the merged set that can differ from
// the store, so it is what gets written back.
func Winners(merged map[string]Note, batch []Note) []Note {
	seen := make(map[string]struct{}, len(batch))
	winners := make([]Note, 0, len(batch))
	for _, incoming := range batch {
		if _, dup := seen[incoming.ID]; dup {
			continue
		}
		seen[incoming.ID] = struct{}{}
		winners = append(winners, merged[incoming.ID])
	}
	return winners
}
