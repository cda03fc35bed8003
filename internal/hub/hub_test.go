package hub

import (
	"context"
	"errors"
	"sync"
	"testing"

	"driftpad/internal/note"
)

type fakeStore struct {
	mu       sync.Mutex
	getAllFn func(context.Context) ([]note.Note, error)
	upsertFn func(context.Context, []note.Note) error

	getAllCalls int
	upserts     [][]note.Note
}

func (f *fakeStore) GetAll(ctx context.Context) ([]note.Note, error) {
	f.mu.Lock()
	f.getAllCalls++
	f.mu.Unlock()
	if f.getAllFn != nil {
		return f.getAllFn(ctx)
	}
	return nil, nil
}

func (f *fakeStore) UpsertBatch(ctx context.Context, notes []note.Note) error {
	f.mu.Lock()
	f.upserts = append(f.upserts, notes)
	f.mu.Unlock()
	if f.upsertFn != nil {
		return f.upsertFn(ctx, notes)
	}
	return nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close() error               { return nil }

func TestHandleBatchEmptyBatchIsNoOp(t *testing.T) {
	fake := &fakeStore{}
	h := New(fake)

	h.HandleBatch(context.Background(), "client-1", nil)
	h.HandleBatch(context.Background(), "client-1", []note.Note{})

	if fake.getAllCalls != 0 {
		t.Errorf("empty batch must not read the store, got %d reads", fake.getAllCalls)
	}
	if len(fake.upserts) != 0 {
		t.Errorf("empty batch must not write the store, got %d writes", len(fake.upserts))
	}
}

func TestHandleBatchDropsMalformedEntries(t *testing.T) {
	fake := &fakeStore{}
	h := New(fake)

	h.HandleBatch(context.Background(), "client-1", []note.Note{
		{Content: "no id", UpdatedAt: 100},
		{ID: "ok", Content: "kept", UpdatedAt: 100},
		{ID: "no-timestamp"},
	})

	if len(fake.upserts) != 1 {
		t.Fatalf("expected one write, got %d", len(fake.upserts))
	}
	if len(fake.upserts[0]) != 1 || fake.upserts[0][0].ID != "ok" {
		t.Errorf("expected only the valid entry to be written, got %+v", fake.upserts[0])
	}
}

func TestHandleBatchAllEntriesMalformedIsNoOp(t *testing.T) {
	fake := &fakeStore{}
	h := New(fake)

	h.HandleBatch(context.Background(), "client-1", []note.Note{{Content: "no id"}})

	if fake.getAllCalls != 0 || len(fake.upserts) != 0 {
		t.Error("a fully-rejected batch must behave like an empty one")
	}
}

func TestHandleBatchPersistsMergeWinners(t *testing.T) {
	fake := &fakeStore{
		getAllFn: func(context.Context) ([]note.Note, error) {
			return []note.Note{{ID: "a", Content: "hello", UpdatedAt: 100}}, nil
		},
	}
	h := New(fake)

	h.HandleBatch(context.Background(), "client-1", []note.Note{
		{ID: "a", Content: "stale", UpdatedAt: 50},
		{ID: "b", Content: "new", UpdatedAt: 200},
	})

	if len(fake.upserts) != 1 {
		t.Fatalf("expected one write, got %d", len(fake.upserts))
	}
	written := note.Index(fake.upserts[0])
	if written["a"].Content != "hello" {
		t.Errorf("stale edit of a must lose the merge, got %+v", written["a"])
	}
	if written["b"].Content != "new" {
		t.Errorf("new note must be inserted, got %+v", written["b"])
	}
}

func TestHandleBatchPersistFailureSkipsBroadcast(t *testing.T) {
	fake := &fakeStore{
		upsertFn: func(context.Context, []note.Note) error {
			return errors.New("store unavailable")
		},
	}
	h := New(fake)

	h.HandleBatch(context.Background(), "client-1", []note.Note{{ID: "a", UpdatedAt: 100}})

	// One read before the failed write, none after: the broadcast snapshot
	// is never fetched.
	if fake.getAllCalls != 1 {
		t.Errorf("expected exactly one store read, got %d", fake.getAllCalls)
	}
}

func TestHandleBatchRereadFailureSkipsBroadcast(t *testing.T) {
	calls := 0
	fake := &fakeStore{}
	fake.getAllFn = func(context.Context) ([]note.Note, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("store unavailable")
		}
		return nil, nil
	}
	h := New(fake)

	// Must not panic and must not broadcast; with no sessions registered the
	// only observable effect is that the write still happened.
	h.HandleBatch(context.Background(), "client-1", []note.Note{{ID: "a", UpdatedAt: 100}})

	if len(fake.upserts) != 1 {
		t.Errorf("expected the write to happen before the failed re-read, got %d writes", len(fake.upserts))
	}
}
