package client

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftpad/internal/note"
)

type fakeTransport struct {
	sent [][]note.Note
	err  error
}

func (f *fakeTransport) Send(notes []note.Note) error {
	f.sent = append(f.sent, notes)
	return f.err
}

type fakeCache struct {
	saved   [][]note.Note
	loadFn  func() ([]note.Note, error)
	saveErr error
}

func (f *fakeCache) Load() ([]note.Note, error) {
	if f.loadFn != nil {
		return f.loadFn()
	}
	return nil, nil
}

func (f *fakeCache) Save(notes []note.Note) error {
	f.saved = append(f.saved, notes)
	return f.saveErr
}

func newTestAgent(t *testing.T) (*Agent, *fakeTransport, *fakeCache) {
	t.Helper()
	transport := &fakeTransport{}
	cache := &fakeCache{}
	return NewAgent(transport, cache), transport, cache
}

func TestNewAgentLoadsCache(t *testing.T) {
	cache := &fakeCache{loadFn: func() ([]note.Note, error) {
		return []note.Note{{ID: "a", Content: "saved", UpdatedAt: 100}}, nil
	}}

	agent := NewAgent(&fakeTransport{}, cache)

	notes := agent.Notes()
	require.Len(t, notes, 1)
	assert.Equal(t, "saved", notes[0].Content)
}

func TestNewAgentCacheFailureStartsEmpty(t *testing.T) {
	cache := &fakeCache{loadFn: func() ([]note.Note, error) {
		return nil, errors.New("corrupt blob")
	}}

	agent := NewAgent(&fakeTransport{}, cache)

	assert.Empty(t, agent.Notes())
}

func TestCreateOffline(t *testing.T) {
	agent, transport, cache := newTestAgent(t)

	created := agent.Create()

	assert.NotEmpty(t, created.ID)
	assert.Empty(t, created.Content)
	assert.False(t, created.IsDeleted)
	assert.Positive(t, created.UpdatedAt)

	require.Len(t, agent.Notes(), 1)
	require.Len(t, cache.saved, 1, "every mutation persists the cache")
	assert.Empty(t, transport.sent, "offline mutations must not transmit")
}

func TestMutationsTransmitFullCacheWhenConnected(t *testing.T) {
	agent, transport, _ := newTestAgent(t)
	agent.HandleConnect()

	first := agent.Create()
	second := agent.Create()
	require.NoError(t, agent.Update(first.ID, "edited"))

	require.Len(t, transport.sent, 3)
	last := transport.sent[2]
	require.Len(t, last, 2, "the entire cache is transmitted, not a diff")
	byID := note.Index(last)
	assert.Equal(t, "edited", byID[first.ID].Content)
	assert.Contains(t, byID, second.ID)
}

func TestUpdateRefreshesTimestamp(t *testing.T) {
	agent, _, _ := newTestAgent(t)
	clock := int64(1000)
	agent.now = func() int64 {
		clock += 1000
		return clock
	}

	created := agent.Create()
	require.NoError(t, agent.Update(created.ID, "newer"))

	notes := agent.Notes()
	require.Len(t, notes, 1)
	assert.Equal(t, "newer", notes[0].Content)
	assert.Greater(t, notes[0].UpdatedAt, created.UpdatedAt)
}

func TestUpdateUnknownID(t *testing.T) {
	agent, _, _ := newTestAgent(t)

	err := agent.Update("missing", "content")

	assert.ErrorIs(t, err, ErrNoteNotFound)
}

func TestDeleteKeepsTombstoneInCache(t *testing.T) {
	agent, transport, _ := newTestAgent(t)
	created := agent.Create()
	require.NoError(t, agent.Delete(created.ID))

	assert.Empty(t, agent.Notes(), "filtered view hides the tombstone")

	// The tombstone still rides along on the next flush so its timestamp
	// can participate in future merges.
	agent.HandleConnect()
	require.NotEmpty(t, transport.sent)
	flushed := transport.sent[len(transport.sent)-1]
	require.Len(t, flushed, 1)
	assert.True(t, flushed[0].IsDeleted)
	assert.Equal(t, created.ID, flushed[0].ID)
}

func TestHandleConnectFlushesNonEmptyCache(t *testing.T) {
	agent, transport, _ := newTestAgent(t)
	agent.Create()
	agent.Create()

	agent.HandleConnect()

	assert.True(t, agent.Connected())
	require.Len(t, transport.sent, 1)
	assert.Len(t, transport.sent[0], 2)
}

func TestHandleConnectEmptyCacheSendsNothing(t *testing.T) {
	agent, transport, _ := newTestAgent(t)

	agent.HandleConnect()

	assert.True(t, agent.Connected())
	assert.Empty(t, transport.sent)
}

func TestHandleDisconnectStopsTransmission(t *testing.T) {
	agent, transport, _ := newTestAgent(t)
	agent.HandleConnect()
	agent.HandleDisconnect()

	agent.Create()

	assert.False(t, agent.Connected())
	assert.Empty(t, transport.sent)
}

func TestHandleSnapshotReplacesCacheWholesale(t *testing.T) {
	agent, _, cache := newTestAgent(t)
	agent.Create() // local note that the authoritative set does not contain

	agent.HandleSnapshot([]note.Note{
		{ID: "s1", Content: "server", UpdatedAt: 500},
		{ID: "s2", Content: "gone", UpdatedAt: 600, IsDeleted: true},
	})

	notes := agent.Notes()
	require.Len(t, notes, 1, "local cache is replaced verbatim, no local merge")
	assert.Equal(t, "s1", notes[0].ID)
	require.NotEmpty(t, cache.saved)
	assert.Len(t, cache.saved[len(cache.saved)-1], 2, "persisted set keeps the tombstone")
}

func TestPersistFailureDoesNotLoseLocalEdit(t *testing.T) {
	transport := &fakeTransport{}
	cache := &fakeCache{saveErr: errors.New("disk full")}
	agent := NewAgent(transport, cache)

	created := agent.Create()

	require.Len(t, agent.Notes(), 1)
	assert.Equal(t, created.ID, agent.Notes()[0].ID)
}

func TestTransmitFailureKeepsCache(t *testing.T) {
	transport := &fakeTransport{err: errors.New("broken pipe")}
	agent := NewAgent(transport, &fakeCache{})
	agent.HandleConnect()

	agent.Create()

	require.Len(t, agent.Notes(), 1, "cache stays authoritative until the next successful sync")
}
