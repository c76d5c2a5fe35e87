package logstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renato0307/maestro/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "logs"))
	require.NoError(t, err)
	return store
}

func entry(origin domain.Origin, payload string) domain.LogEntry {
	return domain.LogEntry{Origin: origin, Payload: json.RawMessage(payload)}
}

func TestAppendAndRead_PreservesOrder(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Append("session-1", entry(domain.OriginHuman, `{"type":"prompt","text":"do it"}`)))
	require.NoError(t, store.Append("session-1", entry(domain.OriginAgent, `{"type":"assistant","n":1}`)))
	require.NoError(t, store.Append("session-1", entry(domain.OriginAgent, `{"type":"assistant","n":2}`)))
	require.NoError(t, store.Append("session-1", entry(domain.OriginSystem, `{"type":"error","message":"boom"}`)))

	entries, err := store.Read("session-1")

	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, domain.OriginHuman, entries[0].Origin)
	assert.Equal(t, domain.OriginAgent, entries[1].Origin)
	assert.JSONEq(t, `{"type":"assistant","n":2}`, string(entries[2].Payload))
	assert.Equal(t, domain.OriginSystem, entries[3].Origin)
	assert.False(t, entries[0].Timestamp.IsZero(), "append should stamp entries")
}

func TestRead_MissingFileIsEmptyHistory(t *testing.T) {
	store := newTestStore(t)

	entries, err := store.Read("never-written")

	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRead_SessionsAreIsolated(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Append("session-a", entry(domain.OriginAgent, `{"for":"a"}`)))
	require.NoError(t, store.Append("session-b", entry(domain.OriginAgent, `{"for":"b"}`)))

	a, err := store.Read("session-a")
	require.NoError(t, err)
	b, err := store.Read("session-b")
	require.NoError(t, err)

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.JSONEq(t, `{"for":"a"}`, string(a[0].Payload))
	assert.JSONEq(t, `{"for":"b"}`, string(b[0].Payload))
}

func TestRead_ToleratesPartialTrailingLine(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Append("session-1", entry(domain.OriginAgent, `{"ok":true}`)))

	// Simulate an append cut off mid-write: no trailing newline
	file, err := os.OpenFile(store.Path("session-1"), os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = file.WriteString(`{"origin":"agent","payload":{"trunc`)
	require.NoError(t, err)
	require.NoError(t, file.Close())

	entries, err := store.Read("session-1")

	require.NoError(t, err)
	require.Len(t, entries, 1, "complete entries before the partial tail survive")
	assert.FileExists(t, store.Path("session-1"), "a partial tail is not corruption")
}

func TestRead_QuarantinesCorruptBody(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Append("session-1", entry(domain.OriginAgent, `{"ok":true}`)))

	// Corrupt a line in the middle of the file, followed by a valid one
	file, err := os.OpenFile(store.Path("session-1"), os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = file.WriteString("this is not json\n")
	require.NoError(t, err)
	require.NoError(t, file.Close())
	require.NoError(t, store.Append("session-1", entry(domain.OriginAgent, `{"ok":"again"}`)))

	entries, err := store.Read("session-1")

	require.NoError(t, err, "corruption must not fail history load")
	assert.Empty(t, entries, "quarantined session reads as empty history")
	assert.NoFileExists(t, store.Path("session-1"))

	matches, err := filepath.Glob(store.Path("session-1") + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1, "corrupt file is moved aside, not discarded")
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Append("session-1", entry(domain.OriginAgent, `{}`)))

	require.NoError(t, store.Delete("session-1"))

	assert.NoFileExists(t, store.Path("session-1"))
	assert.NoError(t, store.Delete("session-1"), "deleting a missing log is not an error")
}

func TestPath(t *testing.T) {
	store := newTestStore(t)

	assert.Equal(t, "session-1.jsonl", filepath.Base(store.Path("session-1")))
}
