package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/charmsmith/pkg/types"
)

func TestPersistHistoryRoundTrip(t *testing.T) {
	b, _ := attachTemp(t)
	want := sampleHistory()

	require.NoError(t, b.PersistHistory(want))

	got, err := b.LoadPersistedHistory()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)
}

func TestPersistHistorySurvivesReattach(t *testing.T) {
	b, dir := attachTemp(t)
	want := sampleHistory()
	require.NoError(t, b.PersistHistory(want))
	require.NoError(t, b.Detach())

	// The database is rebuilt from history.jsonl on attach.
	b2 := NewBackend()
	require.NoError(t, b2.Attach(types.StoreConfig{Backend: types.BackendSQLite, DataDir: dir}))
	defer b2.Detach()

	got, err := b2.LoadPersistedHistory()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	n, err := b2.SnapshotCount()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPersistHistoryReplacesPrevious(t *testing.T) {
	b, dir := attachTemp(t)
	require.NoError(t, b.PersistHistory(sampleHistory()))

	shorter := types.HistoryExport{
		History:      []types.Snapshot{{ID: "only", Timestamp: 5, Charms: []types.CharmState{}}},
		CurrentIndex: 0,
	}
	require.NoError(t, b.PersistHistory(shorter))

	n, err := b.SnapshotCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err := readJSONL(filepath.Join(dir, historyJSONL))
	require.NoError(t, err)
	assert.Len(t, records, 1)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp", "temp files are renamed or removed")
	}
}

func TestLoadPersistedHistoryWithoutCursor(t *testing.T) {
	b, dir := attachTemp(t)
	require.NoError(t, b.PersistHistory(sampleHistory()))
	require.NoError(t, os.Remove(filepath.Join(dir, cursorJSON)))

	got, err := b.LoadPersistedHistory()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.CurrentIndex, "missing cursor selects the newest entry")
}

func TestLoadPersistedHistoryCorruptCursor(t *testing.T) {
	b, dir := attachTemp(t)
	require.NoError(t, b.PersistHistory(sampleHistory()))
	require.NoError(t, os.WriteFile(filepath.Join(dir, cursorJSON), []byte("{oops"), 0o644))

	got, err := b.LoadPersistedHistory()
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentIndex)
}

func TestMilestones(t *testing.T) {
	b, _ := attachTemp(t)
	require.NoError(t, b.PersistHistory(sampleHistory()))

	got, err := b.Milestones()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s2", got[0].ID)
	assert.Equal(t, "first charm", got[0].Milestone)
	assert.Equal(t, "Moon", got[0].Charms[0].Metadata["title"])
}

func TestCharmTrail(t *testing.T) {
	b, _ := attachTemp(t)
	h := sampleHistory()
	h.History = append(h.History, types.Snapshot{ID: "s4", Timestamp: 4000, Charms: []types.CharmState{
		{ID: "moon", X: 300, Y: 120, Width: 40, Height: 40},
	}})
	require.NoError(t, b.PersistHistory(h))

	trail, err := b.CharmTrail("moon")
	require.NoError(t, err)
	assert.Equal(t, []types.Point{{X: 100, Y: 120}, {X: 300, Y: 120}}, trail)

	trail, err = b.CharmTrail("nobody")
	require.NoError(t, err)
	assert.Empty(t, trail)
}

func TestPersistHistoryRejectsRepeatedIDs(t *testing.T) {
	b, dir := attachTemp(t)
	require.NoError(t, b.PersistHistory(sampleHistory()))

	tests := []struct {
		name    string
		history []types.Snapshot
		wantErr error
	}{
		{
			name: "repeated id",
			history: []types.Snapshot{
				{ID: "s1", Charms: []types.CharmState{{ID: "m", X: 0}}},
				{ID: "s1", Charms: []types.CharmState{{ID: "m", X: 1}}},
				{ID: "s3", Charms: []types.CharmState{{ID: "m", X: 9}}},
			},
			wantErr: types.ErrDuplicateSnapshotID,
		},
		{
			name:    "missing id",
			history: []types.Snapshot{{Charms: []types.CharmState{}}},
			wantErr: types.ErrInvalidSnapshotID,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.PersistHistory(types.HistoryExport{History: tt.history, CurrentIndex: 1})
			assert.ErrorIs(t, err, tt.wantErr)

			// Nothing was written: the previous log is intact on disk and in the index.
			records, err := readJSONL(filepath.Join(dir, historyJSONL))
			require.NoError(t, err)
			assert.Len(t, records, 3)
			got, err := b.LoadPersistedHistory()
			require.NoError(t, err)
			assert.Equal(t, sampleHistory(), *got)
		})
	}
}

func TestInsertSnapshotsReportsConstraintErrors(t *testing.T) {
	b, _ := attachTemp(t)
	history := []types.Snapshot{
		{ID: "s1", Charms: []types.CharmState{}},
		{ID: "s1", Charms: []types.CharmState{}},
	}
	err := replaceSnapshots(b.db, history)
	assert.Error(t, err)

	n, err := b.SnapshotCount()
	require.NoError(t, err)
	assert.Zero(t, n, "failed replace rolls back")
}
