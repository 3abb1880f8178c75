package composer

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/charmsmith/internal/sqlite"
	"github.com/mesh-intelligence/charmsmith/pkg/types"
)

// memPersister keeps the last persisted log in memory.
type memPersister struct {
	saved   *types.HistoryExport
	calls   int
	failing error
}

func (m *memPersister) LoadPersistedHistory() (*types.HistoryExport, error) {
	if m.failing != nil {
		return nil, m.failing
	}
	return m.saved, nil
}

func (m *memPersister) PersistHistory(data types.HistoryExport) error {
	if m.failing != nil {
		return m.failing
	}
	m.calls++
	m.saved = &data
	return nil
}

func counter(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func testConfig() types.Config {
	cfg := types.DefaultConfig()
	cfg.BaseDesign = &types.BaseDesign{
		ID:     "necklace",
		Bounds: types.Rect{X: 200, Y: 150, Width: 600, Height: 450},
		Scale:  1,
		Zones: []types.ZoneSpec{
			{ID: "left", OffsetX: 100, OffsetY: 200, Radius: 20},
			{ID: "right", OffsetX: 500, OffsetY: 200, Radius: 20},
		},
	}
	return cfg
}

func newTestSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	base := []Option{WithCharmIDs(counter("charm")), WithSnapshotIDs(counter("snap"))}
	s, err := New(testConfig(), append(base, opts...)...)
	require.NoError(t, err)
	return s
}

func square(side float64) types.CharmSpec {
	return types.CharmSpec{Width: side, Height: side}
}

func positions(s *Session) map[string]types.Point {
	out := make(map[string]types.Point)
	for _, c := range s.CharmData() {
		out[c.ID] = c.Position
	}
	return out
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.MaxHistorySize = 0
	_, err := New(cfg)
	assert.ErrorIs(t, err, types.ErrHistorySizeInvalid)
}

func TestNewRecordsEmptyComposition(t *testing.T) {
	s := newTestSession(t)
	info := s.HistoryInfo()
	assert.Equal(t, 1, info.Size)
	assert.Equal(t, 0, info.CurrentIndex)
	assert.False(t, s.CanUndo())
	assert.Empty(t, s.CharmData())
}

func TestPlaceUndoRedo(t *testing.T) {
	s := newTestSession(t)

	a, err := s.Place(square(50), types.Point{X: 500, Y: 375})
	require.NoError(t, err)
	_, err = s.Place(square(50), types.Point{X: 400, Y: 250})
	require.NoError(t, err)
	after := positions(s)
	require.Len(t, after, 2)

	ok, err := s.Undo()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[string]types.Point{a.ID: a.Position}, positions(s))

	ok, err = s.Redo()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, after, positions(s))

	ok, err = s.Redo()
	require.NoError(t, err)
	assert.False(t, ok, "nothing to redo")
}

func TestUndoToEmpty(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Place(square(50), types.Point{X: 500, Y: 375})
	require.NoError(t, err)

	ok, err := s.Undo()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, s.CharmData())

	ok, err = s.Undo()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPlaceErrorRecordsNothing(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Place(types.CharmSpec{}, types.Point{X: 500, Y: 375})
	assert.ErrorIs(t, err, types.ErrInvalidCharmSpec)
	assert.Equal(t, 1, s.HistoryInfo().Size)
}

func TestMoveAndRemove(t *testing.T) {
	s := newTestSession(t)
	c, err := s.Place(square(50), types.Point{X: 500, Y: 375})
	require.NoError(t, err)

	moved, err := s.Move(c.ID, types.Point{X: 300, Y: 300})
	require.NoError(t, err)
	assert.Equal(t, types.Point{X: 300, Y: 300}, moved.Position)

	_, err = s.Move("ghost", types.Point{})
	assert.ErrorIs(t, err, types.ErrNotFound)

	removed, err := s.Remove("ghost")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 3, s.HistoryInfo().Size)

	removed, err = s.Remove(c.ID)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, s.CharmData())
	assert.Equal(t, 4, s.HistoryInfo().Size)
}

func TestClearAll(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Place(square(50), types.Point{X: 500, Y: 375})
	require.NoError(t, err)

	require.NoError(t, s.ClearAll())
	assert.Empty(t, s.CharmData())

	ok, err := s.Undo()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, s.CharmData(), 1)
}

func TestSnapToAttachmentZone(t *testing.T) {
	s := newTestSession(t)
	c, err := s.Place(square(50), types.Point{X: 280, Y: 330})
	require.NoError(t, err)

	snapped, ok, err := s.SnapToAttachmentZone(c.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.Point{X: 275, Y: 325}, snapped.Position)
	assert.Equal(t, 3, s.HistoryInfo().Size)

	z, found := s.FindNearestAttachmentZone(types.Point{X: 300, Y: 350})
	require.True(t, found)
	assert.Equal(t, "right", z.ID, "occupied zones are skipped")

	far, err := s.Place(square(50), types.Point{X: 500, Y: 200})
	require.NoError(t, err)
	_, ok, err = s.SnapToAttachmentZone(far.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 4, s.HistoryInfo().Size, "a failed snap records nothing")

	_, _, err = s.SnapToAttachmentZone("ghost")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestUndoRestoresZoneOccupancy(t *testing.T) {
	s := newTestSession(t)
	c, err := s.Place(square(50), types.Point{X: 280, Y: 330})
	require.NoError(t, err)
	_, ok, err := s.SnapToAttachmentZone(c.ID)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.Move(c.ID, types.Point{X: 500, Y: 250})
	require.NoError(t, err)
	z, _ := s.FindNearestAttachmentZone(types.Point{X: 300, Y: 350})
	assert.Equal(t, "left", z.ID, "moving releases the zone")

	_, err = s.Undo()
	require.NoError(t, err)
	z, _ = s.FindNearestAttachmentZone(types.Point{X: 300, Y: 350})
	assert.Equal(t, "right", z.ID, "undo reclaims the zone")
}

func TestScaleBaseDesign(t *testing.T) {
	s := newTestSession(t)
	c, err := s.Place(square(50), types.Point{X: 280, Y: 330})
	require.NoError(t, err)
	_, _, err = s.SnapToAttachmentZone(c.ID)
	require.NoError(t, err)

	ok, err := s.ScaleBaseDesign(0.5)
	require.NoError(t, err)
	require.True(t, ok)

	got, _ := s.Get(c.ID)
	// left zone moves to (200+100*0.5, 150+200*0.5) = (250, 250).
	assert.Equal(t, types.Point{X: 225, Y: 225}, got.Position)

	ok, err = s.ScaleBaseDesign(0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadBaseDesign(t *testing.T) {
	s, err := New(types.DefaultConfig(), WithCharmIDs(counter("charm")))
	require.NoError(t, err)
	_, ok := s.BaseDesign()
	assert.False(t, ok)
	assert.Empty(t, s.Zones())

	c, err := s.Place(square(50), types.Point{X: 375, Y: 275})
	require.NoError(t, err)
	size := s.HistoryInfo().Size

	s.LoadBaseDesign(types.BaseDesign{
		ID:     "bangle",
		Bounds: types.Rect{X: 300, Y: 200, Width: 400, Height: 300},
		Zones:  []types.ZoneSpec{{ID: "top", OffsetX: 100, OffsetY: 100, Radius: 15}},
	})

	d, ok := s.BaseDesign()
	require.True(t, ok)
	assert.Equal(t, "bangle", d.ID)
	require.Len(t, s.Zones(), 1)
	z, ok := s.ZoneOf(c.ID)
	require.True(t, ok, "a charm already centred on a zone holds it")
	assert.Equal(t, "top", z.ID)
	assert.Equal(t, size, s.HistoryInfo().Size, "loading a design records nothing")
}

func TestDragFlow(t *testing.T) {
	s := newTestSession(t)
	c, err := s.Place(square(50), types.Point{X: 500, Y: 375})
	require.NoError(t, err)
	size := s.HistoryInfo().Size

	_, dragging := s.DragTo(types.Point{})
	assert.False(t, dragging)

	require.NoError(t, s.BeginDrag(c.ID))
	id, active := s.Dragging()
	assert.True(t, active)
	assert.Equal(t, c.ID, id)

	p, ok := s.DragTo(types.Point{X: 0, Y: 0})
	assert.True(t, ok)
	assert.Equal(t, types.Point{X: 250, Y: 200}, p, "clamped to the base design margin")
	assert.Equal(t, size, s.HistoryInfo().Size, "drag updates commit nothing")

	end, err := s.EndDrag(types.Point{X: 2000, Y: 2000})
	require.NoError(t, err)
	assert.Equal(t, types.Point{X: 700, Y: 500}, end.Position)
	assert.Equal(t, size+1, s.HistoryInfo().Size)
	_, active = s.Dragging()
	assert.False(t, active)

	_, err = s.EndDrag(types.Point{})
	assert.ErrorIs(t, err, ErrNoDrag)
	assert.ErrorIs(t, s.BeginDrag("ghost"), types.ErrNotFound)
}

func TestCancelDrag(t *testing.T) {
	s := newTestSession(t)
	c, err := s.Place(square(50), types.Point{X: 500, Y: 375})
	require.NoError(t, err)

	require.NoError(t, s.BeginDrag(c.ID))
	s.DragTo(types.Point{X: 300, Y: 300})
	s.CancelDrag()

	got, _ := s.Get(c.ID)
	assert.Equal(t, c.Position, got.Position)
	assert.Equal(t, 2, s.HistoryInfo().Size)
}

func TestJumpToState(t *testing.T) {
	s := newTestSession(t)
	for _, x := range []float64{300, 400, 500} {
		_, err := s.Place(square(50), types.Point{X: x, Y: 300})
		require.NoError(t, err)
	}

	require.NoError(t, s.JumpToState(1))
	assert.Len(t, s.CharmData(), 1)

	err := s.JumpToState(9)
	assert.ErrorIs(t, err, types.ErrIndexOutOfRange)
	assert.Len(t, s.CharmData(), 1)
}

func TestMilestoneAndBranch(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Place(square(50), types.Point{X: 500, Y: 375})
	require.NoError(t, err)

	ok, err := s.MarkMilestone("draft")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"draft"}, s.HistoryInfo().Milestones)

	branch, ok, err := s.CreateBranch("gold")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "gold", branch.Branch)
	assert.Equal(t, "snap-2", branch.BranchedFrom)

	cur, _ := s.CurrentSnapshot()
	assert.Equal(t, branch.ID, cur.ID)
	assert.Equal(t, 3, s.HistoryInfo().Size)
}

func TestOptimizeAndCleanup(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestSession(t, WithClock(func() time.Time { return clock }))
	_, err := s.Place(square(50), types.Point{X: 500, Y: 375})
	require.NoError(t, err)

	n, err := s.OptimizeHistory()
	require.NoError(t, err)
	assert.Zero(t, n)

	clock = clock.Add(48 * time.Hour)
	_, err = s.Place(square(50), types.Point{X: 300, Y: 300})
	require.NoError(t, err)

	n, err = s.CleanupOldStates(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, s.HistoryInfo().Size)
	assert.Len(t, s.CharmData(), 2)
}

func TestExportImportHistory(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Place(square(50), types.Point{X: 500, Y: 375})
	require.NoError(t, err)
	_, err = s.Place(square(50), types.Point{X: 300, Y: 300})
	require.NoError(t, err)
	_, err = s.Undo()
	require.NoError(t, err)

	data, err := s.ExportHistoryJSON()
	require.NoError(t, err)

	other := newTestSession(t)
	require.NoError(t, other.ImportHistoryJSON(data))
	assert.Equal(t, positions(s), positions(other))
	assert.Equal(t, s.ExportHistory(), other.ExportHistory())
	assert.True(t, other.CanRedo())

	assert.Error(t, other.ImportHistoryJSON([]byte("nope")))

	require.NoError(t, other.ImportHistory(types.HistoryExport{}))
	assert.Empty(t, other.CharmData())
	assert.Equal(t, 1, other.HistoryInfo().Size)
}

func TestAutoPersist(t *testing.T) {
	p := &memPersister{}
	s := newTestSession(t, WithPersister(p))

	_, err := s.Place(square(50), types.Point{X: 500, Y: 375})
	require.NoError(t, err)
	require.NotNil(t, p.saved)
	assert.Equal(t, 1, p.calls)
	assert.Len(t, p.saved.History, 2)

	_, err = s.Undo()
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls)
	assert.Equal(t, 0, p.saved.CurrentIndex)
}

func TestAutoPersistDisabled(t *testing.T) {
	p := &memPersister{}
	cfg := testConfig()
	cfg.AutoPersist = false
	s, err := New(cfg, WithPersister(p))
	require.NoError(t, err)

	_, err = s.Place(square(50), types.Point{X: 500, Y: 375})
	require.NoError(t, err)
	assert.Zero(t, p.calls)

	require.NoError(t, s.Persist())
	assert.Equal(t, 1, p.calls)
}

func TestPersistErrorSurfaces(t *testing.T) {
	boom := errors.New("disk full")
	p := &memPersister{failing: boom}
	s := newTestSession(t, WithPersister(p))

	c, err := s.Place(square(50), types.Point{X: 500, Y: 375})
	assert.ErrorIs(t, err, boom)
	assert.NotEmpty(t, c.ID, "the placement itself succeeded")

	assert.ErrorIs(t, s.Load(), boom)
}

func TestLoadRestoresPersistedComposition(t *testing.T) {
	p := &memPersister{}
	first := newTestSession(t, WithPersister(p))
	_, err := first.Place(square(50), types.Point{X: 500, Y: 375})
	require.NoError(t, err)
	_, err = first.Place(square(50), types.Point{X: 300, Y: 300})
	require.NoError(t, err)

	second := newTestSession(t, WithPersister(p))
	require.NoError(t, second.Load())
	assert.Equal(t, positions(first), positions(second))
	assert.Equal(t, 3, second.HistoryInfo().Size)

	ok, err := second.Undo()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, second.CharmData(), 1)
}

func TestLoadWithoutPersister(t *testing.T) {
	s := newTestSession(t)
	assert.NoError(t, s.Load())
	assert.NoError(t, s.Persist())
}

func TestSessionOverSQLiteBackend(t *testing.T) {
	dir := t.TempDir()
	cfg := types.StoreConfig{Backend: types.BackendSQLite, DataDir: dir}

	b := sqlite.NewBackend()
	require.NoError(t, b.Attach(cfg))
	s := newTestSession(t, WithPersister(b))
	c, err := s.Place(square(50), types.Point{X: 280, Y: 330})
	require.NoError(t, err)
	_, _, err = s.SnapToAttachmentZone(c.ID)
	require.NoError(t, err)
	_, err = s.MarkMilestone("snapped")
	require.NoError(t, err)
	want := positions(s)
	require.NoError(t, b.Detach())

	b2 := sqlite.NewBackend()
	require.NoError(t, b2.Attach(cfg))
	defer b2.Detach()

	restored := newTestSession(t, WithPersister(b2))
	require.NoError(t, restored.Load())
	assert.Equal(t, want, positions(restored))
	assert.Equal(t, []string{"snapped"}, restored.HistoryInfo().Milestones)

	z, ok := restored.FindNearestAttachmentZone(types.Point{X: 300, Y: 350})
	require.True(t, ok)
	assert.Equal(t, "right", z.ID, "zone occupancy is re-derived on load")

	milestones, err := b2.Milestones()
	require.NoError(t, err)
	assert.Len(t, milestones, 1)
}

func TestImportRepeatedSnapshotIDsSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	cfg := types.StoreConfig{Backend: types.BackendSQLite, DataDir: dir}
	at := func(x float64) []types.CharmState {
		return []types.CharmState{{ID: "bead", X: x, Y: 300, Width: 20, Height: 20}}
	}

	b := sqlite.NewBackend()
	require.NoError(t, b.Attach(cfg))
	s := newTestSession(t, WithPersister(b))
	require.NoError(t, s.ImportHistory(types.HistoryExport{
		History: []types.Snapshot{
			{ID: "s1", Charms: at(300)},
			{ID: "s1", Charms: at(310)},
			{ID: "s3", Charms: at(390)},
		},
		CurrentIndex: 1,
	}))
	require.NoError(t, b.Detach())

	b2 := sqlite.NewBackend()
	require.NoError(t, b2.Attach(cfg))
	defer b2.Detach()

	restored := newTestSession(t, WithPersister(b2))
	require.NoError(t, restored.Load())
	info := restored.HistoryInfo()
	assert.Equal(t, 3, info.Size)
	assert.Equal(t, 1, info.CurrentIndex)
	assert.Equal(t, map[string]types.Point{"bead": {X: 310, Y: 300}}, positions(restored))
}
