// Package history implements the composition undo/redo log: an append-only
// list of snapshots with a cursor, bounded in size, deduplicated against
// drag jitter, with milestone protection, branching, compaction, age-based
// cleanup, and export/import.
//
// The manager knows nothing about charms beyond their snapshot values. It is
// not safe for concurrent use; one orchestrating caller owns it.
package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/charmsmith/pkg/types"
)

// DefaultMaxSize is the number of snapshots kept when no size is configured.
const DefaultMaxSize = types.DefaultMaxHistorySize

// PositionTolerance is the per-axis distance below which two charm positions
// count as the same state. It absorbs sub-pixel jitter from drag updates so
// that pointer-move frames do not flood the log.
const PositionTolerance = 1.0

// Manager is the snapshot log. currentIndex is -1 when the log is empty and
// otherwise always addresses an entry.
type Manager struct {
	history      []types.Snapshot
	currentIndex int
	maxSize      int
	newID        func() string
	now          func() time.Time
	logger       *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxSize bounds the number of retained snapshots. Values below 1 are
// ignored.
func WithMaxSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxSize = n
		}
	}
}

// WithIDGenerator sets the snapshot id generator.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) { m.newID = gen }
}

// WithClock sets the time source used for timestamps and age cleanup.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// newUUID generates a UUID v7 string.
func newUUID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// New returns an empty manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		currentIndex: -1,
		maxSize:      DefaultMaxSize,
		newID:        newUUID,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Len returns the number of retained snapshots.
func (m *Manager) Len() int { return len(m.history) }

// CurrentIndex returns the cursor, -1 when empty.
func (m *Manager) CurrentIndex() int { return m.currentIndex }

// MaxSize returns the size bound.
func (m *Manager) MaxSize() int { return m.maxSize }

// CanUndo reports whether Undo would move the cursor.
func (m *Manager) CanUndo() bool { return m.currentIndex > 0 }

// CanRedo reports whether Redo would move the cursor.
func (m *Manager) CanRedo() bool { return m.currentIndex < len(m.history)-1 }

// Current returns a copy of the snapshot under the cursor.
func (m *Manager) Current() (types.Snapshot, bool) {
	if m.currentIndex < 0 {
		return types.Snapshot{}, false
	}
	return m.history[m.currentIndex].Clone(), true
}

// SaveState appends a snapshot of charms after the cursor. It is a no-op
// returning false when charms equal the state under the cursor. Any states
// after the cursor are discarded, and the oldest entry is evicted when the
// log outgrows its bound.
func (m *Manager) SaveState(charms []types.CharmState) bool {
	return m.push(types.Snapshot{Charms: charms}, false)
}

// SaveSnapshot appends an existing snapshot, such as one returned by
// CreateBranch, keeping its lineage and milestone tags. Missing ids and
// timestamps are filled in. Deduplication also compares the branch name, so
// a fresh branch of the current state is appended.
func (m *Manager) SaveSnapshot(s types.Snapshot) bool {
	return m.push(s, true)
}

// push appends s after the cursor unless it repeats the current state.
// matchBranch makes a differing branch name count as a new state.
func (m *Manager) push(s types.Snapshot, matchBranch bool) bool {
	if cur, ok := m.Current(); ok && StatesEqual(cur.Charms, s.Charms) &&
		(!matchBranch || cur.Branch == s.Branch) {
		return false
	}

	s = s.Clone()
	if s.ID == "" {
		s.ID = m.newID()
	}
	if s.Timestamp == 0 {
		s.Timestamp = m.now().UnixMilli()
	}

	m.history = append(m.history[:m.currentIndex+1], s)
	m.currentIndex++

	for len(m.history) > m.maxSize {
		m.history = m.history[1:]
		m.currentIndex--
	}

	m.logger.Debug("history state saved",
		"snapshot_id", s.ID, "index", m.currentIndex, "size", len(m.history))
	return true
}

// Undo moves the cursor back one entry and returns a copy of that snapshot.
// Returns false at the first state.
func (m *Manager) Undo() (types.Snapshot, bool) {
	if !m.CanUndo() {
		return types.Snapshot{}, false
	}
	m.currentIndex--
	return m.history[m.currentIndex].Clone(), true
}

// Redo moves the cursor forward one entry and returns a copy of that
// snapshot. Returns false at the last state.
func (m *Manager) Redo() (types.Snapshot, bool) {
	if !m.CanRedo() {
		return types.Snapshot{}, false
	}
	m.currentIndex++
	return m.history[m.currentIndex].Clone(), true
}

// JumpToState moves the cursor to index and returns a copy of that snapshot.
// Unlike Undo and Redo an invalid index is an error, ErrIndexOutOfRange.
func (m *Manager) JumpToState(index int) (types.Snapshot, error) {
	if index < 0 || index >= len(m.history) {
		return types.Snapshot{}, fmt.Errorf("jump to state %d of %d: %w", index, len(m.history), types.ErrIndexOutOfRange)
	}
	m.currentIndex = index
	return m.history[index].Clone(), nil
}

// StatesEqual reports whether two charm lists describe the same composition:
// same length and, index by index, the same id and rotation with positions
// within PositionTolerance on each axis.
func StatesEqual(a, b []types.CharmState) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Rotation != b[i].Rotation {
			return false
		}
		if math.Abs(a[i].X-b[i].X) > PositionTolerance || math.Abs(a[i].Y-b[i].Y) > PositionTolerance {
			return false
		}
	}
	return true
}

// OptimizeHistory drops entries equal to the entry kept before them. The
// first and final entries, milestones, and empty compositions are always
// kept. The cursor moves to the nearest kept entry at or before it. Returns
// the number of entries removed.
func (m *Manager) OptimizeHistory() int {
	n := len(m.history)
	if n < 3 {
		return 0
	}
	kept := make([]types.Snapshot, 0, n)
	newIndex := m.currentIndex
	for i, s := range m.history {
		keep := i == 0 || i == n-1 || s.IsMilestone() || len(s.Charms) == 0 ||
			!StatesEqual(kept[len(kept)-1].Charms, s.Charms)
		if keep {
			kept = append(kept, s)
		}
		if i == m.currentIndex {
			newIndex = len(kept) - 1
		}
	}
	removed := n - len(kept)
	m.history = kept
	m.currentIndex = newIndex
	if removed > 0 {
		m.logger.Info("history optimized", "removed", removed, "size", len(kept))
	}
	return removed
}

// MarkMilestone tags the snapshot under the cursor with label so compaction
// and cleanup never discard it. Returns false when the log is empty or the
// label is blank.
func (m *Manager) MarkMilestone(label string) bool {
	if m.currentIndex < 0 || label == "" {
		return false
	}
	m.history[m.currentIndex].Milestone = label
	return true
}

// CreateBranch returns a copy of the snapshot under the cursor tagged as the
// start of branch name, with a fresh id and timestamp. The log is not
// changed; pass the result to SaveSnapshot to adopt it.
func (m *Manager) CreateBranch(name string) (types.Snapshot, bool) {
	cur, ok := m.Current()
	if !ok {
		return types.Snapshot{}, false
	}
	cur.BranchedFrom = cur.ID
	cur.Branch = name
	cur.ID = m.newID()
	cur.Timestamp = m.now().UnixMilli()
	cur.Milestone = ""
	return cur, true
}

// Export returns a deep copy of the log and cursor.
func (m *Manager) Export() types.HistoryExport {
	out := types.HistoryExport{
		History:      make([]types.Snapshot, len(m.history)),
		CurrentIndex: m.currentIndex,
	}
	for i, s := range m.history {
		out.History[i] = s.Clone()
	}
	return out
}

// ExportJSON serializes the log as {history, currentIndex}.
func (m *Manager) ExportJSON() ([]byte, error) {
	return json.Marshal(m.Export())
}

// Import replaces the log with a copy of data. The size bound is re-applied
// oldest-first and the cursor is clamped to a valid entry. Snapshots with a
// missing id, or an id already used earlier in data, get a fresh id.
func (m *Manager) Import(data types.HistoryExport) {
	history := make([]types.Snapshot, len(data.History))
	seen := make(map[string]bool, len(data.History))
	for i, s := range data.History {
		history[i] = s.Clone()
		if s.ID == "" || seen[s.ID] {
			history[i].ID = m.newID()
		}
		seen[history[i].ID] = true
	}
	index := data.CurrentIndex
	if overflow := len(history) - m.maxSize; overflow > 0 {
		history = history[overflow:]
		index -= overflow
	}
	m.history = history
	m.currentIndex = clampIndex(index, len(history))
	m.logger.Debug("history imported", "size", len(history), "index", m.currentIndex)
}

// ImportJSON parses data produced by ExportJSON and imports it.
func (m *Manager) ImportJSON(data []byte) error {
	var h types.HistoryExport
	if err := json.Unmarshal(data, &h); err != nil {
		return fmt.Errorf("decoding history: %w", err)
	}
	m.Import(h)
	return nil
}

// CleanupOldStates drops entries older than maxAge from the front of the
// log. Milestones and the final entry are kept; the scan stops at the first
// entry young enough to keep. The cursor shifts with the entries removed
// before it. Returns the number removed.
func (m *Manager) CleanupOldStates(maxAge time.Duration) int {
	cutoff := m.now().Add(-maxAge)
	n := len(m.history)
	kept := make([]types.Snapshot, 0, n)
	removed, removedBefore := 0, 0
	scanning := true
	for i, s := range m.history {
		if scanning && i < n-1 && s.Time().Before(cutoff) {
			if !s.IsMilestone() {
				removed++
				if i < m.currentIndex {
					removedBefore++
				}
				continue
			}
		} else {
			scanning = false
		}
		kept = append(kept, s)
	}
	if removed == 0 {
		return 0
	}
	m.history = kept
	m.currentIndex = clampIndex(m.currentIndex-removedBefore, len(kept))
	m.logger.Info("old history states removed", "removed", removed, "size", len(kept))
	return removed
}

// ClearHistory empties the log.
func (m *Manager) ClearHistory() {
	m.history = nil
	m.currentIndex = -1
}

// Info summarizes the log.
func (m *Manager) Info() types.HistoryInfo {
	info := types.HistoryInfo{
		Size:         len(m.history),
		CurrentIndex: m.currentIndex,
		MaxSize:      m.maxSize,
		CanUndo:      m.CanUndo(),
		CanRedo:      m.CanRedo(),
		Milestones:   []string{},
	}
	for _, s := range m.history {
		if s.IsMilestone() {
			info.Milestones = append(info.Milestones, s.Milestone)
		}
	}
	if len(m.history) > 0 {
		info.Oldest = m.history[0].Time()
		info.Newest = m.history[len(m.history)-1].Time()
	}
	return info
}

func clampIndex(index, size int) int {
	if size == 0 {
		return -1
	}
	if index < 0 {
		return 0
	}
	if index >= size {
		return size - 1
	}
	return index
}
