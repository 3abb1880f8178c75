package composer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mesh-intelligence/charmsmith/pkg/types"
)

// SaveState records the current composition. It reports false when the
// composition matches the state under the history cursor.
func (s *Session) SaveState() (bool, error) {
	if !s.history.SaveState(s.store.Snapshot()) {
		return false, nil
	}
	return true, s.autoPersist()
}

// Undo restores the previous composition. Reports false when there is
// nothing to undo.
func (s *Session) Undo() (bool, error) {
	snap, ok := s.history.Undo()
	if !ok {
		return false, nil
	}
	s.store.Restore(snap.Charms)
	return true, s.autoPersist()
}

// Redo restores the next composition. Reports false when there is nothing
// to redo.
func (s *Session) Redo() (bool, error) {
	snap, ok := s.history.Redo()
	if !ok {
		return false, nil
	}
	s.store.Restore(snap.Charms)
	return true, s.autoPersist()
}

// CanUndo reports whether Undo would change the composition.
func (s *Session) CanUndo() bool { return s.history.CanUndo() }

// CanRedo reports whether Redo would change the composition.
func (s *Session) CanRedo() bool { return s.history.CanRedo() }

// JumpToState restores the composition at history index. Returns
// ErrIndexOutOfRange for an invalid index.
func (s *Session) JumpToState(index int) error {
	snap, err := s.history.JumpToState(index)
	if err != nil {
		return err
	}
	s.store.Restore(snap.Charms)
	return s.autoPersist()
}

// HistoryInfo summarizes the history log.
func (s *Session) HistoryInfo() types.HistoryInfo { return s.history.Info() }

// CurrentSnapshot returns the snapshot under the history cursor.
func (s *Session) CurrentSnapshot() (types.Snapshot, bool) { return s.history.Current() }

// ExportHistory returns a copy of the history log.
func (s *Session) ExportHistory() types.HistoryExport { return s.history.Export() }

// ExportHistoryJSON serializes the history log.
func (s *Session) ExportHistoryJSON() ([]byte, error) { return s.history.ExportJSON() }

// ImportHistory replaces the history log and restores the composition under
// its cursor.
func (s *Session) ImportHistory(data types.HistoryExport) error {
	s.history.Import(data)
	if s.history.Len() == 0 {
		s.store.ClearAll()
		s.history.SaveState(s.store.Snapshot())
	} else {
		s.restoreCurrent()
	}
	return s.autoPersist()
}

// ImportHistoryJSON parses and imports a log produced by ExportHistoryJSON.
func (s *Session) ImportHistoryJSON(data []byte) error {
	var h types.HistoryExport
	if err := json.Unmarshal(data, &h); err != nil {
		return fmt.Errorf("decoding history: %w", err)
	}
	return s.ImportHistory(h)
}

// MarkMilestone labels the current state so compaction and cleanup keep it.
func (s *Session) MarkMilestone(label string) (bool, error) {
	if !s.history.MarkMilestone(label) {
		return false, nil
	}
	return true, s.autoPersist()
}

// CreateBranch starts branch name from the current state and appends it to
// the log, discarding any redo states.
func (s *Session) CreateBranch(name string) (types.Snapshot, bool, error) {
	branch, ok := s.history.CreateBranch(name)
	if !ok {
		return types.Snapshot{}, false, nil
	}
	if !s.history.SaveSnapshot(branch) {
		return types.Snapshot{}, false, nil
	}
	s.logger.Info("history branch created", "branch", name, "from", branch.BranchedFrom)
	return branch, true, s.autoPersist()
}

// OptimizeHistory compacts the log and returns the number of entries
// removed.
func (s *Session) OptimizeHistory() (int, error) {
	n := s.history.OptimizeHistory()
	if n == 0 {
		return 0, nil
	}
	return n, s.autoPersist()
}

// CleanupOldStates drops entries older than maxAge and returns the number
// removed. The composition is restored when the cursor moved.
func (s *Session) CleanupOldStates(maxAge time.Duration) (int, error) {
	n := s.history.CleanupOldStates(maxAge)
	if n == 0 {
		return 0, nil
	}
	s.restoreCurrent()
	return n, s.autoPersist()
}
