package types

import "time"

// Snapshot is an immutable record of the full composition at one point in
// time. Once appended to a history its charm list is never mutated.
type Snapshot struct {
	ID           string       `json:"id"`
	Timestamp    int64        `json:"timestamp"` // Unix milliseconds.
	Charms       []CharmState `json:"charms"`
	Milestone    string       `json:"milestone,omitempty"`
	Branch       string       `json:"branch,omitempty"`
	BranchedFrom string       `json:"branchedFrom,omitempty"`
}

// Time returns the snapshot timestamp as a time.Time.
func (s Snapshot) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// IsMilestone reports whether the snapshot is protected from compaction.
func (s Snapshot) IsMilestone() bool { return s.Milestone != "" }

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	s.Charms = CloneStates(s.Charms)
	return s
}

// CloneStates deep-copies a charm list. The result is never nil so that an
// empty composition serializes as [].
func CloneStates(states []CharmState) []CharmState {
	out := make([]CharmState, len(states))
	for i, st := range states {
		out[i] = st.Clone()
	}
	return out
}

// HistoryExport is the serialized form of a history log, shared by
// exportHistory/importHistory and the persistence collaborator.
type HistoryExport struct {
	History      []Snapshot `json:"history"`
	CurrentIndex int        `json:"currentIndex"`
}

// HistoryInfo summarizes the state of a history log.
type HistoryInfo struct {
	Size         int       `json:"size"`
	CurrentIndex int       `json:"currentIndex"`
	MaxSize      int       `json:"maxSize"`
	CanUndo      bool      `json:"canUndo"`
	CanRedo      bool      `json:"canRedo"`
	Milestones   []string  `json:"milestones"`
	Oldest       time.Time `json:"oldest,omitzero"`
	Newest       time.Time `json:"newest,omitzero"`
}

// HistoryPersister is the persistence collaborator for history logs.
// LoadPersistedHistory returns nil with no error when nothing was saved.
type HistoryPersister interface {
	LoadPersistedHistory() (*HistoryExport, error)
	PersistHistory(data HistoryExport) error
}
