package types

import "errors"

// Composition errors. Soft failures (nothing to undo, no free space, snap
// out of range) are reported through boolean results, not errors.
var (
	ErrInvalidCharmSpec = errors.New("invalid charm spec")
	ErrNotFound         = errors.New("charm not found")
	ErrIndexOutOfRange  = errors.New("history index out of range")
	ErrInvalidID        = errors.New("invalid charm ID")
	ErrDuplicateID      = errors.New("charm ID already in use")
)

// Snapshot identity errors.
var (
	ErrInvalidSnapshotID   = errors.New("snapshot ID is empty")
	ErrDuplicateSnapshotID = errors.New("snapshot ID repeated in history")
)

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("history store is detached")
	ErrAlreadyAttached = errors.New("history store is already attached")
)
