// Package sqlite implements the history persistence backend. history.jsonl
// in DataDir is the source of truth; SQLite is the query engine, rebuilt from
// the JSONL file on every Attach. cursor.json holds the history cursor.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/charmsmith/pkg/types"
)

// Backend persists history logs. It implements types.HistoryPersister.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.StoreConfig
	db       *sql.DB
	logger   *slog.Logger
}

var _ types.HistoryPersister = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the backend logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBackend creates a new backend instance.
// The backend is not attached; call Attach with a StoreConfig to initialize.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{logger: slog.Default()}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Attach initializes the backend with the given configuration.
// Creates DataDir if it does not exist, builds a fresh SQLite database from
// the schema, and loads history.jsonl into it.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.StoreConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	// The database is derived state; always start from an empty file.
	dbPath := filepath.Join(dataDir, databaseFile)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", databaseFile, err)
	}
	// A single connection keeps PRAGMA state consistent across statements.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return fmt.Errorf("creating schema: %w", err)
	}
	if err := initJSONLFile(dataDir); err != nil {
		db.Close()
		return err
	}
	n, err := loadHistoryJSONL(db, dataDir)
	if err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}

	config.DataDir = dataDir
	b.db = db
	b.config = config
	b.attached = true
	b.logger.Debug("history store attached", "data_dir", dataDir, "snapshots", n)
	return nil
}

// Detach releases the database connection. After Detach, all operations
// return ErrStoreDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}
	b.attached = false
	return nil
}

// DataDir returns the directory the backend is attached to.
func (b *Backend) DataDir() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.config.DataDir
}

// LoadPersistedHistory returns the persisted log, or nil when nothing has
// been saved. A missing or unreadable cursor selects the newest entry.
func (b *Backend) LoadPersistedHistory() (*types.HistoryExport, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	history, err := b.querySnapshots("SELECT "+snapshotColumns+" FROM snapshots ORDER BY seq")
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}
	index, ok, err := readCursor(b.config.DataDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		index = len(history) - 1
	}
	return &types.HistoryExport{History: history, CurrentIndex: index}, nil
}

// PersistHistory rewrites history.jsonl and cursor.json atomically, then
// refreshes the query tables. A log with a missing or repeated snapshot id
// is rejected before anything is written.
func (b *Backend) PersistHistory(data types.HistoryExport) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrStoreDetached
	}
	if err := checkSnapshotIDs(data.History); err != nil {
		return fmt.Errorf("persisting history: %w", err)
	}
	records, err := encodeSnapshots(data.History)
	if err != nil {
		return err
	}
	if err := writeJSONL(filepath.Join(b.config.DataDir, historyJSONL), records); err != nil {
		return fmt.Errorf("persisting %s: %w", historyJSONL, err)
	}
	if err := writeCursor(b.config.DataDir, data.CurrentIndex); err != nil {
		return fmt.Errorf("persisting %s: %w", cursorJSON, err)
	}
	if err := replaceSnapshots(b.db, data.History); err != nil {
		return err
	}
	b.logger.Debug("history persisted", "snapshots", len(data.History), "index", data.CurrentIndex)
	return nil
}

// Milestones returns the persisted milestone snapshots, oldest first.
func (b *Backend) Milestones() ([]types.Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	return b.querySnapshots("SELECT " + snapshotColumns + " FROM snapshots WHERE milestone IS NOT NULL ORDER BY seq")
}

// SnapshotCount returns the number of persisted snapshots.
func (b *Backend) SnapshotCount() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return 0, types.ErrStoreDetached
	}
	var n int
	if err := b.db.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting snapshots: %w", err)
	}
	return n, nil
}

// CharmTrail returns the positions charm id held across the persisted log,
// oldest first. Consecutive repeats are collapsed.
func (b *Backend) CharmTrail(id string) ([]types.Point, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	rows, err := b.db.Query(`SELECT c.x, c.y FROM snapshot_charms c
        JOIN snapshots s ON s.snapshot_id = c.snapshot_id
        WHERE c.charm_id = ? ORDER BY s.seq`, id)
	if err != nil {
		return nil, fmt.Errorf("querying trail of %s: %w", id, err)
	}
	defer rows.Close()

	var trail []types.Point
	for rows.Next() {
		var p types.Point
		if err := rows.Scan(&p.X, &p.Y); err != nil {
			return nil, fmt.Errorf("scanning trail of %s: %w", id, err)
		}
		if n := len(trail); n > 0 && trail[n-1] == p {
			continue
		}
		trail = append(trail, p)
	}
	return trail, rows.Err()
}

const snapshotColumns = "snapshot_id, timestamp, milestone, branch, branched_from, charms"

func (b *Backend) querySnapshots(query string, args ...any) ([]types.Snapshot, error) {
	rows, err := b.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	var out []types.Snapshot
	for rows.Next() {
		var (
			s                                types.Snapshot
			milestone, branch, branchedFrom sql.NullString
			charms                           string
		)
		if err := rows.Scan(&s.ID, &s.Timestamp, &milestone, &branch, &branchedFrom, &charms); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(charms), &s.Charms); err != nil {
			return nil, fmt.Errorf("decoding charms of %s: %w", s.ID, err)
		}
		s.Milestone = milestone.String
		s.Branch = branch.String
		s.BranchedFrom = branchedFrom.String
		out = append(out, s)
	}
	return out, rows.Err()
}
